package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/five82/songbook/internal/docstore"
)

// feed is the server's numbered view of one collection. Versions come from
// a counter shared by every feed the server builds, so a feed rebuilt after
// its watch ended keeps numbering above what clients have already seen.
type feed struct {
	seq     *atomic.Uint64
	mu      sync.Mutex
	version uint64
	docs    []docstore.Document
	changed chan struct{}
}

func newFeed(seq *atomic.Uint64) *feed {
	return &feed{seq: seq, changed: make(chan struct{})}
}

func (f *feed) current() (uint64, []docstore.Document, <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version, docstore.CloneDocuments(f.docs), f.changed
}

func (f *feed) set(docs []docstore.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version = f.seq.Add(1)
	f.docs = docs
	close(f.changed)
	f.changed = make(chan struct{})
}

// feedFor returns the feed for collection, starting its watch on first use.
// The first snapshot is read synchronously so a new feed never reports
// version zero. The watch is opened without holding s.mu; when two requests
// race, the loser cancels its watch and uses the installed feed.
func (s *Server) feedFor(ctx context.Context, collection string) (*feed, error) {
	s.mu.Lock()
	f := s.feeds[collection]
	s.mu.Unlock()
	if f != nil {
		return f, nil
	}

	watchCtx, cancel := context.WithCancel(s.ctx)
	ch, first, err := s.openWatch(ctx, watchCtx, collection)
	if err != nil {
		cancel()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.feeds[collection]; existing != nil {
		cancel()
		return existing, nil
	}
	f = newFeed(&s.seq)
	f.set(first.Documents)
	s.feeds[collection] = f
	go s.pump(collection, f, ch, cancel)
	return f, nil
}

func (s *Server) openWatch(ctx, watchCtx context.Context, collection string) (<-chan docstore.Event, docstore.Event, error) {
	ch, err := s.store.Watch(watchCtx, collection)
	if err != nil {
		return nil, docstore.Event{}, err
	}
	select {
	case ev, ok := <-ch:
		if !ok {
			return nil, docstore.Event{}, fmt.Errorf("watch %s closed", collection)
		}
		if ev.Err != nil {
			return nil, docstore.Event{}, ev.Err
		}
		return ch, ev, nil
	case <-ctx.Done():
		return nil, docstore.Event{}, ctx.Err()
	}
}

// pump copies watch events into f. When the watch ends the feed is dropped
// so the next request starts a new one.
func (s *Server) pump(collection string, f *feed, ch <-chan docstore.Event, cancel context.CancelFunc) {
	defer func() {
		cancel()
		s.mu.Lock()
		if s.feeds[collection] == f {
			delete(s.feeds, collection)
		}
		s.mu.Unlock()
	}()
	for ev := range ch {
		if ev.Err != nil {
			s.logger.Warn("collection watch ended", "collection", collection, "error", ev.Err)
			return
		}
		f.set(ev.Documents)
	}
}
