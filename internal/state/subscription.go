package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/five82/songbook/internal/docstore"
)

var (
	// ErrAlreadyStarted is returned by Start while a subscription is active.
	ErrAlreadyStarted = errors.New("subscription already started")
	// ErrStreamClosed reports a watch that ended without an error event.
	ErrStreamClosed = errors.New("change stream closed")
)

// SubscriptionError reports a failed or broken collection watch. It is fatal
// for the subscription; Start must be called again to resume.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// Subscription owns the single live watch on a collection.
type Subscription struct {
	store      docstore.Store
	collection string

	mu     sync.Mutex
	cancel context.CancelFunc
	ch     <-chan docstore.Event
	gen    uint64
}

// NewSubscription prepares a subscription; nothing is opened until Start.
func NewSubscription(store docstore.Store, collection string) *Subscription {
	return &Subscription{store: store, collection: collection}
}

// Collection returns the watched collection name.
func (s *Subscription) Collection() string { return s.collection }

// Start opens the watch. Setup failures are returned as *SubscriptionError
// and leave the subscription inactive.
func (s *Subscription) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	wctx, cancel := context.WithCancel(ctx)
	ch, err := s.store.Watch(wctx, s.collection)
	if err != nil {
		cancel()
		return &SubscriptionError{Collection: s.collection, Err: err}
	}
	s.cancel = cancel
	s.ch = ch
	s.gen++
	return nil
}

// Stop releases the watch. Safe to call more than once.
func (s *Subscription) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *Subscription) releaseLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.ch = nil
	s.gen++
}

// Active reports whether a watch is open.
func (s *Subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Receive blocks for the next event. It returns false when the subscription
// is not active, was stopped or restarted while waiting, or ctx ended. A
// failure is returned once as an event carrying *SubscriptionError, after
// which the subscription is released.
func (s *Subscription) Receive(ctx context.Context) (docstore.Event, bool) {
	s.mu.Lock()
	ch, gen := s.ch, s.gen
	s.mu.Unlock()
	if ch == nil {
		return docstore.Event{}, false
	}

	var (
		ev docstore.Event
		ok bool
	)
	select {
	case ev, ok = <-ch:
	case <-ctx.Done():
		return docstore.Event{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return docstore.Event{}, false
	}
	if !ok {
		s.releaseLocked()
		return docstore.Event{Err: &SubscriptionError{Collection: s.collection, Err: ErrStreamClosed}}, true
	}
	if ev.Err != nil {
		s.releaseLocked()
		return docstore.Event{Err: &SubscriptionError{Collection: s.collection, Err: ev.Err}}, true
	}
	return ev, true
}
