package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/five82/songbook/internal/docstore"
)

const (
	defaultPollInterval = 2 * time.Second
	maxBackoff          = 30 * time.Second
	defaultMaxFailures  = 3
)

// calculateBackoff doubles base per consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Watch fetches the current snapshot synchronously, so an unreachable server
// fails here, then long-polls for changes in the background.
func (c *Client) Watch(ctx context.Context, collection string) (<-chan docstore.Event, error) {
	first, err := c.FetchDocuments(ctx, collection, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	w := docstore.NewWatcher()
	w.Send(docstore.Event{Documents: first.Documents})
	go c.follow(ctx, collection, w, first.Version)
	return w.C(), nil
}

func (c *Client) follow(ctx context.Context, collection string, w *docstore.Watcher, version uint64) {
	defer w.Close()
	failures := 0
	for {
		resp, err := c.FetchDocuments(ctx, collection, version, c.wait)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			if failures >= c.maxFailures {
				w.Fail(fmt.Errorf("watch %s: %w", collection, err))
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(calculateBackoff(failures, c.pollInterval)):
			}
			continue
		}
		failures = 0
		if resp.Version == version {
			continue
		}
		version = resp.Version
		if !w.Send(docstore.Event{Documents: resp.Documents}) {
			return
		}
	}
}
