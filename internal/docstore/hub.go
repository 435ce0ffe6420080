package docstore

import "sync"

// Watcher is one subscriber's mailbox. It holds at most one undelivered event;
// a newer snapshot replaces an older one that has not been received yet, so a
// slow reader always catches up to the latest state.
type Watcher struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewWatcher returns an open watcher.
func NewWatcher() *Watcher {
	return &Watcher{ch: make(chan Event, 1)}
}

// C returns the receive side of the mailbox.
func (w *Watcher) C() <-chan Event {
	return w.ch
}

// Send delivers ev, replacing any pending event. It reports false once the
// watcher is closed.
func (w *Watcher) Send(ev Event) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	for {
		select {
		case w.ch <- ev:
			return true
		default:
		}
		select {
		case <-w.ch:
		default:
		}
	}
}

// Fail delivers a terminal error and closes the watcher.
func (w *Watcher) Fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case <-w.ch:
	default:
	}
	w.ch <- Event{Err: err}
	w.closed = true
	close(w.ch)
}

// Close closes the mailbox. Safe to call more than once.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.ch)
}

// Hub fans collection snapshots out to watchers. The zero value is ready to use.
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[*Watcher]struct{}
}

// Subscribe registers a new watcher for collection.
func (h *Hub) Subscribe(collection string) *Watcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchers == nil {
		h.watchers = make(map[string]map[*Watcher]struct{})
	}
	set := h.watchers[collection]
	if set == nil {
		set = make(map[*Watcher]struct{})
		h.watchers[collection] = set
	}
	w := NewWatcher()
	set[w] = struct{}{}
	return w
}

// Unsubscribe removes and closes w.
func (h *Hub) Unsubscribe(collection string, w *Watcher) {
	h.mu.Lock()
	if set := h.watchers[collection]; set != nil {
		delete(set, w)
		if len(set) == 0 {
			delete(h.watchers, collection)
		}
	}
	h.mu.Unlock()
	w.Close()
}

// Publish sends a copy of docs to every watcher of collection.
func (h *Hub) Publish(collection string, docs []Document) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers[collection] {
		w.Send(Event{Documents: CloneDocuments(docs)})
	}
}

// Watching reports whether collection has any watchers.
func (h *Hub) Watching(collection string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[collection]) > 0
}

// CloseAll closes every watcher.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := h.watchers
	h.watchers = nil
	h.mu.Unlock()
	for _, set := range all {
		for w := range set {
			w.Close()
		}
	}
}
