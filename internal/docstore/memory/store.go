// Package memory is an in-process document store. It backs tests and the
// "memory" backend, where nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/five82/songbook/internal/docstore"
)

type collection struct {
	order []string
	docs  map[string]map[string]string
}

// Store keeps collections in memory. The zero value is not usable; call New.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
	hub         docstore.Hub
}

// New returns an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

var _ docstore.Store = (*Store)(nil)

func (s *Store) coll(name string) *collection {
	c := s.collections[name]
	if c == nil {
		c = &collection{docs: make(map[string]map[string]string)}
		s.collections[name] = c
	}
	return c
}

// snapshot must be called with s.mu held.
func (s *Store) snapshot(name string) []docstore.Document {
	c := s.collections[name]
	if c == nil {
		return []docstore.Document{}
	}
	out := make([]docstore.Document, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, docstore.Document{Key: key, Fields: docstore.CloneFields(c.docs[key])})
	}
	return out
}

// Watch delivers the current contents immediately, then every change.
func (s *Store) Watch(ctx context.Context, name string) (<-chan docstore.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	w := s.hub.Subscribe(name)
	w.Send(docstore.Event{Documents: s.snapshot(name)})
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.hub.Unsubscribe(name, w)
	}()
	return w.C(), nil
}

// Add stores fields under a fresh key.
func (s *Store) Add(ctx context.Context, name string, fields map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(name)
	key := docstore.NewKey()
	c.order = append(c.order, key)
	c.docs[key] = docstore.CloneFields(fields)
	s.hub.Publish(name, s.snapshot(name))
	return key, nil
}

// Update merges fields into the document at key.
func (s *Store) Update(ctx context.Context, name, key string, fields map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collections[name]
	if c == nil || c.docs[key] == nil {
		return docstore.ErrNotFound
	}
	c.docs[key] = docstore.MergeFields(c.docs[key], fields)
	s.hub.Publish(name, s.snapshot(name))
	return nil
}

// Delete removes the document at key if present.
func (s *Store) Delete(ctx context.Context, name, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collections[name]
	if c == nil || c.docs[key] == nil {
		return nil
	}
	delete(c.docs, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	s.hub.Publish(name, s.snapshot(name))
	return nil
}

// Close ends every open watch.
func (s *Store) Close() error {
	s.hub.CloseAll()
	return nil
}
