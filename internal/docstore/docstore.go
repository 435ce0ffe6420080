// Package docstore defines the document store the songbook syncs against and
// the snapshot fan-out shared by its backends.
//
// A store holds named collections of documents. Every document has an opaque
// key assigned on creation and a flat map of string fields. Watchers receive
// the full current contents of a collection whenever it changes; they never
// receive deltas.
package docstore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when updating a document that does not exist.
var ErrNotFound = errors.New("document not found")

// Store is implemented by every backend (memory, sqlite, postgres, remote).
type Store interface {
	// Watch subscribes to a collection. The first event carries the current
	// contents; later events follow every change. Cancelling ctx ends the
	// subscription and closes the channel. An event with a non-nil Err is the
	// last one delivered before the channel closes.
	Watch(ctx context.Context, collection string) (<-chan Event, error)

	// Add creates a document and returns its key.
	Add(ctx context.Context, collection string, fields map[string]string) (string, error)

	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, key string, fields map[string]string) error

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, key string) error
}

// Document is one entry of a collection snapshot.
type Document struct {
	Key    string            `json:"key"`
	Fields map[string]string `json:"fields"`
}

// Event is a single notification on a watch channel.
type Event struct {
	Documents []Document
	Err       error
}

// NewKey returns a fresh document key.
func NewKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CloneDocuments deep-copies a snapshot so receivers never share maps with
// the store.
func CloneDocuments(docs []Document) []Document {
	if docs == nil {
		return nil
	}
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = Document{Key: d.Key, Fields: CloneFields(d.Fields)}
	}
	return out
}

// CloneFields copies a field map.
func CloneFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// MergeFields returns base overlaid with patch.
func MergeFields(base, patch map[string]string) map[string]string {
	out := CloneFields(base)
	for k, v := range patch {
		out[k] = v
	}
	return out
}
