package editor

import (
	"context"

	"github.com/five82/songbook/internal/docstore"
	"github.com/five82/songbook/internal/song"
)

// Op is a prepared remote write. Run it off the owner's goroutine and hand
// the Completion back to Controller.Complete.
type Op struct {
	Kind   OpKind
	Key    string // empty for creates
	Record song.Record
	Fields song.Fields

	store      docstore.Store
	collection string
	epoch      uint64
}

// Completion is the outcome of Op.Run.
type Completion struct {
	Op  *Op
	Key string // key assigned by a create
	Err error
}

// Run performs the write. It does not touch controller state and may be
// called from any goroutine.
func (o *Op) Run(ctx context.Context) Completion {
	c := Completion{Op: o, Key: o.Key}
	switch o.Kind {
	case OpCreate:
		c.Key, c.Err = o.store.Add(ctx, o.collection, o.Fields.Map())
	case OpUpdate:
		c.Err = o.store.Update(ctx, o.collection, o.Key, o.Fields.MapAll())
	case OpDelete:
		c.Err = o.store.Delete(ctx, o.collection, o.Key)
	}
	return c
}

// Result describes an applied completion.
type Result struct {
	Op     *Op
	Record song.Record // the created or updated record
	// Stale is set when the editor changed state while the write was in
	// flight. The write took effect remotely but the editor was not moved.
	Stale bool
}

// Confirmer approves destructive actions.
type Confirmer interface {
	Confirm(r song.Record) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(r song.Record) bool

func (f ConfirmFunc) Confirm(r song.Record) bool { return f(r) }
