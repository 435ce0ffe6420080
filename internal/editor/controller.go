// Package editor is the synchronization-and-edit controller: it keeps the
// mirror current from the store subscription, projects it for display, and
// turns editor commits into remote writes.
//
// A Controller has a single owner (the TUI event loop or a CLI command).
// Remote writes are prepared on the owner with Commit or Remove, executed
// anywhere with Op.Run, and applied back on the owner with Complete.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/text/collate"

	"github.com/five82/songbook/internal/docstore"
	"github.com/five82/songbook/internal/song"
	"github.com/five82/songbook/internal/state"
)

// DefaultCollection is the collection songs live in.
const DefaultCollection = "song"

// Options configures a Controller.
type Options struct {
	Collection  string
	RequireLink bool
	// Collator orders titles; nil selects song.NewCollator(song.DefaultLocale).
	Collator *collate.Collator
	Logger   *slog.Logger
}

// Controller coordinates the mirror, the subscription and the editor machine.
type Controller struct {
	store       docstore.Store
	collection  string
	requireLink bool
	collator    *collate.Collator
	logger      *slog.Logger

	mirror  *state.Mirror
	sub     *state.Subscription
	machine *Machine

	term     string
	inflight *Op
	lastErr  error
}

// New returns a controller in the closed state. Call Start to subscribe.
func New(store docstore.Store, opts Options) *Controller {
	collection := opts.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	collator := opts.Collator
	if collator == nil {
		collator = song.NewCollator(song.DefaultLocale)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:       store,
		collection:  collection,
		requireLink: opts.RequireLink,
		collator:    collator,
		logger:      logger.With("component", "editor", "collection", collection),
		mirror:      &state.Mirror{},
		sub:         state.NewSubscription(store, collection),
		machine:     NewMachine(),
	}
}

// Collection returns the collection name.
func (c *Controller) Collection() string { return c.collection }

// Start opens the subscription.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.sub.Start(ctx); err != nil {
		if !errors.Is(err, state.ErrAlreadyStarted) {
			c.mirror.Fail(err)
			c.logger.Error("subscription failed to start", "error", err)
		}
		return c.fail(err)
	}
	c.logger.Debug("subscription started")
	return nil
}

// Stop releases the subscription. Safe to call more than once.
func (c *Controller) Stop() {
	c.sub.Stop()
}

// Subscribed reports whether the subscription is open.
func (c *Controller) Subscribed() bool { return c.sub.Active() }

// Receive waits for the next subscription event. It may be called off the
// owner's goroutine; the event must be applied with HandleEvent on the owner.
func (c *Controller) Receive(ctx context.Context) (docstore.Event, bool) {
	return c.sub.Receive(ctx)
}

// HandleEvent applies a subscription event. A snapshot replaces the mirror
// and refreshes the viewed record; an error is recorded and returned.
func (c *Controller) HandleEvent(ev docstore.Event) error {
	if ev.Err != nil {
		c.mirror.Fail(ev.Err)
		c.logger.Error("subscription failed", "error", ev.Err)
		return c.fail(ev.Err)
	}
	c.mirror.Replace(ev.Documents)
	c.machine.refresh(c.mirror.Lookup)
	var se *state.SubscriptionError
	if errors.As(c.lastErr, &se) {
		c.lastErr = nil
	}
	return nil
}

// Sync blocks for one subscription event and applies it.
func (c *Controller) Sync(ctx context.Context) error {
	ev, ok := c.Receive(ctx)
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		return c.fail(&state.SubscriptionError{Collection: c.collection, Err: state.ErrStreamClosed})
	}
	return c.HandleEvent(ev)
}

// Snapshot returns the mirror's snapshot for status display.
func (c *Controller) Snapshot() state.Snapshot { return c.mirror.Snapshot() }

// Visible returns the records to list for the current search term.
func (c *Controller) Visible() []song.Record {
	return song.Project(c.mirror.Records(), c.term, c.collator)
}

// SetSearchTerm changes the filter.
func (c *Controller) SetSearchTerm(term string) { c.term = term }

// SearchTerm returns the filter.
func (c *Controller) SearchTerm() string { return c.term }

// ClearSearch resets the filter to match everything.
func (c *Controller) ClearSearch() { c.term = "" }

// State returns the editor state.
func (c *Controller) State() State { return c.machine.State() }

// Staged returns the staged values while creating or editing.
func (c *Controller) Staged() (song.Fields, bool) { return c.machine.Staged() }

// Selected returns the record being viewed or edited.
func (c *Controller) Selected() (song.Record, bool) {
	switch s := c.machine.State().(type) {
	case Viewing:
		return s.Record, true
	case Editing:
		return s.Record, true
	}
	return song.Record{}, false
}

// Writing reports whether a remote write is pending.
func (c *Controller) Writing() bool { return c.inflight != nil }

// LastError returns the most recent error, if not cleared since.
func (c *Controller) LastError() error { return c.lastErr }

// ClearError forgets the last error.
func (c *Controller) ClearError() { c.lastErr = nil }

func (c *Controller) fail(err error) error {
	c.lastErr = err
	return err
}

// SelectRecord views the record with key. An empty key closes the editor.
func (c *Controller) SelectRecord(key string) error {
	if key == "" {
		c.Close()
		return nil
	}
	r, ok := c.mirror.Lookup(key)
	if !ok {
		return c.fail(fmt.Errorf("%w: %s", ErrUnknownRecord, key))
	}
	if err := c.machine.Select(r); err != nil {
		return c.fail(err)
	}
	return nil
}

// StartCreate opens an empty draft.
func (c *Controller) StartCreate() error {
	if err := c.machine.StartCreate(); err != nil {
		return c.fail(err)
	}
	return nil
}

// StartEdit stages the viewed record for editing.
func (c *Controller) StartEdit() error {
	if err := c.machine.StartEdit(); err != nil {
		return c.fail(err)
	}
	return nil
}

// SetField changes one staged value by field name.
func (c *Controller) SetField(name, value string) error {
	if c.inflight != nil {
		return c.fail(ErrWriteInFlight)
	}
	field, err := song.ParseField(name)
	if err != nil {
		return c.fail(err)
	}
	if err := c.machine.SetField(field, value); err != nil {
		return c.fail(err)
	}
	return nil
}

// Close discards staged values and closes the editor. A pending write is
// not cancelled; its completion will be reported as stale.
func (c *Controller) Close() {
	c.machine.Close()
}

// Commit validates the staged values and prepares the create or update.
// Validation failures never reach the store.
func (c *Controller) Commit() (*Op, error) {
	if c.inflight != nil {
		return nil, c.fail(ErrWriteInFlight)
	}
	var op *Op
	switch s := c.machine.State().(type) {
	case Creating:
		if err := s.Staged.Validate(c.requireLink); err != nil {
			return nil, c.fail(err)
		}
		op = &Op{Kind: OpCreate, Fields: s.Staged}
	case Editing:
		if err := s.Staged.Validate(c.requireLink); err != nil {
			return nil, c.fail(err)
		}
		op = &Op{Kind: OpUpdate, Key: s.Record.Key, Record: s.Record, Fields: s.Staged}
	default:
		return nil, c.fail(invalid("commit", c.machine.Mode()))
	}
	return c.begin(op), nil
}

// Remove prepares a delete of the viewed or edited record once confirmer
// approves it.
func (c *Controller) Remove(confirmer Confirmer) (*Op, error) {
	if c.inflight != nil {
		return nil, c.fail(ErrWriteInFlight)
	}
	r, ok := c.Selected()
	if !ok {
		return nil, c.fail(invalid("delete", c.machine.Mode()))
	}
	if confirmer == nil || !confirmer.Confirm(r) {
		return nil, c.fail(ErrNotConfirmed)
	}
	return c.begin(&Op{Kind: OpDelete, Key: r.Key, Record: r, Fields: r.Fields()}), nil
}

func (c *Controller) begin(op *Op) *Op {
	op.store = c.store
	op.collection = c.collection
	op.epoch = c.machine.Epoch()
	c.inflight = op
	return op
}

// Complete applies a finished write. Failures come back as
// *RemoteWriteError with the editor unchanged. Success moves the editor on
// unless it changed state meanwhile, in which case the result is marked
// stale.
func (c *Controller) Complete(done Completion) (Result, error) {
	op := done.Op
	if op == nil {
		return Result{}, errors.New("completion without op")
	}
	if c.inflight == op {
		c.inflight = nil
	}
	res := Result{Op: op, Stale: op.epoch != c.machine.Epoch()}

	if done.Err != nil {
		err := &RemoteWriteError{Op: op.Kind, Key: op.Key, Err: done.Err}
		c.logger.Warn("write failed", "op", op.Kind.String(), "key", op.Key, "error", done.Err)
		return res, c.fail(err)
	}

	switch op.Kind {
	case OpCreate:
		res.Record = song.Record{Key: done.Key}.WithFields(op.Fields)
		if !res.Stale {
			c.machine.created()
		}
	case OpUpdate:
		res.Record = op.Record.WithFields(op.Fields)
		if !res.Stale {
			c.machine.updated(res.Record)
		}
	case OpDelete:
		res.Record = op.Record
		if !res.Stale {
			c.machine.removed()
		}
	}
	c.logger.Debug("write applied", "op", op.Kind.String(), "key", res.Record.Key, "stale", res.Stale)

	var se *state.SubscriptionError
	if !errors.As(c.lastErr, &se) {
		c.lastErr = nil
	}
	return res, nil
}

// Execute runs op synchronously and applies its completion. It suits
// callers that own no event loop, such as CLI commands.
func (c *Controller) Execute(ctx context.Context, op *Op) (Result, error) {
	return c.Complete(op.Run(ctx))
}
