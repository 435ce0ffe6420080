package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/five82/songbook/internal/docstore"
	"github.com/five82/songbook/internal/docstore/memory"
	"github.com/five82/songbook/internal/song"
	"github.com/five82/songbook/internal/state"
)

type countingStore struct {
	*memory.Store
	adds, updates, deletes int
	failAdd, failUpdate    error
	failDelete, failWatch  error
}

func (s *countingStore) Watch(ctx context.Context, collection string) (<-chan docstore.Event, error) {
	if s.failWatch != nil {
		return nil, s.failWatch
	}
	return s.Store.Watch(ctx, collection)
}

func (s *countingStore) Add(ctx context.Context, collection string, fields map[string]string) (string, error) {
	s.adds++
	if s.failAdd != nil {
		return "", s.failAdd
	}
	return s.Store.Add(ctx, collection, fields)
}

func (s *countingStore) Update(ctx context.Context, collection, key string, fields map[string]string) error {
	s.updates++
	if s.failUpdate != nil {
		return s.failUpdate
	}
	return s.Store.Update(ctx, collection, key, fields)
}

func (s *countingStore) Delete(ctx context.Context, collection, key string) error {
	s.deletes++
	if s.failDelete != nil {
		return s.failDelete
	}
	return s.Store.Delete(ctx, collection, key)
}

func (s *countingStore) calls() int { return s.adds + s.updates + s.deletes }

// setup seeds the store with titles, starts a controller and applies the
// initial snapshot. It returns the keys by title.
func setup(t *testing.T, requireLink bool, titles ...string) (*Controller, *countingStore, map[string]string) {
	t.Helper()
	ctx := context.Background()
	mem := memory.New()
	keys := map[string]string{}
	for _, title := range titles {
		k, err := mem.Add(ctx, DefaultCollection, map[string]string{"title": title, "lyrics": "lyrics of " + title})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		keys[title] = k
	}
	store := &countingStore{Store: mem}
	c := New(store, Options{
		RequireLink: requireLink,
		Collator:    song.NewCollator("en"),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(c.Stop)
	syncOnce(t, c)
	return c, store, keys
}

func syncOnce(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func mustMode(t *testing.T, c *Controller, want Mode) {
	t.Helper()
	if got := c.State().Mode(); got != want {
		t.Fatalf("mode = %s, want %s", got, want)
	}
}

func TestController_SearchFiltersVisibleRecords(t *testing.T) {
	c, _, keys := setup(t, false, "Amazing Grace", "Be Thou My Vision")

	c.SetSearchTerm("be")
	got := c.Visible()
	if len(got) != 1 || got[0].Key != keys["Be Thou My Vision"] {
		t.Fatalf("Visible(be) = %#v", got)
	}

	c.ClearSearch()
	got = c.Visible()
	if len(got) != 2 || got[0].Title != "Amazing Grace" || c.SearchTerm() != "" {
		t.Fatalf("Visible after clear = %#v", got)
	}
}

func TestController_CreateThenSnapshotShowsRecord(t *testing.T) {
	c, store, _ := setup(t, false, "Amazing Grace")

	if err := c.StartCreate(); err != nil {
		t.Fatalf("StartCreate: %v", err)
	}
	if staged, ok := c.Staged(); !ok || staged != (song.Fields{}) {
		t.Fatalf("Staged = %#v, %v; want empty draft", staged, ok)
	}
	for name, value := range map[string]string{"title": "Cântec nou", "lyrics": "strofa 1"} {
		if err := c.SetField(name, value); err != nil {
			t.Fatalf("SetField(%s): %v", name, err)
		}
	}

	op, err := c.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !c.Writing() {
		t.Fatalf("Writing = false with op prepared")
	}
	res, err := c.Execute(context.Background(), op)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if store.adds != 1 || res.Record.Key == "" || res.Record.Title != "Cântec nou" || res.Stale {
		t.Fatalf("result = %#v, adds = %d", res, store.adds)
	}
	mustMode(t, c, ModeClosed)
	if _, ok := c.Staged(); ok {
		t.Fatalf("staged values survived a successful create")
	}

	syncOnce(t, c)
	found := false
	for _, r := range c.Visible() {
		if r.Key == res.Record.Key {
			found = true
		}
	}
	if !found {
		t.Fatalf("created record missing after snapshot: %#v", c.Visible())
	}
}

func TestController_RemoveWithoutConfirmationDoesNothing(t *testing.T) {
	c, store, keys := setup(t, false, "Amazing Grace")
	if err := c.SelectRecord(keys["Amazing Grace"]); err != nil {
		t.Fatalf("SelectRecord: %v", err)
	}

	var asked song.Record
	_, err := c.Remove(ConfirmFunc(func(r song.Record) bool {
		asked = r
		return false
	}))
	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("Remove = %v, want ErrNotConfirmed", err)
	}
	if asked.Title != "Amazing Grace" {
		t.Fatalf("confirmer asked about %#v", asked)
	}
	if store.deletes != 0 {
		t.Fatalf("deletes = %d, want 0", store.deletes)
	}
	mustMode(t, c, ModeViewing)

	if _, err := c.Remove(nil); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("Remove(nil) = %v, want ErrNotConfirmed", err)
	}
}

func TestController_RemoveConfirmedClosesAndSnapshotDropsRecord(t *testing.T) {
	c, store, keys := setup(t, false, "Amazing Grace", "Be Thou My Vision")
	if err := c.SelectRecord(keys["Amazing Grace"]); err != nil {
		t.Fatalf("SelectRecord: %v", err)
	}
	op, err := c.Remove(ConfirmFunc(func(song.Record) bool { return true }))
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := c.Execute(context.Background(), op); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if store.deletes != 1 {
		t.Fatalf("deletes = %d, want 1", store.deletes)
	}
	mustMode(t, c, ModeClosed)

	syncOnce(t, c)
	if v := c.Visible(); len(v) != 1 || v[0].Title != "Be Thou My Vision" {
		t.Fatalf("Visible after delete = %#v", v)
	}
}

func TestController_RejectedUpdateKeepsEditingState(t *testing.T) {
	c, store, keys := setup(t, false, "Amazing Grace")
	store.failUpdate = errors.New("permission denied")

	if err := c.SelectRecord(keys["Amazing Grace"]); err != nil {
		t.Fatalf("SelectRecord: %v", err)
	}
	if err := c.StartEdit(); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	if err := c.SetField("title", "Amazing Grace (live)"); err != nil {
		t.Fatalf("SetField: %v", err)
	}

	op, err := c.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	_, err = c.Execute(context.Background(), op)
	var rwe *RemoteWriteError
	if !errors.As(err, &rwe) || rwe.Op != OpUpdate || rwe.Key != keys["Amazing Grace"] {
		t.Fatalf("Execute = %v, want *RemoteWriteError for update", err)
	}
	if !errors.Is(c.LastError(), store.failUpdate) {
		t.Fatalf("LastError = %v, want the store error retained", c.LastError())
	}

	ed, ok := c.State().(Editing)
	if !ok || ed.Staged.Title != "Amazing Grace (live)" || ed.Record.Title != "Amazing Grace" {
		t.Fatalf("state after failed update = %#v", c.State())
	}
	if c.Writing() {
		t.Fatalf("Writing still set after completion")
	}
}

func TestController_SuccessfulUpdatePatchesSelectedRecord(t *testing.T) {
	c, _, keys := setup(t, false, "Amazing Grace")
	_ = c.SelectRecord(keys["Amazing Grace"])
	_ = c.StartEdit()
	_ = c.SetField("lyrics", "new verse")
	op, err := c.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := c.Execute(context.Background(), op); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	v, ok := c.State().(Viewing)
	if !ok || v.Record.Lyrics != "new verse" || v.Record.Key != keys["Amazing Grace"] {
		t.Fatalf("state after update = %#v", c.State())
	}
	// The mirror itself is only changed by the next snapshot.
	if r, _ := c.mirror.Lookup(keys["Amazing Grace"]); r.Lyrics == "new verse" {
		t.Fatalf("mirror was patched before a snapshot arrived")
	}
	syncOnce(t, c)
	if r, _ := c.mirror.Lookup(keys["Amazing Grace"]); r.Lyrics != "new verse" {
		t.Fatalf("mirror after snapshot = %#v", r)
	}
}

func TestController_ValidationMakesNoRemoteCall(t *testing.T) {
	tests := []struct {
		name        string
		requireLink bool
		fields      map[string]string
		missing     []song.Field
	}{
		{"empty draft", false, nil, []song.Field{song.FieldTitle, song.FieldLyrics}},
		{"blank title", false, map[string]string{"title": "   ", "lyrics": "x"}, []song.Field{song.FieldTitle}},
		{"link required", true, map[string]string{"title": "T", "lyrics": "x"}, []song.Field{song.FieldLink}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, _ := setup(t, tt.requireLink)
			_ = c.StartCreate()
			for k, v := range tt.fields {
				if err := c.SetField(k, v); err != nil {
					t.Fatalf("SetField: %v", err)
				}
			}
			op, err := c.Commit()
			var ve *song.ValidationError
			if op != nil || !errors.As(err, &ve) {
				t.Fatalf("Commit = %v, %v; want ValidationError", op, err)
			}
			for _, f := range tt.missing {
				if !ve.Has(f) {
					t.Fatalf("missing %v, want %s listed", ve.Missing, f)
				}
			}
			if store.calls() != 0 || c.Writing() {
				t.Fatalf("store calls = %d, writing = %v", store.calls(), c.Writing())
			}
			mustMode(t, c, ModeCreating)
		})
	}
}

func TestController_StartEditPrePopulatesFromCommittedRecord(t *testing.T) {
	c, _, keys := setup(t, false, "Amazing Grace")
	_ = c.SelectRecord(keys["Amazing Grace"])
	_ = c.StartEdit()
	_ = c.SetField("title", "draft that gets thrown away")
	c.Close()

	_ = c.SelectRecord(keys["Amazing Grace"])
	if err := c.StartEdit(); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	staged, ok := c.Staged()
	if !ok || staged.Title != "Amazing Grace" || staged.Lyrics != "lyrics of Amazing Grace" {
		t.Fatalf("Staged = %#v, want committed values", staged)
	}
}

func TestController_InvalidTransitionsLeaveStateUnchanged(t *testing.T) {
	c, _, keys := setup(t, false, "Amazing Grace")

	if err := c.SetField("title", "x"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("SetField while closed = %v", err)
	}
	if err := c.StartEdit(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("StartEdit while closed = %v", err)
	}
	if _, err := c.Commit(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Commit while closed = %v", err)
	}
	if _, err := c.Remove(ConfirmFunc(func(song.Record) bool { return true })); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Remove while closed = %v", err)
	}
	mustMode(t, c, ModeClosed)

	_ = c.SelectRecord(keys["Amazing Grace"])
	if err := c.SetField("title", "x"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("SetField while viewing = %v", err)
	}
	if err := c.StartCreate(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("StartCreate while viewing = %v", err)
	}
	mustMode(t, c, ModeViewing)

	_ = c.StartEdit()
	if err := c.SetField("chorus", "x"); !errors.Is(err, song.ErrUnknownField) {
		t.Fatalf("SetField(chorus) = %v, want ErrUnknownField", err)
	}
	if err := c.SelectRecord(keys["Amazing Grace"]); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("SelectRecord while editing = %v", err)
	}
	mustMode(t, c, ModeEditing)

	if err := c.SelectRecord("missing"); !errors.Is(err, ErrUnknownRecord) {
		t.Fatalf("SelectRecord(missing) = %v", err)
	}
	if err := c.SelectRecord(""); err != nil {
		t.Fatalf("SelectRecord(\"\") = %v", err)
	}
	mustMode(t, c, ModeClosed)
}

func TestController_SecondWriteWhileInFlightIsRejected(t *testing.T) {
	c, store, keys := setup(t, false, "Amazing Grace")
	_ = c.SelectRecord(keys["Amazing Grace"])
	_ = c.StartEdit()
	op, err := c.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := c.Commit(); !errors.Is(err, ErrWriteInFlight) {
		t.Fatalf("second Commit = %v, want ErrWriteInFlight", err)
	}
	if _, err := c.Remove(ConfirmFunc(func(song.Record) bool { return true })); !errors.Is(err, ErrWriteInFlight) {
		t.Fatalf("Remove in flight = %v, want ErrWriteInFlight", err)
	}
	if err := c.SetField("title", "x"); !errors.Is(err, ErrWriteInFlight) {
		t.Fatalf("SetField in flight = %v, want ErrWriteInFlight", err)
	}

	if _, err := c.Execute(context.Background(), op); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if store.updates != 1 {
		t.Fatalf("updates = %d, want 1", store.updates)
	}
}

func TestController_CompletionAfterCloseIsStale(t *testing.T) {
	c, store, _ := setup(t, false)
	_ = c.StartCreate()
	_ = c.SetField("title", "T")
	_ = c.SetField("lyrics", "L")
	op, err := c.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	done := op.Run(context.Background())
	c.Close()
	_ = c.StartCreate()

	res, err := c.Complete(done)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !res.Stale || store.adds != 1 {
		t.Fatalf("result = %#v, adds = %d; want stale create", res, store.adds)
	}
	// The new draft is untouched by the old completion.
	mustMode(t, c, ModeCreating)
	if staged, _ := c.Staged(); staged != (song.Fields{}) {
		t.Fatalf("new draft modified: %#v", staged)
	}
}

func TestController_StaleFailureIsStillReported(t *testing.T) {
	c, store, keys := setup(t, false, "Amazing Grace")
	store.failDelete = errors.New("offline")
	_ = c.SelectRecord(keys["Amazing Grace"])
	op, err := c.Remove(ConfirmFunc(func(song.Record) bool { return true }))
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	done := op.Run(context.Background())
	c.Close()

	res, err := c.Complete(done)
	var rwe *RemoteWriteError
	if !errors.As(err, &rwe) || rwe.Op != OpDelete || !res.Stale {
		t.Fatalf("Complete = %#v, %v", res, err)
	}
	mustMode(t, c, ModeClosed)
}

func TestController_SnapshotRefreshesOrClosesViewedRecord(t *testing.T) {
	c, store, keys := setup(t, false, "Amazing Grace", "Be Thou My Vision")
	ctx := context.Background()

	_ = c.SelectRecord(keys["Amazing Grace"])
	if err := store.Store.Update(ctx, DefaultCollection, keys["Amazing Grace"], map[string]string{"lyrics": "remote edit"}); err != nil {
		t.Fatalf("remote update: %v", err)
	}
	syncOnce(t, c)
	v, ok := c.State().(Viewing)
	if !ok || v.Record.Lyrics != "remote edit" {
		t.Fatalf("viewed record not refreshed: %#v", c.State())
	}

	if err := store.Store.Delete(ctx, DefaultCollection, keys["Amazing Grace"]); err != nil {
		t.Fatalf("remote delete: %v", err)
	}
	syncOnce(t, c)
	mustMode(t, c, ModeClosed)
}

func TestController_SnapshotLeavesEditingDraftAlone(t *testing.T) {
	c, store, keys := setup(t, false, "Amazing Grace")
	_ = c.SelectRecord(keys["Amazing Grace"])
	_ = c.StartEdit()
	_ = c.SetField("title", "mine")

	_ = store.Store.Update(context.Background(), DefaultCollection, keys["Amazing Grace"], map[string]string{"title": "theirs"})
	syncOnce(t, c)

	ed, ok := c.State().(Editing)
	if !ok || ed.Staged.Title != "mine" {
		t.Fatalf("draft changed by snapshot: %#v", c.State())
	}
}

func TestController_SubscriptionErrors(t *testing.T) {
	store := &countingStore{Store: memory.New(), failWatch: errors.New("unreachable")}
	c := New(store, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	err := c.Start(context.Background())
	var se *state.SubscriptionError
	if !errors.As(err, &se) || !errors.As(c.LastError(), &se) {
		t.Fatalf("Start = %v, LastError = %v; want *SubscriptionError", err, c.LastError())
	}
	if !c.Snapshot().IsOffline() {
		t.Fatalf("snapshot not marked offline")
	}

	store.failWatch = nil
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer c.Stop()
	if err := c.Start(context.Background()); !errors.Is(err, state.ErrAlreadyStarted) {
		t.Fatalf("Start while active = %v", err)
	}
	syncOnce(t, c)
	if c.LastError() != nil && errors.As(c.LastError(), &se) {
		t.Fatalf("subscription error not cleared by snapshot: %v", c.LastError())
	}

	midStream := &state.SubscriptionError{Collection: "song", Err: errors.New("reset")}
	if err := c.HandleEvent(docstore.Event{Err: midStream}); !errors.Is(err, midStream) {
		t.Fatalf("HandleEvent = %v", err)
	}
	if c.LastError() != midStream {
		t.Fatalf("LastError = %v", c.LastError())
	}
}

func TestController_StopIsIdempotent(t *testing.T) {
	c, _, _ := setup(t, false)
	c.Stop()
	c.Stop()
	if c.Subscribed() {
		t.Fatalf("still subscribed after Stop")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, ok := c.Receive(ctx); ok {
		t.Fatalf("Receive delivered after Stop")
	}
}
