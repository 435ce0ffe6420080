package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/five82/songbook/internal/docstore"
)

type fakeStore struct {
	mu       sync.Mutex
	watchErr error
	watches  int
	channels []chan docstore.Event
}

func (f *fakeStore) Watch(ctx context.Context, collection string) (<-chan docstore.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	f.watches++
	ch := make(chan docstore.Event, 4)
	f.channels = append(f.channels, ch)
	return ch, nil
}

func (f *fakeStore) last() chan docstore.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[len(f.channels)-1]
}

func (f *fakeStore) Add(context.Context, string, map[string]string) (string, error) { return "", nil }
func (f *fakeStore) Update(context.Context, string, string, map[string]string) error {
	return nil
}
func (f *fakeStore) Delete(context.Context, string, string) error { return nil }

func TestSubscription_StartTwiceFails(t *testing.T) {
	store := &fakeStore{}
	sub := NewSubscription(store, "song")
	if err := sub.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sub.Stop()
	if err := sub.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start = %v, want ErrAlreadyStarted", err)
	}
	if store.watches != 1 {
		t.Fatalf("watches = %d, want exactly one", store.watches)
	}
}

func TestSubscription_SetupErrorIsTyped(t *testing.T) {
	store := &fakeStore{watchErr: errors.New("denied")}
	sub := NewSubscription(store, "song")
	err := sub.Start(context.Background())
	var se *SubscriptionError
	if !errors.As(err, &se) || se.Collection != "song" || se.Err.Error() != "denied" {
		t.Fatalf("Start = %v, want *SubscriptionError wrapping denied", err)
	}
	if sub.Active() {
		t.Fatalf("Active after failed Start")
	}
	if _, ok := sub.Receive(context.Background()); ok {
		t.Fatalf("Receive on inactive subscription returned ok")
	}
}

func TestSubscription_ReceiveDeliversInOrderThenFailsOnce(t *testing.T) {
	store := &fakeStore{}
	sub := NewSubscription(store, "song")
	if err := sub.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ch := store.last()
	ch <- docstore.Event{Documents: []docstore.Document{{Key: "a"}}}
	ch <- docstore.Event{Documents: []docstore.Document{{Key: "a"}, {Key: "b"}}}
	ch <- docstore.Event{Err: errors.New("lost connection")}

	ctx := context.Background()
	for want := 1; want <= 2; want++ {
		ev, ok := sub.Receive(ctx)
		if !ok || ev.Err != nil || len(ev.Documents) != want {
			t.Fatalf("event %d = %#v, %v", want, ev, ok)
		}
	}
	ev, ok := sub.Receive(ctx)
	var se *SubscriptionError
	if !ok || !errors.As(ev.Err, &se) {
		t.Fatalf("failure event = %#v, %v; want *SubscriptionError", ev, ok)
	}
	if sub.Active() {
		t.Fatalf("subscription still active after failure")
	}
	if _, ok := sub.Receive(ctx); ok {
		t.Fatalf("Receive after failure returned ok")
	}

	if err := sub.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	sub.Stop()
}

func TestSubscription_ClosedStreamIsAnError(t *testing.T) {
	store := &fakeStore{}
	sub := NewSubscription(store, "song")
	if err := sub.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	close(store.last())

	ev, ok := sub.Receive(context.Background())
	if !ok || !errors.Is(ev.Err, ErrStreamClosed) {
		t.Fatalf("Receive = %#v, %v; want ErrStreamClosed", ev, ok)
	}
}

func TestSubscription_StopIsIdempotentAndDropsPendingEvents(t *testing.T) {
	store := &fakeStore{}
	sub := NewSubscription(store, "song")
	if err := sub.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan bool)
	go func() {
		_, ok := sub.Receive(context.Background())
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)

	sub.Stop()
	sub.Stop()
	store.channels[0] <- docstore.Event{Documents: []docstore.Document{{Key: "late"}}}

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("Receive delivered an event from a stopped subscription")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Receive did not return")
	}
	if sub.Active() {
		t.Fatalf("Active after Stop")
	}
}

func TestSubscription_ReceiveHonoursContext(t *testing.T) {
	store := &fakeStore{}
	sub := NewSubscription(store, "song")
	if err := sub.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sub.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok := sub.Receive(ctx); ok {
		t.Fatalf("Receive returned ok without an event")
	}
}
