package docstore

import (
	"errors"
	"testing"
)

func docs(keys ...string) []Document {
	out := make([]Document, len(keys))
	for i, k := range keys {
		out[i] = Document{Key: k, Fields: map[string]string{"title": k}}
	}
	return out
}

func TestWatcher_KeepsOnlyLatestPendingEvent(t *testing.T) {
	w := NewWatcher()
	w.Send(Event{Documents: docs("a")})
	w.Send(Event{Documents: docs("a", "b")})

	ev := <-w.C()
	if len(ev.Documents) != 2 {
		t.Fatalf("received %d documents, want latest snapshot of 2", len(ev.Documents))
	}
	select {
	case ev := <-w.C():
		t.Fatalf("unexpected extra event %#v", ev)
	default:
	}
}

func TestWatcher_FailDeliversErrorThenCloses(t *testing.T) {
	w := NewWatcher()
	w.Send(Event{Documents: docs("a")})
	boom := errors.New("boom")
	w.Fail(boom)

	ev, ok := <-w.C()
	if !ok || !errors.Is(ev.Err, boom) {
		t.Fatalf("first receive = %#v, %v; want boom", ev, ok)
	}
	if _, ok := <-w.C(); ok {
		t.Fatalf("channel still open after Fail")
	}
	if w.Send(Event{}) {
		t.Fatalf("Send succeeded on failed watcher")
	}
	w.Close()
}

func TestHub_PublishClonesPerWatcher(t *testing.T) {
	var h Hub
	w1 := h.Subscribe("song")
	w2 := h.Subscribe("song")
	other := h.Subscribe("other")

	snap := docs("a")
	h.Publish("song", snap)
	snap[0].Fields["title"] = "mutated"

	e1 := <-w1.C()
	e2 := <-w2.C()
	if e1.Documents[0].Fields["title"] != "a" || e2.Documents[0].Fields["title"] != "a" {
		t.Fatalf("watchers saw mutation: %#v %#v", e1, e2)
	}
	e1.Documents[0].Fields["title"] = "x"
	if e2.Documents[0].Fields["title"] != "a" {
		t.Fatalf("watchers share field maps")
	}
	select {
	case ev := <-other.C():
		t.Fatalf("other collection received %#v", ev)
	default:
	}

	h.Unsubscribe("song", w1)
	if _, ok := <-w1.C(); ok {
		t.Fatalf("unsubscribed watcher still open")
	}
	if !h.Watching("song") {
		t.Fatalf("Watching(song) = false with one watcher left")
	}
	h.CloseAll()
	if h.Watching("song") || h.Watching("other") {
		t.Fatalf("CloseAll left watchers registered")
	}
}

func TestMergeFieldsAndNewKey(t *testing.T) {
	base := map[string]string{"title": "a", "lyrics": "b"}
	got := MergeFields(base, map[string]string{"title": "c"})
	if got["title"] != "c" || got["lyrics"] != "b" || base["title"] != "a" {
		t.Fatalf("MergeFields = %#v (base %#v)", got, base)
	}
	k1, k2 := NewKey(), NewKey()
	if k1 == "" || k1 == k2 || len(k1) != 32 {
		t.Fatalf("NewKey produced %q and %q", k1, k2)
	}
}
