package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/five82/songbook/internal/docstore"
)

func testDocs() []docstore.Document {
	return []docstore.Document{
		{Key: "1", Fields: map[string]string{"title": "Zeta", "lyrics": "z"}},
		{Key: "2", Fields: map[string]string{"title": "Alpha", "youtubeLink": "https://y"}},
	}
}

func TestMirror_ReplaceAndSnapshotClone(t *testing.T) {
	var m Mirror

	before := time.Now()
	m.Replace(testDocs())

	snap := m.Snapshot()
	if !snap.Loaded {
		t.Fatalf("Loaded = false after Replace")
	}
	if len(snap.Records) != 2 || snap.Records[0].Key != "1" || snap.Records[1].Link != "https://y" {
		t.Fatalf("records = %#v, want delivery order with fields mapped", snap.Records)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}

	// Returned snapshot should be independent of the stored one.
	snap.Records[0].Title = "changed"
	if got := m.Records(); got[0].Title != "Zeta" {
		t.Fatalf("Snapshot should clone records; got %q want Zeta", got[0].Title)
	}
}

func TestMirror_ReplaceIsWholesale(t *testing.T) {
	var m Mirror
	m.Replace(testDocs())
	m.Replace([]docstore.Document{{Key: "3", Fields: map[string]string{"title": "Only"}}})

	got := m.Records()
	if len(got) != 1 || got[0].Key != "3" {
		t.Fatalf("Records = %#v, want exactly the latest snapshot", got)
	}
	if _, ok := m.Lookup("1"); ok {
		t.Fatalf("Lookup found record dropped by the latest snapshot")
	}
	if r, ok := m.Lookup("3"); !ok || r.Title != "Only" {
		t.Fatalf("Lookup(3) = %#v, %v", r, ok)
	}

	m.Replace(nil)
	if m.Len() != 0 {
		t.Fatalf("Len = %d after empty snapshot", m.Len())
	}
}

func TestMirror_FailKeepsPreviousData(t *testing.T) {
	var m Mirror
	m.Replace(testDocs())

	origErr := errors.New("boom")
	m.Fail(origErr)

	snap := m.Snapshot()
	if len(snap.Records) != 2 {
		t.Fatalf("records changed on failure: %#v", snap.Records)
	}
	if !snap.IsOffline() || snap.ConsecutiveFailures != 1 {
		t.Fatalf("failure not recorded: %#v", snap)
	}
	if snap.LastError == nil || snap.LastError.Error() != "boom" {
		t.Fatalf("LastError = %v, want boom", snap.LastError)
	}
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatalf("Snapshot should clone error instance")
	}

	m.Fail(errors.New("again"))
	if got := m.Snapshot().ConsecutiveFailures; got != 2 {
		t.Fatalf("ConsecutiveFailures = %d, want 2", got)
	}

	m.Replace(nil)
	snap = m.Snapshot()
	if snap.IsOffline() || snap.LastError != nil {
		t.Fatalf("Replace did not clear failure state: %#v", snap)
	}
}
