// Package state holds the local mirror of the song collection and the live
// subscription that keeps it current.
//
// # Overview
//
// The Mirror is the coordination point between the subscription and the UI.
// The subscription delivers full snapshots; each one replaces the Mirror's
// contents wholesale. The UI reads copies and never mutates shared state.
//
//	Subscription:                   Consumer (UI / CLI):
//	┌──────────────────┐            ┌──────────────────┐
//	│ store.Watch()    │            │                  │
//	│ sub.Receive()    │───────────→│ mirror.Records() │
//	│ mirror.Replace() │  (mutex)   │ song.Project()   │
//	└──────────────────┘            └──────────────────┘
//
// # Mirror
//
//   - Replace(docs): install a snapshot, clear failure state
//   - Fail(err): keep the previous records, record the error
//   - Records() / Snapshot(): cloned reads under a read lock
//
// Keeping the last good records on failure lets the list stay visible while
// the status bar reports that the subscription is down.
//
// # Subscription
//
// A Subscription owns exactly one watch at a time:
//
//	sub := state.NewSubscription(store, "song")
//	if err := sub.Start(ctx); err != nil {
//		// *SubscriptionError: the store refused the watch
//	}
//	defer sub.Stop()
//	for {
//		ev, ok := sub.Receive(ctx)
//		if !ok {
//			break
//		}
//		...
//	}
//
// Start while active returns ErrAlreadyStarted. Stop is idempotent. Failures,
// including a stream that closes on its own, arrive once as an event whose
// Err is *SubscriptionError; the watch is then released and is not retried
// until Start is called again.
//
// Every Start and Stop bumps a generation counter. Receive drops events read
// from a generation that is no longer current, so nothing from a stopped
// watch reaches the Mirror.
package state
