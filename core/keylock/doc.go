// Package keylock provides context-aware mutual exclusion keyed by string.
//
// The link store and the session manager both need to serialise work per
// Discord account or per ckey while letting unrelated keys proceed in
// parallel. A Locker hands out one lock per key on demand and forgets it once
// nobody holds or waits for it, so memory stays bounded by in-flight work.
//
// # Usage
//
//	var locks keylock.Locker
//	release, err := locks.Acquire(ctx, "discord:42", "token:ABC123")
//	if err != nil {
//	    return err // ctx cancelled while waiting
//	}
//	defer release()
//
// Keys passed to a single Acquire call are locked in sorted order. Callers that
// take further locks while holding some must do so in a globally consistent
// order to avoid deadlocks.
package keylock
