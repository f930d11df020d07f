// Package reconcile decides how identity events change link state.
//
// The Engine handles five kinds of event for a guild: a member claiming a
// one-time token, a member joining, a staff deverify, a member leaving, and
// staff overrides (force link, invalidate ckey, issue token). Each event is a
// single links.Store.Atomic call that holds the locks for every Discord id,
// token and ckey it activates, so at most one record per Discord id (and per
// ckey) is valid at any time, including under concurrent claims.
//
// # Supersession
//
// Activating a record first invalidates every other valid record for the same
// Discord id and for the same ckey, inside the same transaction. If any step
// fails the transaction rolls back and nothing is activated. Accounts that
// lose their link this way are reported in Outcome.Displaced and get their
// own role reconcile.
//
// # Role sync
//
// After a transition commits, the engine asks its RoleSyncer to reconcile the
// affected members. Sync runs outside the store locks. Its result is reported
// in Outcome.Syncs and never rolls back the committed link change.
//
// # Deverified members
//
// A staff deverify marks the member in a Blocklist. Marked members are never
// re-promoted automatically; a successful token claim or force link clears
// the mark.
package reconcile
