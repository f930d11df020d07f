// Package session tracks in-flight verification attempts.
//
// A member has at most one open session per guild. A session is opened for a
// ticket or a manual code and ends consumed (a token was claimed while it was
// open), expired (its deadline passed), or cancelled (for example the ticket
// channel was deleted). Terminal sessions are final; a new session may be
// opened afterwards.
//
// Deadlines are checked whenever a session is read, so no timer is needed.
// Sweep expires stale sessions in bulk for callers that run it on a ticker.
//
// Open sessions are written to a Persister so that a restarted process can
// call Restore and reattach them to their ticket channel or message.
package session
