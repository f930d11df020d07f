// Package verification composes the link engine, role synchronizer and
// session manager into the operations inbound events map to: opening a
// ticket, starting and submitting a manual code, member join and leave,
// staff deverify and overrides, lookups, and link snapshot export.
//
// Every operation takes a guild id and resolves its guild.Config from the
// registry, so components never read shared guild state.
//
// Role diffs that only partly applied are retried with exponential backoff.
// Whatever still fails is left in the returned Outcome for the caller to
// report; it never rolls back the committed link change.
package verification
