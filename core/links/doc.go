// Package links is the durable store of Discord <-> ckey linkage records.
//
// Each row of the discord_links table is a LinkRecord. Rows are created when
// the game issues a one-time token (unclaimed, no Discord id, not valid) and
// are later claimed, superseded, or invalidated by the reconcile engine. The
// store never deletes rows and never rewrites ckey, token, or timestamp.
//
// # Schema
//
// The table layout is shared with the game server and must not change:
//
//	id             auto-increment primary key
//	ckey           varchar(32), indexed
//	discord_id     bigint, nullable, indexed
//	timestamp      datetime, indexed (CreatedAt)
//	one_time_token varchar(100), indexed (Token)
//	valid          boolean, indexed
//
// An optional per-guild prefix is joined to the table name with an underscore.
//
// # Atomicity
//
// Store.Atomic runs a function inside a database transaction while holding
// in-process locks for the given Discord ids and tokens. Reads inside the
// transaction lock the rows they touch (SELECT ... FOR UPDATE on MySQL), so
// concurrent processes sharing one database also serialise per subject.
// Readers outside the transaction only ever see committed state.
package links
