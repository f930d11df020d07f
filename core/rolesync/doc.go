// Package rolesync derives the verification roles a member should hold from
// their current valid link and applies the difference through a RoleAPI.
//
// Linked members should hold every configured verification role; unlinked
// members should hold none of them. Roles outside the configured set are
// never touched.
//
// Each grant or revoke is a separate call so that one failure (missing
// permission, rate limit, timeout) does not stop the rest. Failures are
// reported per role in RoleDiff.Failures and RoleDiff.Remaining returns the
// part that still has to be applied. Calls wait on a shared rate limiter and
// carry their own timeout; no link store lock is held while they run.
package rolesync
