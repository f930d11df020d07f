// Package api holds the pieces shared by the HTTP features: the error to
// status mapping, path parameter parsing and the JSON view of a
// reconciliation outcome.
//
// # Status mapping
//
//   - 400: invalid Discord id or ckey, malformed body
//   - 403: verification disabled, member deverified
//   - 404: unknown guild, token, session or history
//   - 409: token already claimed, session already open or closed, already unlinked
//   - 410: session expired
//   - 503: link store or export target unavailable
package api
