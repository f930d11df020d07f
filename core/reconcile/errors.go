package reconcile

import "errors"

var (
	// ErrTokenNotFound is returned when no record carries the token.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenAlreadyClaimed is returned when the token's record already has a Discord id.
	ErrTokenAlreadyClaimed = errors.New("token already claimed")

	// ErrAlreadyUnlinked is returned when there is no valid link to invalidate.
	// It is informational; nothing was changed.
	ErrAlreadyUnlinked = errors.New("already unlinked")

	// ErrDuplicateToken is returned when issuing a token that is still unconsumed.
	ErrDuplicateToken = errors.New("token already issued")

	// ErrDeverified is returned when re-promotion is refused for a deverified member.
	ErrDeverified = errors.New("member was deverified")

	// ErrNoHistory is returned when re-promotion finds no prior link.
	ErrNoHistory = errors.New("no link history")

	// errRetry restarts an atomic operation whose pre-read ckey went stale.
	errRetry = errors.New("link state changed, retry")
)
