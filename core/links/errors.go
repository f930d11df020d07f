package links

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by lookups that match no record.
	ErrNotFound = errors.New("link record not found")

	// ErrStoreUnavailable marks failures talking to the backing database.
	// Nothing may be assumed about partial writes; the caller retries.
	ErrStoreUnavailable = errors.New("link store unavailable")

	// ErrInvalidCkey is returned when a ckey normalises to an empty string
	// or does not fit the ckey column.
	ErrInvalidCkey = errors.New("invalid ckey")

	// ErrInvalidToken is returned for tokens that do not fit the token column.
	ErrInvalidToken = errors.New("invalid token")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
