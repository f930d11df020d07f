package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ErrInvalidDiscordID is returned for strings that are not Discord snowflakes.
var ErrInvalidDiscordID = errors.New("invalid discord id")

// ParseDiscordID converts a decimal snowflake string into its int64 form.
// Zero and negative values are rejected.
func ParseDiscordID(val string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDiscordID, val)
	}
	if id.Int64() <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDiscordID, val)
	}
	return id.Int64(), nil
}

// FormatDiscordID renders an id the way Discord's API expects it.
func FormatDiscordID(id int64) string {
	return snowflake.ID(id).String()
}
