package verification

import (
	"fmt"
	"time"
)

// Deverified mark backends.
const (
	MarksDatabase = "database"
	MarksRedis    = "redis"
)

// Config holds the verification tunables shared by every guild.
type Config struct {
	// SessionTTLMinutes is how long a ticket or manual-code session stays open.
	SessionTTLMinutes int `mapstructure:"session_ttl_minutes" default:"15"`
	// RoleRetryAttempts is the total number of attempts for failed role operations.
	RoleRetryAttempts uint `mapstructure:"role_retry_attempts" default:"3"`
	// RoleRetryInitialMs is the first backoff interval.
	RoleRetryInitialMs int `mapstructure:"role_retry_initial_ms" default:"500"`
	// RoleRetryMaxMs caps the backoff interval.
	RoleRetryMaxMs int `mapstructure:"role_retry_max_ms" default:"5000"`
	// StoreTimeoutSeconds bounds each link store round trip.
	StoreTimeoutSeconds int `mapstructure:"store_timeout_seconds" default:"5"`
	// MarksBackend is where deverified marks live: "database" (next to the
	// link table) or "redis".
	MarksBackend string `mapstructure:"marks_backend" default:"database"`
}

// Marks validates MarksBackend. An empty value means the database.
func (c Config) Marks() (string, error) {
	switch c.MarksBackend {
	case "", MarksDatabase:
		return MarksDatabase, nil
	case MarksRedis:
		return MarksRedis, nil
	default:
		return "", fmt.Errorf("unknown marks backend %q", c.MarksBackend)
	}
}

// SessionTTL returns the session lifetime.
func (c Config) SessionTTL() time.Duration {
	if c.SessionTTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// StoreTimeout returns the per-query timeout.
func (c Config) StoreTimeout() time.Duration {
	if c.StoreTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}

// RetryPolicy converts the retry settings, falling back to DefaultRetryPolicy
// for unset values.
func (c Config) RetryPolicy() RetryPolicy {
	p := DefaultRetryPolicy
	if c.RoleRetryAttempts > 0 {
		p.Attempts = c.RoleRetryAttempts
	}
	if c.RoleRetryInitialMs > 0 {
		p.Initial = time.Duration(c.RoleRetryInitialMs) * time.Millisecond
	}
	if c.RoleRetryMaxMs > 0 {
		p.Max = time.Duration(c.RoleRetryMaxMs) * time.Millisecond
	}
	return p
}
