package discord

import (
	"time"

	"golang.org/x/time/rate"
)

// Config holds configuration for the Discord bot connection.
type Config struct {
	// Token is the bot token, without the "Bot " prefix.
	Token string `mapstructure:"token" default:""`
	// Rate is the number of role API calls allowed per second.
	Rate float64 `mapstructure:"rate" default:"5"`
	// Burst is the role API burst size.
	Burst int `mapstructure:"burst" default:"5"`
	// CallTimeoutSeconds bounds each REST call.
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds" default:"10"`
	// Gateway opens a gateway connection for member join/leave events.
	Gateway bool `mapstructure:"gateway" default:"false"`
}

// Enabled reports whether a bot token is configured.
func (c Config) Enabled() bool {
	return c.Token != ""
}

// CallTimeout returns the per-call timeout.
func (c Config) CallTimeout() time.Duration {
	if c.CallTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// Limiter returns the role API rate limiter. A non-positive rate disables
// limiting.
func (c Config) Limiter() *rate.Limiter {
	if c.Rate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := c.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.Rate), burst)
}
