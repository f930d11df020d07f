package server

import "time"

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// SweepIntervalSeconds is how often expired verification sessions are swept.
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" default:"60"`
	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" default:"10"`
}

// SweepInterval returns the session sweep period.
func (c Config) SweepInterval() time.Duration {
	if c.SweepIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (c Config) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
