package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds configuration for the Redis connection.
type Config struct {
	// Addr is host:port. Empty disables Redis.
	Addr     string `mapstructure:"addr" default:""`
	Password string `mapstructure:"password" default:""`
	DB       int    `mapstructure:"db" default:"0"`
	// Prefix namespaces every key written by the application.
	Prefix         string `mapstructure:"prefix" default:"ckeytools"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" default:"5"`
}

// Enabled reports whether a Redis address is configured.
func (c Config) Enabled() bool {
	return c.Addr != ""
}

// Connect opens a client and pings the server.
func Connect(ctx context.Context, cfg Config) (redis.UniversalClient, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}
