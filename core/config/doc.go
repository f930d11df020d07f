// Package config provides configuration management for ckeytools.
//
// It utilizes Viper for loading configuration from environment variables,
// a .env file and an optional config.yaml.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key, sweep interval)
//   - Database: default link database connection and table prefix
//   - Storage: S3/MinIO target for link exports
//   - Redis: session and deverified-mark persistence
//   - Discord: bot token, role API rate limit, gateway toggle
//   - Verification: session TTL and role retry policy
//   - Log: Logging level and format
//   - Guilds: per-guild settings, read from config.yaml only
//
// Scalar keys can be overridden from the environment (SERVER_PORT -> server.port).
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
