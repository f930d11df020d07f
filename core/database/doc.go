// Package database handles database connections and schema inspection.
//
// It wraps GORM to configure MySQL or SQLite connections from the
// application's configuration.
//
// # Connect
//
// Connect opens a single connection pool. Registry keeps one pool per guild,
// opened lazily on first use; concurrent first calls share one attempt and a
// failed attempt is retried by the next caller.
//
// # Schema Inspection
//
// GetTableColumns and VerifyColumns check that a guild's link table exposes
// the columns the game server reads (ckey, discord_id, valid, timestamp,
// one_time_token).
//
// # Usage
//
//	reg := database.NewRegistry()
//	db, err := reg.Get(ctx, guildID, cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	mismatches, err := database.VerifyColumns(db, "ss13_discord_links", links.RequiredColumns)
package database
