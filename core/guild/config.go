package guild

import (
	"fmt"

	"ckeytools/core/database"
	"ckeytools/core/utils"
)

// Config holds the verification settings for one guild.
type Config struct {
	// ID is the guild snowflake.
	ID string `mapstructure:"id"`
	// VerificationRoles are granted to linked members and revoked otherwise.
	VerificationRoles []string `mapstructure:"verification_roles"`
	// VerificationEnabled allows opening tickets and submitting codes.
	VerificationEnabled bool `mapstructure:"verification_enabled"`
	// AutoVerificationEnabled re-links members with history when they open a ticket.
	AutoVerificationEnabled bool `mapstructure:"autoverification_enabled"`
	// AutoVerifyOnJoin reapplies roles for linked members when they join.
	AutoVerifyOnJoin bool `mapstructure:"autoverify_on_join"`
	// RepromoteOnJoin lets a join re-link a member whose latest link was invalidated.
	RepromoteOnJoin bool `mapstructure:"repromote_on_join"`
	// InvalidateOnLeave invalidates the link when a member leaves.
	InvalidateOnLeave bool `mapstructure:"invalidate_on_leave"`
	// KickOnDeverify removes the member from the guild after a deverify.
	KickOnDeverify bool `mapstructure:"kick_on_deverify"`
	// TablePrefix selects the link table, "<prefix>_discord_links".
	TablePrefix string `mapstructure:"table_prefix"`
	// Database overrides the default connection for this guild.
	Database *database.Config `mapstructure:"database"`
}

// Validate checks the guild and role ids.
func (c Config) Validate() error {
	if _, err := utils.ParseDiscordID(c.ID); err != nil {
		return fmt.Errorf("guild id: %w", err)
	}
	for _, role := range c.VerificationRoles {
		if _, err := utils.ParseDiscordID(role); err != nil {
			return fmt.Errorf("guild %s verification role: %w", c.ID, err)
		}
	}
	return nil
}

// DatabaseConfig returns the guild override or the fallback. A guild table
// prefix replaces the connection's.
func (c Config) DatabaseConfig(fallback database.Config) database.Config {
	cfg := fallback
	if c.Database != nil {
		cfg = *c.Database
	}
	if c.TablePrefix != "" {
		cfg.TablePrefix = c.TablePrefix
	}
	return cfg
}

// ConnectionKey identifies the connection this guild uses. Guilds without an
// override share the default connection.
func (c Config) ConnectionKey() string {
	if c.Database == nil {
		return "default"
	}
	return "guild:" + c.ID
}
