package cmd

import (
	"context"
	"fmt"

	"ckeytools/core/database"
	"ckeytools/core/guild"
	"ckeytools/core/links"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var schemaGuild string

// schemaCmd groups link table maintenance commands.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Check or create the link tables",
}

var schemaVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that each guild's link table has the expected columns",
	Long:  `Compares the columns of every configured link table with the columns the game server writes. Nothing is altered.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchema(cmd.Context(), func(ctx context.Context, a *app, g guild.Config) error {
			cfg := g.DatabaseConfig(a.cfg.Database)
			db, err := a.conns.Get(ctx, g.ConnectionKey(), cfg)
			if err != nil {
				return err
			}
			table := links.TableNameWithPrefix(cfg.TablePrefix)
			mismatches, err := database.VerifyColumns(db, table, links.RequiredColumns)
			if err != nil {
				return err
			}
			if len(mismatches) == 0 {
				a.logger.Info("Link table matches", zap.String("guild", g.ID), zap.String("table", table))
				return nil
			}
			for _, m := range mismatches {
				a.logger.Error("Column mismatch", zap.String("guild", g.ID), zap.String("table", table), zap.String("detail", m.String()))
			}
			return fmt.Errorf("%d column mismatch(es) in %s", len(mismatches), table)
		})
	},
}

var schemaCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create missing link tables",
	Long:  `Creates the link table for each guild when it does not exist. Existing tables are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchema(cmd.Context(), func(ctx context.Context, a *app, g guild.Config) error {
			if _, err := a.links.For(ctx, g); err != nil {
				return err
			}
			a.logger.Info("Link tables ready", zap.String("guild", g.ID))
			return nil
		})
	},
}

func runSchema(ctx context.Context, fn func(ctx context.Context, a *app, g guild.Config) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	targets := a.guilds.All()
	if schemaGuild != "" {
		g, err := a.guilds.Get(schemaGuild)
		if err != nil {
			return err
		}
		targets = []guild.Config{g}
	}
	if len(targets) == 0 {
		return fmt.Errorf("no guilds configured")
	}

	var failed int
	for _, g := range targets {
		if err := fn(ctx, a, g); err != nil {
			a.logger.Error("Schema check failed", zap.String("guild", g.ID), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d guild(s) failed", failed, len(targets))
	}
	return nil
}

func init() {
	schemaCmd.PersistentFlags().StringVar(&schemaGuild, "guild", "", "Only check this guild")
	schemaCmd.AddCommand(schemaVerifyCmd, schemaCreateCmd)
	RootCmd.AddCommand(schemaCmd)
}
