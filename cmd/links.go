package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"ckeytools/core/api"
	"ckeytools/core/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags shared by the links commands
	linksGuild   string
	linksReason  string
	linksConfirm bool
)

// linksCmd is the parent command for staff link operations.
var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Inspect and administer Discord to ckey links",
	Long: `Staff tooling for the link table of one guild.

Examples:
  # Show a member's link status
  links check 175928847299117063 --guild 1000

  # Issue a token for the game to hand out
  links issue SomeCkey --guild 1000

  # Deverify with auto-confirm
  links deverify 175928847299117063 --reason "alt account" --guild 1000 --yes`,
}

var linksIssueCmd = &cobra.Command{
	Use:   "issue <ckey> [token]",
	Short: "Store a one-time token for a ckey",
	Args:  cobra.RangeArgs(1, 2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		token := ""
		if len(args) == 2 {
			token = args[1]
		}
		rec, err := a.service.IssueToken(ctx, linksGuild, args[0], token)
		if err != nil {
			return nil, err
		}
		return map[string]any{"record": rec, "token": rec.Token}, nil
	}),
}

var linksCheckCmd = &cobra.Command{
	Use:   "check <discord_id>",
	Short: "Show a member's link status",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		id, err := utils.ParseDiscordID(args[0])
		if err != nil {
			return nil, err
		}
		return a.service.CheckUser(ctx, linksGuild, id)
	}),
}

var linksHistoryCmd = &cobra.Command{
	Use:   "history <discord_id>",
	Short: "List every record of a member",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		id, err := utils.ParseDiscordID(args[0])
		if err != nil {
			return nil, err
		}
		return a.service.History(ctx, linksGuild, id)
	}),
}

var linksCkeysCmd = &cobra.Command{
	Use:   "ckeys <discord_id>",
	Short: "List every ckey a member has been linked to",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		id, err := utils.ParseDiscordID(args[0])
		if err != nil {
			return nil, err
		}
		return a.service.CkeysFor(ctx, linksGuild, id)
	}),
}

var linksUsersCmd = &cobra.Command{
	Use:   "users <ckey>",
	Short: "List every Discord account that claimed a token for a ckey",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		ids, err := a.service.DiscordIDsFor(ctx, linksGuild, args[0])
		if err != nil {
			return nil, err
		}
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = utils.FormatDiscordID(id)
		}
		return out, nil
	}),
}

var linksForceCmd = &cobra.Command{
	Use:   "force <ckey> <discord_id>",
	Short: "Link a ckey to a Discord account, superseding existing links",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		id, err := utils.ParseDiscordID(args[1])
		if err != nil {
			return nil, err
		}
		if !confirmDestructiveAction() {
			return nil, errCancelled
		}
		out, err := a.service.ForceLink(ctx, linksGuild, args[0], id)
		return api.NewOutcome(out), err
	}),
}

var linksDeverifyCmd = &cobra.Command{
	Use:   "deverify <discord_id>",
	Short: "Invalidate a member's link and block automatic re-linking",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		id, err := utils.ParseDiscordID(args[0])
		if err != nil {
			return nil, err
		}
		if !confirmDestructiveAction() {
			return nil, errCancelled
		}
		out, err := a.service.Deverify(ctx, linksGuild, id, linksReason)
		return api.NewOutcome(out), err
	}),
}

var linksInvalidateCmd = &cobra.Command{
	Use:   "invalidate <ckey>",
	Short: "Invalidate every valid link for a ckey",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		if !confirmDestructiveAction() {
			return nil, errCancelled
		}
		out, err := a.service.InvalidateCkey(ctx, linksGuild, args[0])
		return api.NewOutcome(out), err
	}),
}

var linksInvalidateGoneCmd = &cobra.Command{
	Use:   "invalidate-gone",
	Short: "Invalidate the links of accounts that left the guild",
	Long: `Checks every linked account against the guild's member list and
invalidates the links of accounts that are no longer members.

Requires a Discord bot token.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) (any, error) {
		if !confirmDestructiveAction() {
			return nil, errCancelled
		}
		out, err := a.service.InvalidateGone(ctx, linksGuild)
		return api.NewOutcome(out), err
	}),
}

var linksExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a snapshot of valid links to object storage",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) (any, error) {
		return a.service.ExportValid(ctx, linksGuild)
	}),
}

var linksExportsCmd = &cobra.Command{
	Use:   "exports [name]",
	Short: "List stored snapshots, or print one by file name",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		if len(args) == 1 {
			return a.service.ReadExport(ctx, linksGuild, args[0])
		}
		return a.service.Exports(ctx, linksGuild)
	}),
}

var errCancelled = fmt.Errorf("operation cancelled by user")

// withApp bootstraps the service graph, runs fn and prints its result as JSON.
func withApp(fn func(ctx context.Context, a *app, args []string) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := fn(ctx, a, args)
		if printable(res, err) {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(res); encErr != nil {
				a.logger.Error("Failed to write result", zap.Error(encErr))
			}
		}
		return err
	}
}

// printable reports whether a result is worth printing. Outcomes are printed
// even on error since they describe what was done before the failure.
func printable(res any, err error) bool {
	if o, ok := res.(*api.Outcome); ok {
		return o != nil
	}
	return err == nil && res != nil
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if linksConfirm {
		return true
	}

	fmt.Print("Type 'yes' to confirm: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	return strings.TrimSpace(response) == "yes"
}

func init() {
	linksCmd.PersistentFlags().StringVar(&linksGuild, "guild", "", "Guild ID the command acts on")
	_ = linksCmd.MarkPersistentFlagRequired("guild")
	for _, c := range []*cobra.Command{linksForceCmd, linksDeverifyCmd, linksInvalidateCmd, linksInvalidateGoneCmd} {
		c.Flags().BoolVar(&linksConfirm, "yes", false, "Auto-confirm (non-interactive)")
	}
	linksDeverifyCmd.Flags().StringVar(&linksReason, "reason", "", "Reason recorded with the deverify")

	linksCmd.AddCommand(linksIssueCmd, linksCheckCmd, linksHistoryCmd, linksCkeysCmd, linksUsersCmd,
		linksForceCmd, linksDeverifyCmd, linksInvalidateCmd, linksInvalidateGoneCmd, linksExportCmd, linksExportsCmd)
	RootCmd.AddCommand(linksCmd)
}
