package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/apruver/cmd/apruver/commands"
	"github.com/teranos/apruver/errors"
	"github.com/teranos/apruver/logger"
)

var rootCmd = &cobra.Command{
	Use:   "apruver",
	Short: "apruver - automatic approval of feeds-manager job proposals",
	Long: `apruver - automatic approval of feeds-manager job proposals.

apruver logs into a node's admin interface, lists the job proposals of one
feeds manager and approves every proposal whose status is in the configured
approvable states. A summary of each cycle can be posted to a Slack webhook.

Available commands:
  run        - Approve proposals continuously until interrupted
  once       - Run a single cycle and print the report
  proposals  - List proposals without approving anything
  am         - Inspect configuration
  version    - Show version information

Examples:
  apruver run                              # Daemon mode
  apruver once -v                          # One cycle with debug logs
  apruver proposals ls                     # What would be approved
  CL_APPROVABLE_STATES=PENDING apruver run # Approve pending proposals only`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Console logging until a command loads its config; am output stays clean
		if cmd.Parent() != nil && cmd.Parent().Name() == "am" {
			return nil
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.Initialize(false, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (-v for debug)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to apruver.toml (default: standard locations)")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.OnceCmd)
	rootCmd.AddCommand(commands.ProposalsCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
