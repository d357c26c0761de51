package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/apruver/display"
	"github.com/teranos/apruver/errors"
)

// ProposalsCmd groups read-only proposal commands
var ProposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "Inspect the feeds manager's job proposals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var proposalsLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List job proposals and whether they would be approved",
	Long: `List the feeds manager's job proposals without approving anything.

The APPROVABLE column shows whether the proposal's status is in the
configured approvable states.`,
	RunE: runProposalsLs,
}

func init() {
	proposalsLsCmd.Flags().BoolP("json", "j", false, "Output proposals as JSON")
	ProposalsCmd.AddCommand(proposalsLsCmd)
}

func runProposalsLs(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if _, err := a.sessions.EnsureValid(ctx); err != nil {
		return errors.Wrap(err, "no session")
	}
	proposals, err := a.client.ListProposals(ctx, cfg.Feeds.ManagerID, cfg.Feeds.Network)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), proposals)
	}
	return display.RenderProposals(cmd.OutOrStdout(), proposals, a.states)
}
