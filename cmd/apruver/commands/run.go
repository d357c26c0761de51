package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/apruver/display"
	"github.com/teranos/apruver/errors"
)

// RunCmd runs the approval loop until interrupted
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Approve job proposals continuously",
	Long: `Run the approval loop in the foreground.

Every interval apruver logs in if needed, lists the feeds manager's job
proposals, approves those in an approvable state and posts a summary to the
webhook. Failed cycles back off up to max_backoff_multiplier times the interval.

SIGINT or SIGTERM lets the current cycle finish, logs out and exits 0.
Unrecoverable authentication failure exits 1.`,
	RunE: runLoop,
}

// OnceCmd runs a single cycle
var OnceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run one approval cycle and print the report",
	Long: `Run exactly one approval cycle, print its report and log out.

Exits non-zero if the cycle failed or any approval failed.`,
	RunE: runOnce,
}

func init() {
	OnceCmd.Flags().BoolP("json", "j", false, "Output the report as JSON")
}

func runLoop(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	a.announce()
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.scheduler.Run(ctx); err != nil {
		return err
	}
	a.logger.Infow("apruver stopped", "cycles", a.scheduler.Stats().Cycles)
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	a.announce()
	defer a.close()

	report, cycleErr := a.scheduler.RunOnce(cmd.Context())
	if report != nil {
		if display.ShouldOutputJSON(cmd) {
			if err := display.OutputJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
		} else if err := display.RenderReport(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	}
	if cycleErr != nil {
		return cycleErr
	}
	if failed := len(report.Failed()); failed > 0 {
		return errFailedApprovals(failed)
	}
	if !display.ShouldOutputJSON(cmd) {
		pterm.Success.Println("Cycle complete")
	}
	return nil
}

// errFailedApprovals turns item failures from a single cycle into a non-zero exit
func errFailedApprovals(n int) error {
	return errors.WithHint(
		errors.Newf("%d approval(s) failed", n),
		"see the report above; failed proposals are retried on the next cycle")
}
