package display

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/apruver/approval"
	"github.com/teranos/apruver/node/feeds"
)

// RenderProposals writes a table of proposals with an approvable column
// computed against states.
func RenderProposals(w io.Writer, proposals []feeds.JobProposal, states approval.StateSet) error {
	if len(proposals) == 0 {
		_, err := fmt.Fprintln(w, pterm.Gray("No job proposals"))
		return err
	}

	data := pterm.TableData{{"ID", "NAME", "STATUS", "VERSION", "PENDING UPDATE", "APPROVABLE"}}
	approvable := 0
	for _, p := range proposals {
		mark := pterm.Gray("no")
		if states.Contains(p.Status) {
			mark = pterm.LightGreen("yes")
			approvable++
		}
		data = append(data, []string{
			p.ID,
			p.Name,
			statusColor(p.Status),
			strconv.Itoa(p.SpecVersion),
			strconv.FormatBool(p.PendingUpdate),
			mark,
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n%d proposals, %d approvable\n", table, len(proposals), approvable)
	return err
}

// RenderReport writes a cycle report: one row per proposal and a summary line
func RenderReport(w io.Writer, r *approval.Report) error {
	if r == nil {
		return nil
	}

	if len(r.Entries) > 0 {
		data := pterm.TableData{{"ID", "NAME", "STATUS", "OUTCOME", "REASON"}}
		for _, e := range r.Entries {
			data = append(data, []string{e.ProposalID, e.Name, string(e.Status), outcomeColor(e.Outcome), e.Reason})
		}
		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, table); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%s %s: %d approved, %d already approved, %d failed, %d skipped (%s)\n",
		pterm.Bold.Sprint("Cycle"),
		r.CycleID,
		len(r.Approved()),
		len(r.AlreadyApproved()),
		len(r.Failed()),
		r.SkippedCount(),
		r.Duration().Round(time.Millisecond))
	return err
}

func statusColor(s feeds.Status) string {
	switch s {
	case feeds.StatusApproved:
		return pterm.LightGreen(string(s))
	case feeds.StatusRejected, feeds.StatusCancelled, feeds.StatusRevoked:
		return pterm.Gray(string(s))
	case feeds.StatusPending, feeds.StatusProposed:
		return pterm.Yellow(string(s))
	}
	return string(s)
}

func outcomeColor(o approval.Outcome) string {
	switch o {
	case approval.OutcomeApproved:
		return pterm.LightGreen(string(o))
	case approval.OutcomeFailed:
		return pterm.LightRed(string(o))
	case approval.OutcomeSkippedState:
		return pterm.Gray(string(o))
	}
	return string(o)
}
