package notify

import (
	"fmt"
	"strings"

	"github.com/teranos/apruver/approval"
)

// FormatReport renders a cycle report as the webhook text (without the network prefix).
//
//	Approval cycle 1a2b3c4d: 2 approved, 1 failed, 5 skipped
//	Approved: 1 (ETH/USD), 3
//	Failed:
//	• 2: not found: spec not found
func FormatReport(r *approval.Report) string {
	approved := r.Approved()
	already := r.AlreadyApproved()
	failed := r.Failed()

	var b strings.Builder
	fmt.Fprintf(&b, "Approval cycle %s: %d approved", shortID(r.CycleID), len(approved))
	if len(already) > 0 {
		fmt.Fprintf(&b, ", %d already approved", len(already))
	}
	fmt.Fprintf(&b, ", %d failed, %d skipped", len(failed), r.SkippedCount())

	if len(approved) > 0 {
		b.WriteString("\nApproved: ")
		b.WriteString(joinEntries(approved))
	}
	if len(already) > 0 {
		b.WriteString("\nAlready approved: ")
		b.WriteString(joinEntries(already))
	}
	if len(failed) > 0 {
		b.WriteString("\nFailed:")
		for _, e := range failed {
			fmt.Fprintf(&b, "\n• %s: %s", label(e), e.Reason)
		}
	}
	return b.String()
}

func joinEntries(entries []approval.Entry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = label(e)
	}
	return strings.Join(parts, ", ")
}

func label(e approval.Entry) string {
	if e.Name == "" {
		return e.ProposalID
	}
	return e.ProposalID + " (" + e.Name + ")"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
