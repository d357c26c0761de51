package approval

import (
	"time"

	"github.com/teranos/apruver/node/feeds"
)

// Outcome is what happened to one proposal in a cycle
type Outcome string

const (
	OutcomeApproved        Outcome = "approved"
	OutcomeSkippedState    Outcome = "skipped-state"
	OutcomeAlreadyApproved Outcome = "already-approved"
	OutcomeFailed          Outcome = "failed"
)

// Entry is one proposal's line in a Report
type Entry struct {
	ProposalID string       `json:"proposal_id" yaml:"proposal_id"`
	Name       string       `json:"name,omitempty" yaml:"name,omitempty"`
	Status     feeds.Status `json:"status" yaml:"status"`
	Outcome    Outcome      `json:"outcome" yaml:"outcome"`
	Reason     string       `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Report is the outcome of one cycle. Entries keep the order proposals were listed in.
// Reports are never persisted.
type Report struct {
	CycleID        string    `json:"cycle_id" yaml:"cycle_id"`
	Network        string    `json:"network" yaml:"network"`
	FeedsManagerID string    `json:"feeds_manager_id" yaml:"feeds_manager_id"`
	StartedAt      time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time `json:"finished_at" yaml:"finished_at"`
	Entries        []Entry   `json:"entries" yaml:"entries"`
}

func (r *Report) add(p feeds.JobProposal, outcome Outcome, reason string) {
	r.Entries = append(r.Entries, Entry{
		ProposalID: p.ID,
		Name:       p.Name,
		Status:     p.Status,
		Outcome:    outcome,
		Reason:     reason,
	})
}

func (r *Report) filter(outcome Outcome) []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

// Approved returns entries approved in this cycle
func (r *Report) Approved() []Entry { return r.filter(OutcomeApproved) }

// AlreadyApproved returns entries another actor approved first
func (r *Report) AlreadyApproved() []Entry { return r.filter(OutcomeAlreadyApproved) }

// Failed returns entries whose approval failed, with reasons
func (r *Report) Failed() []Entry { return r.filter(OutcomeFailed) }

// Skipped returns entries whose status was not approvable
func (r *Report) Skipped() []Entry { return r.filter(OutcomeSkippedState) }

// SkippedCount is len(Skipped()) without the allocation
func (r *Report) SkippedCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == OutcomeSkippedState {
			n++
		}
	}
	return n
}

// IsQuiet reports a cycle where nothing was approved and nothing failed
func (r *Report) IsQuiet() bool {
	for _, e := range r.Entries {
		if e.Outcome != OutcomeSkippedState {
			return false
		}
	}
	return true
}

// Duration is the wall time the cycle took
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// IDs returns the proposal ids of entries
func IDs(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ProposalID
	}
	return ids
}
