package feeds

import (
	"time"
)

// JobProposal is one proposal snapshot as listed by the node.
// It is fetched fresh every cycle and never mutated locally.
type JobProposal struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	ExternalJobID  string    `json:"external_job_id" yaml:"external_job_id"`
	RemoteUUID     string    `json:"remote_uuid" yaml:"remote_uuid"`
	Status         Status    `json:"status" yaml:"status"`
	PendingUpdate  bool      `json:"pending_update" yaml:"pending_update"`
	FeedsManagerID string    `json:"feeds_manager_id" yaml:"feeds_manager_id"`
	CreatedAt      time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"` // Of the latest spec
	SpecVersion    int       `json:"spec_version" yaml:"spec_version"`
}

// ApprovalOutcome is the node's answer to an approval request
type ApprovalOutcome string

const (
	OutcomeApproved        ApprovalOutcome = "approved"
	OutcomeAlreadyApproved ApprovalOutcome = "already-approved"
	OutcomeFailed          ApprovalOutcome = "failed"
)

// ApprovalResult describes one ApproveProposal call
type ApprovalResult struct {
	Outcome ApprovalOutcome
	SpecID  string // Set on success
	Reason  string // Set on already-approved and failed
}
