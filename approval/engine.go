// Package approval decides which job proposals to approve and records what happened.
//
// The engine approves every listed proposal whose status is in the configured
// StateSet, exactly once per cycle, and never lets one proposal's failure stop
// the others. Approval moves a proposal out of the approvable states, so running
// the engine again over the same remote state approves nothing new.
package approval

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/apruver/errors"
	"github.com/teranos/apruver/logger"
	"github.com/teranos/apruver/node/feeds"
)

// Approver approves one proposal on the node
type Approver interface {
	ApproveProposal(ctx context.Context, id string) (feeds.ApprovalResult, error)
}

// Engine filters proposals against a StateSet and approves the matches
type Engine struct {
	approver Approver
	states   StateSet
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewEngine creates an engine. A nil logger uses the "approval" component logger.
func NewEngine(approver Approver, states StateSet, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = logger.ComponentLogger("approval")
	}
	return &Engine{approver: approver, states: states, logger: log, now: time.Now}
}

// States returns the approvable state set
func (e *Engine) States() StateSet {
	return e.states
}

// Run approves every proposal whose status is approvable and reports each proposal's outcome.
//
// Item failures are recorded in the report and never stop the batch. A fatal
// authentication failure aborts the remaining approvals and is returned with the
// report built so far. When every candidate has been tried and some of them
// failed on network errors, the full report is returned with a non-fatal
// network error so the caller backs off.
func (e *Engine) Run(ctx context.Context, proposals []feeds.JobProposal) (*Report, error) {
	report := &Report{
		CycleID:   logger.CycleIDFromContext(ctx),
		StartedAt: e.now(),
	}
	if report.CycleID == "" {
		report.CycleID = uuid.NewString()
	}
	if len(proposals) > 0 {
		report.FeedsManagerID = proposals[0].FeedsManagerID
	}
	log := logger.FromContext(ctx, e.logger)

	var netErr error
	netFailures := 0
	seen := make(map[string]bool, len(proposals))
	for _, p := range proposals {
		if seen[p.ID] {
			log.Warnw("Duplicate proposal in listing, ignoring", logger.FieldProposalID, p.ID)
			continue
		}
		seen[p.ID] = true

		if !e.states.Contains(p.Status) {
			report.add(p, OutcomeSkippedState, "")
			log.Debugw("Skipped proposal",
				logger.FieldProposalID, p.ID,
				logger.FieldStatus, string(p.Status))
			continue
		}

		err := e.approve(ctx, log, report, p)
		switch {
		case err == nil:
		case errors.IsFatal(err):
			report.FinishedAt = e.now()
			return report, err
		default:
			if netErr == nil {
				netErr = err
			}
			netFailures++
		}
	}

	report.FinishedAt = e.now()
	if netErr != nil {
		return report, errors.Wrapf(netErr, "%d approval(s) failed on network errors", netFailures)
	}
	return report, nil
}

// approve handles one candidate. It returns the fatal error that must stop the
// batch, or the network error of an item that was recorded as failed.
func (e *Engine) approve(ctx context.Context, log *zap.SugaredLogger, report *Report, p feeds.JobProposal) error {
	plog := log.With(
		logger.FieldProposalID, p.ID,
		logger.FieldStatus, string(p.Status),
		logger.FieldExternalJobID, p.ExternalJobID)

	start := e.now()
	result, err := e.approver.ApproveProposal(ctx, p.ID)
	elapsed := e.now().Sub(start).Milliseconds()

	if err != nil {
		if errors.IsFatal(err) {
			plog.Errorw("Authentication lost, aborting batch", logger.FieldError, err)
			report.add(p, OutcomeFailed, err.Error())
			return err
		}
		plog.Errorw("Approval failed",
			logger.FieldOutcome, string(OutcomeFailed),
			logger.FieldError, err,
			logger.FieldDurationMS, elapsed)
		report.add(p, OutcomeFailed, err.Error())
		if errors.IsNetwork(err) {
			return err
		}
		return nil
	}

	switch result.Outcome {
	case feeds.OutcomeApproved:
		plog.Infow("Approved proposal",
			logger.FieldOutcome, string(OutcomeApproved),
			"name", p.Name,
			"spec_id", result.SpecID,
			logger.FieldDurationMS, elapsed)
		report.add(p, OutcomeApproved, "")
	case feeds.OutcomeAlreadyApproved:
		plog.Infow("Proposal was already approved",
			logger.FieldOutcome, string(OutcomeAlreadyApproved),
			logger.FieldReason, result.Reason)
		report.add(p, OutcomeAlreadyApproved, result.Reason)
	default:
		plog.Errorw("Approval rejected by node",
			logger.FieldOutcome, string(OutcomeFailed),
			logger.FieldReason, result.Reason,
			logger.FieldDurationMS, elapsed)
		report.add(p, OutcomeFailed, result.Reason)
	}
	return nil
}
