package approval

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/apruver/errors"
	"github.com/teranos/apruver/logger"
	"github.com/teranos/apruver/node/feeds"
	"github.com/teranos/apruver/node/session"
)

// SessionChecker makes sure a session exists before the cycle talks to the node
type SessionChecker interface {
	EnsureValid(ctx context.Context) (*session.Session, error)
}

// Lister lists the proposals of a feeds manager
type Lister interface {
	ListProposals(ctx context.Context, feedsManagerID, network string) ([]feeds.JobProposal, error)
}

// Cycle wires one poll-decide-approve pass: EnsureValid, ListProposals, Engine.Run
type Cycle struct {
	sessions       SessionChecker
	lister         Lister
	engine         *Engine
	feedsManagerID string
	network        string
	logger         *zap.SugaredLogger
}

// NewCycle creates a cycle runner for one feeds manager
func NewCycle(sessions SessionChecker, lister Lister, engine *Engine, feedsManagerID, network string) *Cycle {
	return &Cycle{
		sessions:       sessions,
		lister:         lister,
		engine:         engine,
		feedsManagerID: feedsManagerID,
		network:        network,
		logger:         engine.logger,
	}
}

// RunCycle performs one full pass and returns its report.
// Listing failures and session failures are returned as errors; item
// failures are in the report.
func (c *Cycle) RunCycle(ctx context.Context) (*Report, error) {
	cycleID := logger.CycleIDFromContext(ctx)
	if cycleID == "" {
		cycleID = uuid.NewString()
		ctx = logger.WithCycleID(ctx, cycleID)
	}
	log := logger.FromContext(ctx, c.logger).With(logger.FieldNetwork, c.network)

	if _, err := c.sessions.EnsureValid(ctx); err != nil {
		return nil, errors.Wrap(err, "no session")
	}

	proposals, err := c.lister.ListProposals(ctx, c.feedsManagerID, c.network)
	if err != nil {
		return nil, err
	}

	report, err := c.engine.Run(ctx, proposals)
	if report != nil {
		report.Network = c.network
		report.FeedsManagerID = c.feedsManagerID
	}
	if err != nil {
		return report, err
	}

	log.Infow("Cycle complete",
		logger.FieldCount, len(proposals),
		logger.FieldApproved, len(report.Approved()),
		"already_approved", len(report.AlreadyApproved()),
		logger.FieldFailed, len(report.Failed()),
		logger.FieldSkipped, report.SkippedCount(),
		logger.FieldDurationMS, report.Duration().Milliseconds())
	return report, nil
}
