// Package schedule drives approval cycles at a fixed interval with failure backoff.
//
// State machine:
//
//	Idle -> Running -> Sleeping -> Running -> ... -> Stopped
//
// Exactly one cycle runs at a time. A cycle that has started always runs to
// completion, even after shutdown is requested; cancellation is observed at the
// top of each cycle and during the wait between cycles.
package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/apruver/approval"
	"github.com/teranos/apruver/errors"
	"github.com/teranos/apruver/logger"
)

// State is the scheduler lifecycle state
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateSleeping State = "sleeping"
	StateStopped  State = "stopped"
)

// DefaultMaxBackoffMultiplier caps backoff at 8x the interval
const DefaultMaxBackoffMultiplier = 8

// Runner performs one approval cycle
type Runner interface {
	RunCycle(ctx context.Context) (*approval.Report, error)
}

// Notifier receives cycle reports and lifecycle notices
type Notifier interface {
	Send(ctx context.Context, report *approval.Report)
	SendText(ctx context.Context, text string)
}

// Waiter blocks for d or until ctx is done, returning ctx.Err() in the latter case
type Waiter func(ctx context.Context, d time.Duration) error

// Config configures a Scheduler
type Config struct {
	Interval             time.Duration // Base wait between cycles
	MaxBackoffMultiplier int           // Cap on the failure multiplier (default 8)
	Logger               *zap.SugaredLogger
	Wait                 Waiter // nil = timer-based wait
}

// Stats is a snapshot of scheduler counters
type Stats struct {
	State               State         `json:"state"`
	Cycles              int64         `json:"cycles"`
	Failures            int64         `json:"failures"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Approved            int64         `json:"approved"`
	LastCycleAt         time.Time     `json:"last_cycle_at"`
	LastError           string        `json:"last_error,omitempty"`
	NextDelay           time.Duration `json:"next_delay"`
}

// Scheduler runs cycles until cancelled or until authentication is lost for good
type Scheduler struct {
	runner   Runner
	notifier Notifier
	interval time.Duration
	maxMult  int
	wait     Waiter
	logger   *zap.SugaredLogger

	mu    sync.Mutex
	state State
	stats Stats
}

// New creates a scheduler. notifier may be nil.
func New(runner Runner, notifier Notifier, cfg Config) *Scheduler {
	maxMult := cfg.MaxBackoffMultiplier
	if maxMult < 1 {
		maxMult = DefaultMaxBackoffMultiplier
	}
	wait := cfg.Wait
	if wait == nil {
		wait = waitTimer
	}
	log := cfg.Logger
	if log == nil {
		log = logger.ComponentLogger("pulse.schedule")
	}
	return &Scheduler{
		runner:   runner,
		notifier: notifier,
		interval: cfg.Interval,
		maxMult:  maxMult,
		wait:     wait,
		logger:   log,
		state:    StateIdle,
	}
}

// Run loops until ctx is cancelled (returns nil) or a fatal authentication
// error occurs (returns it).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Infow("Scheduler started",
		"interval", s.interval,
		"max_backoff_multiplier", s.maxMult)
	defer s.setState(StateStopped)

	for {
		if ctx.Err() != nil {
			s.logger.Infow("Shutdown requested, scheduler stopping")
			return nil
		}

		// The cycle must not be torn down mid-approval by shutdown
		_, err := s.tick(context.WithoutCancel(ctx))
		if errors.IsFatal(err) {
			s.logger.Errorw("Fatal error, scheduler stopping", logger.FieldError, err)
			return err
		}

		next := s.NextDelay()
		s.setState(StateSleeping)
		s.logger.Debugw("Waiting for next cycle", logger.FieldNextIn, next)
		if err := s.wait(ctx, next); err != nil {
			s.logger.Infow("Shutdown requested during wait, scheduler stopping")
			return nil
		}
	}
}

// RunOnce runs a single cycle with notification and returns its result
func (s *Scheduler) RunOnce(ctx context.Context) (*approval.Report, error) {
	defer s.setState(StateStopped)
	return s.tick(ctx)
}

// NextDelay is the wait that follows the current failure streak:
// interval x min(2^failures, maxMultiplier), or the interval after a success.
func (s *Scheduler) NextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delayFor(s.stats.ConsecutiveFailures)
}

func (s *Scheduler) delayFor(failures int) time.Duration {
	mult := 1
	for i := 0; i < failures && mult < s.maxMult; i++ {
		mult *= 2
	}
	if mult > s.maxMult {
		mult = s.maxMult
	}
	return s.interval * time.Duration(mult)
}

// State returns the current lifecycle state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the counters
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.State = s.state
	out.NextDelay = s.delayFor(s.stats.ConsecutiveFailures)
	return out
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// tick runs one cycle, isolating panics and recording the outcome
func (s *Scheduler) tick(ctx context.Context) (report *approval.Report, err error) {
	s.setState(StateRunning)
	cycleID := uuid.NewString()
	ctx = logger.WithCycleID(ctx, cycleID)
	log := logger.FromContext(ctx, s.logger)
	start := time.Now()

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("Cycle panicked", "panic", r, "stack", string(debug.Stack()))
				err = errors.Newf("cycle panicked: %v", r)
			}
		}()
		report, err = s.runner.RunCycle(ctx)
	}()

	// A partial report from an aborted batch still describes approvals that happened
	if report != nil && s.notifier != nil {
		s.notifier.Send(ctx, report)
	}

	s.record(start, report, err)

	if err != nil {
		failures := s.consecutiveFailures()
		log.Errorw("Cycle failed",
			logger.FieldError, err,
			"consecutive_failures", failures,
			logger.FieldNextIn, s.NextDelay(),
			logger.FieldDurationMS, time.Since(start).Milliseconds())

		if s.notifier != nil {
			switch {
			case errors.IsFatal(err):
				s.notifier.SendText(ctx, fmt.Sprintf("Authentication failed, apruver is stopping: %v", err))
			case failures == 1:
				s.notifier.SendText(ctx, fmt.Sprintf("Approval cycle failed, retrying with backoff: %v", err))
			}
		}
	}
	return report, err
}

func (s *Scheduler) record(start time.Time, report *approval.Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Cycles++
	s.stats.LastCycleAt = start
	if report != nil {
		s.stats.Approved += int64(len(report.Approved()))
	}
	if err != nil {
		s.stats.Failures++
		s.stats.ConsecutiveFailures++
		s.stats.LastError = err.Error()
		return
	}
	if s.stats.ConsecutiveFailures > 0 {
		s.logger.Infow("Cycle recovered, backoff reset", "after_failures", s.stats.ConsecutiveFailures)
	}
	s.stats.ConsecutiveFailures = 0
	s.stats.LastError = ""
}

func (s *Scheduler) consecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.ConsecutiveFailures
}

func waitTimer(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
