package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/apruver/am"
	"github.com/teranos/apruver/approval"
	"github.com/teranos/apruver/internal/httpclient"
	"github.com/teranos/apruver/logger"
	"github.com/teranos/apruver/node/feeds"
	"github.com/teranos/apruver/node/session"
	"github.com/teranos/apruver/notify"
	"github.com/teranos/apruver/pulse/schedule"
)

// logoutTimeout bounds the logout call made on shutdown
const logoutTimeout = 5 * time.Second

// app holds the wired components for one process
type app struct {
	cfg       *am.Config
	sessions  *session.Manager
	client    *feeds.Client
	states    approval.StateSet
	cycle     *approval.Cycle
	notifier  *notify.Dispatcher
	scheduler *schedule.Scheduler
	logger    *zap.SugaredLogger
}

// loadConfig loads and validates configuration from --config and the environment
func loadConfig(cmd *cobra.Command) (*am.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := am.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads configuration and reinitializes logging from it
func setup(cmd *cobra.Command) (*am.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	verbosity, _ := cmd.Flags().GetCount("verbose")
	logger.SetTheme(cfg.Log.Theme)
	if err := logger.Initialize(cfg.Log.JSON, verbosity); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp wires the node client, approval engine, notifier and scheduler from cfg
func newApp(cfg *am.Config) (*app, error) {
	states, err := approval.NewStateSet(cfg.Approval.States)
	if err != nil {
		return nil, err
	}

	nodeHTTP := httpclient.New(httpclient.Options{
		Timeout:            cfg.RequestTimeout(),
		InsecureSkipVerify: cfg.Node.InsecureSkipVerify,
	})
	pacer := httpclient.NewPacer(cfg.Node.MaxRequestsPerSecond)

	sessions := session.NewManager(session.Config{
		BaseURL:       cfg.Node.URL,
		Email:         cfg.Node.Email,
		Password:      cfg.Node.Password,
		HTTPClient:    nodeHTTP,
		Pacer:         pacer,
		LoginAttempts: cfg.Node.LoginAttempts,
		LoginBackoff:  cfg.LoginBackoff(),
		TTL:           cfg.SessionTTL(),
		Logger:        logger.ComponentLogger("node.session"),
	})

	client := feeds.NewClient(feeds.Config{
		BaseURL:    cfg.Node.URL,
		HTTPClient: nodeHTTP,
		Sessions:   sessions,
		Pacer:      pacer,
		Force:      cfg.Approval.Force,
		Timeout:    cfg.RequestTimeout(),
		Logger:     logger.ComponentLogger("node.feeds"),
	})

	engine := approval.NewEngine(client, states, logger.ComponentLogger("approval"))
	cycle := approval.NewCycle(sessions, client, engine, cfg.Feeds.ManagerID, cfg.Feeds.Network)

	notifier := notify.NewDispatcher(notify.Config{
		WebhookURL:          cfg.Notify.WebhookURL,
		Network:             cfg.Feeds.Network,
		NotifyQuietCycles:   cfg.Notify.NotifyQuietCycles,
		BlockPrivateWebhook: cfg.Notify.BlockPrivateWebhook,
		Timeout:             cfg.NotifyTimeout(),
		Logger:              logger.ComponentLogger("notify"),
	})

	scheduler := schedule.New(cycle, notifier, schedule.Config{
		Interval:             cfg.Interval(),
		MaxBackoffMultiplier: cfg.Schedule.MaxBackoffMultiplier,
		Logger:               logger.ComponentLogger("pulse.schedule"),
	})

	return &app{
		cfg:       cfg,
		sessions:  sessions,
		client:    client,
		states:    states,
		cycle:     cycle,
		notifier:  notifier,
		scheduler: scheduler,
		logger:    logger.ComponentLogger("apruver"),
	}, nil
}

// announce logs the effective setup once at startup
func (a *app) announce() {
	a.logger.Infow("apruver starting",
		logger.FieldNetwork, a.cfg.Feeds.Network,
		logger.FieldFeedsManagerID, a.cfg.Feeds.ManagerID,
		logger.FieldURL, a.cfg.Node.URL,
		"approvable_states", a.states.Strings(),
		"interval", a.cfg.Interval(),
		"notifications", a.notifier.Enabled())
	if a.states.Empty() {
		a.logger.Warnw("No approvable states configured, running observe-only",
			"hint", "set CL_APPROVABLE_STATES, e.g. PENDING,PROPOSED")
	}
}

// close ends the node session. It runs after shutdown, so it gets a fresh context.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
	defer cancel()
	if err := a.sessions.Logout(ctx); err != nil {
		a.logger.Warnw("Logout failed", logger.FieldError, err)
	}
}
