// Package notify posts cycle summaries to a Slack-compatible incoming webhook.
//
// Delivery is best-effort: a failed post is logged as a NotificationError and
// never reaches the caller, since the approvals it reports already happened.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/apruver/approval"
	"github.com/teranos/apruver/errors"
	"github.com/teranos/apruver/internal/httpclient"
	"github.com/teranos/apruver/logger"
)

// DefaultTimeout bounds one webhook post when none is configured
const DefaultTimeout = 10 * time.Second

// Config configures a Dispatcher
type Config struct {
	WebhookURL          string // Empty disables the dispatcher
	Network             string // Prefixed to every message as [network]
	NotifyQuietCycles   bool   // Post cycles with nothing approved and nothing failed
	BlockPrivateWebhook bool   // Refuse webhook hosts that resolve to private or loopback addresses
	Timeout             time.Duration
	HTTPClient          *httpclient.SaferClient // nil = new client bounded by Timeout
	Logger              *zap.SugaredLogger
}

// Dispatcher formats reports and posts them to the webhook
type Dispatcher struct {
	cfg    Config
	http   *httpclient.SaferClient
	logger *zap.SugaredLogger
}

// NewDispatcher creates a dispatcher. With no webhook URL every Send is a no-op.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(httpclient.Options{Timeout: cfg.Timeout, BlockPrivateIP: cfg.BlockPrivateWebhook})
	}
	log := cfg.Logger
	if log == nil {
		log = logger.ComponentLogger("notify")
	}
	return &Dispatcher{cfg: cfg, http: client, logger: log}
}

// Enabled reports whether a webhook is configured
func (d *Dispatcher) Enabled() bool {
	return d != nil && d.cfg.WebhookURL != ""
}

// Send posts a summary of report. Quiet cycles are skipped unless configured otherwise.
func (d *Dispatcher) Send(ctx context.Context, report *approval.Report) {
	if report == nil || !d.Enabled() {
		return
	}
	if report.IsQuiet() && !d.cfg.NotifyQuietCycles {
		logger.FromContext(ctx, d.logger).Debugw("Quiet cycle, notification suppressed",
			logger.FieldSkipped, report.SkippedCount())
		return
	}
	d.SendText(ctx, FormatReport(report))
}

// SendText posts a free-form notice, prefixed with the network label
func (d *Dispatcher) SendText(ctx context.Context, text string) {
	if !d.Enabled() {
		d.logger.Debugw("Notifications disabled, message not sent")
		return
	}
	if err := d.post(ctx, d.prefix(text)); err != nil {
		logger.FromContext(ctx, d.logger).Warnw("Notification not delivered", logger.FieldError, err)
	}
}

func (d *Dispatcher) prefix(text string) string {
	if d.cfg.Network == "" {
		return text
	}
	return "[" + d.cfg.Network + "] " + text
}

type payload struct {
	Text string `json:"text"`
}

// post delivers one message; any failure is a NotificationError
func (d *Dispatcher) post(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(payload{Text: text})
	if err != nil {
		return errors.NewNotificationError(err, "failed to encode payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.NewNotificationError(err, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.http.Do(req)
	if err != nil {
		return errors.NewNotificationError(err, "webhook unreachable")
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 300))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return errors.WithDetailf(
			errors.NewNotificationError(nil, fmt.Sprintf("webhook returned HTTP %d", resp.StatusCode)),
			"body: %s", strings.TrimSpace(string(respBody)))
	}

	d.logger.Debugw("Notification delivered",
		logger.FieldHTTPCode, resp.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return nil
}
