package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/apruver/approval"
	"github.com/teranos/apruver/internal/httpclient"
)

type webhook struct {
	mu       sync.Mutex
	messages []string
	status   int
}

func (w *webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var p payload
	if err := json.NewDecoder(r.Body).Decode(&p); err == nil {
		w.messages = append(w.messages, p.Text)
	}
	if r.Header.Get("Content-Type") != "application/json" {
		rw.WriteHeader(http.StatusUnsupportedMediaType)
		return
	}
	rw.WriteHeader(w.status)
}

func newTestDispatcher(t *testing.T, hook *webhook, quiet bool) (*Dispatcher, *observer.ObservedLogs) {
	t.Helper()
	server := httptest.NewServer(hook)
	t.Cleanup(server.Close)

	core, logs := observer.New(zapcore.DebugLevel)
	return NewDispatcher(Config{
		WebhookURL:        server.URL + "/services/T/B/X",
		Network:           "ethereum-mainnet",
		NotifyQuietCycles: quiet,
		Timeout:           2 * time.Second,
		HTTPClient:        httpclient.WrapClient(server.Client()),
		Logger:            zap.New(core).Sugar(),
	}), logs
}

func busyReport() *approval.Report {
	return &approval.Report{
		CycleID: "1a2b3c4d-0000-0000-0000-000000000000",
		Network: "ethereum-mainnet",
		Entries: []approval.Entry{
			{ProposalID: "1", Name: "ETH/USD", Status: "PENDING", Outcome: approval.OutcomeApproved},
			{ProposalID: "2", Status: "APPROVED", Outcome: approval.OutcomeSkippedState},
			{ProposalID: "3", Status: "PROPOSED", Outcome: approval.OutcomeApproved},
			{ProposalID: "4", Status: "PENDING", Outcome: approval.OutcomeFailed, Reason: "not found: spec not found"},
			{ProposalID: "5", Status: "PENDING", Outcome: approval.OutcomeAlreadyApproved, Reason: "already approved"},
		},
	}
}

func quietReport() *approval.Report {
	return &approval.Report{
		CycleID: "quiet",
		Entries: []approval.Entry{
			{ProposalID: "2", Status: "APPROVED", Outcome: approval.OutcomeSkippedState},
		},
	}
}

func TestSend_PostsSummary(t *testing.T) {
	hook := &webhook{status: http.StatusOK}
	d, _ := newTestDispatcher(t, hook, false)

	d.Send(context.Background(), busyReport())

	require.Len(t, hook.messages, 1)
	msg := hook.messages[0]
	assert.Contains(t, msg, "[ethereum-mainnet] Approval cycle 1a2b3c4d: 2 approved, 1 already approved, 1 failed, 1 skipped")
	assert.Contains(t, msg, "Approved: 1 (ETH/USD), 3")
	assert.Contains(t, msg, "Already approved: 5")
	assert.Contains(t, msg, "• 4: not found: spec not found")
}

func TestSend_QuietCycleSuppressed(t *testing.T) {
	hook := &webhook{status: http.StatusOK}
	d, _ := newTestDispatcher(t, hook, false)

	d.Send(context.Background(), quietReport())
	assert.Empty(t, hook.messages)
}

func TestSend_QuietCyclePostedWhenConfigured(t *testing.T) {
	hook := &webhook{status: http.StatusNoContent}
	d, logs := newTestDispatcher(t, hook, true)

	d.Send(context.Background(), quietReport())
	require.Len(t, hook.messages, 1)
	assert.Contains(t, hook.messages[0], "0 approved, 0 failed, 1 skipped")
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len(), "204 counts as delivered")
}

func TestSend_FailureIsLoggedNotReturned(t *testing.T) {
	hook := &webhook{status: http.StatusInternalServerError}
	d, logs := newTestDispatcher(t, hook, false)

	assert.NotPanics(t, func() { d.Send(context.Background(), busyReport()) })

	warnings := logs.FilterMessage("Notification not delivered").All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].ContextMap()["error"], "webhook returned HTTP 500")
}

func TestSend_UnreachableWebhook(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d := NewDispatcher(Config{
		WebhookURL: "http://127.0.0.1:1/hook",
		Timeout:    time.Second,
		HTTPClient: httpclient.New(httpclient.Options{Timeout: time.Second}),
		Logger:     zap.New(core).Sugar(),
	})

	d.SendText(context.Background(), "hello")
	assert.Equal(t, 1, logs.FilterMessage("Notification not delivered").Len())
}

func TestDisabledDispatcher(t *testing.T) {
	d := NewDispatcher(Config{Logger: zap.NewNop().Sugar()})
	assert.False(t, d.Enabled())

	// No webhook, no panic, no network
	d.Send(context.Background(), busyReport())
	d.SendText(context.Background(), "ignored")

	var nilDispatcher *Dispatcher
	assert.False(t, nilDispatcher.Enabled())
}

func TestSendText_Prefix(t *testing.T) {
	hook := &webhook{status: http.StatusOK}
	d, _ := newTestDispatcher(t, hook, false)

	d.SendText(context.Background(), "Authentication failed, apruver is stopping")
	require.Len(t, hook.messages, 1)
	assert.Equal(t, "[ethereum-mainnet] Authentication failed, apruver is stopping", hook.messages[0])
}

func TestDefaultClientDeliversToPrivateWebhook(t *testing.T) {
	hook := &webhook{status: http.StatusOK}
	server := httptest.NewServer(hook)
	t.Cleanup(server.Close)

	core, logs := observer.New(zapcore.DebugLevel)
	d := NewDispatcher(Config{
		WebhookURL: server.URL + "/hooks/x",
		Network:    "testnet",
		Logger:     zap.New(core).Sugar(),
	})

	d.SendText(context.Background(), "cycle failed")
	hook.mu.Lock()
	defer hook.mu.Unlock()
	require.Len(t, hook.messages, 1, "loopback webhook delivered with the default client")
	assert.Contains(t, hook.messages[0], "cycle failed")
	assert.Zero(t, logs.FilterMessage("Notification not delivered").Len())
}

func TestDefaultClientBlocksPrivateWebhookWhenConfigured(t *testing.T) {
	hook := &webhook{status: http.StatusOK}
	server := httptest.NewServer(hook)
	t.Cleanup(server.Close)

	for _, url := range []string{server.URL + "/hooks/x", "http://169.254.169.254/latest/meta-data"} {
		core, logs := observer.New(zapcore.DebugLevel)
		d := NewDispatcher(Config{
			WebhookURL:          url,
			BlockPrivateWebhook: true,
			Logger:              zap.New(core).Sugar(),
		})

		d.SendText(context.Background(), "cycle failed")
		warnings := logs.FilterMessage("Notification not delivered").All()
		require.Len(t, warnings, 1, url)
		assert.Contains(t, warnings[0].ContextMap()["error"], "private IP", url)
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	assert.Empty(t, hook.messages)
}

func TestFormatReport(t *testing.T) {
	text := FormatReport(&approval.Report{CycleID: "abc"})
	assert.Equal(t, "Approval cycle abc: 0 approved, 0 failed, 0 skipped", text)
}
