package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/apruver/errors"
	"github.com/teranos/apruver/internal/httpclient"
	"github.com/teranos/apruver/logger"
)

const sessionsPath = "/sessions"

// DefaultTTL bounds a session when the config does not
const DefaultTTL = time.Hour

// Config configures a Manager
type Config struct {
	BaseURL       string
	Email         string
	Password      string
	HTTPClient    *httpclient.SaferClient
	Pacer         *httpclient.Pacer // nil = unlimited
	LoginAttempts int               // Attempts per Login call (min 1)
	LoginBackoff  time.Duration     // Linear step: attempt n waits n*LoginBackoff before the next
	TTL           time.Duration     // Upper bound on session lifetime
	Logger        *zap.SugaredLogger

	// Test hooks; nil uses the wall clock and a context-aware sleep
	Now  func() time.Time
	Wait func(ctx context.Context, d time.Duration) error
}

// Manager logs in, caches and refreshes the node session.
// At most one session is held; a new login replaces the previous one.
type Manager struct {
	cfg    Config
	logger *zap.SugaredLogger
	now    func() time.Time
	wait   func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	current *Session
}

// NewManager creates a session manager. No login happens until first use.
func NewManager(cfg Config) *Manager {
	if cfg.LoginAttempts < 1 {
		cfg.LoginAttempts = 1
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	log := cfg.Logger
	if log == nil {
		log = logger.ComponentLogger("node.session")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	wait := cfg.Wait
	if wait == nil {
		wait = sleepContext
	}

	return &Manager{cfg: cfg, logger: log, now: now, wait: wait}
}

// EnsureValid returns the cached session if unexpired, otherwise logs in
func (m *Manager) EnsureValid(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ValidAt(m.now()) {
		return m.current, nil
	}
	if m.current != nil {
		m.logger.Debugw("Session expired, logging in again",
			"issued_at", m.current.IssuedAt,
			"expires_at", m.current.ExpiresAt)
	}
	return m.login(ctx)
}

// Login performs a fresh login, replacing any cached session.
// It retries up to LoginAttempts times with linear backoff; exhaustion is fatal.
func (m *Manager) Login(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.login(ctx)
}

// Invalidate drops the cached session so the next EnsureValid logs in again
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.logger.Debugw("Session invalidated")
	}
	m.current = nil
}

// Logout ends the session on the node. The local session is dropped even if the call fails.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.current
	m.current = nil
	if sess == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, m.cfg.BaseURL+sessionsPath, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build logout request")
	}
	sess.Apply(req)

	if err := m.cfg.Pacer.Wait(ctx); err != nil {
		return errors.Wrap(err, "logout cancelled")
	}
	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		return errors.NewNetworkError(err, "logout request failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return errors.NewAPIError("logout returned HTTP %d", resp.StatusCode)
	}
	m.logger.Infow("Logged out of node")
	return nil
}

// login must be called with mu held
func (m *Manager) login(ctx context.Context) (*Session, error) {
	m.current = nil

	var lastErr error
	for attempt := 1; attempt <= m.cfg.LoginAttempts; attempt++ {
		start := m.now()
		sess, err := m.attemptLogin(ctx)
		if err == nil {
			m.current = sess
			m.logger.Infow("Logged in to node",
				logger.FieldAttempt, attempt,
				"expires_at", sess.ExpiresAt.Format(time.RFC3339))
			return sess, nil
		}
		lastErr = err

		m.logger.Warnw("Login attempt failed",
			logger.FieldAttempt, attempt,
			"max_attempts", m.cfg.LoginAttempts,
			logger.FieldDurationMS, m.now().Sub(start).Milliseconds(),
			logger.FieldError, err)

		if attempt == m.cfg.LoginAttempts {
			break
		}
		backoff := time.Duration(attempt) * m.cfg.LoginBackoff
		if err := m.wait(ctx, backoff); err != nil {
			return nil, errors.NewAuthError(err, "login interrupted")
		}
	}

	return nil, errors.MarkFatal(errors.WithHint(
		errors.NewAuthError(lastErr, fmt.Sprintf("login failed after %d attempts", m.cfg.LoginAttempts)),
		"check CL_EMAIL, CL_PASSWORD and CL_NODE_URL"))
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// attemptLogin performs one POST /sessions
func (m *Manager) attemptLogin(ctx context.Context) (*Session, error) {
	body, err := json.Marshal(credentials{Email: m.cfg.Email, Password: m.cfg.Password})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+sessionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build login request")
	}
	req.Header.Set("Content-Type", "application/json")

	if err := m.cfg.Pacer.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "login cancelled")
	}
	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.NewAuthError(errors.NewNetworkError(err, "node unreachable"), "login request failed")
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WithDetailf(
			errors.NewAuthError(nil, fmt.Sprintf("login rejected with HTTP %d", resp.StatusCode)),
			"body: %s", strings.TrimSpace(string(respBody)))
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil, errors.NewAuthError(nil, "login succeeded but node set no session cookie")
	}
	return newSession(cookies, m.now(), m.cfg.TTL), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
