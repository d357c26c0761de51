package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/apruver/errors"
	"github.com/teranos/apruver/internal/httpclient"
)

// fakeNode serves /sessions the way the node does: a clsession cookie on good credentials
type fakeNode struct {
	logins  atomic.Int32
	logouts atomic.Int32
	reject  atomic.Int32 // number of upcoming logins to reject with 401
	maxAge  int
}

func (f *fakeNode) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions", r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			f.logins.Add(1)
			var creds credentials
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			if f.reject.Load() > 0 {
				f.reject.Add(-1)
				http.Error(w, `{"errors":[{"detail":"Invalid email or password"}]}`, http.StatusUnauthorized)
				return
			}
			if creds.Email != "ops@example.com" || creds.Password != "secret" {
				http.Error(w, "invalid", http.StatusUnauthorized)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "clsession", Value: fmt.Sprintf("token-%d", f.logins.Load()), MaxAge: f.maxAge})
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			f.logouts.Add(1)
			_, err := r.Cookie("clsession")
			assert.NoError(t, err, "logout must carry the session cookie")
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

type recordedWaits struct {
	waits []time.Duration
}

func (r *recordedWaits) wait(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func newTestManager(t *testing.T, node *fakeNode, password string, waits *recordedWaits, now func() time.Time) *Manager {
	t.Helper()
	server := httptest.NewServer(node.handler(t))
	t.Cleanup(server.Close)

	return NewManager(Config{
		BaseURL:       server.URL + "/",
		Email:         "ops@example.com",
		Password:      password,
		HTTPClient:    httpclient.WrapClient(server.Client()),
		LoginAttempts: 3,
		LoginBackoff:  5 * time.Second,
		TTL:           time.Hour,
		Logger:        zap.NewNop().Sugar(),
		Now:           now,
		Wait:          waits.wait,
	})
}

func TestLogin_Success(t *testing.T) {
	node := &fakeNode{}
	m := newTestManager(t, node, "secret", &recordedWaits{}, nil)

	sess, err := m.Login(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, int32(1), node.logins.Load())
	assert.True(t, sess.ValidAt(time.Now()))

	req := httptest.NewRequest(http.MethodPost, "/query", nil)
	sess.Apply(req)
	cookie, err := req.Cookie("clsession")
	require.NoError(t, err)
	assert.NotEmpty(t, cookie.Value)
}

func TestLogin_InvalidCredentialsExhaustsRetries(t *testing.T) {
	node := &fakeNode{}
	waits := &recordedWaits{}
	m := newTestManager(t, node, "wrong", waits, nil)

	_, err := m.Login(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
	assert.True(t, errors.IsFatal(err), "exhausting login attempts must be fatal")
	assert.Contains(t, err.Error(), "login failed after 3 attempts")
	assert.Equal(t, int32(3), node.logins.Load())

	// Linear backoff between attempts, none after the last
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, waits.waits)
}

func TestLogin_RecoversWithinBudget(t *testing.T) {
	node := &fakeNode{}
	node.reject.Store(2)
	waits := &recordedWaits{}
	m := newTestManager(t, node, "secret", waits, nil)

	sess, err := m.Login(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sess)
	assert.Equal(t, int32(3), node.logins.Load())
	assert.Len(t, waits.waits, 2)
}

func TestLogin_UnreachableNode(t *testing.T) {
	m := NewManager(Config{
		BaseURL:       "http://127.0.0.1:1",
		Email:         "ops@example.com",
		Password:      "secret",
		HTTPClient:    httpclient.New(httpclient.Options{Timeout: time.Second}),
		LoginAttempts: 2,
		Logger:        zap.NewNop().Sugar(),
		Wait:          (&recordedWaits{}).wait,
	})

	_, err := m.Login(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
	assert.True(t, errors.IsNetwork(err))
	assert.True(t, errors.IsFatal(err))
}

func TestLogin_CancelledDuringBackoff(t *testing.T) {
	node := &fakeNode{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := newTestManager(t, node, "wrong", &recordedWaits{}, nil)
	_, err := m.Login(ctx)
	require.Error(t, err)
	assert.False(t, errors.IsFatal(err), "shutdown is not an authentication failure")
}

func TestEnsureValid_CachesUntilExpiry(t *testing.T) {
	node := &fakeNode{}
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, node, "secret", &recordedWaits{}, func() time.Time { return clock })

	first, err := m.EnsureValid(context.Background())
	require.NoError(t, err)
	second, err := m.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), node.logins.Load())

	clock = clock.Add(time.Hour + time.Second)
	third, err := m.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, int32(2), node.logins.Load())
}

func TestEnsureValid_CookieMaxAgeShortensTTL(t *testing.T) {
	node := &fakeNode{maxAge: 60}
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, node, "secret", &recordedWaits{}, func() time.Time { return clock })

	sess, err := m.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clock.Add(time.Minute), sess.ExpiresAt)
}

func TestInvalidate_ForcesLogin(t *testing.T) {
	node := &fakeNode{}
	m := newTestManager(t, node, "secret", &recordedWaits{}, nil)

	_, err := m.EnsureValid(context.Background())
	require.NoError(t, err)
	m.Invalidate()
	_, err = m.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), node.logins.Load())
}

func TestLogout(t *testing.T) {
	node := &fakeNode{}
	m := newTestManager(t, node, "secret", &recordedWaits{}, nil)

	// No session: nothing to do
	require.NoError(t, m.Logout(context.Background()))
	assert.Equal(t, int32(0), node.logouts.Load())

	_, err := m.EnsureValid(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Logout(context.Background()))
	assert.Equal(t, int32(1), node.logouts.Load())

	// Session destroyed locally
	_, err = m.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), node.logins.Load())
}

func TestSessionValidAt(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.ValidAt(time.Now()))

	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newSession([]*http.Cookie{{Name: "clsession", Value: "x"}}, issued, time.Hour)
	assert.True(t, s.ValidAt(issued.Add(59*time.Minute)))
	assert.False(t, s.ValidAt(issued.Add(time.Hour)))

	expiring := newSession([]*http.Cookie{{Name: "clsession", Value: "x", Expires: issued.Add(10 * time.Minute)}}, issued, time.Hour)
	assert.Equal(t, issued.Add(10*time.Minute), expiring.ExpiresAt)
}
