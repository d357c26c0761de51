package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/apruver/errors"
	"github.com/teranos/apruver/internal/httpclient"
	"github.com/teranos/apruver/node/session"
)

// fakeNode implements the node's /sessions and /query endpoints.
// Each login issues a new token; revoke() makes the current token stale.
type fakeNode struct {
	t  *testing.T
	mu sync.Mutex

	token        string
	logins       int
	rejectAll    bool // every /query answers 401
	approveCalls []string
	forceArgs    []interface{}

	listBody    string
	approveBody func(id string) (int, string)
}

func newFakeNode(t *testing.T) *fakeNode {
	return &fakeNode{
		t:        t,
		listBody: `{"data":{"feedsManager":{"__typename":"FeedsManager","id":"1","name":"fm","jobProposals":[]}}}`,
		approveBody: func(id string) (int, string) {
			return http.StatusOK, fmt.Sprintf(`{"data":{"approveJobProposalSpec":{"__typename":"ApproveJobProposalSpecSuccess","spec":{"id":"spec-%s"}}}}`, id)
		},
	}
}

func (f *fakeNode) revoke() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = "revoked"
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/sessions":
		f.logins++
		f.token = fmt.Sprintf("tok-%d", f.logins)
		http.SetCookie(w, &http.Cookie{Name: "clsession", Value: f.token})
		w.WriteHeader(http.StatusOK)
	case "/query":
		cookie, err := r.Cookie("clsession")
		if f.rejectAll || err != nil || cookie.Value != f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req gqlRequest
		if !assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch req.OperationName {
		case "FetchFeedManagerWithProposals":
			_, _ = w.Write([]byte(f.listBody))
		case "ApproveJobProposalSpec":
			id, _ := req.Variables["id"].(string)
			f.approveCalls = append(f.approveCalls, id)
			f.forceArgs = append(f.forceArgs, req.Variables["force"])
			code, body := f.approveBody(id)
			w.WriteHeader(code)
			_, _ = w.Write([]byte(body))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, node *fakeNode) *Client {
	t.Helper()
	server := httptest.NewServer(node)
	t.Cleanup(server.Close)

	httpClient := httpclient.WrapClient(server.Client())
	sessions := session.NewManager(session.Config{
		BaseURL:       server.URL,
		Email:         "ops@example.com",
		Password:      "secret",
		HTTPClient:    httpClient,
		LoginAttempts: 1,
		TTL:           time.Hour,
		Logger:        zap.NewNop().Sugar(),
	})
	return NewClient(Config{
		BaseURL:    server.URL,
		HTTPClient: httpClient,
		Sessions:   sessions,
		Force:      true,
		Timeout:    5 * time.Second,
		Logger:     zap.NewNop().Sugar(),
	})
}

func TestListProposals(t *testing.T) {
	node := newFakeNode(t)
	node.listBody = `{"data":{"feedsManager":{"__typename":"FeedsManager","id":"1","name":"Chainlink FMS","jobProposals":[
		{"id":"1","name":"ETH/USD","externalJobID":"ext-1","remoteUUID":"u-1","status":"PENDING","pendingUpdate":false,"latestSpec":{"createdAt":"2026-03-01T10:00:00Z","version":2}},
		{"id":"2","name":null,"externalJobID":null,"remoteUUID":"u-2","status":"APPROVED","pendingUpdate":true,"latestSpec":null},
		{"id":"3","name":"BTC/USD","externalJobID":"ext-3","remoteUUID":"u-3","status":"deleted","pendingUpdate":false,"latestSpec":{"createdAt":"2026-03-02T10:00:00Z","version":1}}
	]}}}`
	client := newTestClient(t, node)

	proposals, err := client.ListProposals(context.Background(), "1", "ethereum-mainnet")
	require.NoError(t, err)
	require.Len(t, proposals, 3)

	// Server order preserved
	assert.Equal(t, "1", proposals[0].ID)
	assert.Equal(t, "2", proposals[1].ID)
	assert.Equal(t, "3", proposals[2].ID)

	assert.Equal(t, JobProposal{
		ID:             "1",
		Name:           "ETH/USD",
		ExternalJobID:  "ext-1",
		RemoteUUID:     "u-1",
		Status:         StatusPending,
		FeedsManagerID: "1",
		CreatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		SpecVersion:    2,
	}, proposals[0])

	assert.Equal(t, StatusApproved, proposals[1].Status)
	assert.Empty(t, proposals[1].Name)
	assert.True(t, proposals[1].PendingUpdate)
	assert.True(t, proposals[1].CreatedAt.IsZero())

	// Unknown statuses are kept verbatim (upper-cased) and never known
	assert.Equal(t, Status("DELETED"), proposals[2].Status)
	assert.False(t, proposals[2].Status.Known())
}

func TestListProposals_NotFound(t *testing.T) {
	node := newFakeNode(t)
	node.listBody = `{"data":{"feedsManager":{"__typename":"NotFoundError","message":"feeds manager not found","code":"NOT_FOUND"}}}`
	client := newTestClient(t, node)

	_, err := client.ListProposals(context.Background(), "9", "ethereum-mainnet")
	require.Error(t, err)
	assert.True(t, errors.IsAPI(err))
	assert.Contains(t, err.Error(), "feeds manager not found")
}

func TestListProposals_GraphQLErrors(t *testing.T) {
	node := newFakeNode(t)
	node.listBody = `{"errors":[{"message":"unauthorized"}],"data":null}`
	client := newTestClient(t, node)

	_, err := client.ListProposals(context.Background(), "1", "net")
	require.Error(t, err)
	assert.True(t, errors.IsAPI(err))
}

func TestListProposals_NetworkError(t *testing.T) {
	node := newFakeNode(t)
	client := newTestClient(t, node)
	// Log in, then point the client at a dead port
	_, err := client.ListProposals(context.Background(), "1", "net")
	require.NoError(t, err)
	client.endpoint = "http://127.0.0.1:1/query"

	_, err = client.ListProposals(context.Background(), "1", "net")
	require.Error(t, err)
	assert.True(t, errors.IsNetwork(err))
	assert.False(t, errors.IsFatal(err))
}

func TestApproveProposal_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		body       string
		wantResult ApprovalResult
	}{
		{
			name:       "success",
			code:       http.StatusOK,
			body:       `{"data":{"approveJobProposalSpec":{"__typename":"ApproveJobProposalSpecSuccess","spec":{"id":"77"}}}}`,
			wantResult: ApprovalResult{Outcome: OutcomeApproved, SpecID: "77"},
		},
		{
			name:       "job already exists",
			code:       http.StatusOK,
			body:       `{"data":{"approveJobProposalSpec":{"__typename":"JobAlreadyExistsError","message":"a job for this contract address already exists","code":"UNPROCESSABLE"}}}`,
			wantResult: ApprovalResult{Outcome: OutcomeAlreadyApproved, Reason: "a job for this contract address already exists"},
		},
		{
			name:       "graphql error says not pending",
			code:       http.StatusOK,
			body:       `{"errors":[{"message":"proposal spec must be pending"}]}`,
			wantResult: ApprovalResult{Outcome: OutcomeAlreadyApproved, Reason: "proposal spec must be pending"},
		},
		{
			name:       "not found",
			code:       http.StatusOK,
			body:       `{"data":{"approveJobProposalSpec":{"__typename":"NotFoundError","message":"spec not found","code":"NOT_FOUND"}}}`,
			wantResult: ApprovalResult{Outcome: OutcomeFailed, Reason: "not found: spec not found"},
		},
		{
			name:       "other graphql error",
			code:       http.StatusOK,
			body:       `{"errors":[{"message":"boom"}]}`,
			wantResult: ApprovalResult{Outcome: OutcomeFailed, Reason: "boom"},
		},
		{
			name:       "no data",
			code:       http.StatusOK,
			body:       `{"data":{"approveJobProposalSpec":null}}`,
			wantResult: ApprovalResult{Outcome: OutcomeFailed, Reason: "approveJobProposalSpec returned no data"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := newFakeNode(t)
			node.approveBody = func(string) (int, string) { return tt.code, tt.body }
			client := newTestClient(t, node)

			result, err := client.ApproveProposal(context.Background(), "5")
			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, result)
			assert.Equal(t, []string{"5"}, node.approveCalls)
			assert.Equal(t, []interface{}{true}, node.forceArgs)
		})
	}
}

func TestApproveProposal_HTTPErrorIsFailedOutcome(t *testing.T) {
	node := newFakeNode(t)
	node.approveBody = func(string) (int, string) { return http.StatusInternalServerError, "internal" }
	client := newTestClient(t, node)

	result, err := client.ApproveProposal(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Contains(t, result.Reason, "HTTP 500")
}

func TestApproveProposal_UnauthorizedRetriesOnce(t *testing.T) {
	node := newFakeNode(t)
	client := newTestClient(t, node)

	_, err := client.ListProposals(context.Background(), "1", "net")
	require.NoError(t, err)
	require.Equal(t, 1, node.logins)

	// Node forgets the session: one re-login, one retry, success
	node.revoke()
	result, err := client.ApproveProposal(context.Background(), "8")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, result.Outcome)
	assert.Equal(t, 2, node.logins, "exactly one re-login")
	assert.Equal(t, []string{"8"}, node.approveCalls, "the approval reached the node once")
}

func TestApproveProposal_SecondUnauthorizedIsFatal(t *testing.T) {
	node := newFakeNode(t)
	node.rejectAll = true
	client := newTestClient(t, node)

	_, err := client.ApproveProposal(context.Background(), "8")
	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, 2, node.logins, "initial login plus exactly one re-login")
	assert.Empty(t, node.approveCalls)
}

func TestClient_PacerSpacesCalls(t *testing.T) {
	node := newFakeNode(t)
	client := newTestClient(t, node)
	client.pacer = httpclient.NewPacer(20) // one call per 50ms

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.ListProposals(context.Background(), "1", "net")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestClient_TimeoutIsNetworkError(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sessions" {
			http.SetCookie(w, &http.Cookie{Name: "clsession", Value: "x"})
			return
		}
		<-block
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(block) })

	httpClient := httpclient.WrapClient(server.Client())
	client := NewClient(Config{
		BaseURL:    server.URL,
		HTTPClient: httpClient,
		Sessions: session.NewManager(session.Config{
			BaseURL:    server.URL,
			HTTPClient: httpClient,
			Logger:     zap.NewNop().Sugar(),
		}),
		Timeout: 50 * time.Millisecond,
		Logger:  zap.NewNop().Sugar(),
	})

	_, err := client.ApproveProposal(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, errors.IsNetwork(err))
	assert.True(t, httpclient.IsTimeout(err))
}
