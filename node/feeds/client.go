// Package feeds talks to the node's feeds manager over its GraphQL admin API.
package feeds

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/apruver/errors"
	"github.com/teranos/apruver/internal/httpclient"
	"github.com/teranos/apruver/internal/util"
	"github.com/teranos/apruver/logger"
	"github.com/teranos/apruver/node/session"
)

const (
	queryPath = "/query"

	// DefaultTimeout bounds a single GraphQL call when none is configured
	DefaultTimeout = 15 * time.Second

	maxErrorBody = 512
)

// Sessions is what the client needs from the session manager
type Sessions interface {
	EnsureValid(ctx context.Context) (*session.Session, error)
	Invalidate()
}

// Config configures a Client
type Config struct {
	BaseURL    string
	HTTPClient *httpclient.SaferClient
	Sessions   Sessions
	Pacer      *httpclient.Pacer // nil = unlimited
	Force      bool              // force argument of approveJobProposalSpec
	Timeout    time.Duration     // Per-call bound (0 = DefaultTimeout)
	Logger     *zap.SugaredLogger
}

// Client issues typed feeds manager operations using the current session
type Client struct {
	endpoint string
	http     *httpclient.SaferClient
	sessions Sessions
	pacer    *httpclient.Pacer
	force    bool
	timeout  time.Duration
	logger   *zap.SugaredLogger
}

// NewClient creates a feeds manager client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.ComponentLogger("node.feeds")
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + queryPath,
		http:     cfg.HTTPClient,
		sessions: cfg.Sessions,
		pacer:    cfg.Pacer,
		force:    cfg.Force,
		timeout:  timeout,
		logger:   log,
	}
}

// ListProposals returns every job proposal of the feeds manager in server order.
// The node returns the full list in one response; there is no paging.
// network only labels logs: the node scopes proposals by feeds manager alone.
func (c *Client) ListProposals(ctx context.Context, feedsManagerID, network string) ([]JobProposal, error) {
	log := logger.FromContext(ctx, c.logger).With(
		logger.FieldFeedsManagerID, feedsManagerID,
		logger.FieldNetwork, network)

	start := time.Now()
	resp, err := c.execute(ctx, "FetchFeedManagerWithProposals", listProposalsQuery, map[string]interface{}{
		"id": feedsManagerID,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list proposals for feeds manager %s", feedsManagerID)
	}
	if len(resp.Errors) > 0 {
		return nil, errors.WithDetailf(
			errors.NewAPIError("feeds manager %s query failed: %s", feedsManagerID, resp.errorMessages()),
			"network: %s", network)
	}

	var payload feedsManagerPayload
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, errors.WithDetail(errors.NewAPIError("malformed feeds manager response"), err.Error())
	}

	fm := payload.FeedsManager
	if fm == nil {
		return nil, errors.NewAPIError("feeds manager %s: response has no feedsManager", feedsManagerID)
	}
	if fm.Typename != typeFeedsManager {
		return nil, errors.WithDetailf(
			errors.NewAPIError("feeds manager %s: %s", feedsManagerID, fm.Message),
			"__typename=%s code=%s", fm.Typename, fm.Code)
	}

	proposals := make([]JobProposal, 0, len(fm.JobProposals))
	for _, node := range fm.JobProposals {
		p := node.toProposal(fm.ID)
		if !p.Status.Known() {
			log.Warnw("Proposal has a status outside the known vocabulary",
				logger.FieldProposalID, p.ID,
				logger.FieldStatus, string(p.Status))
		}
		proposals = append(proposals, p)
	}

	log.Debugw("Listed proposals",
		logger.FieldCount, len(proposals),
		"feeds_manager_name", fm.Name,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return proposals, nil
}

// ApproveProposal approves the latest spec of the proposal with the given id.
//
// A well-formed rejection from the node is not an error: it comes back as a
// failed or already-approved result. Errors are returned only for transport
// failures (NetworkError) and for authentication that could not be restored.
func (c *Client) ApproveProposal(ctx context.Context, id string) (ApprovalResult, error) {
	log := logger.FromContext(ctx, c.logger).With(logger.FieldProposalID, id)

	resp, err := c.execute(ctx, "ApproveJobProposalSpec", approveSpecMutation, map[string]interface{}{
		"id":    id,
		"force": c.force,
	})
	if err != nil {
		if errors.IsAPI(err) {
			return ApprovalResult{Outcome: OutcomeFailed, Reason: err.Error()}, nil
		}
		return ApprovalResult{}, errors.Wrapf(err, "failed to approve proposal %s", id)
	}

	if len(resp.Errors) > 0 {
		msg := resp.errorMessages()
		if isAlreadyApprovedMessage(msg) {
			log.Debugw("Node reports proposal no longer approvable", logger.FieldReason, msg)
			return ApprovalResult{Outcome: OutcomeAlreadyApproved, Reason: msg}, nil
		}
		return ApprovalResult{Outcome: OutcomeFailed, Reason: msg}, nil
	}

	var payload approveSpecPayload
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return ApprovalResult{Outcome: OutcomeFailed, Reason: "malformed approval response: " + err.Error()}, nil
	}

	result := payload.ApproveJobProposalSpec
	if result == nil {
		return ApprovalResult{Outcome: OutcomeFailed, Reason: "approveJobProposalSpec returned no data"}, nil
	}

	switch result.Typename {
	case typeApproveSpecSuccess:
		specID := ""
		if result.Spec != nil {
			specID = result.Spec.ID
		}
		return ApprovalResult{Outcome: OutcomeApproved, SpecID: specID}, nil
	case typeJobAlreadyExistsError:
		return ApprovalResult{Outcome: OutcomeAlreadyApproved, Reason: result.Message}, nil
	case typeNotFoundError:
		return ApprovalResult{Outcome: OutcomeFailed, Reason: "not found: " + result.Message}, nil
	default:
		if isAlreadyApprovedMessage(result.Message) {
			return ApprovalResult{Outcome: OutcomeAlreadyApproved, Reason: result.Message}, nil
		}
		return ApprovalResult{Outcome: OutcomeFailed, Reason: "unexpected response type " + result.Typename}, nil
	}
}

// execute sends one GraphQL operation with the current session.
// A 401 invalidates the session, logs in again and retries exactly once;
// a second 401 is a fatal authentication error.
func (c *Client) execute(ctx context.Context, operation, query string, vars map[string]interface{}) (*gqlResponse, error) {
	body, err := json.Marshal(gqlRequest{OperationName: operation, Query: query, Variables: vars})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode GraphQL request")
	}

	sess, err := c.sessions.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, operation, sess, body)
	if !errors.IsUnauthorized(err) {
		return resp, err
	}

	c.logger.Infow("Session rejected by node, logging in again", logger.FieldOperation, operation)
	c.sessions.Invalidate()
	sess, err = c.sessions.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}

	resp, err = c.post(ctx, operation, sess, body)
	if errors.IsUnauthorized(err) {
		return nil, errors.MarkFatal(errors.NewAuthError(err, "node rejected a fresh session"))
	}
	return resp, err
}

// post performs one HTTP round trip bounded by the client timeout
func (c *Client) post(ctx context.Context, operation string, sess *session.Session, body []byte) (*gqlResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build GraphQL request")
	}
	req.Header.Set("Content-Type", "application/json")
	sess.Apply(req)

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, errors.NewNetworkError(err, operation+" not sent")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewNetworkError(err, operation+" request failed")
	}
	defer resp.Body.Close()

	c.logger.Debugw("GraphQL call",
		logger.FieldOperation, operation,
		logger.FieldHTTPCode, resp.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.NewUnauthorized(operation)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetworkError(err, operation+" response read failed")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WithDetailf(
			errors.NewAPIError("%s: node returned HTTP %d", operation, resp.StatusCode),
			"body: %s", util.Truncate(string(raw), maxErrorBody))
	}

	var out gqlResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.WithDetailf(
			errors.NewAPIError("%s: response is not JSON", operation),
			"body: %s", util.Truncate(string(raw), maxErrorBody))
	}
	return &out, nil
}
