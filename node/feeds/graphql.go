package feeds

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/teranos/apruver/internal/util"
)

// listProposalsQuery is the query the operator UI issues for the feeds manager page
const listProposalsQuery = `query FetchFeedManagerWithProposals($id: ID!) {
  feedsManager(id: $id) {
    __typename
    ... on FeedsManager {
      id
      name
      jobProposals {
        id
        name
        externalJobID
        remoteUUID
        status
        pendingUpdate
        latestSpec {
          createdAt
          version
        }
      }
    }
    ... on NotFoundError {
      message
      code
    }
  }
}`

const approveSpecMutation = `mutation ApproveJobProposalSpec($id: ID!, $force: Boolean) {
  approveJobProposalSpec(id: $id, force: $force) {
    __typename
    ... on ApproveJobProposalSpecSuccess {
      spec {
        id
      }
    }
    ... on NotFoundError {
      message
      code
    }
    ... on JobAlreadyExistsError {
      message
      code
    }
  }
}`

const (
	typeFeedsManager          = "FeedsManager"
	typeNotFoundError         = "NotFoundError"
	typeApproveSpecSuccess    = "ApproveJobProposalSpecSuccess"
	typeJobAlreadyExistsError = "JobAlreadyExistsError"
)

type gqlRequest struct {
	OperationName string                 `json:"operationName,omitempty"`
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

type gqlError struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors,omitempty"`
}

// errorMessages joins GraphQL error messages for logs and reasons
func (r *gqlResponse) errorMessages() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

type feedsManagerPayload struct {
	FeedsManager *struct {
		Typename     string            `json:"__typename"`
		ID           string            `json:"id"`
		Name         string            `json:"name"`
		JobProposals []jobProposalNode `json:"jobProposals"`
		Message      string            `json:"message"`
		Code         string            `json:"code"`
	} `json:"feedsManager"`
}

type jobProposalNode struct {
	ID            string  `json:"id"`
	Name          *string `json:"name"`
	ExternalJobID *string `json:"externalJobID"`
	RemoteUUID    string  `json:"remoteUUID"`
	Status        string  `json:"status"`
	PendingUpdate bool    `json:"pendingUpdate"`
	LatestSpec    *struct {
		CreatedAt time.Time `json:"createdAt"`
		Version   int       `json:"version"`
	} `json:"latestSpec"`
}

func (n jobProposalNode) toProposal(feedsManagerID string) JobProposal {
	p := JobProposal{
		ID:             n.ID,
		Name:           util.Deref(n.Name),
		ExternalJobID:  util.Deref(n.ExternalJobID),
		RemoteUUID:     n.RemoteUUID,
		Status:         NormalizeStatus(n.Status),
		PendingUpdate:  n.PendingUpdate,
		FeedsManagerID: feedsManagerID,
	}
	if n.LatestSpec != nil {
		p.CreatedAt = n.LatestSpec.CreatedAt
		p.SpecVersion = n.LatestSpec.Version
	}
	return p
}

type approveSpecPayload struct {
	ApproveJobProposalSpec *struct {
		Typename string `json:"__typename"`
		Spec     *struct {
			ID string `json:"id"`
		} `json:"spec"`
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"approveJobProposalSpec"`
}

// alreadyApprovedMarkers are fragments of node error messages meaning the
// proposal left the approvable state before our call landed
var alreadyApprovedMarkers = []string{
	"already approved",
	"already exists",
	"must be pending",
	"not pending",
	"cannot approve",
}

func isAlreadyApprovedMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range alreadyApprovedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
