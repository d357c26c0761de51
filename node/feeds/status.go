package feeds

import (
	"strings"

	"github.com/teranos/apruver/errors"
)

// Status is a job proposal lifecycle status as reported by the node
type Status string

// Known lifecycle statuses
const (
	StatusPending               Status = "PENDING"
	StatusRequiresAdminApproval Status = "REQUIRES_ADMIN_APPROVAL"
	StatusVersionPending        Status = "VERSION_PENDING"
	StatusProposed              Status = "PROPOSED"
	StatusApproved              Status = "APPROVED"
	StatusRejected              Status = "REJECTED"
	StatusCancelled             Status = "CANCELLED"
	StatusRevoked               Status = "REVOKED"
)

var knownStatuses = []Status{
	StatusPending,
	StatusRequiresAdminApproval,
	StatusVersionPending,
	StatusProposed,
	StatusApproved,
	StatusRejected,
	StatusCancelled,
	StatusRevoked,
}

// KnownStatuses returns the status vocabulary in display order
func KnownStatuses() []Status {
	out := make([]Status, len(knownStatuses))
	copy(out, knownStatuses)
	return out
}

// NormalizeStatus upper-cases raw and maps '-' and ' ' to '_'.
// Unknown values are kept so they can be logged verbatim.
func NormalizeStatus(raw string) Status {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return Status(s)
}

// ParseStatus normalizes raw and rejects values outside the known vocabulary
func ParseStatus(raw string) (Status, error) {
	s := NormalizeStatus(raw)
	if !s.Known() {
		return s, errors.Newf("unknown proposal status %q", raw)
	}
	return s, nil
}

// Known reports whether s is part of the vocabulary
func (s Status) Known() bool {
	for _, k := range knownStatuses {
		if s == k {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
