package approval

import (
	"sort"

	"github.com/teranos/apruver/errors"
	"github.com/teranos/apruver/node/feeds"
)

// StateSet is the set of statuses eligible for automatic approval.
// It is built once at startup; an empty set approves nothing.
type StateSet struct {
	states map[feeds.Status]struct{}
}

// NewStateSet normalizes and validates configured state names.
// Unknown names are an error so a typo cannot silently match nothing.
func NewStateSet(raw []string) (StateSet, error) {
	set := StateSet{states: make(map[feeds.Status]struct{}, len(raw))}
	for _, r := range raw {
		s, err := feeds.ParseStatus(r)
		if err != nil {
			return StateSet{}, errors.Mark(err, errors.ErrInvalidConfig)
		}
		set.states[s] = struct{}{}
	}
	return set, nil
}

// MustStateSet is NewStateSet for literals; it panics on unknown names
func MustStateSet(raw ...string) StateSet {
	set, err := NewStateSet(raw)
	if err != nil {
		panic(err)
	}
	return set
}

// Contains reports whether proposals in status s may be approved
func (s StateSet) Contains(status feeds.Status) bool {
	_, ok := s.states[status]
	return ok
}

// Empty reports whether no state is approvable (observe-only)
func (s StateSet) Empty() bool {
	return len(s.states) == 0
}

// Statuses returns the members sorted by name
func (s StateSet) Statuses() []feeds.Status {
	out := make([]feeds.Status, 0, len(s.states))
	for st := range s.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the members as plain strings, sorted
func (s StateSet) Strings() []string {
	statuses := s.Statuses()
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
