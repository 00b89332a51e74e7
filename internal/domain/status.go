package domain

import (
	"fmt"
	"strings"
)

// Status is the pipeline position of a session. Non-failed statuses form a
// total order; failed is absorbing.
type Status string

const (
	StatusScraping         Status = "scraping"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusConcept          Status = "concept"
	StatusMotif            Status = "motif"
	StatusProducts         Status = "products"
	StatusComplete         Status = "complete"
	StatusFailed           Status = "failed"
)

var statusRank = map[Status]int{
	StatusScraping:         0,
	StatusAwaitingApproval: 1,
	StatusConcept:          2,
	StatusMotif:            3,
	StatusProducts:         4,
	StatusComplete:         5,
}

// ParseStatus converts a stored value into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s == StatusFailed {
		return s, nil
	}
	if _, ok := statusRank[s]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, raw)
	}
	return s, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// Rank returns the position of s in the stage order, or -1 for failed and
// unknown values.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// AtOrPast reports whether s has reached other in the stage order. A failed
// session is never at or past anything.
func (s Status) AtOrPast(other Status) bool {
	r := s.Rank()
	if r < 0 {
		return false
	}
	return r >= other.Rank()
}

// IsTerminal reports whether automated processing has ended for s.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CanTransition reports whether moving from s to next keeps the forward-only
// rule. Staying in place is allowed.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return next.Rank() > s.Rank()
}

// In reports whether s is one of the given statuses.
func (s Status) In(statuses ...Status) bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}
