// Package integrity flags modified clauses that carry no change-tracking
// marker ("ghost changes").
//
// The check is a placeholder heuristic: it only looks for a literal marker
// substring and knows nothing about the content of the edit. An alert means
// "no marker was found", not "this edit was unreviewed".
package integrity

import (
	"fmt"
	"strings"
)

// DefaultMarker is the marker a tracked edit is expected to carry.
const DefaultMarker = "[tracked]"

// ReasonUntracked is the reason reported for every ghost change.
const ReasonUntracked = "Edited text without track-change marker"

// Alert reports a modified clause that lacks the tracking marker.
type Alert struct {
	ClauseID string `json:"clause_id"`
	Reason   string `json:"reason"`
	Heading  string `json:"heading,omitempty"`
	Before   string `json:"before,omitempty"`
	After    string `json:"after,omitempty"`
}

// Checker looks for a case-insensitive marker in clause text.
type Checker struct {
	marker string
}

// NewChecker creates a Checker for marker.
func NewChecker(marker string) (*Checker, error) {
	if strings.TrimSpace(marker) == "" {
		return nil, fmt.Errorf("tracking marker must not be empty")
	}
	return &Checker{marker: strings.ToLower(marker)}, nil
}

// NewDefaultChecker returns a Checker for DefaultMarker.
func NewDefaultChecker() *Checker {
	return &Checker{marker: DefaultMarker}
}

// Marker returns the lower-cased marker.
func (checker *Checker) Marker() string {
	return checker.marker
}

// IsTracked reports whether text contains the marker in any case.
func (checker *Checker) IsTracked(text string) bool {
	return strings.Contains(strings.ToLower(text), checker.marker)
}

// CheckTracked returns an alert when neither before nor after contains the
// marker, and nil otherwise.
func (checker *Checker) CheckTracked(clauseID, before, after string) *Alert {
	if checker.IsTracked(before) || checker.IsTracked(after) {
		return nil
	}
	return &Alert{
		ClauseID: clauseID,
		Reason:   ReasonUntracked,
		Before:   before,
		After:    after,
	}
}
