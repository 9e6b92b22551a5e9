// Package align matches the clauses of two document versions. Matching
// runs as a pipeline of pure passes over a pool of unmatched clauses: an
// exact pass on normalized heading keys followed by a greedy similarity
// pass on shingle Jaccard scores.
package align

import (
	"encoding/json"
	"fmt"

	"github.com/coolbeans/redline/pkg/clause"
)

// Status classifies an aligned pair.
type Status int

const (
	// StatusUnchanged indicates both clauses exist with identical text.
	StatusUnchanged Status = iota
	// StatusModified indicates both clauses exist with differing text.
	StatusModified
	// StatusAdded indicates the clause exists only in version B.
	StatusAdded
	// StatusDeleted indicates the clause exists only in version A.
	StatusDeleted
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusModified:
		return "modified"
	case StatusAdded:
		return "added"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Status.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MatchMethod records which pass produced a pair.
type MatchMethod int

const (
	// MatchNone is used for added and deleted clauses.
	MatchNone MatchMethod = iota
	// MatchHeading indicates the exact heading-key pass.
	MatchHeading
	// MatchSimilarity indicates the shingle similarity pass.
	MatchSimilarity
)

// String returns the name of the match method.
func (m MatchMethod) String() string {
	switch m {
	case MatchHeading:
		return "heading"
	case MatchSimilarity:
		return "similarity"
	default:
		return "none"
	}
}

// MarshalJSON implements json.Marshaler for MatchMethod.
func (m MatchMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// Pair is one entry of an alignment. A is nil for added clauses, B is nil
// for deleted clauses, and Similarity is nil unless both are present.
type Pair struct {
	A          *clause.Clause `json:"clause_a"`
	B          *clause.Clause `json:"clause_b"`
	Similarity *float64       `json:"similarity"`
	Status     Status         `json:"status"`
	Method     MatchMethod    `json:"method"`
}

// ClauseID returns the ID reported for the pair: the version B clause when
// present, otherwise the version A clause.
func (p Pair) ClauseID() string {
	if p.B != nil {
		return p.B.ID
	}
	if p.A != nil {
		return p.A.ID
	}
	return ""
}

// Heading returns the heading reported for the pair, preferring version B.
func (p Pair) Heading() string {
	if p.B != nil {
		return p.B.Heading
	}
	if p.A != nil {
		return p.A.Heading
	}
	return ""
}

// Alignment is the full result of aligning two clause lists.
type Alignment struct {
	// Pairs covers every input clause exactly once, in document order.
	Pairs []Pair `json:"pairs"`

	// FuzzySkipped is set when the similarity pass was refused because the
	// candidate matrix exceeded the configured budget.
	FuzzySkipped bool `json:"fuzzy_skipped,omitempty"`

	// Warnings describes degraded behavior during alignment.
	Warnings []string `json:"warnings,omitempty"`
}

// WithStatus returns the pairs with the given status, in document order.
func (a Alignment) WithStatus(status Status) []Pair {
	var pairs []Pair
	for _, pair := range a.Pairs {
		if pair.Status == status {
			pairs = append(pairs, pair)
		}
	}
	return pairs
}

// CheckCoverage verifies that every clause of clausesA and clausesB appears
// in exactly one pair and that no pair refers to an unknown clause.
func (a Alignment) CheckCoverage(clausesA, clausesB []clause.Clause) error {
	seenA := make(map[string]int, len(clausesA))
	seenB := make(map[string]int, len(clausesB))

	for _, pair := range a.Pairs {
		if pair.A == nil && pair.B == nil {
			return fmt.Errorf("pair with neither clause")
		}
		if pair.A != nil {
			seenA[pair.A.ID]++
		}
		if pair.B != nil {
			seenB[pair.B.ID]++
		}
	}

	if err := checkSide("A", clausesA, seenA); err != nil {
		return err
	}
	return checkSide("B", clausesB, seenB)
}

func checkSide(side string, clauses []clause.Clause, seen map[string]int) error {
	if len(seen) != len(clauses) {
		return fmt.Errorf("version %s: %d distinct clauses aligned, want %d", side, len(seen), len(clauses))
	}
	for _, c := range clauses {
		if count := seen[c.ID]; count != 1 {
			return fmt.Errorf("version %s: clause %s appears %d times", side, c.ID, count)
		}
	}
	return nil
}
