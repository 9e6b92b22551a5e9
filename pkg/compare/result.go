// Package compare runs the full clause comparison pipeline over two
// document versions and aggregates the result consumed by reports and
// outer layers.
package compare

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/coolbeans/redline/pkg/align"
	"github.com/coolbeans/redline/pkg/clause"
	"github.com/coolbeans/redline/pkg/integrity"
	"github.com/coolbeans/redline/pkg/risk"
	"github.com/coolbeans/redline/pkg/worddiff"
)

// Result is the structured diff of two document versions.
type Result struct {
	// RunID identifies this comparison run.
	RunID string `json:"run_id"`

	// GeneratedAt is when the comparison finished (UTC).
	GeneratedAt time.Time `json:"generated_at"`

	// Documents fingerprints both inputs.
	Documents DocumentPair `json:"documents"`

	// Clauses partitions every clause of both versions.
	Clauses ClauseSet `json:"clauses"`

	// Risks holds one finding per modified clause, in document order.
	Risks []risk.Finding `json:"risks"`

	// IntegrityAlerts holds the ghost changes, in document order.
	IntegrityAlerts []integrity.Alert `json:"integrity_alerts"`

	// Stats summarizes the comparison.
	Stats Stats `json:"stats"`

	// RuleSet names the risk rule set used.
	RuleSet string `json:"rule_set"`

	// Versions records which algorithm revisions produced the result.
	Versions Versions `json:"versions"`

	// Warnings describes degraded behavior, such as skipped fuzzy matching.
	Warnings []string `json:"warnings,omitempty"`
}

// DocumentPair fingerprints the two compared versions.
type DocumentPair struct {
	A DocumentInfo `json:"a"`
	B DocumentInfo `json:"b"`
}

// DocumentInfo describes one input version.
type DocumentInfo struct {
	Label       string `json:"label,omitempty"`
	Hash        string `json:"hash"`
	ClauseCount int    `json:"clause_count"`

	// Characters counts runes, not bytes.
	Characters int `json:"characters"`

	// ClauseHashes fingerprints each clause text by clause ID.
	ClauseHashes map[string]string `json:"clause_hashes"`
}

// Versions names the revision of each pipeline stage, so a stored result
// can be traced to the rules that produced it.
type Versions struct {
	Segmenter string `json:"segmenter"`
	Alignment string `json:"alignment"`
	WordDiff  string `json:"word_diff"`
	Rules     string `json:"rules"`
}

// ClauseSet is the added/deleted/modified/unchanged partition.
type ClauseSet struct {
	Added     []clause.Clause  `json:"added"`
	Deleted   []clause.Clause  `json:"deleted"`
	Modified  []ModifiedClause `json:"modified"`
	Unchanged []MatchedClause  `json:"unchanged"`
}

// MatchedClause is a clause present in both versions.
type MatchedClause struct {
	ClauseA    clause.Clause     `json:"clause_a"`
	ClauseB    clause.Clause     `json:"clause_b"`
	Similarity float64           `json:"similarity"`
	Method     align.MatchMethod `json:"method"`
}

// ModifiedClause is a matched clause whose text changed.
type ModifiedClause struct {
	MatchedClause
	WordDiffs worddiff.Result `json:"word_diffs"`
}

// Stats are the summary counts of a comparison.
type Stats struct {
	ModifiedCount        int `json:"modified_count"`
	AddedCount           int `json:"added_count"`
	DeletedCount         int `json:"deleted_count"`
	UnchangedCount       int `json:"unchanged_count"`
	HighRiskCount        int `json:"high_risk_count"`
	ObligationShiftCount int `json:"obligation_shift_count"`
	IntegrityAlertCount  int `json:"integrity_alert_count"`
	MaterialCount        int `json:"material_count"`
}

// FindingFor returns the risk finding of a clause ID.
func (r *Result) FindingFor(clauseID string) (risk.Finding, bool) {
	for _, finding := range r.Risks {
		if finding.ClauseID == clauseID {
			return finding, true
		}
	}
	return risk.Finding{}, false
}

// ToJSON returns the result as indented JSON.
func (r *Result) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// computeStats derives the summary counts from the partition and findings.
func computeStats(clauses ClauseSet, findings []risk.Finding, alerts []integrity.Alert) Stats {
	stats := Stats{
		ModifiedCount:       len(clauses.Modified),
		AddedCount:          len(clauses.Added),
		DeletedCount:        len(clauses.Deleted),
		UnchangedCount:      len(clauses.Unchanged),
		IntegrityAlertCount: len(alerts),
	}
	for _, finding := range findings {
		if finding.IsHighRisk() {
			stats.HighRiskCount++
		}
		if finding.HasTag(risk.TagObligationShift) {
			stats.ObligationShiftCount++
		}
		if len(finding.Materiality) > 0 {
			stats.MaterialCount++
		}
	}
	return stats
}

// describeDocument fingerprints one input version and its clauses.
func describeDocument(text string, clauses []clause.Clause) DocumentInfo {
	hashes := make(map[string]string, len(clauses))
	for _, c := range clauses {
		hashes[c.ID] = fingerprint(c.Text)
	}
	return DocumentInfo{
		Hash:         fingerprint(text),
		ClauseCount:  len(clauses),
		Characters:   utf8.RuneCountInString(text),
		ClauseHashes: hashes,
	}
}

// fingerprint hashes text as "sha256:<hex>".
func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "sha256:" + hex.EncodeToString(sum[:])
}
