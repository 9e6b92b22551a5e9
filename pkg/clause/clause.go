// Package clause splits plain-text agreements into ordered clauses and
// derives the heading keys used to line clauses up across two versions of
// the same document.
package clause

import (
	"fmt"
	"strings"
)

// PreambleHeading is the synthetic heading given to text that appears
// before the first detected heading, and to documents with no headings.
const PreambleHeading = "Preamble"

// SegmenterVersion identifies the segmentation rules in audit records.
const SegmenterVersion = "line-scan-v2"

// maxSlugLength bounds the heading-derived suffix of a clause ID.
const maxSlugLength = 48

// Clause is a segmented unit of a document version. Clauses are created
// once by the Segmenter and never mutated afterwards.
type Clause struct {
	// ID is stable within one document version and derived from the
	// clause position and its heading key.
	ID string `json:"id"`

	// Heading is the heading line exactly as it appeared (trimmed), or only
	// its numbering token when the rest of the line is clause text.
	Heading string `json:"heading"`

	// Text is the clause body with whitespace collapsed.
	Text string `json:"text"`

	// OrderIndex is the zero-based position of the clause in its document.
	OrderIndex int `json:"order_index"`
}

// Key returns the normalized heading key of the clause.
func (c Clause) Key() string {
	return NormalizeHeading(c.Heading)
}

// String returns a short display form such as "clause-2 (Payment Terms)".
func (c Clause) String() string {
	if c.Heading == "" {
		return c.ID
	}
	return fmt.Sprintf("%s (%s)", c.ID, c.Heading)
}

// buildID derives a clause ID from its position and heading key, e.g.
// "clause-3-payment-terms". Clauses with an empty key get "clause-3".
func buildID(orderIndex int, key string) string {
	base := fmt.Sprintf("clause-%d", orderIndex+1)
	if key == "" {
		return base
	}

	slug := strings.ReplaceAll(key, " ", "-")
	if runes := []rune(slug); len(runes) > maxSlugLength {
		slug = strings.TrimRight(string(runes[:maxSlugLength]), "-")
	}
	return base + "-" + slug
}

// collapseWhitespace joins fields with single spaces.
func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
