package clause

import (
	"regexp"
	"strings"
	"unicode"
)

// maxCapsHeadingWords limits how long an ALL-CAPS line may be and still be
// treated as a heading rather than shouted body text.
const maxCapsHeadingWords = 6

// maxTitleWords is the longest text after a numbering token still read as a
// clause title. Longer text, or a sentence of more than minSentenceWords
// words ending in sentence punctuation, is clause text.
const (
	maxTitleWords    = 10
	minSentenceWords = 3
)

// Segmenter splits raw document text into clauses. It uses compiled
// regular expressions for numbered headings and a line test for ALL-CAPS
// headings. A Segmenter only reads its patterns and is safe for concurrent
// use.
type Segmenter struct {
	numberedPattern      *regexp.Regexp
	parenthesizedPattern *regexp.Regexp
	maxCapsWords         int
}

// NewSegmenter creates a Segmenter with all heading patterns compiled.
func NewSegmenter() *Segmenter {
	return &Segmenter{
		numberedPattern:      regexp.MustCompile(`^(?:\d+(?:\.\d+)*|[IVXLCDM]+|[ivxlcdm]+|[A-Za-z])[.)](?:\s+|$)`),
		parenthesizedPattern: regexp.MustCompile(`^\([A-Za-z]\)[.)]?(?:\s+|$)`),
		maxCapsWords:         maxCapsHeadingWords,
	}
}

// Segment splits text with a default Segmenter.
func Segment(text string) []Clause {
	return NewSegmenter().Segment(text)
}

// pendingClause accumulates body lines until the next heading.
type pendingClause struct {
	heading  string
	explicit bool
	body     []string
}

// Segment returns the ordered clauses of text. Blank lines are skipped and
// body lines are joined with collapsed whitespace. Text before the first
// heading becomes a Preamble clause. Input with no headings at all, including
// empty input, yields exactly one clause spanning the whole text.
//
// A numbered line that carries a sentence rather than a title, such as
// "1. The Supplier shall deliver the goods within 30 days.", keeps only its
// numbering token as the heading and starts the body with the sentence.
func (segmenter *Segmenter) Segment(text string) []Clause {
	var pending []pendingClause
	current := pendingClause{heading: PreambleHeading}

	for _, line := range strings.Split(text, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if trimmedLine == "" {
			continue
		}

		if segmenter.IsHeading(trimmedLine) {
			if current.explicit || len(current.body) > 0 {
				pending = append(pending, current)
			}
			current = pendingClause{heading: trimmedLine, explicit: true}
			if marker, rest := segmenter.splitNumbering(trimmedLine); isClauseText(rest) {
				current.heading = marker
				current.body = []string{rest}
			}
			continue
		}

		current.body = append(current.body, trimmedLine)
	}

	if current.explicit || len(current.body) > 0 || len(pending) == 0 {
		pending = append(pending, current)
	}

	clauses := make([]Clause, len(pending))
	for orderIndex, item := range pending {
		clauses[orderIndex] = Clause{
			ID:         buildID(orderIndex, NormalizeHeading(item.heading)),
			Heading:    item.heading,
			Text:       collapseWhitespace(strings.Join(item.body, " ")),
			OrderIndex: orderIndex,
		}
	}
	return clauses
}

// IsHeading reports whether a trimmed line starts a new clause.
func (segmenter *Segmenter) IsHeading(line string) bool {
	if segmenter.numberedPattern.MatchString(line) || segmenter.parenthesizedPattern.MatchString(line) {
		return true
	}
	return segmenter.isCapsHeading(line)
}

// splitNumbering splits a numbered heading line into its numbering token
// and the text after it. Lines without a numbering token return an empty
// rest.
func (segmenter *Segmenter) splitNumbering(line string) (marker, rest string) {
	token := segmenter.numberedPattern.FindString(line)
	if token == "" {
		token = segmenter.parenthesizedPattern.FindString(line)
	}
	if token == "" {
		return line, ""
	}
	return strings.TrimSpace(token), strings.TrimSpace(line[len(token):])
}

// isClauseText reports whether the text after a numbering token reads as a
// sentence of the clause rather than its title.
func isClauseText(rest string) bool {
	words := strings.Fields(rest)
	if len(words) > maxTitleWords {
		return true
	}
	return len(words) > minSentenceWords && strings.ContainsAny(rest[len(rest)-1:], ".;!?")
}

// isCapsHeading reports whether line is a short line containing at least
// one letter and no lower-case letters.
func (segmenter *Segmenter) isCapsHeading(line string) bool {
	if len(strings.Fields(line)) > segmenter.maxCapsWords {
		return false
	}

	hasLetter := false
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
