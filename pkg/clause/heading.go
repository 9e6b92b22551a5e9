package clause

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var (
	// designatorPattern matches "section 4.", "article iv", "clause 2:" prefixes.
	designatorPattern = regexp.MustCompile(`^(?:section|sec|article|art|clause)\.?\s+(?:\d+(?:\.\d+)*|[ivxlcdm]+|[a-z])(?:[.):]|\s|$)\s*`)

	// numberingPattern matches one leading enumeration token: "(a)", "a)",
	// "iv.", "1.2)", or a bare "1.2" followed by whitespace.
	numberingPattern = regexp.MustCompile(`^(?:\(?(?:\d+(?:\.\d+)*|[ivxlcdm]+|[a-z])\)|(?:\d+(?:\.\d+)*|[ivxlcdm]+|[a-z])\.|\d+(?:\.\d+)*)(?:\s+|$)`)

	punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

	// designatorWordPattern matches a leading designator word alone.
	designatorWordPattern = regexp.MustCompile(`^(?:section|sec|article|art|clause)\.?\s+`)
)

// NormalizeHeading canonicalizes a heading into its comparison key.
// The key is case-folded, stripped of leading numbering and designators,
// stripped of punctuation, and whitespace-collapsed, so "1. Payment Terms",
// "1) PAYMENT TERMS" and "Section 7 - Payment terms" all yield
// "payment terms". A heading that is nothing but numbering keys on the
// numbering itself, so "12." and "12)" both yield "12".
func NormalizeHeading(heading string) string {
	folded := strings.TrimSpace(cases.Fold().String(heading))
	key := folded

	for {
		stripped := designatorPattern.ReplaceAllString(key, "")
		stripped = numberingPattern.ReplaceAllString(stripped, "")
		stripped = strings.TrimLeft(stripped, " \t-–—:")
		if stripped == key {
			break
		}
		key = stripped
	}

	key = collapseWhitespace(punctuationPattern.ReplaceAllString(key, " "))
	if key == "" {
		numbering := designatorWordPattern.ReplaceAllString(folded, "")
		key = collapseWhitespace(punctuationPattern.ReplaceAllString(numbering, " "))
	}
	return key
}
