package risk

import (
	"sort"
	"strconv"
	"strings"
)

// textSpan is a half-open byte range of a matched token.
type textSpan struct {
	start int
	end   int
}

// dateTokens returns the date-like tokens of text in order of appearance
// together with their byte ranges. Overlapping matches from different
// patterns resolve to the earliest, then longest, match.
func (rules *compiledRules) dateTokens(text string) ([]string, []textSpan) {
	var spans []textSpan
	for _, pattern := range rules.datePatterns {
		for _, location := range pattern.FindAllStringIndex(text, -1) {
			spans = append(spans, textSpan{start: location[0], end: location[1]})
		}
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	var kept []textSpan
	var tokens []string
	for _, span := range spans {
		if len(kept) > 0 && span.start < kept[len(kept)-1].end {
			continue
		}
		kept = append(kept, span)
		tokens = append(tokens, strings.Join(strings.Fields(text[span.start:span.end]), " "))
	}
	return tokens, kept
}

// mask replaces the given byte ranges with spaces so later extractors do
// not see digits or month names that belong to a date.
func mask(text string, spans []textSpan) string {
	if len(spans) == 0 {
		return text
	}
	masked := []byte(text)
	for _, span := range spans {
		for index := span.start; index < span.end; index++ {
			masked[index] = ' '
		}
	}
	return string(masked)
}

// modals returns the lower-cased modal verbs of text in order of appearance.
func (rules *compiledRules) modals(text string) []string {
	matches := rules.modalPattern.FindAllString(text, -1)
	for index, match := range matches {
		matches[index] = strings.ToLower(match)
	}
	return matches
}

// numbers returns the numeric tokens of text in order of appearance.
func (rules *compiledRules) numbers(text string) []string {
	return rules.numberPattern.FindAllString(text, -1)
}

// numericValue normalizes a numeric token for comparison by value, so that
// "1,000" and "1000.00" compare equal.
func numericValue(token string) string {
	cleaned := strings.ReplaceAll(token, ",", "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return cleaned
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// dateValue normalizes a date token for set comparison.
func dateValue(token string) string {
	return strings.ToLower(token)
}
