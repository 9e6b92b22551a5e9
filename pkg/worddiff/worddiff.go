// Package worddiff computes word-level insertion and deletion spans between
// two versions of a clause for highlighting.
package worddiff

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Kind classifies a span.
type Kind int

const (
	// KindUnchanged marks text present on both sides.
	KindUnchanged Kind = iota
	// KindAdded marks text present only in the after text.
	KindAdded
	// KindRemoved marks text present only in the before text.
	KindRemoved
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnchanged:
		return "unchanged"
	case KindAdded:
		return "added"
	case KindRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Kind.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Span is a run of text on one side of a diff.
type Span struct {
	Text string `json:"text"`
	Kind Kind   `json:"kind"`
}

// Version identifies the diff algorithm in audit records.
const Version = "token-lcs-v2"

// DefaultMaxCells bounds the LCS table Diff builds for the part of two
// texts that differs. The table holds int32 cells, so the default caps it
// at 32 MiB.
const DefaultMaxCells = 8 << 20

// Result holds the spans of both sides. Concatenating the text of
// BeforeSpans reproduces the before text exactly; likewise for AfterSpans.
type Result struct {
	BeforeSpans []Span `json:"before_spans"`
	AfterSpans  []Span `json:"after_spans"`

	// Coarse is set when the differing middle was too large to align word
	// by word and is reported as one removed and one added span.
	Coarse bool `json:"coarse,omitempty"`
}

// tokenPattern splits text into words, whitespace runs, and single
// punctuation characters. Every byte of the input belongs to a token.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+|\s+|[^\p{L}\p{N}_\s]`)

// Tokenize returns the diff tokens of text.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// Diff computes the word-level diff of before and after with a table of at
// most DefaultMaxCells cells.
func Diff(before, after string) Result {
	return DiffWithLimit(before, after, DefaultMaxCells)
}

// DiffWithLimit computes the word-level diff of before and after. The common
// leading and trailing tokens are unchanged; the tokens between them are
// aligned by longest common subsequence, and where several alignments are
// equally long, removed tokens are emitted before added tokens. When the
// middle would need more than maxCells table cells it is reported whole
// and the result is marked Coarse.
func DiffWithLimit(before, after string, maxCells int) Result {
	beforeTokens := Tokenize(before)
	afterTokens := Tokenize(after)

	prefix := 0
	for prefix < len(beforeTokens) && prefix < len(afterTokens) && beforeTokens[prefix] == afterTokens[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(beforeTokens)-prefix && suffix < len(afterTokens)-prefix &&
		beforeTokens[len(beforeTokens)-1-suffix] == afterTokens[len(afterTokens)-1-suffix] {
		suffix++
	}

	beforeSpans := &spanWriter{text: before}
	afterSpans := &spanWriter{text: after}
	for _, token := range beforeTokens[:prefix] {
		beforeSpans.write(token, KindUnchanged)
		afterSpans.write(token, KindUnchanged)
	}

	var result Result
	middleBefore := beforeTokens[prefix : len(beforeTokens)-suffix]
	middleAfter := afterTokens[prefix : len(afterTokens)-suffix]
	cells := (len(middleBefore) + 1) * (len(middleAfter) + 1)
	if len(middleBefore) > 0 && len(middleAfter) > 0 && cells > maxCells {
		result.Coarse = true
		for _, token := range middleBefore {
			beforeSpans.write(token, KindRemoved)
		}
		for _, token := range middleAfter {
			afterSpans.write(token, KindAdded)
		}
	} else {
		alignMiddle(beforeSpans, afterSpans, middleBefore, middleAfter)
	}

	for _, token := range beforeTokens[len(beforeTokens)-suffix:] {
		beforeSpans.write(token, KindUnchanged)
	}
	for _, token := range afterTokens[len(afterTokens)-suffix:] {
		afterSpans.write(token, KindUnchanged)
	}

	result.BeforeSpans = beforeSpans.finish()
	result.AfterSpans = afterSpans.finish()
	return result
}

// alignMiddle walks the LCS table of the differing tokens and writes their
// spans.
func alignMiddle(beforeSpans, afterSpans *spanWriter, before, after []string) {
	table := newSuffixTable(before, after)

	beforeIndex, afterIndex := 0, 0
	for beforeIndex < len(before) || afterIndex < len(after) {
		switch {
		case beforeIndex < len(before) && afterIndex < len(after) && before[beforeIndex] == after[afterIndex]:
			beforeSpans.write(before[beforeIndex], KindUnchanged)
			afterSpans.write(after[afterIndex], KindUnchanged)
			beforeIndex++
			afterIndex++
		case afterIndex == len(after) ||
			(beforeIndex < len(before) && table.at(beforeIndex+1, afterIndex) >= table.at(beforeIndex, afterIndex+1)):
			beforeSpans.write(before[beforeIndex], KindRemoved)
			beforeIndex++
		default:
			afterSpans.write(after[afterIndex], KindAdded)
			afterIndex++
		}
	}
}

// suffixTable holds, at (i, j), the LCS length of before[i:] and after[j:]
// in one flat slice. Walking it forward lets ties be broken toward
// consuming before.
type suffixTable struct {
	cells []int32
	width int
}

func newSuffixTable(before, after []string) suffixTable {
	table := suffixTable{
		cells: make([]int32, (len(before)+1)*(len(after)+1)),
		width: len(after) + 1,
	}

	for i := len(before) - 1; i >= 0; i-- {
		for j := len(after) - 1; j >= 0; j-- {
			switch {
			case before[i] == after[j]:
				table.cells[i*table.width+j] = table.at(i+1, j+1) + 1
			default:
				table.cells[i*table.width+j] = max(table.at(i+1, j), table.at(i, j+1))
			}
		}
	}
	return table
}

func (t suffixTable) at(i, j int) int32 {
	return t.cells[i*t.width+j]
}

// spanWriter cuts the spans of one side out of its text. Tokens are written
// in order and cover the text exactly, so a span is a byte range and
// consecutive tokens of the same kind extend the open span.
type spanWriter struct {
	text  string
	spans []Span
	start int
	end   int
	kind  Kind
}

func (w *spanWriter) write(token string, kind Kind) {
	if w.end > w.start && kind != w.kind {
		w.flush()
	}
	w.kind = kind
	w.end += len(token)
}

func (w *spanWriter) flush() {
	if w.end > w.start {
		w.spans = append(w.spans, Span{Text: w.text[w.start:w.end], Kind: w.kind})
		w.start = w.end
	}
}

func (w *spanWriter) finish() []Span {
	w.flush()
	return w.spans
}

// Join concatenates the text of spans.
func Join(spans []Span) string {
	var builder strings.Builder
	for _, span := range spans {
		builder.WriteString(span.Text)
	}
	return builder.String()
}

// Changed returns the text of spans that are not unchanged.
func Changed(spans []Span) []string {
	var changed []string
	for _, span := range spans {
		if span.Kind != KindUnchanged {
			changed = append(changed, span.Text)
		}
	}
	return changed
}
