// Package similarity computes word shingles and Jaccard similarity between
// clause texts. The measure is lexical, not semantic.
package similarity

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultShingleSize is the k used when callers pass k <= 0.
const DefaultShingleSize = 3

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Set is a set of shingles.
type Set map[string]struct{}

// Len returns the number of shingles in the set.
func (s Set) Len() int {
	return len(s)
}

// Contains reports whether shingle is in the set.
func (s Set) Contains(shingle string) bool {
	_, ok := s[shingle]
	return ok
}

// Sorted returns the shingles in lexical order.
func (s Set) Sorted() []string {
	shingles := make([]string, 0, len(s))
	for shingle := range s {
		shingles = append(shingles, shingle)
	}
	sort.Strings(shingles)
	return shingles
}

// Tokens returns the case-folded word tokens of text.
func Tokens(text string) []string {
	return wordPattern.FindAllString(cases.Fold().String(text), -1)
}

// Shingles returns every contiguous run of k word tokens of text joined by
// a single space. The set is empty when text has fewer than k tokens.
func Shingles(text string, k int) Set {
	if k <= 0 {
		k = DefaultShingleSize
	}

	tokens := Tokens(text)
	shingles := make(Set)
	for start := 0; start+k <= len(tokens); start++ {
		shingles[strings.Join(tokens[start:start+k], " ")] = struct{}{}
	}
	return shingles
}

// Jaccard returns |x ∩ y| / |x ∪ y|. Two empty sets have similarity 0.
func Jaccard(x, y Set) float64 {
	if len(x) == 0 && len(y) == 0 {
		return 0
	}

	smaller, larger := x, y
	if len(smaller) > len(larger) {
		smaller, larger = larger, smaller
	}

	intersection := 0
	for shingle := range smaller {
		if larger.Contains(shingle) {
			intersection++
		}
	}

	union := len(x) + len(y) - intersection
	return float64(intersection) / float64(union)
}

// TextSimilarity is Jaccard over the k-shingles of two texts.
func TextSimilarity(textX, textY string, k int) float64 {
	return Jaccard(Shingles(textX, k), Shingles(textY, k))
}
