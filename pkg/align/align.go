package align

import (
	"fmt"
	"sort"

	"github.com/coolbeans/redline/pkg/clause"
	"github.com/coolbeans/redline/pkg/similarity"
)

const (
	// DefaultSimilarityThreshold is the minimum Jaccard score for a
	// similarity-pass match.
	DefaultSimilarityThreshold = 0.3

	// DefaultMaxFuzzyPairs caps |A remaining| x |B remaining| before the
	// similarity pass is refused.
	DefaultMaxFuzzyPairs = 250000

	// Version identifies the alignment algorithm in audit records.
	Version = "heading-shingle-v1"
)

// Options configures an Aligner.
type Options struct {
	// SimilarityThreshold is the minimum Jaccard score to match in pass 2.
	SimilarityThreshold float64

	// ShingleSize is the k of the word shingles.
	ShingleSize int

	// MaxFuzzyPairs is the candidate budget for pass 2. Zero disables the budget.
	MaxFuzzyPairs int
}

// DefaultOptions returns the default alignment options.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: DefaultSimilarityThreshold,
		ShingleSize:         similarity.DefaultShingleSize,
		MaxFuzzyPairs:       DefaultMaxFuzzyPairs,
	}
}

// Validate checks that the options are usable.
func (o Options) Validate() error {
	if o.SimilarityThreshold < 0 || o.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold %.3f outside [0,1]", o.SimilarityThreshold)
	}
	if o.ShingleSize < 1 {
		return fmt.Errorf("shingle size must be at least 1, got %d", o.ShingleSize)
	}
	if o.MaxFuzzyPairs < 0 {
		return fmt.Errorf("max fuzzy pairs must not be negative, got %d", o.MaxFuzzyPairs)
	}
	return nil
}

// Aligner matches clauses across two versions. It holds only its options
// and is safe for concurrent use.
type Aligner struct {
	options Options
}

// NewAligner creates an Aligner, returning an error for invalid options.
func NewAligner(options Options) (*Aligner, error) {
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid alignment options: %w", err)
	}
	return &Aligner{options: options}, nil
}

// Options returns the aligner's options.
func (aligner *Aligner) Options() Options {
	return aligner.options
}

// Pool holds the clauses of each version not yet matched, in document order.
type Pool struct {
	A []clause.Clause
	B []clause.Clause
}

// Size returns the number of unmatched clauses on both sides.
func (p Pool) Size() int {
	return len(p.A) + len(p.B)
}

// Match is a pair of clauses produced by one pass.
type Match struct {
	A          clause.Clause
	B          clause.Clause
	Similarity float64
	Method     MatchMethod
}

// Align runs the exact pass then the similarity pass, and classifies every
// clause of both versions into exactly one pair.
func (aligner *Aligner) Align(clausesA, clausesB []clause.Clause) Alignment {
	pool := Pool{A: clausesA, B: clausesB}

	pool, headingMatches := ExactPass(pool)

	var alignment Alignment
	if aligner.exceedsBudget(pool) {
		alignment.FuzzySkipped = true
		alignment.Warnings = append(alignment.Warnings, fmt.Sprintf(
			"similarity matching skipped: %d x %d candidate pairs exceeds budget of %d",
			len(pool.A), len(pool.B), aligner.options.MaxFuzzyPairs))
	}

	var similarityMatches []Match
	if !alignment.FuzzySkipped {
		pool, similarityMatches = SimilarityPass(pool, aligner.options)
	}

	pairs := make([]Pair, 0, len(headingMatches)+len(similarityMatches)+pool.Size())
	for _, match := range headingMatches {
		pairs = append(pairs, pairFromMatch(match))
	}
	for _, match := range similarityMatches {
		pairs = append(pairs, pairFromMatch(match))
	}
	for index := range pool.A {
		pairs = append(pairs, Pair{A: &pool.A[index], Status: StatusDeleted, Method: MatchNone})
	}
	for index := range pool.B {
		pairs = append(pairs, Pair{B: &pool.B[index], Status: StatusAdded, Method: MatchNone})
	}

	sortPairs(pairs)
	alignment.Pairs = pairs
	return alignment
}

func (aligner *Aligner) exceedsBudget(pool Pool) bool {
	budget := aligner.options.MaxFuzzyPairs
	return budget > 0 && len(pool.A)*len(pool.B) > budget
}

// ExactPass pairs clauses that share a non-empty heading key. Within a key,
// the first unmatched A clause pairs with the first unmatched B clause; a
// surplus on either side stays in the returned pool.
func ExactPass(pool Pool) (Pool, []Match) {
	queues := make(map[string][]int)
	for index, candidate := range pool.B {
		if key := candidate.Key(); key != "" {
			queues[key] = append(queues[key], index)
		}
	}

	matchedB := make([]bool, len(pool.B))
	var matches []Match
	var remainingA []clause.Clause

	for _, candidate := range pool.A {
		key := candidate.Key()
		queue := queues[key]
		if key == "" || len(queue) == 0 {
			remainingA = append(remainingA, candidate)
			continue
		}

		bIndex := queue[0]
		queues[key] = queue[1:]
		matchedB[bIndex] = true
		matches = append(matches, Match{
			A:          candidate,
			B:          pool.B[bIndex],
			Similarity: 1.0,
			Method:     MatchHeading,
		})
	}

	return Pool{A: remainingA, B: unmatched(pool.B, matchedB)}, matches
}

// candidate is one scored (a, b) combination considered by the similarity pass.
type candidate struct {
	aIndex     int
	bIndex     int
	similarity float64
	distance   int
}

// SimilarityPass scores every remaining (a, b) combination by shingle
// Jaccard and assigns greedily from the highest score down. Ties prefer the
// smallest order-index distance, then the earlier A clause, then the
// earlier B clause. Candidates below the threshold, or with no shared
// shingles, never match.
func SimilarityPass(pool Pool, options Options) (Pool, []Match) {
	if len(pool.A) == 0 || len(pool.B) == 0 {
		return pool, nil
	}

	shinglesA := make([]similarity.Set, len(pool.A))
	for index, c := range pool.A {
		shinglesA[index] = similarity.Shingles(c.Text, options.ShingleSize)
	}
	shinglesB := make([]similarity.Set, len(pool.B))
	for index, c := range pool.B {
		shinglesB[index] = similarity.Shingles(c.Text, options.ShingleSize)
	}

	var candidates []candidate
	for aIndex := range pool.A {
		for bIndex := range pool.B {
			score := similarity.Jaccard(shinglesA[aIndex], shinglesB[bIndex])
			if score <= 0 || score < options.SimilarityThreshold {
				continue
			}
			candidates = append(candidates, candidate{
				aIndex:     aIndex,
				bIndex:     bIndex,
				similarity: score,
				distance:   absInt(pool.A[aIndex].OrderIndex - pool.B[bIndex].OrderIndex),
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		left, right := candidates[i], candidates[j]
		if left.similarity != right.similarity {
			return left.similarity > right.similarity
		}
		if left.distance != right.distance {
			return left.distance < right.distance
		}
		if pool.A[left.aIndex].OrderIndex != pool.A[right.aIndex].OrderIndex {
			return pool.A[left.aIndex].OrderIndex < pool.A[right.aIndex].OrderIndex
		}
		return pool.B[left.bIndex].OrderIndex < pool.B[right.bIndex].OrderIndex
	})

	matchedA := make([]bool, len(pool.A))
	matchedB := make([]bool, len(pool.B))
	var matches []Match
	for _, c := range candidates {
		if matchedA[c.aIndex] || matchedB[c.bIndex] {
			continue
		}
		matchedA[c.aIndex] = true
		matchedB[c.bIndex] = true
		matches = append(matches, Match{
			A:          pool.A[c.aIndex],
			B:          pool.B[c.bIndex],
			Similarity: c.similarity,
			Method:     MatchSimilarity,
		})
	}

	return Pool{A: unmatched(pool.A, matchedA), B: unmatched(pool.B, matchedB)}, matches
}

// pairFromMatch classifies a matched pair as unchanged or modified.
func pairFromMatch(match Match) Pair {
	a, b := match.A, match.B
	score := match.Similarity

	status := StatusModified
	if a.Text == b.Text {
		status = StatusUnchanged
	}

	return Pair{A: &a, B: &b, Similarity: &score, Status: status, Method: match.Method}
}

// sortPairs orders pairs by document position: the B clause position when
// present, otherwise the A clause position, with deleted clauses placed
// after other pairs at the same position.
func sortPairs(pairs []Pair) {
	position := func(p Pair) int {
		if p.B != nil {
			return p.B.OrderIndex
		}
		return p.A.OrderIndex
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		left, right := pairs[i], pairs[j]
		if position(left) != position(right) {
			return position(left) < position(right)
		}
		leftDeleted := left.Status == StatusDeleted
		rightDeleted := right.Status == StatusDeleted
		if leftDeleted != rightDeleted {
			return rightDeleted
		}
		return orderOf(left.A) < orderOf(right.A)
	})
}

func orderOf(c *clause.Clause) int {
	if c == nil {
		return -1
	}
	return c.OrderIndex
}

func unmatched(clauses []clause.Clause, matched []bool) []clause.Clause {
	var remaining []clause.Clause
	for index, c := range clauses {
		if !matched[index] {
			remaining = append(remaining, c)
		}
	}
	return remaining
}

func absInt(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
