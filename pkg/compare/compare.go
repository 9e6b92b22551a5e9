package compare

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coolbeans/redline/pkg/align"
	"github.com/coolbeans/redline/pkg/clause"
	"github.com/coolbeans/redline/pkg/integrity"
	"github.com/coolbeans/redline/pkg/risk"
	"github.com/coolbeans/redline/pkg/worddiff"
)

// DefaultWorkers bounds per-pair analysis when Options.Workers is zero.
const DefaultWorkers = 4

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Alignment  align.Options
	RiskEngine *risk.Engine
	Checker    *integrity.Checker
	Workers    int
	Logger     *zap.Logger

	// Now supplies GeneratedAt; tests pin it.
	Now func() time.Time

	// NewRunID supplies RunID; tests pin it.
	NewRunID func() string
}

// DefaultOptions returns options with the default aligner, rule set, and
// tracking marker.
func DefaultOptions() Options {
	return Options{
		Alignment:  align.DefaultOptions(),
		RiskEngine: risk.NewDefaultEngine(),
		Checker:    integrity.NewDefaultChecker(),
		Workers:    DefaultWorkers,
	}
}

// Engine compares document versions. It is stateless between runs and safe
// for concurrent use.
type Engine struct {
	segmenter  *clause.Segmenter
	aligner    *align.Aligner
	riskEngine *risk.Engine
	checker    *integrity.Checker
	workers    int
	logger     *zap.Logger
	now        func() time.Time
	newRunID   func() string
}

// NewEngine builds an Engine from options.
func NewEngine(options Options) (*Engine, error) {
	if options.Alignment == (align.Options{}) {
		options.Alignment = align.DefaultOptions()
	}
	aligner, err := align.NewAligner(options.Alignment)
	if err != nil {
		return nil, err
	}

	if options.RiskEngine == nil {
		options.RiskEngine = risk.NewDefaultEngine()
	}
	if options.Checker == nil {
		options.Checker = integrity.NewDefaultChecker()
	}
	if options.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", options.Workers)
	}
	if options.Workers == 0 {
		options.Workers = DefaultWorkers
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Now == nil {
		options.Now = func() time.Time { return time.Now().UTC() }
	}
	if options.NewRunID == nil {
		options.NewRunID = uuid.NewString
	}

	return &Engine{
		segmenter:  clause.NewSegmenter(),
		aligner:    aligner,
		riskEngine: options.RiskEngine,
		checker:    options.Checker,
		workers:    options.Workers,
		logger:     options.Logger,
		now:        options.Now,
		newRunID:   options.NewRunID,
	}, nil
}

// pairAnalysis is the per-modified-pair output of the fan-out stage.
type pairAnalysis struct {
	wordDiffs worddiff.Result
	finding   risk.Finding
	alert     *integrity.Alert
}

// Compare segments, aligns, and analyzes two document versions. The only
// error it returns is the context's, when the caller's deadline expires
// during per-pair analysis.
func (engine *Engine) Compare(ctx context.Context, textA, textB string) (*Result, error) {
	runID := engine.newRunID()
	logger := engine.logger.With(zap.String("run_id", runID))

	clausesA := engine.segmenter.Segment(textA)
	clausesB := engine.segmenter.Segment(textB)
	logger.Debug("segmented documents",
		zap.Int("clauses_a", len(clausesA)),
		zap.Int("clauses_b", len(clausesB)))

	alignment := engine.aligner.Align(clausesA, clausesB)
	for _, warning := range alignment.Warnings {
		logger.Warn("alignment degraded", zap.String("detail", warning))
	}

	modifiedPairs := alignment.WithStatus(align.StatusModified)
	analyses, err := engine.analyze(ctx, modifiedPairs)
	if err != nil {
		return nil, err
	}

	ruleSet := engine.riskEngine.RuleSet()
	result := &Result{
		RunID: runID,
		Documents: DocumentPair{
			A: describeDocument(textA, clausesA),
			B: describeDocument(textB, clausesB),
		},
		Clauses: ClauseSet{
			Added:     []clause.Clause{},
			Deleted:   []clause.Clause{},
			Modified:  []ModifiedClause{},
			Unchanged: []MatchedClause{},
		},
		Risks:           make([]risk.Finding, 0, len(modifiedPairs)),
		IntegrityAlerts: []integrity.Alert{},
		RuleSet:         ruleSet.Name,
		Versions: Versions{
			Segmenter: clause.SegmenterVersion,
			Alignment: align.Version,
			WordDiff:  worddiff.Version,
			Rules:     ruleSet.Name + "@" + ruleSet.Version,
		},
		Warnings: alignment.Warnings,
	}

	modifiedIndex := 0
	for _, pair := range alignment.Pairs {
		switch pair.Status {
		case align.StatusAdded:
			result.Clauses.Added = append(result.Clauses.Added, *pair.B)
		case align.StatusDeleted:
			result.Clauses.Deleted = append(result.Clauses.Deleted, *pair.A)
		case align.StatusUnchanged:
			result.Clauses.Unchanged = append(result.Clauses.Unchanged, matchedClause(pair))
		case align.StatusModified:
			analysis := analyses[modifiedIndex]
			modifiedIndex++
			result.Clauses.Modified = append(result.Clauses.Modified, ModifiedClause{
				MatchedClause: matchedClause(pair),
				WordDiffs:     analysis.wordDiffs,
			})
			if analysis.wordDiffs.Coarse {
				warning := fmt.Sprintf("word diff of %s too large to align word by word; reported as whole spans", pair.ClauseID())
				logger.Warn("word diff degraded", zap.String("clause_id", pair.ClauseID()))
				result.Warnings = append(result.Warnings, warning)
			}
			result.Risks = append(result.Risks, analysis.finding)
			if analysis.alert != nil {
				result.IntegrityAlerts = append(result.IntegrityAlerts, *analysis.alert)
			}
		}
	}

	result.Stats = computeStats(result.Clauses, result.Risks, result.IntegrityAlerts)
	result.GeneratedAt = engine.now()

	logger.Info("comparison complete",
		zap.Int("modified", result.Stats.ModifiedCount),
		zap.Int("added", result.Stats.AddedCount),
		zap.Int("deleted", result.Stats.DeletedCount),
		zap.Int("high_risk", result.Stats.HighRiskCount),
		zap.Int("integrity_alerts", result.Stats.IntegrityAlertCount))
	return result, nil
}

// analyze runs word diff, risk rules, and the integrity check for every
// modified pair with bounded parallelism. Each pair writes only its own
// slot, so the output order is the input order regardless of which
// goroutine finishes first.
func (engine *Engine) analyze(ctx context.Context, pairs []align.Pair) ([]pairAnalysis, error) {
	analyses := make([]pairAnalysis, len(pairs))
	if len(pairs) == 0 {
		return analyses, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(engine.workers)

	for index, pair := range pairs {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			analyses[index] = engine.analyzePair(pair)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("analyzing modified clauses: %w", err)
	}
	return analyses, nil
}

func (engine *Engine) analyzePair(pair align.Pair) pairAnalysis {
	clauseID := pair.ClauseID()
	before, after := pair.A.Text, pair.B.Text

	finding := engine.riskEngine.Assess(clauseID, before, after)
	finding.Heading = pair.Heading()

	alert := engine.checker.CheckTracked(clauseID, before, after)
	if alert != nil {
		alert.Heading = pair.Heading()
	}

	return pairAnalysis{
		wordDiffs: worddiff.Diff(before, after),
		finding:   finding,
		alert:     alert,
	}
}

func matchedClause(pair align.Pair) MatchedClause {
	matched := MatchedClause{ClauseA: *pair.A, ClauseB: *pair.B, Method: pair.Method}
	if pair.Similarity != nil {
		matched.Similarity = *pair.Similarity
	}
	return matched
}
