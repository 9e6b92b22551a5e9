package risk

import (
	"fmt"
	"strings"
)

// Risk tags, listed in evaluation order.
const (
	TagObligationShift = "obligation_shift"
	TagNumericChange   = "numeric_change"
	TagDateChange      = "date_change"
)

// missingValue stands in for the absent side of a delta.
const missingValue = "(none)"

// ObligationShift is one matched modal transition.
type ObligationShift struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// Delta is one before→after value change.
type Delta struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// String renders the delta as "30→45".
func (d Delta) String() string {
	before, after := d.Before, d.After
	if before == "" {
		before = missingValue
	}
	if after == "" {
		after = missingValue
	}
	return before + "→" + after
}

// ValueChange reports the values extracted from both sides of a clause.
type ValueChange struct {
	Before  []string `json:"before"`
	After   []string `json:"after"`
	Changed bool     `json:"changed"`
	Deltas  []Delta  `json:"deltas,omitempty"`
}

// Finding is the risk assessment of one modified clause pair.
type Finding struct {
	ClauseID         string            `json:"clause_id"`
	Heading          string            `json:"heading,omitempty"`
	RiskTags         []string          `json:"risk_tags"`
	Rationale        map[string]string `json:"rationale"`
	ObligationShifts []ObligationShift `json:"obligation_shifts"`
	Numeric          ValueChange       `json:"numeric"`
	Dates            ValueChange       `json:"dates"`
	Materiality      []Materiality     `json:"materiality"`
	Severity         Severity          `json:"severity"`
}

// HasTag reports whether the finding carries tag.
func (f Finding) HasTag(tag string) bool {
	for _, candidate := range f.RiskTags {
		if candidate == tag {
			return true
		}
	}
	return false
}

// IsHighRisk reports whether any rule fired.
func (f Finding) IsHighRisk() bool {
	return len(f.RiskTags) > 0
}

// Engine evaluates a compiled rule set. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	ruleSet RuleSet
	rules   *compiledRules
}

// NewEngine validates and compiles ruleSet into an Engine.
func NewEngine(ruleSet RuleSet) (*Engine, error) {
	owned := ruleSet.clone()
	rules, err := owned.compile()
	if err != nil {
		return nil, err
	}
	return &Engine{ruleSet: owned, rules: rules}, nil
}

// NewDefaultEngine returns an Engine for DefaultRuleSet.
func NewDefaultEngine() *Engine {
	engine, err := NewEngine(DefaultRuleSet())
	if err != nil {
		panic(fmt.Sprintf("risk: default rule set is invalid: %v", err))
	}
	return engine
}

// RuleSet returns a copy of the engine's rule set.
func (engine *Engine) RuleSet() RuleSet {
	return engine.ruleSet.clone()
}

// Assess applies every rule to the before and after text of a modified
// clause. Rules are independent; tags are always ordered obligation shift,
// numeric change, date change. Any tag makes the finding high severity;
// otherwise the most severe materiality entry sets it.
func (engine *Engine) Assess(clauseID, before, after string) Finding {
	finding := Finding{
		ClauseID:         clauseID,
		RiskTags:         []string{},
		Rationale:        map[string]string{},
		ObligationShifts: []ObligationShift{},
	}

	beforeDates, beforeDateSpans := engine.rules.dateTokens(before)
	afterDates, afterDateSpans := engine.rules.dateTokens(after)
	maskedBefore := mask(before, beforeDateSpans)
	maskedAfter := mask(after, afterDateSpans)

	finding.ObligationShifts = engine.obligationShifts(maskedBefore, maskedAfter)
	if len(finding.ObligationShifts) > 0 {
		finding.RiskTags = append(finding.RiskTags, TagObligationShift)
		finding.Rationale[TagObligationShift] = shiftRationale(finding.ObligationShifts)
	}

	finding.Numeric = numericChange(engine.rules.numbers(maskedBefore), engine.rules.numbers(maskedAfter))
	if finding.Numeric.Changed {
		finding.RiskTags = append(finding.RiskTags, TagNumericChange)
		finding.Rationale[TagNumericChange] = "Numeric values changed: " + joinDeltas(finding.Numeric.Deltas)
	}

	finding.Dates = dateChange(beforeDates, afterDates)
	if finding.Dates.Changed {
		finding.RiskTags = append(finding.RiskTags, TagDateChange)
		finding.Rationale[TagDateChange] = "Dates changed: " + joinDeltas(finding.Dates.Deltas)
	}

	finding.Materiality = engine.rules.materiality(before, after)
	finding.Severity = severityOf(finding)
	return finding
}

func severityOf(finding Finding) Severity {
	if finding.IsHighRisk() {
		return SeverityHigh
	}
	severity := SeverityNone
	for _, entry := range finding.Materiality {
		severity = max(severity, entry.Severity)
	}
	return severity
}

// obligationShifts compares modal usage. A modal whose count dropped is
// paired with each modal whose count rose, and every pair found in the
// transition table is reported. Modals used equally on both sides never
// produce a shift.
func (engine *Engine) obligationShifts(before, after string) []ObligationShift {
	beforeModals := engine.rules.modals(before)
	afterModals := engine.rules.modals(after)
	if len(beforeModals) == 0 || len(afterModals) == 0 {
		return []ObligationShift{}
	}

	beforeCounts := countValues(beforeModals, identity)
	afterCounts := countValues(afterModals, identity)

	var dropped, introduced []string
	for _, modal := range uniqueValues(beforeModals, identity) {
		if beforeCounts[modal] > afterCounts[modal] {
			dropped = append(dropped, modal)
		}
	}
	for _, modal := range uniqueValues(afterModals, identity) {
		if afterCounts[modal] > beforeCounts[modal] {
			introduced = append(introduced, modal)
		}
	}

	shifts := []ObligationShift{}
	for _, from := range dropped {
		for _, to := range introduced {
			if reason, ok := engine.rules.transitions[[2]string{from, to}]; ok {
				shifts = append(shifts, ObligationShift{From: from, To: to, Reason: reason})
			}
		}
	}
	return shifts
}

func shiftRationale(shifts []ObligationShift) string {
	var reasons []string
	seen := make(map[string]bool)
	for _, shift := range shifts {
		if !seen[shift.Reason] {
			seen[shift.Reason] = true
			reasons = append(reasons, shift.Reason)
		}
	}
	return strings.Join(reasons, "; ")
}

// numericChange compares ordered numeric sequences by value and count.
func numericChange(before, after []string) ValueChange {
	change := ValueChange{Before: nonNil(before), After: nonNil(after)}

	if len(before) == len(after) {
		for index := range before {
			if numericValue(before[index]) != numericValue(after[index]) {
				change.Deltas = append(change.Deltas, Delta{Before: before[index], After: after[index]})
			}
		}
	} else {
		change.Deltas = multisetDeltas(before, after, numericValue)
	}

	change.Changed = len(change.Deltas) > 0
	return change
}

// dateChange compares date tokens as sets.
func dateChange(before, after []string) ValueChange {
	change := ValueChange{Before: nonNil(before), After: nonNil(after)}
	change.Deltas = multisetDeltas(uniqueValues(before, dateValue), uniqueValues(after, dateValue), dateValue)
	change.Changed = len(change.Deltas) > 0
	return change
}

// multisetDeltas pairs the values only present (or present more often) in
// before with those only present in after, in order of appearance.
func multisetDeltas(before, after []string, normalize func(string) string) []Delta {
	afterCounts := countValues(after, normalize)
	var removed []string
	for _, value := range before {
		key := normalize(value)
		if afterCounts[key] > 0 {
			afterCounts[key]--
			continue
		}
		removed = append(removed, value)
	}

	beforeCounts := countValues(before, normalize)
	var added []string
	for _, value := range after {
		key := normalize(value)
		if beforeCounts[key] > 0 {
			beforeCounts[key]--
			continue
		}
		added = append(added, value)
	}

	count := max(len(removed), len(added))
	deltas := make([]Delta, 0, count)
	for index := 0; index < count; index++ {
		var delta Delta
		if index < len(removed) {
			delta.Before = removed[index]
		}
		if index < len(added) {
			delta.After = added[index]
		}
		deltas = append(deltas, delta)
	}
	return deltas
}

func joinDeltas(deltas []Delta) string {
	rendered := make([]string, len(deltas))
	for index, delta := range deltas {
		rendered[index] = delta.String()
	}
	return strings.Join(rendered, ", ")
}

func countValues(values []string, normalize func(string) string) map[string]int {
	counts := make(map[string]int, len(values))
	for _, value := range values {
		counts[normalize(value)]++
	}
	return counts
}

// uniqueValues keeps the first occurrence of each normalized value.
func uniqueValues(values []string, normalize func(string) string) []string {
	seen := make(map[string]bool, len(values))
	var unique []string
	for _, value := range values {
		key := normalize(value)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, value)
	}
	return unique
}

func identity(value string) string {
	return value
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
