// Package risk applies deterministic lexical, numeric, and date rules to
// modified clause pairs and reports risk tags with rationales.
package risk

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultRuleSetName is the name of the built-in rule set.
const DefaultRuleSetName = "default"

// Transition maps a change from one modal verb to another to a rationale.
type Transition struct {
	From      string `yaml:"from" json:"from"`
	To        string `yaml:"to" json:"to"`
	Rationale string `yaml:"rationale" json:"rationale"`
}

// RuleSet is the configuration data of the risk engine: the modal verbs to
// track, the obligation transition table, the number and date patterns, and
// the materiality checks that grade a change without tagging it.
// A RuleSet is copied into an Engine at construction, so later changes to
// the value do not affect engines already built from it.
type RuleSet struct {
	Name          string       `yaml:"name" json:"name"`
	Version       string       `yaml:"version" json:"version"`
	Description   string       `yaml:"description,omitempty" json:"description,omitempty"`
	Modals        []string     `yaml:"modals" json:"modals"`
	Transitions   []Transition `yaml:"transitions" json:"transitions"`
	NumberPattern string       `yaml:"number_pattern" json:"number_pattern"`
	DatePatterns  []string     `yaml:"date_patterns" json:"date_patterns"`
	ValueRules    []ValueRule  `yaml:"value_rules" json:"value_rules"`
	KeyTerms      []KeyTerm    `yaml:"key_terms" json:"key_terms"`
}

const monthNames = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

// capitalizedMonthNames matches month names written as Title or upper case.
// Dates without a year only use this form, so the lower-case modal "may"
// followed by a number stays a modal.
const capitalizedMonthNames = `(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?|` +
	`JAN(?:UARY)?|FEB(?:RUARY)?|MAR(?:CH)?|APR(?:IL)?|MAY|JUNE?|JULY?|AUG(?:UST)?|SEP(?:T(?:EMBER)?)?|OCT(?:OBER)?|NOV(?:EMBER)?|DEC(?:EMBER)?)`

// DefaultRuleSet returns the built-in rule set.
func DefaultRuleSet() RuleSet {
	const (
		tightened  = "Permission tightened to obligation"
		hardened   = "Advisory hardened to obligation"
		recommends = "Permission hardened to recommendation"
		loosened   = "Obligation loosened to permission"
		softened   = "Obligation softened to recommendation"
		relaxed    = "Recommendation loosened to permission"
	)

	return RuleSet{
		Name:        DefaultRuleSetName,
		Version:     "1.0.0",
		Description: "Modal strength shifts, numeric and date changes, and deal-term materiality",
		Modals:      []string{"may", "shall", "should", "must", "will", "can"},
		Transitions: []Transition{
			{From: "may", To: "shall", Rationale: tightened},
			{From: "may", To: "must", Rationale: tightened},
			{From: "may", To: "will", Rationale: tightened},
			{From: "can", To: "shall", Rationale: tightened},
			{From: "can", To: "must", Rationale: tightened},
			{From: "can", To: "will", Rationale: tightened},
			{From: "should", To: "shall", Rationale: hardened},
			{From: "should", To: "must", Rationale: hardened},
			{From: "should", To: "will", Rationale: hardened},
			{From: "may", To: "should", Rationale: recommends},
			{From: "can", To: "should", Rationale: recommends},
			{From: "shall", To: "may", Rationale: loosened},
			{From: "must", To: "may", Rationale: loosened},
			{From: "will", To: "may", Rationale: loosened},
			{From: "shall", To: "can", Rationale: loosened},
			{From: "must", To: "can", Rationale: loosened},
			{From: "will", To: "can", Rationale: loosened},
			{From: "shall", To: "should", Rationale: softened},
			{From: "must", To: "should", Rationale: softened},
			{From: "will", To: "should", Rationale: softened},
			{From: "should", To: "may", Rationale: relaxed},
			{From: "should", To: "can", Rationale: relaxed},
		},
		NumberPattern: `\d+(?:,\d{3})*(?:\.\d+)?`,
		DatePatterns: []string{
			`\b\d{1,2}/\d{1,2}/\d{2,4}\b`,
			`\b\d{4}-\d{2}-\d{2}\b`,
			`(?i)\b` + monthNames + `\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,\s*|\s+)\d{4}\b`,
			`(?i)\b\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthNames + `\.?,?\s+\d{4}\b`,
			`(?i)\b` + monthNames + `\.?\s+\d{4}\b`,
			`\b` + capitalizedMonthNames + `\.?\s+\d{1,2}(?:st|nd|rd|th)?\b`,
			`\b\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?` + capitalizedMonthNames + `\b`,
		},
		ValueRules: defaultValueRules(),
		KeyTerms:   defaultKeyTerms(),
	}
}

// Validate checks the rule set for structural errors.
func (rs RuleSet) Validate() error {
	if strings.TrimSpace(rs.Name) == "" {
		return fmt.Errorf("rule set name is required")
	}
	if len(rs.Modals) == 0 {
		return fmt.Errorf("rule set %q: at least one modal is required", rs.Name)
	}

	modals := make(map[string]bool, len(rs.Modals))
	for _, modal := range rs.Modals {
		normalized := strings.ToLower(strings.TrimSpace(modal))
		if normalized == "" {
			return fmt.Errorf("rule set %q: empty modal", rs.Name)
		}
		modals[normalized] = true
	}

	seen := make(map[[2]string]bool, len(rs.Transitions))
	for index, transition := range rs.Transitions {
		from := strings.ToLower(transition.From)
		to := strings.ToLower(transition.To)
		switch {
		case !modals[from]:
			return fmt.Errorf("rule set %q: transition %d: unknown modal %q", rs.Name, index, transition.From)
		case !modals[to]:
			return fmt.Errorf("rule set %q: transition %d: unknown modal %q", rs.Name, index, transition.To)
		case from == to:
			return fmt.Errorf("rule set %q: transition %d: from and to are both %q", rs.Name, index, from)
		case strings.TrimSpace(transition.Rationale) == "":
			return fmt.Errorf("rule set %q: transition %s→%s has no rationale", rs.Name, from, to)
		case seen[[2]string{from, to}]:
			return fmt.Errorf("rule set %q: duplicate transition %s→%s", rs.Name, from, to)
		}
		seen[[2]string{from, to}] = true
	}

	if rs.NumberPattern == "" {
		return fmt.Errorf("rule set %q: number pattern is required", rs.Name)
	}
	if err := validateValueRules(rs.Name, rs.ValueRules); err != nil {
		return err
	}
	return validateKeyTerms(rs.Name, rs.KeyTerms)
}

// compiledRules is the immutable, compiled form of a RuleSet.
type compiledRules struct {
	modalPattern  *regexp.Regexp
	transitions   map[[2]string]string
	numberPattern *regexp.Regexp
	datePatterns  []*regexp.Regexp
	valueRules    []compiledValueRule
	keyTerms      []compiledKeyTerm
}

// compile validates and compiles the rule set.
func (rs RuleSet) compile() (*compiledRules, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}

	quoted := make([]string, len(rs.Modals))
	for index, modal := range rs.Modals {
		quoted[index] = regexp.QuoteMeta(strings.ToLower(strings.TrimSpace(modal)))
	}
	modalPattern, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("rule set %q: compiling modal pattern: %w", rs.Name, err)
	}

	numberPattern, err := regexp.Compile(rs.NumberPattern)
	if err != nil {
		return nil, fmt.Errorf("rule set %q: compiling number pattern: %w", rs.Name, err)
	}

	datePatterns := make([]*regexp.Regexp, 0, len(rs.DatePatterns))
	for index, pattern := range rs.DatePatterns {
		compiled, compileErr := regexp.Compile(pattern)
		if compileErr != nil {
			return nil, fmt.Errorf("rule set %q: compiling date pattern %d: %w", rs.Name, index, compileErr)
		}
		datePatterns = append(datePatterns, compiled)
	}

	valueRules, err := compileValueRules(rs.Name, rs.ValueRules)
	if err != nil {
		return nil, err
	}
	keyTerms, err := compileKeyTerms(rs.Name, rs.KeyTerms)
	if err != nil {
		return nil, err
	}

	transitions := make(map[[2]string]string, len(rs.Transitions))
	for _, transition := range rs.Transitions {
		key := [2]string{strings.ToLower(transition.From), strings.ToLower(transition.To)}
		transitions[key] = transition.Rationale
	}

	return &compiledRules{
		modalPattern:  modalPattern,
		transitions:   transitions,
		numberPattern: numberPattern,
		datePatterns:  datePatterns,
		valueRules:    valueRules,
		keyTerms:      keyTerms,
	}, nil
}

// clone returns a deep copy of the rule set.
func (rs RuleSet) clone() RuleSet {
	copied := rs
	copied.Modals = append([]string(nil), rs.Modals...)
	copied.Transitions = append([]Transition(nil), rs.Transitions...)
	copied.DatePatterns = append([]string(nil), rs.DatePatterns...)
	copied.ValueRules = append([]ValueRule(nil), rs.ValueRules...)
	copied.KeyTerms = append([]KeyTerm(nil), rs.KeyTerms...)
	return copied
}
