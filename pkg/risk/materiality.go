package risk

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Severity ranks how much attention a finding deserves.
type Severity int

const (
	// SeverityNone marks a finding on which no rule fired.
	SeverityNone Severity = iota
	// SeverityLow marks a change worth a glance.
	SeverityLow
	// SeverityMedium marks a change in sensitive language or a secondary threshold.
	SeverityMedium
	// SeverityHigh marks a change of duty, amount, or date.
	SeverityHigh
)

// String returns the lower-case name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ParseSeverity parses "low", "medium", or "high", ignoring case.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	}
	return SeverityNone, fmt.Errorf("unknown severity %q", name)
}

// ValueRule flags a modified clause whose values for one pattern differ,
// such as currency amounts or notice periods.
type ValueRule struct {
	Name      string `yaml:"name" json:"name"`
	Category  string `yaml:"category" json:"category"`
	Pattern   string `yaml:"pattern" json:"pattern"`
	Severity  string `yaml:"severity" json:"severity"`
	Rationale string `yaml:"rationale" json:"rationale"`
}

// KeyTerm flags any edit to a clause that uses a sensitive term. Severity
// defaults to medium.
type KeyTerm struct {
	Term     string `yaml:"term" json:"term"`
	Category string `yaml:"category" json:"category"`
	Severity string `yaml:"severity,omitempty" json:"severity,omitempty"`
}

// Materiality is one fired value or key-term rule.
type Materiality struct {
	Rule      string   `json:"rule"`
	Category  string   `json:"category"`
	Severity  Severity `json:"severity"`
	Rationale string   `json:"rationale"`
	Before    []string `json:"before,omitempty"`
	After     []string `json:"after,omitempty"`
}

// defaultValueRules are the currency, percentage, and duration checks.
func defaultValueRules() []ValueRule {
	return []ValueRule{
		{
			Name:      "currency",
			Category:  "Numeric Threshold",
			Pattern:   `(?:[$€£]\s?|\b(?:USD|EUR|GBP)\s?)\d[\d,]*(?:\.\d+)?`,
			Severity:  "high",
			Rationale: "Currency amount changed",
		},
		{
			Name:      "percentage",
			Category:  "Numeric Threshold",
			Pattern:   `\b\d+(?:\.\d+)?\s?(?:%|(?i:percent)\b)`,
			Severity:  "medium",
			Rationale: "Percentage threshold changed",
		},
		{
			Name:      "duration",
			Category:  "Time Period",
			Pattern:   `(?i)\b\d+\s+(?:business\s+|calendar\s+)?(?:days?|weeks?|months?|years?)\b`,
			Severity:  "medium",
			Rationale: "Duration window changed",
		},
	}
}

// defaultKeyTerms are deal terms whose wording is reviewed on any edit.
func defaultKeyTerms() []KeyTerm {
	return []KeyTerm{
		{Term: "material adverse effect", Category: "MAE"},
		{Term: "MAE", Category: "MAE"},
		{Term: "closing conditions", Category: "Closing Conditions"},
		{Term: "termination", Category: "Termination Rights"},
		{Term: "terminate", Category: "Termination Rights"},
		{Term: "drop-dead", Category: "Termination Rights"},
		{Term: "sandbagging", Category: "Non-reliance/Sandbagging"},
		{Term: "non-reliance", Category: "Non-reliance/Sandbagging"},
		{Term: "disclosure schedule", Category: "Disclosure Schedule"},
		{Term: "affiliate", Category: "Definitions"},
		{Term: "knowledge", Category: "Definitions"},
		{Term: "permitted liens", Category: "Definitions"},
	}
}

func validateValueRules(ruleSetName string, rules []ValueRule) error {
	seen := make(map[string]bool, len(rules))
	for index, rule := range rules {
		switch {
		case strings.TrimSpace(rule.Name) == "":
			return fmt.Errorf("rule set %q: value rule %d: name is required", ruleSetName, index)
		case seen[rule.Name]:
			return fmt.Errorf("rule set %q: duplicate value rule %q", ruleSetName, rule.Name)
		case rule.Pattern == "":
			return fmt.Errorf("rule set %q: value rule %q: pattern is required", ruleSetName, rule.Name)
		case strings.TrimSpace(rule.Category) == "":
			return fmt.Errorf("rule set %q: value rule %q: category is required", ruleSetName, rule.Name)
		case strings.TrimSpace(rule.Rationale) == "":
			return fmt.Errorf("rule set %q: value rule %q has no rationale", ruleSetName, rule.Name)
		}
		if _, err := ParseSeverity(rule.Severity); err != nil {
			return fmt.Errorf("rule set %q: value rule %q: %w", ruleSetName, rule.Name, err)
		}
		seen[rule.Name] = true
	}
	return nil
}

func validateKeyTerms(ruleSetName string, terms []KeyTerm) error {
	for index, term := range terms {
		if strings.TrimSpace(term.Term) == "" {
			return fmt.Errorf("rule set %q: key term %d: term is required", ruleSetName, index)
		}
		if strings.TrimSpace(term.Category) == "" {
			return fmt.Errorf("rule set %q: key term %q: category is required", ruleSetName, term.Term)
		}
		if term.Severity != "" {
			if _, err := ParseSeverity(term.Severity); err != nil {
				return fmt.Errorf("rule set %q: key term %q: %w", ruleSetName, term.Term, err)
			}
		}
	}
	return nil
}

// compiledValueRule is a ValueRule ready for matching.
type compiledValueRule struct {
	rule     ValueRule
	severity Severity
	pattern  *regexp.Regexp
}

// compiledKeyTerm is a KeyTerm ready for matching.
type compiledKeyTerm struct {
	term     KeyTerm
	severity Severity
	pattern  *regexp.Regexp
}

func compileValueRules(ruleSetName string, rules []ValueRule) ([]compiledValueRule, error) {
	compiled := make([]compiledValueRule, 0, len(rules))
	for _, rule := range rules {
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule set %q: compiling value rule %q: %w", ruleSetName, rule.Name, err)
		}
		severity, _ := ParseSeverity(rule.Severity)
		compiled = append(compiled, compiledValueRule{rule: rule, severity: severity, pattern: pattern})
	}
	return compiled, nil
}

// compileKeyTerms builds one case-insensitive whole-word pattern per term.
// Inner spaces match any whitespace and the term may carry a suffix, so
// "affiliate" also matches "Affiliates".
func compileKeyTerms(ruleSetName string, terms []KeyTerm) ([]compiledKeyTerm, error) {
	compiled := make([]compiledKeyTerm, 0, len(terms))
	for _, term := range terms {
		words := strings.Fields(term.Term)
		for index, word := range words {
			words[index] = regexp.QuoteMeta(word)
		}
		pattern, err := regexp.Compile(`(?i)\b` + strings.Join(words, `\s+`) + `\w*`)
		if err != nil {
			return nil, fmt.Errorf("rule set %q: compiling key term %q: %w", ruleSetName, term.Term, err)
		}

		severity := SeverityMedium
		if term.Severity != "" {
			severity, _ = ParseSeverity(term.Severity)
		}
		compiled = append(compiled, compiledKeyTerm{term: term, severity: severity, pattern: pattern})
	}
	return compiled, nil
}

// materiality applies the value rules and key terms to a modified clause.
// Value rules compare the ordered sequence of matches with spacing and
// digit grouping ignored. Each key-term category is reported once.
func (rules *compiledRules) materiality(before, after string) []Materiality {
	findings := []Materiality{}
	if before == after {
		return findings
	}

	for _, valueRule := range rules.valueRules {
		beforeValues := valueRule.pattern.FindAllString(before, -1)
		afterValues := valueRule.pattern.FindAllString(after, -1)
		if sameValues(beforeValues, afterValues) {
			continue
		}
		findings = append(findings, Materiality{
			Rule:      valueRule.rule.Name,
			Category:  valueRule.rule.Category,
			Severity:  valueRule.severity,
			Rationale: valueRule.rule.Rationale,
			Before:    beforeValues,
			After:     afterValues,
		})
	}

	reported := make(map[string]bool)
	for _, keyTerm := range rules.keyTerms {
		category := keyTerm.term.Category
		if reported[category] {
			continue
		}
		if !keyTerm.pattern.MatchString(before) && !keyTerm.pattern.MatchString(after) {
			continue
		}
		reported[category] = true
		findings = append(findings, Materiality{
			Rule:      "key_term:" + keyTerm.term.Term,
			Category:  category,
			Severity:  keyTerm.severity,
			Rationale: fmt.Sprintf("Change detected in %s language", category),
		})
	}
	return findings
}

func sameValues(before, after []string) bool {
	if len(before) != len(after) {
		return false
	}
	for index := range before {
		if normalizeAmount(before[index]) != normalizeAmount(after[index]) {
			return false
		}
	}
	return true
}

// normalizeAmount drops spacing and digit grouping, so "$1,000" and
// "$ 1000" compare equal.
func normalizeAmount(value string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", ",", "", " ", "").Replace(value))
}
