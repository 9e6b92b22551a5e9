package risk

import (
	"reflect"
	"strings"
	"testing"
)

func TestAssess(t *testing.T) {
	engine := NewDefaultEngine()

	tests := []struct {
		name          string
		before        string
		after         string
		wantTags      []string
		wantRationale map[string]string
	}{
		{
			name:     "permission tightened",
			before:   "Customer may terminate this Agreement on notice.",
			after:    "Customer shall terminate this Agreement on notice.",
			wantTags: []string{TagObligationShift},
			wantRationale: map[string]string{
				TagObligationShift: "Permission tightened to obligation",
			},
		},
		{
			name:     "obligation loosened",
			before:   "Vendor shall provide support.",
			after:    "Vendor may provide support.",
			wantTags: []string{TagObligationShift},
			wantRationale: map[string]string{
				TagObligationShift: "Obligation loosened to permission",
			},
		},
		{
			name:     "obligation softened",
			before:   "Vendor must notify Customer.",
			after:    "Vendor should notify Customer.",
			wantTags: []string{TagObligationShift},
			wantRationale: map[string]string{
				TagObligationShift: "Obligation softened to recommendation",
			},
		},
		{
			name:     "number changed",
			before:   "Customer shall pay within 30 days.",
			after:    "Customer shall pay within 45 days.",
			wantTags: []string{TagNumericChange},
			wantRationale: map[string]string{
				TagNumericChange: "Numeric values changed: 30→45",
			},
		},
		{
			name:          "number formatting only",
			before:        "A fee of 1,000 applies.",
			after:         "A fee of 1000.00 applies.",
			wantTags:      []string{},
			wantRationale: map[string]string{},
		},
		{
			name:     "number removed",
			before:   "Fees of 100 and 200 apply.",
			after:    "Fees of 100 apply.",
			wantTags: []string{TagNumericChange},
			wantRationale: map[string]string{
				TagNumericChange: "Numeric values changed: 200→(none)",
			},
		},
		{
			name:     "written date changed",
			before:   "This Agreement expires on January 1, 2024.",
			after:    "This Agreement expires on March 1, 2025.",
			wantTags: []string{TagDateChange},
			wantRationale: map[string]string{
				TagDateChange: "Dates changed: January 1, 2024→March 1, 2025",
			},
		},
		{
			name:     "month named may is not a modal",
			before:   "Payment is due May 1, 2025.",
			after:    "Payment is due June 1, 2025.",
			wantTags: []string{TagDateChange},
			wantRationale: map[string]string{
				TagDateChange: "Dates changed: May 1, 2025→June 1, 2025",
			},
		},
		{
			name:     "month and day without a year",
			before:   "Payment is due on May 1.",
			after:    "Payment is due on June 1.",
			wantTags: []string{TagDateChange},
			wantRationale: map[string]string{
				TagDateChange: "Dates changed: May 1→June 1",
			},
		},
		{
			name:     "month may before a day is not a modal",
			before:   "Orders issued on May 1 and the Vendor will deliver.",
			after:    "Orders issued on June 1 and the Vendor shall deliver.",
			wantTags: []string{TagDateChange},
			wantRationale: map[string]string{
				TagDateChange: "Dates changed: May 1→June 1",
			},
		},
		{
			name:     "day before month",
			before:   "Renewal notice is due by the 1st of March.",
			after:    "Renewal notice is due by the 15th of March.",
			wantTags: []string{TagDateChange},
			wantRationale: map[string]string{
				TagDateChange: "Dates changed: 1st of March→15th of March",
			},
		},
		{
			name:     "iso date changed",
			before:   "Delivery by 2024-01-31.",
			after:    "Delivery by 2024-02-29.",
			wantTags: []string{TagDateChange},
			wantRationale: map[string]string{
				TagDateChange: "Dates changed: 2024-01-31→2024-02-29",
			},
		},
		{
			name:          "repeated date compared as set",
			before:        "Start on 2024-01-31 and invoice on 2024-01-31.",
			after:         "Start and invoice on 2024-01-31.",
			wantTags:      []string{},
			wantRationale: map[string]string{},
		},
		{
			name:     "combined tags in fixed order",
			before:   "Customer may pay within 30 days after June 1, 2024.",
			after:    "Customer must pay within 10 days after July 1, 2024.",
			wantTags: []string{TagObligationShift, TagNumericChange, TagDateChange},
			wantRationale: map[string]string{
				TagObligationShift: "Permission tightened to obligation",
				TagNumericChange:   "Numeric values changed: 30→10",
				TagDateChange:      "Dates changed: June 1, 2024→July 1, 2024",
			},
		},
		{
			name:          "reordered modals",
			before:        "Vendor may audit and Customer shall cooperate.",
			after:         "Customer shall cooperate and Vendor may audit.",
			wantTags:      []string{},
			wantRationale: map[string]string{},
		},
		{
			name:          "wording only",
			before:        "The vendor shall deliver goods.",
			after:         "The supplier shall deliver goods.",
			wantTags:      []string{},
			wantRationale: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finding := engine.Assess("clause-1", tt.before, tt.after)

			if finding.ClauseID != "clause-1" {
				t.Errorf("ClauseID = %q, want clause-1", finding.ClauseID)
			}
			if !reflect.DeepEqual(finding.RiskTags, tt.wantTags) {
				t.Errorf("RiskTags = %v, want %v", finding.RiskTags, tt.wantTags)
			}
			if !reflect.DeepEqual(finding.Rationale, tt.wantRationale) {
				t.Errorf("Rationale = %v, want %v", finding.Rationale, tt.wantRationale)
			}
			if finding.IsHighRisk() != (len(tt.wantTags) > 0) {
				t.Errorf("IsHighRisk() = %v, want %v", finding.IsHighRisk(), len(tt.wantTags) > 0)
			}
		})
	}
}

func TestAssessMateriality(t *testing.T) {
	engine := NewDefaultEngine()

	tests := []struct {
		name         string
		before       string
		after        string
		wantRules    []string
		wantSeverity Severity
	}{
		{
			name:         "currency amount",
			before:       "Fees are $1,000 per month.",
			after:        "Fees are $1,500 per month.",
			wantRules:    []string{"currency"},
			wantSeverity: SeverityHigh,
		},
		{
			name:         "currency grouping only",
			before:       "Fees are $1,000 per month.",
			after:        "Fees are $1000 per month in arrears.",
			wantRules:    []string{},
			wantSeverity: SeverityNone,
		},
		{
			name:         "duration window",
			before:       "Notice must be given 30 days in advance.",
			after:        "Notice must be given 30 business days in advance.",
			wantRules:    []string{"duration"},
			wantSeverity: SeverityMedium,
		},
		{
			name:         "percentage",
			before:       "Uptime of 99.5% is committed.",
			after:        "Uptime of 99.9% is committed.",
			wantRules:    []string{"percentage"},
			wantSeverity: SeverityHigh,
		},
		{
			name:         "key term",
			before:       "Either party may seek termination for breach.",
			after:        "Either party may seek termination for material breach.",
			wantRules:    []string{"key_term:termination"},
			wantSeverity: SeverityMedium,
		},
		{
			name:         "key term category reported once",
			before:       "Termination rights: either party may terminate.",
			after:        "Termination rights: either party may terminate on notice.",
			wantRules:    []string{"key_term:termination"},
			wantSeverity: SeverityMedium,
		},
		{
			name:         "key term with suffix",
			before:       "Affiliates of Customer may use the Services.",
			after:        "Affiliates of Customer may access the Services.",
			wantRules:    []string{"key_term:affiliate"},
			wantSeverity: SeverityMedium,
		},
		{
			name:         "nothing material",
			before:       "The vendor shall deliver goods.",
			after:        "The supplier shall deliver goods.",
			wantRules:    []string{},
			wantSeverity: SeverityNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finding := engine.Assess("c", tt.before, tt.after)

			rules := []string{}
			for _, entry := range finding.Materiality {
				rules = append(rules, entry.Rule)
			}
			if !reflect.DeepEqual(rules, tt.wantRules) {
				t.Errorf("materiality rules = %v, want %v", rules, tt.wantRules)
			}
			if finding.Severity != tt.wantSeverity {
				t.Errorf("Severity = %s, want %s", finding.Severity, tt.wantSeverity)
			}
		})
	}
}

func TestAssessMaterialityDetails(t *testing.T) {
	finding := NewDefaultEngine().Assess("c", "A deposit of $500 is due.", "A deposit of $750 is due.")

	want := Materiality{
		Rule:      "currency",
		Category:  "Numeric Threshold",
		Severity:  SeverityHigh,
		Rationale: "Currency amount changed",
		Before:    []string{"$500"},
		After:     []string{"$750"},
	}
	if len(finding.Materiality) != 1 || !reflect.DeepEqual(finding.Materiality[0], want) {
		t.Errorf("Materiality = %+v, want [%+v]", finding.Materiality, want)
	}
}

func TestAssessCustomKeyTermSeverity(t *testing.T) {
	ruleSet := DefaultRuleSet()
	ruleSet.Name = "escrow"
	ruleSet.ValueRules = nil
	ruleSet.KeyTerms = []KeyTerm{{Term: "escrow agent", Category: "Escrow", Severity: "high"}}
	engine, err := NewEngine(ruleSet)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	finding := engine.Assess("c", "Funds are held by the Escrow  Agent.", "Funds are held by the Escrow Agent in trust.")
	if len(finding.Materiality) != 1 || finding.Materiality[0].Category != "Escrow" {
		t.Fatalf("Materiality = %+v, want one Escrow entry", finding.Materiality)
	}
	if finding.Severity != SeverityHigh {
		t.Errorf("Severity = %s, want high", finding.Severity)
	}
}

func TestSeverity(t *testing.T) {
	for _, name := range []string{"low", "Medium", " HIGH "} {
		severity, err := ParseSeverity(name)
		if err != nil {
			t.Errorf("ParseSeverity(%q) error = %v", name, err)
			continue
		}
		if !strings.EqualFold(severity.String(), strings.TrimSpace(name)) {
			t.Errorf("ParseSeverity(%q) = %s", name, severity)
		}
	}
	if _, err := ParseSeverity("urgent"); err == nil {
		t.Error("ParseSeverity(urgent) should return error")
	}

	data, err := SeverityMedium.MarshalJSON()
	if err != nil || string(data) != `"medium"` {
		t.Errorf("MarshalJSON() = %s, %v", data, err)
	}
}

func TestAssessReportsShiftDetails(t *testing.T) {
	finding := NewDefaultEngine().Assess("c", "Customer may pay.", "Customer shall pay.")

	want := []ObligationShift{{From: "may", To: "shall", Reason: "Permission tightened to obligation"}}
	if !reflect.DeepEqual(finding.ObligationShifts, want) {
		t.Errorf("ObligationShifts = %+v, want %+v", finding.ObligationShifts, want)
	}
	if !finding.HasTag(TagObligationShift) || finding.HasTag(TagDateChange) {
		t.Errorf("HasTag() inconsistent with RiskTags %v", finding.RiskTags)
	}
}

func TestAssessMasksDatesFromNumbers(t *testing.T) {
	finding := NewDefaultEngine().Assess("c", "Ends on 12/31/2024.", "Ends on 06/30/2025.")

	if finding.Numeric.Changed {
		t.Errorf("numeric change reported for date-only edit: %+v", finding.Numeric)
	}
	if len(finding.Numeric.Before) != 0 {
		t.Errorf("Numeric.Before = %v, want none", finding.Numeric.Before)
	}
	if !finding.Dates.Changed {
		t.Error("Dates.Changed = false, want true")
	}
}

func TestAssessIsCaseInsensitiveForModals(t *testing.T) {
	finding := NewDefaultEngine().Assess("c", "Customer MAY pay.", "Customer Shall pay.")

	if !finding.HasTag(TagObligationShift) {
		t.Fatalf("RiskTags = %v, want obligation shift", finding.RiskTags)
	}
	if finding.ObligationShifts[0].From != "may" || finding.ObligationShifts[0].To != "shall" {
		t.Errorf("shift = %+v, want may→shall", finding.ObligationShifts[0])
	}
}

func TestAssessCustomRuleSet(t *testing.T) {
	engine, err := NewEngine(RuleSet{
		Name:    "custom",
		Version: "1.0.0",
		Modals:  []string{"may", "shall"},
		Transitions: []Transition{
			{From: "may", To: "shall", Rationale: "Custom tightening"},
		},
		NumberPattern: `\d+`,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	finding := engine.Assess("c", "Buyer may inspect before 2024.", "Buyer shall inspect before 2025.")

	wantTags := []string{TagObligationShift, TagNumericChange}
	if !reflect.DeepEqual(finding.RiskTags, wantTags) {
		t.Errorf("RiskTags = %v, want %v", finding.RiskTags, wantTags)
	}
	if got := finding.Rationale[TagObligationShift]; got != "Custom tightening" {
		t.Errorf("rationale = %q, want Custom tightening", got)
	}

	// "must" is not a tracked modal in this rule set.
	finding = engine.Assess("c", "Buyer may inspect.", "Buyer must inspect.")
	if finding.IsHighRisk() {
		t.Errorf("RiskTags = %v, want none", finding.RiskTags)
	}
}

func TestEngineOwnsRuleSet(t *testing.T) {
	ruleSet := DefaultRuleSet()
	engine, err := NewEngine(ruleSet)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	ruleSet.Transitions[0].Rationale = "changed by caller"
	copied := engine.RuleSet()
	copied.Modals[0] = "changed by reader"

	if got := engine.RuleSet().Transitions[0].Rationale; got == "changed by caller" {
		t.Error("engine rule set changed after caller mutation")
	}
	if got := engine.RuleSet().Modals[0]; got == "changed by reader" {
		t.Error("engine rule set changed after RuleSet() copy mutation")
	}
}

func TestRuleSetValidate(t *testing.T) {
	valid := func() RuleSet {
		return RuleSet{
			Name:          "test",
			Version:       "1.0.0",
			Modals:        []string{"may", "shall"},
			Transitions:   []Transition{{From: "may", To: "shall", Rationale: "tightened"}},
			NumberPattern: `\d+`,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*RuleSet)
		wantErr string
	}{
		{"valid", func(rs *RuleSet) {}, ""},
		{"missing name", func(rs *RuleSet) { rs.Name = " " }, "name is required"},
		{"no modals", func(rs *RuleSet) { rs.Modals = nil }, "at least one modal"},
		{"empty modal", func(rs *RuleSet) { rs.Modals = append(rs.Modals, "") }, "empty modal"},
		{"unknown from", func(rs *RuleSet) { rs.Transitions[0].From = "could" }, "unknown modal"},
		{"self transition", func(rs *RuleSet) { rs.Transitions[0].To = "may" }, "both"},
		{"missing rationale", func(rs *RuleSet) { rs.Transitions[0].Rationale = "" }, "no rationale"},
		{"duplicate transition", func(rs *RuleSet) { rs.Transitions = append(rs.Transitions, rs.Transitions[0]) }, "duplicate"},
		{"missing number pattern", func(rs *RuleSet) { rs.NumberPattern = "" }, "number pattern"},
		{"value rule without pattern", func(rs *RuleSet) {
			rs.ValueRules = []ValueRule{{Name: "fee", Category: "Fees", Severity: "high", Rationale: "Fee changed"}}
		}, "pattern is required"},
		{"value rule with unknown severity", func(rs *RuleSet) {
			rs.ValueRules = []ValueRule{{Name: "fee", Category: "Fees", Pattern: `\d+`, Severity: "urgent", Rationale: "Fee changed"}}
		}, "unknown severity"},
		{"duplicate value rule", func(rs *RuleSet) {
			rule := ValueRule{Name: "fee", Category: "Fees", Pattern: `\d+`, Severity: "low", Rationale: "Fee changed"}
			rs.ValueRules = []ValueRule{rule, rule}
		}, "duplicate value rule"},
		{"key term without category", func(rs *RuleSet) { rs.KeyTerms = []KeyTerm{{Term: "escrow"}} }, "category is required"},
		{"key term with unknown severity", func(rs *RuleSet) {
			rs.KeyTerms = []KeyTerm{{Term: "escrow", Category: "Escrow", Severity: "severe"}}
		}, "unknown severity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ruleSet := valid()
			tt.mutate(&ruleSet)

			err := ruleSet.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewEngineRejectsBadPatterns(t *testing.T) {
	ruleSet := DefaultRuleSet()
	ruleSet.NumberPattern = `(`
	if _, err := NewEngine(ruleSet); err == nil {
		t.Error("NewEngine() with invalid number pattern should return error")
	}

	ruleSet = DefaultRuleSet()
	ruleSet.DatePatterns = append(ruleSet.DatePatterns, `[`)
	if _, err := NewEngine(ruleSet); err == nil {
		t.Error("NewEngine() with invalid date pattern should return error")
	}

	ruleSet = DefaultRuleSet()
	ruleSet.ValueRules[0].Pattern = `(`
	if _, err := NewEngine(ruleSet); err == nil {
		t.Error("NewEngine() with invalid value rule pattern should return error")
	}
}

func TestDefaultRuleSetIsValid(t *testing.T) {
	if err := DefaultRuleSet().Validate(); err != nil {
		t.Fatalf("DefaultRuleSet().Validate() error = %v", err)
	}
}

func TestDeltaString(t *testing.T) {
	tests := []struct {
		delta Delta
		want  string
	}{
		{Delta{Before: "30", After: "45"}, "30→45"},
		{Delta{Before: "30"}, "30→(none)"},
		{Delta{After: "45"}, "(none)→45"},
	}

	for _, tt := range tests {
		if got := tt.delta.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestNumericValue(t *testing.T) {
	tests := map[string]string{
		"1,000":    "1000",
		"1000.00":  "1000",
		"2.50":     "2.5",
		"007":      "7",
		"1,234.5":  "1234.5",
		"12,34,56": "123456",
	}

	for token, want := range tests {
		if got := numericValue(token); got != want {
			t.Errorf("numericValue(%q) = %q, want %q", token, got, want)
		}
	}
}
