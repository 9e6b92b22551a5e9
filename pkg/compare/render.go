package compare

import (
	"fmt"
	"strings"

	"github.com/coolbeans/redline/pkg/worddiff"
)

// String returns a plain-text report of the comparison.
func (r *Result) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Clause Comparison: %s → %s\n", r.Documents.A.displayName("A"), r.Documents.B.displayName("B")))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	sb.WriteString("Summary:\n")
	sb.WriteString(fmt.Sprintf("  Clauses modified: %d\n", r.Stats.ModifiedCount))
	sb.WriteString(fmt.Sprintf("  Clauses added: %d\n", r.Stats.AddedCount))
	sb.WriteString(fmt.Sprintf("  Clauses deleted: %d\n", r.Stats.DeletedCount))
	sb.WriteString(fmt.Sprintf("  Clauses unchanged: %d\n", r.Stats.UnchangedCount))
	sb.WriteString(fmt.Sprintf("  High-risk changes: %d\n", r.Stats.HighRiskCount))
	sb.WriteString(fmt.Sprintf("  Obligation shifts: %d\n", r.Stats.ObligationShiftCount))
	sb.WriteString(fmt.Sprintf("  Ghost changes: %d\n", r.Stats.IntegrityAlertCount))

	for _, warning := range r.Warnings {
		sb.WriteString(fmt.Sprintf("  Warning: %s\n", warning))
	}

	if len(r.Clauses.Modified)+len(r.Clauses.Added)+len(r.Clauses.Deleted) == 0 {
		sb.WriteString("\nNo changes.\n")
		return sb.String()
	}

	sb.WriteString("\nChanges:\n")
	for _, modified := range r.Clauses.Modified {
		sb.WriteString(fmt.Sprintf("\n  %s: MODIFIED (%.0f%% similar, %s match)\n",
			modified.ClauseB, modified.Similarity*100, modified.Method))
		if finding, ok := r.FindingFor(modified.ClauseB.ID); ok {
			for _, tag := range finding.RiskTags {
				sb.WriteString(fmt.Sprintf("    risk: %s - %s\n", tag, finding.Rationale[tag]))
			}
			for _, material := range finding.Materiality {
				sb.WriteString(fmt.Sprintf("    material (%s): %s - %s\n", material.Severity, material.Category, material.Rationale))
			}
		}
		sb.WriteString("    - " + inlineText(modified.WordDiffs.BeforeSpans) + "\n")
		sb.WriteString("    + " + inlineText(modified.WordDiffs.AfterSpans) + "\n")
	}
	for _, added := range r.Clauses.Added {
		sb.WriteString(fmt.Sprintf("\n  %s: ADDED\n    + %s\n", added, truncate(added.Text, 160)))
	}
	for _, deleted := range r.Clauses.Deleted {
		sb.WriteString(fmt.Sprintf("\n  %s: DELETED\n    - %s\n", deleted, truncate(deleted.Text, 160)))
	}

	return sb.String()
}

// RenderIntegrity returns a plain-text listing of ghost changes only.
func (r *Result) RenderIntegrity() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Integrity Scan: %s → %s\n", r.Documents.A.displayName("A"), r.Documents.B.displayName("B")))
	sb.WriteString(strings.Repeat("=", 50) + "\n")

	if len(r.IntegrityAlerts) == 0 {
		sb.WriteString("\nNo ghost changes.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("\n%d ghost change(s):\n", len(r.IntegrityAlerts)))
	for _, alert := range r.IntegrityAlerts {
		label := alert.ClauseID
		if alert.Heading != "" {
			label += " (" + alert.Heading + ")"
		}
		sb.WriteString(fmt.Sprintf("\n  %s: %s\n", label, alert.Reason))
		sb.WriteString("    - " + truncate(alert.Before, 160) + "\n")
		sb.WriteString("    + " + truncate(alert.After, 160) + "\n")
	}
	return sb.String()
}

// RenderMarkdown returns a Markdown report with removed text struck through
// and added text in bold.
func (r *Result) RenderMarkdown() string {
	var sb strings.Builder

	sb.WriteString("# Clause Comparison\n\n")
	sb.WriteString(fmt.Sprintf("**Version A:** %s  \n", r.Documents.A.displayName("A")))
	sb.WriteString(fmt.Sprintf("**Version B:** %s  \n", r.Documents.B.displayName("B")))
	sb.WriteString(fmt.Sprintf("**Rule set:** %s  \n", r.RuleSet))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Count |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Modified | %d |\n", r.Stats.ModifiedCount))
	sb.WriteString(fmt.Sprintf("| Added | %d |\n", r.Stats.AddedCount))
	sb.WriteString(fmt.Sprintf("| Deleted | %d |\n", r.Stats.DeletedCount))
	sb.WriteString(fmt.Sprintf("| Unchanged | %d |\n", r.Stats.UnchangedCount))
	sb.WriteString(fmt.Sprintf("| High risk | %d |\n", r.Stats.HighRiskCount))
	sb.WriteString(fmt.Sprintf("| Obligation shifts | %d |\n", r.Stats.ObligationShiftCount))
	sb.WriteString(fmt.Sprintf("| Ghost changes | %d |\n", r.Stats.IntegrityAlertCount))
	sb.WriteString("\n")

	for _, warning := range r.Warnings {
		sb.WriteString(fmt.Sprintf("> **Warning:** %s\n\n", warning))
	}

	if len(r.Clauses.Modified) > 0 {
		sb.WriteString("## Modified Clauses\n\n")
		for _, modified := range r.Clauses.Modified {
			sb.WriteString(fmt.Sprintf("### %s\n\n", markdownHeading(modified.ClauseB.Heading, modified.ClauseB.ID)))
			sb.WriteString(fmt.Sprintf("Similarity %.2f (%s match)\n\n", modified.Similarity, modified.Method))
			if finding, ok := r.FindingFor(modified.ClauseB.ID); ok && (finding.IsHighRisk() || len(finding.Materiality) > 0) {
				for _, tag := range finding.RiskTags {
					sb.WriteString(fmt.Sprintf("- **%s**: %s\n", tag, finding.Rationale[tag]))
				}
				for _, material := range finding.Materiality {
					sb.WriteString(fmt.Sprintf("- *%s, %s*: %s\n", material.Category, material.Severity, material.Rationale))
				}
				sb.WriteString("\n")
			}
			sb.WriteString("> " + markdownSpans(modified.WordDiffs.BeforeSpans) + "\n>\n")
			sb.WriteString("> " + markdownSpans(modified.WordDiffs.AfterSpans) + "\n\n")
		}
	}

	if len(r.Clauses.Added) > 0 {
		sb.WriteString("## Added Clauses\n\n")
		for _, added := range r.Clauses.Added {
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", markdownHeading(added.Heading, added.ID), truncate(added.Text, 200)))
		}
		sb.WriteString("\n")
	}

	if len(r.Clauses.Deleted) > 0 {
		sb.WriteString("## Deleted Clauses\n\n")
		for _, deleted := range r.Clauses.Deleted {
			sb.WriteString(fmt.Sprintf("- ~~%s~~: %s\n", markdownHeading(deleted.Heading, deleted.ID), truncate(deleted.Text, 200)))
		}
		sb.WriteString("\n")
	}

	if len(r.IntegrityAlerts) > 0 {
		sb.WriteString("## Integrity Alerts\n\n")
		for _, alert := range r.IntegrityAlerts {
			sb.WriteString(fmt.Sprintf("- `%s`: %s\n", alert.ClauseID, alert.Reason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func (d DocumentInfo) displayName(fallback string) string {
	name := d.Label
	if name == "" {
		name = fallback
	}
	if len(d.Hash) > len("sha256:")+12 {
		name += " (" + d.Hash[:len("sha256:")+12] + ")"
	}
	return name
}

// inlineText renders spans with [-removed-] and {+added+} markers.
func inlineText(spans []worddiff.Span) string {
	var sb strings.Builder
	for _, span := range spans {
		switch span.Kind {
		case worddiff.KindRemoved:
			sb.WriteString("[-" + span.Text + "-]")
		case worddiff.KindAdded:
			sb.WriteString("{+" + span.Text + "+}")
		default:
			sb.WriteString(span.Text)
		}
	}
	return sb.String()
}

func markdownSpans(spans []worddiff.Span) string {
	var sb strings.Builder
	for _, span := range spans {
		text := span.Text
		trimmed := strings.TrimSpace(text)
		if span.Kind == worddiff.KindUnchanged || trimmed == "" {
			sb.WriteString(text)
			continue
		}

		marker := "**"
		if span.Kind == worddiff.KindRemoved {
			marker = "~~"
		}
		leading := text[:len(text)-len(strings.TrimLeft(text, " \t"))]
		trailing := text[len(strings.TrimRight(text, " \t")):]
		sb.WriteString(leading + marker + trimmed + marker + trailing)
	}
	return sb.String()
}

func markdownHeading(heading, id string) string {
	if heading == "" {
		return id
	}
	return heading
}

// truncate shortens text to maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
