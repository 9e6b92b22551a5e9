package worddiff

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Pay $1,000 within  30 days.")
	want := []string{"Pay", " ", "$", "1", ",", "000", " ", "within", "  ", "30", " ", "days", "."}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tokenize() mismatch (-want +got):\n%s", diff)
	}
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name       string
		before     string
		after      string
		wantBefore []Span
		wantAfter  []Span
	}{
		{
			name:   "number replaced",
			before: "pay within 30 days",
			after:  "pay within 45 days",
			wantBefore: []Span{
				{Text: "pay within ", Kind: KindUnchanged},
				{Text: "30", Kind: KindRemoved},
				{Text: " days", Kind: KindUnchanged},
			},
			wantAfter: []Span{
				{Text: "pay within ", Kind: KindUnchanged},
				{Text: "45", Kind: KindAdded},
				{Text: " days", Kind: KindUnchanged},
			},
		},
		{
			name:   "modal replaced",
			before: "Vendor shall deliver.",
			after:  "Vendor may deliver.",
			wantBefore: []Span{
				{Text: "Vendor ", Kind: KindUnchanged},
				{Text: "shall", Kind: KindRemoved},
				{Text: " deliver.", Kind: KindUnchanged},
			},
			wantAfter: []Span{
				{Text: "Vendor ", Kind: KindUnchanged},
				{Text: "may", Kind: KindAdded},
				{Text: " deliver.", Kind: KindUnchanged},
			},
		},
		{
			name:   "words appended",
			before: "Fees are due.",
			after:  "Fees are due monthly in advance.",
			wantBefore: []Span{
				{Text: "Fees are due.", Kind: KindUnchanged},
			},
			wantAfter: []Span{
				{Text: "Fees are due", Kind: KindUnchanged},
				{Text: " monthly in advance", Kind: KindAdded},
				{Text: ".", Kind: KindUnchanged},
			},
		},
		{
			name:       "identical",
			before:     "No change here.",
			after:      "No change here.",
			wantBefore: []Span{{Text: "No change here.", Kind: KindUnchanged}},
			wantAfter:  []Span{{Text: "No change here.", Kind: KindUnchanged}},
		},
		{
			name:       "empty before",
			before:     "",
			after:      "New clause text.",
			wantBefore: nil,
			wantAfter:  []Span{{Text: "New clause text.", Kind: KindAdded}},
		},
		{
			name:       "empty after",
			before:     "Old clause text.",
			after:      "",
			wantBefore: []Span{{Text: "Old clause text.", Kind: KindRemoved}},
			wantAfter:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.before, tt.after)
			if diff := cmp.Diff(tt.wantBefore, got.BeforeSpans); diff != "" {
				t.Errorf("BeforeSpans mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantAfter, got.AfterSpans); diff != "" {
				t.Errorf("AfterSpans mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiffRoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"The customer shall pay within thirty (30) days.", "The Customer must pay within forty-five (45) days!"},
		{"Tabs\tand  spaces\nand newlines", "Tabs and spaces and\tnewlines"},
		{"Non breaking space — and dashes", "Non breaking space - and dashes"},
		{"Société Générale s'engage", "Société Générale ne s'engage pas"},
		{"", ""},
		{"a b c", "c b a"},
	}

	for _, pair := range pairs {
		before, after := pair[0], pair[1]
		result := Diff(before, after)

		if got := Join(result.BeforeSpans); got != before {
			t.Errorf("Join(BeforeSpans) = %q, want %q", got, before)
		}
		if got := Join(result.AfterSpans); got != after {
			t.Errorf("Join(AfterSpans) = %q, want %q", got, after)
		}
		for _, span := range result.BeforeSpans {
			if span.Kind == KindAdded {
				t.Errorf("before side of %q contains added span %q", before, span.Text)
			}
		}
		for _, span := range result.AfterSpans {
			if span.Kind == KindRemoved {
				t.Errorf("after side of %q contains removed span %q", after, span.Text)
			}
		}
	}
}

func TestDiffUnchangedTextMatchesOnBothSides(t *testing.T) {
	result := Diff("The vendor shall deliver the goods promptly.", "The supplier shall deliver all goods.")

	unchanged := func(spans []Span) string {
		var parts []string
		for _, span := range spans {
			if span.Kind == KindUnchanged {
				parts = append(parts, span.Text)
			}
		}
		return strings.Join(parts, "")
	}

	if before, after := unchanged(result.BeforeSpans), unchanged(result.AfterSpans); before != after {
		t.Errorf("unchanged text differs: before %q, after %q", before, after)
	}
}

func TestDiffMergesAdjacentSpans(t *testing.T) {
	result := Diff("a b", "x y z")

	for _, spans := range [][]Span{result.BeforeSpans, result.AfterSpans} {
		for i := 1; i < len(spans); i++ {
			if spans[i].Kind == spans[i-1].Kind {
				t.Errorf("adjacent spans %d and %d share kind %s", i-1, i, spans[i].Kind)
			}
		}
	}
}

func numberedWords(count int) []string {
	words := make([]string, count)
	for index := range words {
		words[index] = fmt.Sprintf("w%d", index)
	}
	return words
}

func TestDiffLargeClauseWithOneInsertion(t *testing.T) {
	words := numberedWords(10000)
	before := strings.Join(words, " ")
	after := strings.Join(words[:5000], " ") + " inserted " + strings.Join(words[5000:], " ")

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	allocatedBefore := stats.TotalAlloc

	result := Diff(before, after)

	runtime.ReadMemStats(&stats)
	if allocated := stats.TotalAlloc - allocatedBefore; allocated > 64<<20 {
		t.Errorf("Diff allocated %d MiB, want under 64 MiB", allocated>>20)
	}
	if result.Coarse {
		t.Error("Coarse = true, want word-level result")
	}
	if diff := cmp.Diff([]string{"inserted "}, Changed(result.AfterSpans)); diff != "" {
		t.Errorf("Changed(after) mismatch (-want +got):\n%s", diff)
	}
	if len(Changed(result.BeforeSpans)) != 0 {
		t.Errorf("Changed(before) = %v, want none", Changed(result.BeforeSpans))
	}
	if Join(result.AfterSpans) != after || Join(result.BeforeSpans) != before {
		t.Error("spans do not reproduce the inputs")
	}
}

func TestDiffFallsBackToWholeSpansAboveLimit(t *testing.T) {
	result := DiffWithLimit("Fees: a b c apply.", "Fees: c b a apply.", 4)

	if !result.Coarse {
		t.Fatal("Coarse = false, want true")
	}
	wantBefore := []Span{
		{Text: "Fees: ", Kind: KindUnchanged},
		{Text: "a b c", Kind: KindRemoved},
		{Text: " apply.", Kind: KindUnchanged},
	}
	wantAfter := []Span{
		{Text: "Fees: ", Kind: KindUnchanged},
		{Text: "c b a", Kind: KindAdded},
		{Text: " apply.", Kind: KindUnchanged},
	}
	if diff := cmp.Diff(wantBefore, result.BeforeSpans); diff != "" {
		t.Errorf("BeforeSpans mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantAfter, result.AfterSpans); diff != "" {
		t.Errorf("AfterSpans mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffLargeRewriteStaysBounded(t *testing.T) {
	words := numberedWords(20000)
	before := "A " + strings.Join(words, " ") + " Z"
	after := "B " + strings.Join(words[:19999], " ") + " Y"

	result := Diff(before, after)

	if !result.Coarse {
		t.Error("Coarse = false, want whole-span fallback for a large rewrite")
	}
	if Join(result.BeforeSpans) != before || Join(result.AfterSpans) != after {
		t.Error("spans do not reproduce the inputs")
	}
}

func TestChanged(t *testing.T) {
	result := Diff("pay within 30 days", "pay within 45 days")

	if diff := cmp.Diff([]string{"30"}, Changed(result.BeforeSpans)); diff != "" {
		t.Errorf("Changed(before) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"45"}, Changed(result.AfterSpans)); diff != "" {
		t.Errorf("Changed(after) mismatch (-want +got):\n%s", diff)
	}
}

func TestSpanJSON(t *testing.T) {
	data, err := json.Marshal(Span{Text: "30", Kind: KindRemoved})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if got, want := string(data), `{"text":"30","kind":"removed"}`; got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}
