package similarity

import (
	"math"
	"reflect"
	"testing"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"punctuation dropped", "The Vendor, shall-deliver!", []string{"the", "vendor", "shall", "deliver"}},
		{"numbers kept", "within 30 days", []string{"within", "30", "days"}},
		{"unicode letters", "Société Générale", []string{"société", "générale"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokens(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokens(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestShingles(t *testing.T) {
	tests := []struct {
		name string
		text string
		k    int
		want []string
	}{
		{"trigrams", "a b c d", 3, []string{"a b c", "b c d"}},
		{"default size", "a b c d", 0, []string{"a b c", "b c d"}},
		{"unigrams deduplicated", "a a a a", 1, []string{"a"}},
		{"fewer tokens than k", "a b", 3, []string{}},
		{"exactly k tokens", "Pay All Fees", 3, []string{"pay all fees"}},
		{"empty", "", 3, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Shingles(tt.text, tt.k).Sorted()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Shingles(%q, %d) = %v, want %v", tt.text, tt.k, got, tt.want)
			}
		})
	}
}

func TestJaccard(t *testing.T) {
	set := func(shingles ...string) Set {
		s := make(Set)
		for _, shingle := range shingles {
			s[shingle] = struct{}{}
		}
		return s
	}

	tests := []struct {
		name string
		x    Set
		y    Set
		want float64
	}{
		{"both empty", set(), set(), 0},
		{"one empty", set("a b c"), set(), 0},
		{"identical", set("a b c", "b c d"), set("a b c", "b c d"), 1},
		{"disjoint", set("a b c"), set("x y z"), 0},
		{"partial overlap", set("a b c", "b c d"), set("b c d", "c d e"), 1.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Jaccard(tt.x, tt.y)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Jaccard() = %v, want %v", got, tt.want)
			}
			if reverse := Jaccard(tt.y, tt.x); reverse != got {
				t.Errorf("Jaccard() not symmetric: %v vs %v", got, reverse)
			}
		})
	}
}

func TestTextSimilarity(t *testing.T) {
	if got := TextSimilarity("The Vendor Shall Pay", "the vendor shall pay", 3); got != 1 {
		t.Errorf("case-insensitive similarity = %v, want 1", got)
	}

	before := "The customer shall pay all invoices within thirty days of receipt"
	after := "The customer shall pay all invoices within forty five days of receipt"
	got := TextSimilarity(before, after, 3)
	want := 6.0 / 13.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("TextSimilarity() = %v, want %v", got, want)
	}

	if got := TextSimilarity("too short", "too short", 3); got != 0 {
		t.Errorf("similarity of texts below k tokens = %v, want 0", got)
	}
}
