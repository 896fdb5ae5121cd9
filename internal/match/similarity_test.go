package match

import (
	"math"
	"testing"
)

func TestCleanName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Begraafplaats Zuid | Uitvaartcentrum Almere": "Begraafplaats Zuid",
		"De Nieuwe Ooster - Crematorium Amsterdam":    "De Nieuwe Ooster",
		"Oude Begraafplaats, Meester Nijhoffstraat 2": "Oude Begraafplaats",
		"Oak Ridge Cemetery":                          "Oak Ridge Cemetery",
	}
	for in, want := range cases {
		if got := CleanName(in); got != want {
			t.Fatalf("CleanName(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestNameSimilarity(t *testing.T) {
	t.Parallel()

	if got := NameSimilarity("St. Mary's Cemetery", "St Marys Cemetery"); got != 1 {
		t.Fatalf("expected identical keys to score 1, got %f", got)
	}
	if got := NameSimilarity("Begraafplaats Terborg", "Joodse Begraafplaats Terborg"); got != 0.9 {
		t.Fatalf("expected containment to score 0.9, got %f", got)
	}
	if got := NameSimilarity("", "Anything"); got != 0 {
		t.Fatalf("expected empty name to score 0, got %f", got)
	}
	low := NameSimilarity("Oak Ridge Cemetery", "Begraafplaats Zuid")
	if low >= DefaultMunicipalityMinSimilarity {
		t.Fatalf("unrelated names scored too high: %f", low)
	}
	swapped := NameSimilarity("Cemetery Oak Ridge", "Oak Ridge Cemetery")
	if swapped != 1 {
		// same tokens in another order
		t.Fatalf("expected token overlap to score 1, got %f", swapped)
	}
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "", 3},
		{"same", "same", 0},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Fatalf("levenshtein(%q,%q)=%d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestHaversineMeters(t *testing.T) {
	t.Parallel()

	// One degree of latitude.
	d := HaversineMeters(52, 5, 53, 5)
	if math.Abs(d-111195) > 1 {
		t.Fatalf("unexpected distance %f", d)
	}
	if got := HaversineMeters(10, 10, 10, 10); math.Abs(got) > 1e-9 {
		t.Fatalf("expected zero distance, got %f", got)
	}
}

func TestPickBest(t *testing.T) {
	t.Parallel()

	best, tie := pickBest([]Candidate{
		{Slug: "c", Confidence: 0.5},
		{Slug: "b", Confidence: 0.8},
		{Slug: "a", Confidence: 0.8},
		{Slug: "d", Confidence: 0.7},
	})
	if best.Slug != "a" || !tie {
		t.Fatalf("expected a with tie, got %+v tie=%t", best, tie)
	}

	best, tie = pickBest([]Candidate{
		{Slug: "a", Confidence: 0.6},
		{Slug: "b", Confidence: 0.6},
		{Slug: "z", Confidence: 0.9},
	})
	if best.Slug != "z" || tie {
		t.Fatalf("a higher candidate clears an earlier tie, got %+v tie=%t", best, tie)
	}
}
