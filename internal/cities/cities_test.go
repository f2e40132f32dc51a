package cities

import (
	"testing"

	"wxprobe/internal/models"
)

func TestReferenceListSizes(t *testing.T) {
	if len(Valid) != 50 {
		t.Errorf("Expected 50 valid cities, got %d", len(Valid))
	}
	if len(Invalid) != 15 {
		t.Errorf("Expected 15 invalid inputs, got %d", len(Invalid))
	}
	if len(EdgeCases) != 13 {
		t.Errorf("Expected 13 edge cases, got %d", len(EdgeCases))
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("London") {
		t.Error("London should be a known city")
	}
	if IsValid("london") {
		t.Error("Lookup should be case sensitive")
	}
	if IsValid("Atlantis") {
		t.Error("Atlantis should not be a known city")
	}
}

func TestSample(t *testing.T) {
	got := Sample(Valid, 5)
	if len(got) != 5 {
		t.Fatalf("Expected 5 entries, got %d", len(got))
	}

	// No duplicates: sampling is without replacement.
	seen := make(map[string]bool)
	for _, city := range got {
		if seen[city] {
			t.Errorf("Duplicate entry %q", city)
		}
		seen[city] = true
		if !IsValid(city) {
			t.Errorf("Sampled city %q not from the source list", city)
		}
	}
}

func TestSampleClampsCounts(t *testing.T) {
	if got := Sample(EdgeCases, 100); len(got) != len(EdgeCases) {
		t.Errorf("Expected clamp to list size %d, got %d", len(EdgeCases), len(got))
	}
	if got := Sample(EdgeCases, -1); len(got) != 0 {
		t.Errorf("Expected empty sample for negative count, got %d", len(got))
	}
	if got := Sample(EdgeCases, 0); len(got) != 0 {
		t.Errorf("Expected empty sample for zero count, got %d", len(got))
	}
}

func TestBuildSuite(t *testing.T) {
	cases := BuildSuite(10, 5, 3)
	if len(cases) != 18 {
		t.Fatalf("Expected 18 cases, got %d", len(cases))
	}

	counts := make(map[models.TestType]int)
	for _, tc := range cases {
		counts[tc.Type]++
	}
	if counts[models.TestTypeValid] != 10 {
		t.Errorf("Expected 10 valid cases, got %d", counts[models.TestTypeValid])
	}
	if counts[models.TestTypeInvalid] != 5 {
		t.Errorf("Expected 5 invalid cases, got %d", counts[models.TestTypeInvalid])
	}
	if counts[models.TestTypeEdge] != 3 {
		t.Errorf("Expected 3 edge cases, got %d", counts[models.TestTypeEdge])
	}

	// Groups appear in valid, invalid, edge order.
	for i, tc := range cases {
		switch {
		case i < 10 && tc.Type != models.TestTypeValid:
			t.Errorf("Case %d: expected valid, got %s", i, tc.Type)
		case i >= 10 && i < 15 && tc.Type != models.TestTypeInvalid:
			t.Errorf("Case %d: expected invalid, got %s", i, tc.Type)
		case i >= 15 && tc.Type != models.TestTypeEdge:
			t.Errorf("Case %d: expected edge, got %s", i, tc.Type)
		}
	}
}
