package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/labelscan/backend/internal/domain"
)

// stubRegistry serves a fixed snapshot for matcher tests
type stubRegistry struct {
	records []domain.CompoundRecord
	err     error
	calls   int
}

func (s *stubRegistry) FetchAll(ctx context.Context) ([]domain.CompoundRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func testRegistrySnapshot() []domain.CompoundRecord {
	return []domain.CompoundRecord{
		{
			ID:           "comp-creatine",
			Name:         "Creatine Monohydrate",
			Synonyms:     []string{"creatine", "monohydrate"},
			Category:     "supplement",
			SafetyRating: domain.SafetyRatingA,
			LegalStatus:  "legal",
		},
		{
			ID:           "comp-caffeine",
			Name:         "Caffeine",
			Synonyms:     []string{"caffeine anhydrous", "1,3,7-trimethylxanthine"},
			Category:     "stimulant",
			SafetyRating: domain.SafetyRatingB,
			LegalStatus:  "legal",
		},
		{
			ID:           "comp-noopept",
			Name:         "Noopept",
			Synonyms:     []string{"omberacetam"},
			Category:     "nootropic",
			SafetyRating: domain.SafetyRatingC,
			LegalStatus:  "gray market",
		},
	}
}

func loadedMatcher(t *testing.T, config MatcherConfig) *Matcher {
	t.Helper()
	matcher := NewMatcher(&stubRegistry{records: testRegistrySnapshot()}, config)
	if err := matcher.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return matcher
}

func TestMatcher_FindMatches(t *testing.T) {
	matcher := loadedMatcher(t, MatcherConfig{ResearchBaseURL: "http://registry.local"})

	t.Run("exact name with plausible dosage scores 1.0", func(t *testing.T) {
		ingredients := []domain.ParsedIngredient{{
			Name:   "Creatine Monohydrate",
			Dosage: &domain.Dosage{Amount: 5000, Unit: "mg", PerServing: true},
			Type:   domain.IngredientActive,
		}}

		matches, err := matcher.FindMatches(ingredients)
		if err != nil {
			t.Fatalf("FindMatches failed: %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want 1", len(matches))
		}

		m := matches[0]
		if !m.Matched() {
			t.Fatal("expected a matched entry")
		}
		if *m.CompoundID != "comp-creatine" {
			t.Errorf("CompoundID = %q, want comp-creatine", *m.CompoundID)
		}
		if m.Confidence != 1.0 {
			t.Errorf("Confidence = %v, want 1.0", m.Confidence)
		}
		if m.DosageAnalysis.Status != domain.DosageNormal {
			t.Errorf("dosage status = %q, want normal at the 5000 boundary", m.DosageAnalysis.Status)
		}
		if m.SafetyRating != domain.SafetyRatingA {
			t.Errorf("SafetyRating = %q, want A", m.SafetyRating)
		}
		if m.ResearchURL == nil || *m.ResearchURL != "http://registry.local/compounds/comp-creatine" {
			t.Errorf("ResearchURL = %v, want registry compound link", m.ResearchURL)
		}
	})

	t.Run("unknown ingredient yields explicit unmatched entry", func(t *testing.T) {
		matches, err := matcher.FindMatches([]domain.ParsedIngredient{{Name: "Zyzzyxamine"}})
		if err != nil {
			t.Fatalf("FindMatches failed: %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want 1", len(matches))
		}

		m := matches[0]
		if m.Matched() {
			t.Fatal("expected an unmatched entry")
		}
		if m.IngredientName != "Zyzzyxamine" {
			t.Errorf("IngredientName = %q, want original name preserved", m.IngredientName)
		}
		if m.Confidence != 0 {
			t.Errorf("Confidence = %v, want 0", m.Confidence)
		}
		if m.CompoundID != nil || m.CompoundName != nil || m.CompoundCategory != nil || m.ResearchURL != nil {
			t.Error("compound-derived fields must all be nil on an unmatched entry")
		}
		if m.DosageAnalysis.Status != domain.DosageUnknown {
			t.Errorf("dosage status = %q, want unknown", m.DosageAnalysis.Status)
		}
		if m.SafetyRating != domain.SafetyRatingUnknown {
			t.Errorf("SafetyRating = %q, want Unknown", m.SafetyRating)
		}
	})

	t.Run("synonym hit records matched synonyms", func(t *testing.T) {
		matches, err := matcher.FindMatches([]domain.ParsedIngredient{{
			Name: "Caffeine Anhydrous",
			Type: domain.IngredientActive,
		}})
		if err != nil {
			t.Fatalf("FindMatches failed: %v", err)
		}
		m := matches[0]
		if !m.Matched() || *m.CompoundID != "comp-caffeine" {
			t.Fatalf("got %+v, want caffeine match", m)
		}
		if len(m.MatchedSynonyms) == 0 || m.MatchedSynonyms[0] != "caffeine anhydrous" {
			t.Errorf("MatchedSynonyms = %v, want the anhydrous synonym", m.MatchedSynonyms)
		}
	})

	t.Run("results sort descending by confidence", func(t *testing.T) {
		ingredients := []domain.ParsedIngredient{
			{Name: "Zyzzyxamine"},
			{Name: "Creatine Monohydrate", Dosage: &domain.Dosage{Amount: 5000, Unit: "mg"}, Type: domain.IngredientActive},
		}

		matches, err := matcher.FindMatches(ingredients)
		if err != nil {
			t.Fatalf("FindMatches failed: %v", err)
		}
		if len(matches) != 2 {
			t.Fatalf("got %d matches, want 2", len(matches))
		}
		if matches[0].Confidence < matches[1].Confidence {
			t.Errorf("matches not sorted: %v before %v", matches[0].Confidence, matches[1].Confidence)
		}
		if matches[0].IngredientName != "Creatine Monohydrate" {
			t.Errorf("first match = %q, want the confident one first", matches[0].IngredientName)
		}
	})

	t.Run("identical input produces identical output", func(t *testing.T) {
		ingredients := []domain.ParsedIngredient{
			{Name: "Creatine Monohydrate", Dosage: &domain.Dosage{Amount: 3000, Unit: "mg"}, Type: domain.IngredientActive},
			{Name: "Caffeine Anhydrous", Type: domain.IngredientActive},
			{Name: "Noopept", Dosage: &domain.Dosage{Amount: 20, Unit: "mg"}, Type: domain.IngredientActive},
		}

		first, err := matcher.FindMatches(ingredients)
		if err != nil {
			t.Fatalf("FindMatches failed: %v", err)
		}
		second, err := matcher.FindMatches(ingredients)
		if err != nil {
			t.Fatalf("FindMatches failed: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("repeated runs differ:\n%+v\n%+v", first, second)
		}
	})

	t.Run("best candidate below threshold is unmatched", func(t *testing.T) {
		strict := loadedMatcher(t, MatcherConfig{MinConfidence: 0.95})
		matches, err := strict.FindMatches([]domain.ParsedIngredient{{Name: "Creatine Blend"}})
		if err != nil {
			t.Fatalf("FindMatches failed: %v", err)
		}
		if matches[0].Matched() {
			t.Errorf("got match with confidence %v, want unmatched under strict threshold", matches[0].Confidence)
		}
	})
}

func TestMatcher_NotReady(t *testing.T) {
	matcher := NewMatcher(&stubRegistry{records: testRegistrySnapshot()}, MatcherConfig{})

	if matcher.Ready() {
		t.Error("Ready() = true before Load")
	}

	_, err := matcher.FindMatches([]domain.ParsedIngredient{{Name: "Creatine"}})
	if !errors.Is(err, domain.ErrMatcherNotReady) {
		t.Errorf("err = %v, want ErrMatcherNotReady", err)
	}
}

func TestMatcher_LoadFailure(t *testing.T) {
	registry := &stubRegistry{err: errors.New("connection refused")}
	matcher := NewMatcher(registry, MatcherConfig{})

	err := matcher.Load(context.Background())
	if !errors.Is(err, domain.ErrRegistryFailure) {
		t.Errorf("err = %v, want ErrRegistryFailure", err)
	}
	if matcher.Ready() {
		t.Error("Ready() = true after failed Load")
	}
}

func TestMatcher_RefreshSwapsSnapshot(t *testing.T) {
	registry := &stubRegistry{records: testRegistrySnapshot()}
	matcher := NewMatcher(registry, MatcherConfig{})
	if err := matcher.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	registry.records = []domain.CompoundRecord{{
		ID:           "comp-theanine",
		Name:         "L-Theanine",
		Synonyms:     []string{"theanine"},
		Category:     "nootropic",
		SafetyRating: domain.SafetyRatingA,
	}}
	if err := matcher.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	matches, err := matcher.FindMatches([]domain.ParsedIngredient{{Name: "Creatine Monohydrate"}})
	if err != nil {
		t.Fatalf("FindMatches failed: %v", err)
	}
	if matches[0].Matched() {
		t.Error("old snapshot still matched after Refresh replaced it")
	}

	matches, err = matcher.FindMatches([]domain.ParsedIngredient{{Name: "L-Theanine"}})
	if err != nil {
		t.Fatalf("FindMatches failed: %v", err)
	}
	if !matches[0].Matched() {
		t.Error("new snapshot compound not matched after Refresh")
	}
}

func TestAnalyzeDosage_Boundaries(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
		want   domain.DosageStatus
	}{
		{"exactly 5000 is normal", 5000, domain.DosageNormal},
		{"above 5000 is excessive", 5001, domain.DosageExcessive},
		{"exactly 1 is normal", 1, domain.DosageNormal},
		{"below 1 is low", 0.5, domain.DosageLow},
		{"mid-range is normal", 200, domain.DosageNormal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			analysis := analyzeDosage(&domain.Dosage{Amount: tc.amount, Unit: "mg"}, "supplement")
			if analysis.Status != tc.want {
				t.Errorf("status = %q, want %q", analysis.Status, tc.want)
			}
			if analysis.RecommendedRange != "1-5000 mg" {
				t.Errorf("RecommendedRange = %q, want supplement range", analysis.RecommendedRange)
			}
		})
	}

	t.Run("nil dosage is unknown", func(t *testing.T) {
		analysis := analyzeDosage(nil, "supplement")
		if analysis.Status != domain.DosageUnknown {
			t.Errorf("status = %q, want unknown", analysis.Status)
		}
	})

	t.Run("unlisted category has no recommended range", func(t *testing.T) {
		analysis := analyzeDosage(&domain.Dosage{Amount: 10, Unit: "mg"}, "mystery")
		if analysis.RecommendedRange != "" {
			t.Errorf("RecommendedRange = %q, want empty", analysis.RecommendedRange)
		}
	})
}

func TestSearchTerms(t *testing.T) {
	t.Run("includes raw, cleaned and long words", func(t *testing.T) {
		terms := searchTerms("Green Tea Extract")
		want := []string{"green tea extract", "green tea", "green"}
		if !reflect.DeepEqual(terms, want) {
			t.Errorf("terms = %v, want %v", terms, want)
		}
	})

	t.Run("strips stereochemistry prefixes", func(t *testing.T) {
		terms := searchTerms("DL-Phenylalanine Extract")
		found := false
		for _, term := range terms {
			if term == "phenylalanine" {
				found = true
			}
		}
		if !found {
			t.Errorf("terms = %v, want phenylalanine included", terms)
		}
	})

	t.Run("empty name yields no terms", func(t *testing.T) {
		if terms := searchTerms("   "); terms != nil {
			t.Errorf("terms = %v, want nil", terms)
		}
	})
}
