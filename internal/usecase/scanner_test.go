package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/labelscan/backend/internal/domain"
)

// fakeExtractor is a canned TextExtractor for scanner tests
type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Initialize(ctx context.Context) error { return nil }

func (f *fakeExtractor) ExtractText(ctx context.Context, image []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeExtractor) ExtractStructured(ctx context.Context, image []byte) (*domain.ExtractedText, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ExtractedText{Text: f.text, Confidence: 0.95}, nil
}

func (f *fakeExtractor) Cleanup() {}

func newTestScanner(t *testing.T, extractor domain.TextExtractor) *Scanner {
	t.Helper()
	matcher := loadedMatcher(t, MatcherConfig{})
	parser := NewIngredientParser(nil)
	analyzer := NewSafetyAnalyzer(domain.DefaultSafetyPolicy())
	return NewScanner(extractor, parser, matcher, analyzer)
}

func TestScanner_Scan(t *testing.T) {
	ctx := context.Background()

	t.Run("end to end with matched and unmatched ingredients", func(t *testing.T) {
		extractor := &fakeExtractor{text: "Creatine Monohydrate 5000mg\nZyzzyxamine 100 mg"}
		scanner := newTestScanner(t, extractor)

		result, err := scanner.Scan(ctx, &domain.RawCapture{Image: []byte("jpeg-bytes"), ScanType: domain.ScanTypeSupplement})
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}

		if result.ScanID == "" || !strings.HasPrefix(result.ScanID, "scan_") {
			t.Errorf("ScanID = %q, want scan_ prefix", result.ScanID)
		}
		if len(result.Ingredients) != 2 {
			t.Fatalf("got %d ingredients, want 2", len(result.Ingredients))
		}
		if len(result.Matches) != 2 {
			t.Fatalf("got %d matches, want one per ingredient", len(result.Matches))
		}

		matched, unmatched := 0, 0
		for _, m := range result.Matches {
			if m.Matched() {
				matched++
			} else {
				unmatched++
			}
		}
		if matched != 1 || unmatched != 1 {
			t.Errorf("matched/unmatched = %d/%d, want 1/1", matched, unmatched)
		}

		// 1 of 2 high-confidence matches at parse confidence 0.9: 50 * 0.9
		if math.Abs(result.ConfidenceScore-45) > 0.001 {
			t.Errorf("ConfidenceScore = %v, want 45", result.ConfidenceScore)
		}

		var unmatchedAdvice bool
		for _, rec := range result.Recommendations {
			if strings.Contains(rec, "not recognized") {
				unmatchedAdvice = true
			}
		}
		if !unmatchedAdvice {
			t.Errorf("Recommendations = %v, want unrecognized-ingredient advice", result.Recommendations)
		}
		if result.ProcessedAt.IsZero() {
			t.Error("ProcessedAt not set")
		}
	})

	t.Run("empty image is rejected before extraction", func(t *testing.T) {
		scanner := newTestScanner(t, &fakeExtractor{})

		_, err := scanner.Scan(ctx, &domain.RawCapture{Image: nil})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("err = %v, want ErrInvalidRequest", err)
		}

		_, err = scanner.Scan(ctx, nil)
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("err = %v, want ErrInvalidRequest for nil capture", err)
		}
	})

	t.Run("extraction failure is stage-tagged", func(t *testing.T) {
		scanner := newTestScanner(t, &fakeExtractor{err: errors.New("engine crashed")})

		_, err := scanner.Scan(ctx, &domain.RawCapture{Image: []byte("jpeg-bytes")})
		if !errors.Is(err, domain.ErrStageExtraction) {
			t.Errorf("err = %v, want ErrStageExtraction", err)
		}
	})

	t.Run("unloaded matcher surfaces as matching-stage failure", func(t *testing.T) {
		matcher := NewMatcher(&stubRegistry{}, MatcherConfig{})
		scanner := NewScanner(
			&fakeExtractor{text: "Creatine Monohydrate 5000mg"},
			NewIngredientParser(nil),
			matcher,
			NewSafetyAnalyzer(domain.DefaultSafetyPolicy()),
		)

		_, err := scanner.Scan(ctx, &domain.RawCapture{Image: []byte("jpeg-bytes")})
		if !errors.Is(err, domain.ErrStageMatching) {
			t.Errorf("err = %v, want ErrStageMatching", err)
		}
	})

	t.Run("unreadable label yields zero confidence and retake advice", func(t *testing.T) {
		scanner := newTestScanner(t, &fakeExtractor{text: "~~ blur ~~"})

		result, err := scanner.Scan(ctx, &domain.RawCapture{Image: []byte("jpeg-bytes")})
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if result.ConfidenceScore != 0 {
			t.Errorf("ConfidenceScore = %v, want 0", result.ConfidenceScore)
		}
		var retake bool
		for _, rec := range result.Recommendations {
			if strings.Contains(rec, "retake the photo") {
				retake = true
			}
		}
		if !retake {
			t.Errorf("Recommendations = %v, want retake advice", result.Recommendations)
		}
	})

	t.Run("scan IDs differ across scans", func(t *testing.T) {
		scanner := newTestScanner(t, &fakeExtractor{text: "Creatine Monohydrate 5000mg"})
		capture := &domain.RawCapture{Image: []byte("jpeg-bytes")}

		first, err := scanner.Scan(ctx, capture)
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		second, err := scanner.Scan(ctx, capture)
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if first.ScanID == second.ScanID {
			t.Errorf("two scans produced identical ScanID %q", first.ScanID)
		}
	})
}

func TestComputeConfidenceScore(t *testing.T) {
	ing := func(confidence float64) domain.ParsedIngredient {
		return domain.ParsedIngredient{Name: "x", Confidence: confidence}
	}
	match := func(confidence float64) domain.CompoundMatch {
		return domain.CompoundMatch{Confidence: confidence}
	}

	t.Run("no ingredients scores zero", func(t *testing.T) {
		if got := computeConfidenceScore(nil, nil); got != 0 {
			t.Errorf("got %v, want 0", got)
		}
	})

	t.Run("all high-confidence matches at full parse confidence score 100", func(t *testing.T) {
		got := computeConfidenceScore(
			[]domain.ParsedIngredient{ing(1.0), ing(1.0)},
			[]domain.CompoundMatch{match(0.9), match(0.8)},
		)
		if got != 100 {
			t.Errorf("got %v, want 100", got)
		}
	})

	t.Run("match confidence exactly 0.7 does not count as high", func(t *testing.T) {
		got := computeConfidenceScore(
			[]domain.ParsedIngredient{ing(1.0)},
			[]domain.CompoundMatch{match(0.7)},
		)
		if got != 0 {
			t.Errorf("got %v, want 0 for boundary match confidence", got)
		}
	})

	t.Run("parse confidence scales the match rate", func(t *testing.T) {
		got := computeConfidenceScore(
			[]domain.ParsedIngredient{ing(0.5), ing(0.5)},
			[]domain.CompoundMatch{match(0.9), match(0.1)},
		)
		if math.Abs(got-25) > 0.001 {
			t.Errorf("got %v, want 25", got)
		}
	})
}
