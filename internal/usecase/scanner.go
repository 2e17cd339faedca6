package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/labelscan/backend/internal/domain"
)

// highConfidenceMatch is the confidence bar above which a match counts toward
// the scan-level confidence score.
const highConfidenceMatch = 0.7

// Scanner sequences the four pipeline stages for one submitted image:
// extract -> parse -> match -> analyze. Data flows strictly forward; a stage
// failure with no fallback aborts the whole scan with a stage-tagged error.
type Scanner struct {
	extractor domain.TextExtractor
	parser    *IngredientParser
	matcher   *Matcher
	analyzer  *SafetyAnalyzer
	debug     bool
}

// NewScanner creates the scan orchestrator. The design assumes one extraction
// engine per scanner; concurrent scans serialize through it.
func NewScanner(extractor domain.TextExtractor, parser *IngredientParser, matcher *Matcher, analyzer *SafetyAnalyzer) *Scanner {
	return &Scanner{
		extractor: extractor,
		parser:    parser,
		matcher:   matcher,
		analyzer:  analyzer,
	}
}

// SetDebug enables or disables debug logging
func (s *Scanner) SetDebug(debug bool) {
	s.debug = debug
}

// Scan processes one label capture end to end. Partial results are never
// returned: any unrecovered stage failure fails the scan. Low-confidence
// success is communicated through ConfidenceScore and warnings, not an error.
func (s *Scanner) Scan(ctx context.Context, capture *domain.RawCapture) (*domain.ScanResult, error) {
	if capture == nil || len(capture.Image) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", domain.ErrInvalidRequest)
	}

	scanType := capture.ScanType
	if scanType == "" {
		scanType = domain.ScanTypeAuto
	}

	start := time.Now()

	extracted, err := s.extractor.ExtractStructured(ctx, capture.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStageExtraction, err)
	}

	// The parser absorbs its own AI-tier failures; an empty ingredient list is
	// a valid outcome, not a parsing failure.
	ingredients := s.parser.ParseIngredients(ctx, extracted.Text, scanType)

	matches, err := s.matcher.FindMatches(ingredients)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStageMatching, err)
	}

	report := s.analyzer.AnalyzeSafety(matches)

	confidence := computeConfidenceScore(ingredients, matches)

	result := &domain.ScanResult{
		ScanID:          newScanID(),
		ExtractedText:   extracted.Text,
		Ingredients:     ingredients,
		Matches:         matches,
		SafetyAnalysis:  report,
		Recommendations: scanRecommendations(ingredients, matches, confidence),
		ConfidenceScore: confidence,
		ProcessedAt:     time.Now(),
	}

	if s.debug {
		log.Printf("[SCAN] %s: %d ingredients, %d matches, confidence %.1f, risk %s (%s)",
			result.ScanID, len(ingredients), len(matches), confidence,
			report.RiskLevel, time.Since(start).Round(time.Millisecond))
	}

	return result, nil
}

// computeConfidenceScore couples match quality with the parser's self-reported
// certainty: (high-confidence match rate x 100) scaled by the average parsing
// confidence, capped at 100.
func computeConfidenceScore(ingredients []domain.ParsedIngredient, matches []domain.CompoundMatch) float64 {
	if len(ingredients) == 0 {
		return 0
	}

	matchedCount := 0
	for _, m := range matches {
		if m.Confidence > highConfidenceMatch {
			matchedCount++
		}
	}

	sum := 0.0
	for _, ing := range ingredients {
		sum += ing.Confidence
	}
	avgParsing := sum / float64(len(ingredients))

	score := (float64(matchedCount) / float64(len(ingredients)) * 100) * avgParsing
	if score > 100 {
		score = 100
	}
	return score
}

// scanRecommendations produces scan-level advice, additive to the safety
// analyzer's own recommendations.
func scanRecommendations(ingredients []domain.ParsedIngredient, matches []domain.CompoundMatch, confidence float64) []string {
	var recommendations []string

	if len(ingredients) == 0 {
		recommendations = append(recommendations,
			"No ingredients could be read from this label; retake the photo with the ingredient panel in focus")
		return recommendations
	}

	if confidence < 50 {
		recommendations = append(recommendations,
			"Scan confidence is low; verify the results against the physical label")
	}

	unmatched := 0
	for _, m := range matches {
		if !m.Matched() {
			unmatched++
		}
	}
	if unmatched > 0 {
		recommendations = append(recommendations, fmt.Sprintf(
			"%d ingredient(s) were not recognized; research them individually before use", unmatched))
	}

	return recommendations
}

// newScanID builds a locally unique scan token: timestamp plus random suffix.
func newScanID() string {
	return fmt.Sprintf("scan_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}
