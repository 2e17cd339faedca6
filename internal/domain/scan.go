package domain

import "time"

// ScanType declares what kind of label the caller expects the image to contain.
type ScanType string

const (
	ScanTypeSupplement ScanType = "supplement"
	ScanTypeFood       ScanType = "food"
	ScanTypeAuto       ScanType = "auto"
)

// RawCapture is one submitted label photograph. It lives only for the duration
// of a single scan invocation.
type RawCapture struct {
	Image    []byte
	ScanType ScanType
}

// WordBox is a single recognized word with its position on the source image.
type WordBox struct {
	Text       string  `json:"text"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

// ExtractedText is the full recognition result for one image. Immutable once
// produced.
type ExtractedText struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"` // 0-1
	Words      []WordBox `json:"words,omitempty"`
}

// ScanResult is the terminal artifact of one scan. ScanID is locally unique
// (timestamp plus random suffix), not guaranteed unique across processes.
type ScanResult struct {
	ScanID          string             `json:"scan_id"`
	ExtractedText   string             `json:"extracted_text"`
	Ingredients     []ParsedIngredient `json:"ingredients"`
	Matches         []CompoundMatch    `json:"matches"`
	SafetyAnalysis  SafetyReport       `json:"safety_analysis"`
	Recommendations []string           `json:"recommendations"`
	ConfidenceScore float64            `json:"confidence_score"` // 0-100
	ProcessedAt     time.Time          `json:"processed_at"`
}
