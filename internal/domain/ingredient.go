package domain

import "time"

// IngredientType classifies the role an ingredient plays in a formulation.
type IngredientType string

const (
	IngredientActive       IngredientType = "active"
	IngredientInactive     IngredientType = "inactive"
	IngredientCarrier      IngredientType = "carrier"
	IngredientPreservative IngredientType = "preservative"
	IngredientFlavoring    IngredientType = "flavoring"
)

// Dosage is the parsed amount for a single ingredient line.
type Dosage struct {
	Amount               float64  `json:"amount"`
	Unit                 string   `json:"unit"`
	DailyValuePercentage *float64 `json:"daily_value_percentage,omitempty"`
	PerServing           bool     `json:"per_serving"`
}

// ParsedIngredient is one structured ingredient extracted from label text.
// Name is non-empty after normalization; Confidence reflects parser certainty
// only and is independent of downstream match confidence.
type ParsedIngredient struct {
	Name        string         `json:"name"`
	CommonNames []string       `json:"common_names,omitempty"`
	Dosage      *Dosage        `json:"dosage,omitempty"`
	Type        IngredientType `json:"type"`
	Confidence  float64        `json:"confidence"` // 0-1
	RawText     string         `json:"raw_text"`
	ExtractedAt time.Time      `json:"extracted_at"`
}
