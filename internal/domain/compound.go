package domain

// SafetyRating is the registry's letter-grade safety classification.
type SafetyRating string

const (
	SafetyRatingA       SafetyRating = "A"
	SafetyRatingB       SafetyRating = "B"
	SafetyRatingC       SafetyRating = "C"
	SafetyRatingD       SafetyRating = "D"
	SafetyRatingUnknown SafetyRating = "Unknown"
)

// CompoundRecord is one entry of the external compound registry. Read-only;
// loaded once per matcher snapshot.
type CompoundRecord struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Synonyms     []string     `json:"synonyms"`
	Category     string       `json:"category"` // supplement, nootropic, stimulant, sarm, peptide
	SafetyRating SafetyRating `json:"safety_rating"`
	LegalStatus  string       `json:"legal_status"`
}

// ListingMetadata describes one page of the registry listing.
type ListingMetadata struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// CompoundListing is one page of registry results.
type CompoundListing struct {
	Data     []CompoundRecord `json:"data"`
	Metadata ListingMetadata  `json:"metadata"`
}

// DosageStatus classifies a parsed amount against broad safety bounds.
type DosageStatus string

const (
	DosageLow       DosageStatus = "low"
	DosageNormal    DosageStatus = "normal"
	DosageHigh      DosageStatus = "high"
	DosageExcessive DosageStatus = "excessive"
	DosageUnknown   DosageStatus = "unknown"
)

// DosageAnalysis is the matcher's read on a matched ingredient's dosage.
type DosageAnalysis struct {
	Status           DosageStatus `json:"status"`
	Message          string       `json:"message"`
	RecommendedRange string       `json:"recommended_range,omitempty"`
}

// CompoundMatch resolves one ParsedIngredient against the registry. A nil
// CompoundID is the explicit unmatched outcome, not an error: confidence is 0
// and every compound-derived field is nil.
type CompoundMatch struct {
	ID               string         `json:"id"`
	IngredientName   string         `json:"ingredient_name"`
	CompoundID       *string        `json:"compound_id"`
	CompoundName     *string        `json:"compound_name"`
	CompoundCategory *string        `json:"compound_category"`
	Confidence       float64        `json:"confidence"` // 0 or [0.4, 1.0]
	DosageAnalysis   DosageAnalysis `json:"dosage_analysis"`
	SafetyRating     SafetyRating   `json:"safety_rating"`
	LegalStatus      string         `json:"legal_status"`
	MatchedSynonyms  []string       `json:"matched_synonyms,omitempty"`
	ResearchURL      *string        `json:"research_url"`
}

// Matched reports whether the ingredient resolved to a registry compound.
func (m *CompoundMatch) Matched() bool {
	return m.CompoundID != nil
}
