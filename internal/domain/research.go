package domain

import "time"

// ResearchDosage summarizes dosing guidance from the research call.
type ResearchDosage struct {
	MinDose   float64 `json:"min_dose"`
	MaxDose   float64 `json:"max_dose"`
	Unit      string  `json:"unit"`
	Frequency string  `json:"frequency"`
}

// AIResearchResult is the comprehensive single-compound profile produced by
// the deep research capability. It only exists after the raw AI payload has
// passed schema validation.
type AIResearchResult struct {
	Name            string         `json:"name"`
	CommonNames     []string       `json:"common_names"`
	Category        string         `json:"category"`
	Description     string         `json:"description"`
	Benefits        []string       `json:"benefits"`
	SideEffects     []string       `json:"side_effects"`
	DosageInfo      ResearchDosage `json:"dosage_info"`
	Interactions    []string       `json:"interactions"`
	SafetyProfile   string         `json:"safety_profile"`
	ResearchNotes   string         `json:"research_notes"`
	ConfidenceScore float64        `json:"confidence_score"` // 0-1
	Sources         []string       `json:"sources"`
	GeneratedAt     time.Time      `json:"generated_at"`
}
