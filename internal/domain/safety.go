package domain

import "time"

// Severity grades a single interaction warning.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// RiskLevel is the aggregated risk for a whole scan.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// InteractionWarning flags one compound pair. Derived per scan, never persisted.
type InteractionWarning struct {
	ID             string   `json:"id"`
	Compound1Name  string   `json:"compound1_name"`
	Compound2Name  string   `json:"compound2_name"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

// SafetyReport aggregates all matches of one scan.
type SafetyReport struct {
	RiskLevel         RiskLevel            `json:"risk_level"`
	Interactions      []InteractionWarning `json:"interactions"`
	Warnings          []string             `json:"warnings"`
	Recommendations   []string             `json:"recommendations"`
	AnalyzedAt        time.Time            `json:"analyzed_at"`
	TotalCompounds    int                  `json:"total_compounds"`
	HighRiskCompounds int                  `json:"high_risk_compounds"`
}

// RiskPair is a (risk agent, supplement) keyword pair whose co-occurrence is
// treated as a high-severity interaction.
type RiskPair struct {
	Agent      string `json:"agent"`
	Supplement string `json:"supplement"`
}

// SafetyPolicy is the injectable rule table driving the safety analyzer.
// Externalized so the rule set can be versioned and audited independently of
// code as regulatory knowledge evolves.
type SafetyPolicy struct {
	// InteractionKB maps a risk agent keyword (drug, drug class, stimulant
	// category) to supplement keywords known to interact with it.
	InteractionKB map[string][]string `json:"interaction_kb"`

	// HighRiskPairs elevate a knowledge-base hit from moderate to high.
	HighRiskPairs []RiskPair `json:"high_risk_pairs"`

	// HighRiskCompounds are keywords marking an individual compound as
	// high-risk on its own.
	HighRiskCompounds []string `json:"high_risk_compounds"`

	// WatchedCategories trigger the additive-effects rule when two matches
	// share one of these categories.
	WatchedCategories []string `json:"watched_categories"`
}

// DefaultSafetyPolicy returns the curated baseline rule set.
func DefaultSafetyPolicy() SafetyPolicy {
	return SafetyPolicy{
		InteractionKB: map[string][]string{
			"warfarin":   {"fish oil", "omega-3", "vitamin e", "ginkgo", "garlic", "ginger"},
			"ssri":       {"st john's wort", "5-htp", "tryptophan", "same"},
			"maoi":       {"tyramine", "phenylalanine", "tyrosine", "st john's wort"},
			"caffeine":   {"yohimbine", "synephrine", "ephedrine", "theacrine"},
			"stimulant":  {"yohimbine", "synephrine", "dmaa", "higenamine"},
			"thyroid":    {"iodine", "kelp", "ashwagandha", "iron"},
			"metformin":  {"berberine", "chromium", "alpha-lipoic acid"},
			"statin":     {"red yeast rice", "niacin", "grapefruit"},
			"sedative":   {"valerian", "melatonin", "kava", "gaba", "l-theanine"},
			"anticoagulant": {"fish oil", "vitamin e", "nattokinase", "ginkgo"},
		},
		HighRiskPairs: []RiskPair{
			{Agent: "warfarin", Supplement: "ginkgo"},
			{Agent: "warfarin", Supplement: "nattokinase"},
			{Agent: "ssri", Supplement: "st john's wort"},
			{Agent: "ssri", Supplement: "5-htp"},
			{Agent: "maoi", Supplement: "tyrosine"},
			{Agent: "caffeine", Supplement: "ephedrine"},
			{Agent: "stimulant", Supplement: "dmaa"},
			{Agent: "anticoagulant", Supplement: "nattokinase"},
		},
		HighRiskCompounds: []string{"yohimbine", "dmaa", "ephedrine", "synephrine"},
		WatchedCategories: []string{"stimulant", "nootropic"},
	}
}
