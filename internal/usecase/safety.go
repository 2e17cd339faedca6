package usecase

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/labelscan/backend/internal/domain"
)

// Risk scoring weights and thresholds. riskScore >= 6 is high, >= 3 moderate.
const (
	weightHighRiskCompound    = 3
	weightHighInteraction     = 2
	weightModerateInteraction = 1
	weightExcessiveDosage     = 2

	riskScoreHighThreshold     = 6
	riskScoreModerateThreshold = 3
)

// SafetyAnalyzer evaluates pairwise interaction risk for a matched compound
// list and aggregates an overall risk level. The rule tables are injected at
// construction so they can be maintained and audited independently of code.
type SafetyAnalyzer struct {
	policy domain.SafetyPolicy
	debug  bool
}

// NewSafetyAnalyzer creates an analyzer with the given policy tables.
func NewSafetyAnalyzer(policy domain.SafetyPolicy) *SafetyAnalyzer {
	return &SafetyAnalyzer{policy: policy}
}

// SetDebug enables or disables debug logging
func (a *SafetyAnalyzer) SetDebug(debug bool) {
	a.debug = debug
}

// AnalyzeSafety produces the safety report for one scan's matches. Empty
// inputs and zero interactions are valid low-risk outcomes, never errors.
func (a *SafetyAnalyzer) AnalyzeSafety(matches []domain.CompoundMatch) domain.SafetyReport {
	matched := make([]domain.CompoundMatch, 0, len(matches))
	unmatchedCount := 0
	for _, m := range matches {
		if m.Matched() {
			matched = append(matched, m)
		} else {
			unmatchedCount++
		}
	}

	interactions := a.findInteractions(matched)

	highRiskCount := 0
	for _, m := range matched {
		if a.isHighRiskCompound(*m.CompoundName) {
			highRiskCount++
		}
	}

	excessiveCount := 0
	for _, m := range matches {
		if m.DosageAnalysis.Status == domain.DosageExcessive {
			excessiveCount++
		}
	}

	highInteractions := 0
	moderateInteractions := 0
	for _, w := range interactions {
		switch w.Severity {
		case domain.SeverityHigh:
			highInteractions++
		case domain.SeverityModerate:
			moderateInteractions++
		}
	}

	riskScore := weightHighRiskCompound*highRiskCount +
		weightHighInteraction*highInteractions +
		weightModerateInteraction*moderateInteractions +
		weightExcessiveDosage*excessiveCount

	riskLevel := domain.RiskLow
	switch {
	case riskScore >= riskScoreHighThreshold:
		riskLevel = domain.RiskHigh
	case riskScore >= riskScoreModerateThreshold:
		riskLevel = domain.RiskModerate
	}

	if a.debug {
		log.Printf("[SAFETY] %d matched, %d interactions, risk score %d -> %s",
			len(matched), len(interactions), riskScore, riskLevel)
	}

	return domain.SafetyReport{
		RiskLevel:         riskLevel,
		Interactions:      interactions,
		Warnings:          a.buildWarnings(highRiskCount, highInteractions, excessiveCount, unmatchedCount),
		Recommendations:   a.buildRecommendations(matched, riskLevel),
		AnalyzedAt:        time.Now(),
		TotalCompounds:    len(matched),
		HighRiskCompounds: highRiskCount,
	}
}

// findInteractions runs both pairwise rules over every unordered pair of
// matched entries. The rules are independent: both may fire for one pair and
// each hit produces its own warning.
func (a *SafetyAnalyzer) findInteractions(matched []domain.CompoundMatch) []domain.InteractionWarning {
	var warnings []domain.InteractionWarning
	nextID := func() string { return fmt.Sprintf("interaction-%d", len(warnings)+1) }

	for i := 0; i < len(matched); i++ {
		for j := i + 1; j < len(matched); j++ {
			first, second := matched[i], matched[j]

			if w, ok := a.knowledgeBaseRule(first, second); ok {
				w.ID = nextID()
				warnings = append(warnings, w)
			}
			if w, ok := a.additiveEffectsRule(first, second); ok {
				w.ID = nextID()
				warnings = append(warnings, w)
			}
		}
	}

	return warnings
}

// knowledgeBaseRule fires when one member's name contains a risk agent and
// the other contains any of its interacting keywords.
func (a *SafetyAnalyzer) knowledgeBaseRule(first, second domain.CompoundMatch) (domain.InteractionWarning, bool) {
	name1 := strings.ToLower(*first.CompoundName)
	name2 := strings.ToLower(*second.CompoundName)

	// Sorted agents keep warning output stable across runs.
	agents := make([]string, 0, len(a.policy.InteractionKB))
	for agent := range a.policy.InteractionKB {
		agents = append(agents, agent)
	}
	sort.Strings(agents)

	for _, agent := range agents {
		interactors := a.policy.InteractionKB[agent]
		var agentName, otherName string
		switch {
		case strings.Contains(name1, agent):
			agentName, otherName = name1, name2
		case strings.Contains(name2, agent):
			agentName, otherName = name2, name1
		default:
			continue
		}

		for _, keyword := range interactors {
			if !strings.Contains(otherName, keyword) {
				continue
			}

			severity := domain.SeverityModerate
			if a.isHighRiskPair(agent, keyword) {
				severity = domain.SeverityHigh
			}

			return domain.InteractionWarning{
				Compound1Name: *first.CompoundName,
				Compound2Name: *second.CompoundName,
				Severity:      severity,
				Description: fmt.Sprintf("%s and %s have a documented interaction (%s with %s)",
					*first.CompoundName, *second.CompoundName, agentName, keyword),
				Recommendation: "Consult a healthcare professional before combining these compounds",
			}, true
		}
	}

	return domain.InteractionWarning{}, false
}

// additiveEffectsRule fires when both members share the same non-empty
// category and that category is watched.
func (a *SafetyAnalyzer) additiveEffectsRule(first, second domain.CompoundMatch) (domain.InteractionWarning, bool) {
	cat1 := strings.ToLower(*first.CompoundCategory)
	cat2 := strings.ToLower(*second.CompoundCategory)
	if cat1 == "" || cat1 != cat2 {
		return domain.InteractionWarning{}, false
	}

	watched := false
	for _, c := range a.policy.WatchedCategories {
		if cat1 == c {
			watched = true
			break
		}
	}
	if !watched {
		return domain.InteractionWarning{}, false
	}

	return domain.InteractionWarning{
		Compound1Name: *first.CompoundName,
		Compound2Name: *second.CompoundName,
		Severity:      domain.SeverityModerate,
		Description: fmt.Sprintf("%s and %s are both %ss; combining them may produce additive effects",
			*first.CompoundName, *second.CompoundName, cat1),
		Recommendation: "Start with reduced doses when combining compounds of the same class",
	}, true
}

func (a *SafetyAnalyzer) isHighRiskPair(agent, supplement string) bool {
	for _, pair := range a.policy.HighRiskPairs {
		if pair.Agent == agent && pair.Supplement == supplement {
			return true
		}
	}
	return false
}

func (a *SafetyAnalyzer) isHighRiskCompound(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range a.policy.HighRiskCompounds {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// buildWarnings generates the human-readable warning strings keyed off the
// aggregate counts.
func (a *SafetyAnalyzer) buildWarnings(highRisk, seriousInteractions, excessive, unmatched int) []string {
	var warnings []string

	if highRisk > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"%d compound(s) on this label are classified as high-risk", highRisk))
	}
	if seriousInteractions > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"%d serious interaction(s) detected between label compounds", seriousInteractions))
	}
	if excessive > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"%d ingredient(s) exceed typical dosage amounts", excessive))
	}
	if unmatched > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"%d ingredient(s) could not be identified and were excluded from the safety analysis", unmatched))
	}

	return warnings
}

// buildRecommendations mixes static best-practice advice with
// category-conditional guidance.
func (a *SafetyAnalyzer) buildRecommendations(matched []domain.CompoundMatch, riskLevel domain.RiskLevel) []string {
	recommendations := []string{
		"Take fat-soluble compounds with food for better absorption",
		"Stay well hydrated while supplementing",
		"Prefer products with third-party testing certification",
	}

	for _, m := range matched {
		if strings.ToLower(*m.CompoundCategory) == "nootropic" {
			recommendations = append(recommendations,
				"Cycle nootropic compounds periodically to avoid tolerance buildup")
			break
		}
	}

	if riskLevel != domain.RiskLow {
		recommendations = append(recommendations,
			"Discuss this combination with a healthcare professional before use")
	}

	return recommendations
}
