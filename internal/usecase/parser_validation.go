package usecase

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/labelscan/backend/internal/domain"
)

// This file is the strict boundary between the untrusted language-model
// output and the rest of the pipeline. Nothing downstream ever sees raw AI
// JSON: entries are rejected per-field or per-record here, never fatally.

// aiParseEnvelope is the loosely-typed shape the model is asked to return.
type aiParseEnvelope struct {
	Ingredients []rawAIIngredient `json:"ingredients"`
}

type rawAIIngredient struct {
	Name        string       `json:"name"`
	CommonNames []any        `json:"common_names"`
	Dosage      *rawAIDosage `json:"dosage"`
	Type        string       `json:"type"`
	Confidence  *float64     `json:"confidence"`
}

type rawAIDosage struct {
	Amount               *float64 `json:"amount"`
	Unit                 string   `json:"unit"`
	DailyValuePercentage *float64 `json:"daily_value_percentage"`
	PerServing           *bool    `json:"per_serving"`
}

// minAIConfidence drops AI-proposed entries the model itself is unsure about.
const minAIConfidence = 0.3

// validateAIIngredients converts the untrusted payload into strict
// ParsedIngredient values. Invalid entries are dropped, invalid fields are
// defaulted; the function never fails.
func validateAIIngredients(payload json.RawMessage, rawText string) []domain.ParsedIngredient {
	var envelope aiParseEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		log.Printf("[PARSER] AI payload did not match the ingredients envelope: %v", err)
		return nil
	}

	now := time.Now()
	ingredients := make([]domain.ParsedIngredient, 0, len(envelope.Ingredients))

	for _, raw := range envelope.Ingredients {
		name := cleanIngredientName(raw.Name)
		if name == "" {
			continue
		}

		confidence := 0.5
		if raw.Confidence != nil && *raw.Confidence >= 0 && *raw.Confidence <= 1 {
			confidence = *raw.Confidence
		}
		if confidence <= minAIConfidence {
			continue
		}

		ing := domain.ParsedIngredient{
			Name:        name,
			CommonNames: stringEntries(raw.CommonNames),
			Type:        validateRole(raw.Type, name),
			Confidence:  confidence,
			RawText:     rawText,
			ExtractedAt: now,
		}

		if raw.Dosage != nil && raw.Dosage.Amount != nil && *raw.Dosage.Amount > 0 {
			perServing := true
			if raw.Dosage.PerServing != nil {
				perServing = *raw.Dosage.PerServing
			}
			ing.Dosage = &domain.Dosage{
				Amount:               *raw.Dosage.Amount,
				Unit:                 standardizeUnit(raw.Dosage.Unit),
				DailyValuePercentage: raw.Dosage.DailyValuePercentage,
				PerServing:           perServing,
			}
		}

		ingredients = append(ingredients, ing)
	}

	return ingredients
}

// stringEntries filters a loosely-typed array down to its non-empty strings
func stringEntries(values []any) []string {
	var out []string
	for _, v := range values {
		if s, ok := v.(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

// validateRole accepts a declared role only when it is one of ours; anything
// else is reclassified from the name.
func validateRole(role, name string) domain.IngredientType {
	switch domain.IngredientType(strings.ToLower(strings.TrimSpace(role))) {
	case domain.IngredientActive:
		return domain.IngredientActive
	case domain.IngredientInactive:
		return domain.IngredientInactive
	case domain.IngredientCarrier:
		return domain.IngredientCarrier
	case domain.IngredientPreservative:
		return domain.IngredientPreservative
	case domain.IngredientFlavoring:
		return domain.IngredientFlavoring
	default:
		return classifyRole(name)
	}
}

// extractJSONObject recovers a JSON object from model output that may be
// wrapped in code fences or surrounding prose.
func extractJSONObject(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		candidates = append(candidates, content[start:end+1])
	}

	for _, candidate := range candidates {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			normalized, mErr := json.Marshal(parsed)
			if mErr != nil {
				return nil, fmt.Errorf("failed to normalize JSON: %w", mErr)
			}
			return normalized, nil
		}
	}

	return nil, fmt.Errorf("no JSON object found in response")
}

// stripCodeFences drops a surrounding markdown code fence if present
func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
