package usecase

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/labelscan/backend/internal/domain"
	"github.com/labelscan/backend/internal/infrastructure/ai"
)

// chatClient is the slice of the AI client the parser and researcher need.
type chatClient interface {
	Chat(ctx context.Context, req *ai.ChatRequest) (*ai.ChatResult, error)
	Configured() bool
}

// Line patterns for the rule-based tier, tried in order; first match wins.
var (
	// "Creatine Monohydrate 5000mg" / "Vitamin D3 - 125 mcg"
	nameAmountUnitRegex = regexp.MustCompile(`(?i)^(.+?)[\s:–-]+([\d,]+(?:\.\d+)?)\s*(mg|mcg|µg|ug|g|iu|ml|milligrams?|micrograms?|grams?|milliliters?|international\s+units?|i\.u\.)\.?(?:\s|$)`)

	// "Magnesium (as Magnesium Glycinate) 200 mg"
	parentheticalRegex = regexp.MustCompile(`(?i)^(.+?)\s*\(([^)]+)\)\s*[:–-]?\s*([\d,]+(?:\.\d+)?)\s*([a-zµ%.]+)`)

	// "Niacin 25%" / "Vitamin C 100% DV"
	percentOnlyRegex = regexp.MustCompile(`(?i)^(.+?)\s+([\d.]+)\s*%(?:\s*dv)?\s*$`)

	// "Caffeine Anhydrous 200" (amount with no explicit unit)
	nameAmountRegex = regexp.MustCompile(`(?i)^([a-z][a-z'’\-\s]+?)\s+([\d,]+(?:\.\d+)?)\s*$`)
)

var (
	parenContentRegex = regexp.MustCompile(`\([^)]*\)`)
	bracketCharRegex  = regexp.MustCompile(`[()\[\]{}]`)
	edgeTrimRegex     = regexp.MustCompile(`^[^a-zA-Z0-9]+|[^a-zA-Z0-9]+$`)
	multiSpaceRegex   = regexp.MustCompile(`\s+`)
)

// fillerWords are dropped from ingredient names during cleaning
var fillerWords = map[string]bool{
	"as": true, "from": true, "extract": true,
	"powder": true, "capsule": true, "tablet": true,
}

// unitSynonyms standardizes dosage units. Unknown units pass through
// lower-cased, which keeps standardizeUnit idempotent.
var unitSynonyms = map[string]string{
	"mg": "mg", "mg.": "mg", "milligram": "mg", "milligrams": "mg",
	"mcg": "mcg", "mcg.": "mcg", "µg": "mcg", "ug": "mcg", "microgram": "mcg", "micrograms": "mcg",
	"g": "g", "g.": "g", "gram": "g", "grams": "g",
	"iu": "iu", "i.u.": "iu", "international unit": "iu", "international units": "iu",
	"ml": "ml", "ml.": "ml", "milliliter": "ml", "milliliters": "ml",
	"%": "%", "%dv": "%", "% dv": "%", "percent": "%",
}

// Role-classification keyword lists, checked in precedence order.
var (
	inactiveKeywords = []string{
		"cellulose", "stearate", "silicon dioxide", "silica",
		"dicalcium phosphate", "maltodextrin", "rice flour", "titanium dioxide",
		"croscarmellose", "magnesium oxide filler",
	}
	preservativeKeywords = []string{
		"benzoate", "sorbate", "bha", "bht", "citric acid", "ascorbyl palmitate",
		"tocopherol preservative",
	}
	flavoringKeywords = []string{
		"flavor", "flavour", "sweetener", "sucralose", "stevia",
		"aspartame", "acesulfame", "monk fruit",
	}
	carrierKeywords = []string{
		"vegetable oil", "sunflower oil", "mct oil", "glycerin", "glycerol",
		"lecithin", "beeswax", "purified water",
	}
)

// IngredientParser converts raw label text into structured ingredient records.
// The AI tier is tried first when a credential is configured; any failure there
// falls through silently to the deterministic rule tier.
type IngredientParser struct {
	ai    chatClient
	debug bool
}

// NewIngredientParser creates a parser. client may be nil to run rules-only.
func NewIngredientParser(client chatClient) *IngredientParser {
	return &IngredientParser{ai: client}
}

// SetDebug enables or disables debug logging
func (p *IngredientParser) SetDebug(debug bool) {
	p.debug = debug
}

// ParseIngredients extracts structured ingredients from label text. Empty
// results are valid outcomes, never errors; the AI fallback is invisible to
// the caller.
func (p *IngredientParser) ParseIngredients(ctx context.Context, text string, scanType domain.ScanType) []domain.ParsedIngredient {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if p.ai != nil && p.ai.Configured() {
		ingredients, err := p.parseWithAI(ctx, text, scanType)
		if err != nil {
			log.Printf("[PARSER] AI parsing failed, falling back to rules: %v", err)
		} else if len(ingredients) > 0 {
			if p.debug {
				log.Printf("[PARSER] AI tier parsed %d ingredients", len(ingredients))
			}
			return ingredients
		} else {
			log.Printf("[PARSER] AI tier returned no usable ingredients, falling back to rules")
		}
	}

	return p.parseWithRules(text)
}

// parseWithAI runs the language-model tier and validates its output.
func (p *IngredientParser) parseWithAI(ctx context.Context, text string, scanType domain.ScanType) ([]domain.ParsedIngredient, error) {
	result, err := p.ai.Chat(ctx, &ai.ChatRequest{
		System:       "You extract supplement ingredients from label text. Return ONLY a valid JSON object, no markdown and no commentary.",
		User:         buildParsePrompt(text, scanType),
		Temperature:  0.1,
		MaxTokens:    1500,
		JSONResponse: true,
	})
	if err != nil {
		return nil, err
	}

	payload, err := extractJSONObject(result.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAIMalformedResponse, err)
	}

	return validateAIIngredients(payload, text), nil
}

func buildParsePrompt(text string, scanType domain.ScanType) string {
	return fmt.Sprintf(`Extract every ingredient from this %s label text.

Respond with a JSON object of this exact shape:
{"ingredients":[{"name":"string","common_names":["string"],"dosage":{"amount":0,"unit":"mg","daily_value_percentage":null,"per_serving":true},"type":"active|inactive|carrier|preservative|flavoring","confidence":0.0}]}

Rules:
- "name" is the canonical ingredient name without parenthetical qualifiers.
- Omit "dosage" when no amount is stated.
- "confidence" is your certainty in [0,1] that the entry is correct.

Label text:
%s`, scanType, text)
}

// parseWithRules is the deterministic fallback tier: one pass over the label
// lines through an ordered regex ladder.
func (p *IngredientParser) parseWithRules(text string) []domain.ParsedIngredient {
	now := time.Now()
	var ingredients []domain.ParsedIngredient

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if ing, ok := parseLine(line, now); ok {
			ingredients = append(ingredients, ing)
		}
	}

	if p.debug {
		log.Printf("[PARSER] rule tier parsed %d ingredients", len(ingredients))
	}
	return ingredients
}

// parseLine attempts the pattern ladder against one label line.
func parseLine(line string, now time.Time) (domain.ParsedIngredient, bool) {
	if m := nameAmountUnitRegex.FindStringSubmatch(line); m != nil {
		return buildIngredient(line, m[1], m[2], m[3], nil, 0.9, now)
	}

	if m := parentheticalRegex.FindStringSubmatch(line); m != nil {
		qualifier := strings.TrimSpace(m[2])
		var commonNames []string
		if qualified := cleanIngredientName(qualifier); len(qualified) >= 3 {
			commonNames = []string{qualified}
		}
		return buildIngredient(line, m[1], m[3], m[4], commonNames, 0.8, now)
	}

	if m := percentOnlyRegex.FindStringSubmatch(line); m != nil {
		return buildPercentIngredient(line, m[1], m[2], now)
	}

	if m := nameAmountRegex.FindStringSubmatch(line); m != nil {
		return buildIngredient(line, m[1], m[2], "", nil, 0.5, now)
	}

	return domain.ParsedIngredient{}, false
}

func buildIngredient(raw, name, amountStr, unit string, commonNames []string, confidence float64, now time.Time) (domain.ParsedIngredient, bool) {
	cleaned := cleanIngredientName(name)
	if len(cleaned) < 3 {
		return domain.ParsedIngredient{}, false
	}

	ing := domain.ParsedIngredient{
		Name:        cleaned,
		CommonNames: commonNames,
		Type:        classifyRole(cleaned),
		Confidence:  confidence,
		RawText:     raw,
		ExtractedAt: now,
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(amountStr, ",", ""), 64)
	if err == nil && amount > 0 {
		ing.Dosage = &domain.Dosage{
			Amount:     amount,
			Unit:       standardizeUnit(unit),
			PerServing: true,
		}
	}

	return ing, true
}

func buildPercentIngredient(raw, name, valueStr string, now time.Time) (domain.ParsedIngredient, bool) {
	cleaned := cleanIngredientName(name)
	if len(cleaned) < 3 {
		return domain.ParsedIngredient{}, false
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil || value <= 0 {
		return domain.ParsedIngredient{}, false
	}

	dv := value
	return domain.ParsedIngredient{
		Name: cleaned,
		Dosage: &domain.Dosage{
			Amount:               value,
			Unit:                 "%",
			DailyValuePercentage: &dv,
			PerServing:           true,
		},
		Type:        classifyRole(cleaned),
		Confidence:  0.6,
		RawText:     raw,
		ExtractedAt: now,
	}, true
}

// cleanIngredientName normalizes an extracted name: parenthetical content and
// bracket characters go, filler words go, edges are trimmed to word characters.
func cleanIngredientName(name string) string {
	name = parenContentRegex.ReplaceAllString(name, " ")
	name = bracketCharRegex.ReplaceAllString(name, " ")

	words := strings.Fields(name)
	kept := make([]string, 0, len(words))
	for _, word := range words {
		if fillerWords[strings.ToLower(strings.Trim(word, ",.;:"))] {
			continue
		}
		kept = append(kept, word)
	}

	name = strings.Join(kept, " ")
	name = edgeTrimRegex.ReplaceAllString(name, "")
	return multiSpaceRegex.ReplaceAllString(name, " ")
}

// standardizeUnit maps unit spellings onto canonical short forms. Idempotent.
func standardizeUnit(unit string) string {
	key := strings.ToLower(strings.TrimSpace(unit))
	key = multiSpaceRegex.ReplaceAllString(key, " ")
	if std, ok := unitSynonyms[key]; ok {
		return std
	}
	return key
}

// classifyRole assigns the ingredient role from keyword lists, checked in
// precedence order; no hit defaults to active.
func classifyRole(name string) domain.IngredientType {
	lower := strings.ToLower(name)

	for _, kw := range inactiveKeywords {
		if strings.Contains(lower, kw) {
			return domain.IngredientInactive
		}
	}
	for _, kw := range preservativeKeywords {
		if strings.Contains(lower, kw) {
			return domain.IngredientPreservative
		}
	}
	for _, kw := range flavoringKeywords {
		if strings.Contains(lower, kw) {
			return domain.IngredientFlavoring
		}
	}
	for _, kw := range carrierKeywords {
		if strings.Contains(lower, kw) {
			return domain.IngredientCarrier
		}
	}

	return domain.IngredientActive
}
