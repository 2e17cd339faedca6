package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/labelscan/backend/internal/domain"
	"github.com/labelscan/backend/internal/infrastructure/ai"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// researchSchema is the contract the research call must satisfy. The raw AI
// payload is validated against it before anything downstream touches it.
const researchSchema = `{
  "type": "object",
  "required": ["name", "category", "description", "confidence_score"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "common_names": {"type": "array", "items": {"type": "string"}},
    "category": {"type": "string", "minLength": 1},
    "description": {"type": "string", "minLength": 1},
    "benefits": {"type": "array", "items": {"type": "string"}},
    "side_effects": {"type": "array", "items": {"type": "string"}},
    "dosage_info": {
      "type": "object",
      "properties": {
        "min_dose": {"type": "number"},
        "max_dose": {"type": "number"},
        "unit": {"type": "string"},
        "frequency": {"type": "string"}
      }
    },
    "interactions": {"type": "array", "items": {"type": "string"}},
    "safety_profile": {"type": "string"},
    "research_notes": {"type": "string"},
    "confidence_score": {"type": "number", "minimum": 0, "maximum": 1},
    "sources": {"type": "array", "items": {"type": "string"}}
  }
}`

var cacheKeyRegex = regexp.MustCompile(`[^a-z0-9\s]`)

// Researcher runs the deep research capability: a single-compound
// comprehensive profile via the AI service. Unlike the parser there is no
// fallback tier; failures surface verbatim so callers can distinguish
// rate-limit, quota, and credential conditions.
type Researcher struct {
	ai       chatClient
	cache    domain.CacheRepository
	cacheTTL time.Duration
	schema   *jsonschema.Schema
	debug    bool
}

// NewResearcher creates a researcher. cache may be nil to disable caching.
func NewResearcher(client chatClient, cache domain.CacheRepository, cacheTTL time.Duration) (*Researcher, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("research.json", bytes.NewReader([]byte(researchSchema))); err != nil {
		return nil, fmt.Errorf("failed to load research schema: %w", err)
	}
	schema, err := compiler.Compile("research.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile research schema: %w", err)
	}

	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	return &Researcher{
		ai:       client,
		cache:    cache,
		cacheTTL: cacheTTL,
		schema:   schema,
	}, nil
}

// SetDebug enables or disables debug logging
func (r *Researcher) SetDebug(debug bool) {
	r.debug = debug
}

// Research produces a comprehensive profile for one compound. known carries
// any attributes already on file (category, synonyms) to anchor the call.
func (r *Researcher) Research(ctx context.Context, name string, known map[string]string) (*domain.AIResearchResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: compound name is required", domain.ErrInvalidRequest)
	}

	cacheKey := researchCacheKey(name)
	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, cacheKey); err == nil {
			if result, ok := cached.(*domain.AIResearchResult); ok {
				if r.debug {
					log.Printf("[RESEARCH] cache hit for %q", name)
				}
				return result, nil
			}
		}
	}

	chatResult, err := r.ai.Chat(ctx, &ai.ChatRequest{
		System:       "You are an expert in biomedical and supplement research. Return ONLY a valid JSON object.",
		User:         buildResearchPrompt(name, known),
		Temperature:  0.2,
		MaxTokens:    2000,
		JSONResponse: true,
	})
	if err != nil {
		return nil, err
	}

	payload, err := extractJSONObject(chatResult.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAIMalformedResponse, err)
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAIMalformedResponse, err)
	}
	if err := r.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: schema validation: %v", domain.ErrAIMalformedResponse, err)
	}

	var result domain.AIResearchResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAIMalformedResponse, err)
	}
	result.GeneratedAt = time.Now()

	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey, &result, r.cacheTTL); err != nil {
			log.Printf("[RESEARCH] failed to cache result for %q: %v", name, err)
		}
	}

	return &result, nil
}

func buildResearchPrompt(name string, known map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Produce a comprehensive research profile for the compound %q.\n", name)

	if len(known) > 0 {
		sb.WriteString("\nKnown attributes:\n")
		for _, key := range sortedKeys(known) {
			fmt.Fprintf(&sb, "- %s: %s\n", key, known[key])
		}
	}

	sb.WriteString(`
Respond with a JSON object of this exact shape:
{"name":"string","common_names":["string"],"category":"string","description":"string","benefits":["string"],"side_effects":["string"],"dosage_info":{"min_dose":0,"max_dose":0,"unit":"mg","frequency":"daily"},"interactions":["string"],"safety_profile":"string","research_notes":"string","confidence_score":0.0,"sources":["string"]}

"confidence_score" is your certainty in [0,1] that the profile is accurate.`)

	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// researchCacheKey normalizes the compound name for cache lookup
func researchCacheKey(name string) string {
	normalized := cacheKeyRegex.ReplaceAllString(strings.ToLower(name), "")
	normalized = multiSpaceRegex.ReplaceAllString(strings.TrimSpace(normalized), " ")
	return "research:" + normalized
}
