package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/labelscan/backend/internal/domain"
)

// registryFetcher is the slice of the registry client the matcher needs.
type registryFetcher interface {
	FetchAll(ctx context.Context) ([]domain.CompoundRecord, error)
}

// MatcherConfig holds configuration for the compound matcher
type MatcherConfig struct {
	// MinConfidence is the acceptance threshold for a best candidate. The
	// default 0.4 deliberately favors recall: a plausible match surfaced for
	// user review beats a silent miss.
	MinConfidence      float64
	ResearchBaseURL    string
	EnableDebugLogging bool
}

// dosageRange is the typical per-serving mg range for a compound category
type dosageRange struct {
	Min float64
	Max float64
}

// typicalDosageRanges drives the plausibility bonus and the recommended-range
// hint. Categories follow the registry's taxonomy.
var typicalDosageRanges = map[string]dosageRange{
	"supplement": {Min: 1, Max: 5000},
	"nootropic":  {Min: 50, Max: 600},
	"stimulant":  {Min: 25, Max: 400},
	"sarm":       {Min: 5, Max: 50},
	"peptide":    {Min: 0.1, Max: 10},
}

// matchFillerWords are stripped when generating search terms
var matchFillerWords = map[string]bool{
	"extract": true, "powder": true, "capsule": true,
	"tablet": true, "complex": true, "blend": true,
}

// Matcher resolves parsed ingredient names against the compound registry
// snapshot through a synonym index plus fuzzy scoring.
type Matcher struct {
	registry        registryFetcher
	minConfidence   float64
	researchBaseURL string
	debug           bool

	mu        sync.RWMutex
	byID      map[string]domain.CompoundRecord
	bySynonym map[string][]string // lowercased name/synonym -> compound ids
	ready     bool
}

// NewMatcher creates a matcher handle. The registry snapshot is not loaded
// until Load runs; FindMatches before a successful Load fails with
// ErrMatcherNotReady.
func NewMatcher(registry registryFetcher, config MatcherConfig) *Matcher {
	threshold := config.MinConfidence
	if threshold <= 0 {
		threshold = 0.4
	}

	return &Matcher{
		registry:        registry,
		minConfidence:   threshold,
		researchBaseURL: strings.TrimRight(config.ResearchBaseURL, "/"),
		debug:           config.EnableDebugLogging,
	}
}

// Load pulls the full registry snapshot and builds the lookup indexes.
func (m *Matcher) Load(ctx context.Context) error {
	records, err := m.registry.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRegistryFailure, err)
	}

	byID := make(map[string]domain.CompoundRecord, len(records))
	bySynonym := make(map[string][]string)
	for _, rec := range records {
		byID[rec.ID] = rec
		addSynonym(bySynonym, rec.Name, rec.ID)
		for _, syn := range rec.Synonyms {
			addSynonym(bySynonym, syn, rec.ID)
		}
	}

	m.mu.Lock()
	m.byID = byID
	m.bySynonym = bySynonym
	m.ready = true
	m.mu.Unlock()

	log.Printf("[MATCH] registry index built: %d compounds, %d synonym keys", len(byID), len(bySynonym))
	return nil
}

// Refresh re-pulls the registry and atomically swaps the snapshot. Matching
// continues against the old snapshot until the swap.
func (m *Matcher) Refresh(ctx context.Context) error {
	return m.Load(ctx)
}

// Ready reports whether a registry snapshot has been loaded.
func (m *Matcher) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

func addSynonym(index map[string][]string, term, id string) {
	key := strings.ToLower(strings.TrimSpace(term))
	if key == "" {
		return
	}
	for _, existing := range index[key] {
		if existing == id {
			return
		}
	}
	index[key] = append(index[key], id)
}

// FindMatches resolves each parsed ingredient to its best registry candidate,
// 1:1 in match-then-emit order, then sorts descending by confidence. An
// unresolvable ingredient produces an explicit unmatched entry, not an error.
func (m *Matcher) FindMatches(ingredients []domain.ParsedIngredient) ([]domain.CompoundMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.ready {
		return nil, domain.ErrMatcherNotReady
	}

	matches := make([]domain.CompoundMatch, 0, len(ingredients))
	for i, ing := range ingredients {
		match := m.resolve(ing)
		match.ID = fmt.Sprintf("match-%d", i+1)
		matches = append(matches, match)
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Confidence > matches[b].Confidence
	})

	return matches, nil
}

// resolve runs candidate retrieval plus scoring for one ingredient.
// Caller holds the read lock.
func (m *Matcher) resolve(ing domain.ParsedIngredient) domain.CompoundMatch {
	candidateSet := make(map[string]bool)
	for _, term := range searchTerms(ing.Name) {
		for _, id := range m.bySynonym[term] {
			candidateSet[id] = true
		}
	}

	// Sorted iteration keeps tie-breaking deterministic across runs.
	candidateIDs := make([]string, 0, len(candidateSet))
	for id := range candidateSet {
		candidateIDs = append(candidateIDs, id)
	}
	sort.Strings(candidateIDs)

	var (
		best         *domain.CompoundRecord
		bestScore    float64
		bestSynonyms []string
	)
	for _, id := range candidateIDs {
		rec := m.byID[id]
		score, matchedSyns := scoreCandidate(ing, rec)
		if best == nil || score > bestScore {
			r := rec
			best = &r
			bestScore = score
			bestSynonyms = matchedSyns
		}
	}

	if best == nil || bestScore < m.minConfidence {
		if m.debug {
			log.Printf("[MATCH] %q: unmatched (candidates %d, best %.2f)", ing.Name, len(candidateIDs), bestScore)
		}
		return unmatchedEntry(ing)
	}

	if m.debug {
		log.Printf("[MATCH] %q -> %q (%.2f, %d candidates)", ing.Name, best.Name, bestScore, len(candidateIDs))
	}

	match := domain.CompoundMatch{
		IngredientName:   ing.Name,
		CompoundID:       &best.ID,
		CompoundName:     &best.Name,
		CompoundCategory: &best.Category,
		Confidence:       bestScore,
		DosageAnalysis:   analyzeDosage(ing.Dosage, best.Category),
		SafetyRating:     best.SafetyRating,
		LegalStatus:      best.LegalStatus,
		MatchedSynonyms:  bestSynonyms,
	}
	if m.researchBaseURL != "" {
		url := fmt.Sprintf("%s/compounds/%s", m.researchBaseURL, best.ID)
		match.ResearchURL = &url
	}
	return match
}

// unmatchedEntry is the explicit "ingredient seen, identity unknown" outcome.
func unmatchedEntry(ing domain.ParsedIngredient) domain.CompoundMatch {
	return domain.CompoundMatch{
		IngredientName: ing.Name,
		Confidence:     0,
		DosageAnalysis: domain.DosageAnalysis{
			Status:  domain.DosageUnknown,
			Message: "Compound not recognized; dosage cannot be assessed",
		},
		SafetyRating: domain.SafetyRatingUnknown,
	}
}

// searchTerms generates the candidate-retrieval terms for an ingredient name:
// the raw name, a filler-cleaned variant, and the individual long words of a
// multi-word cleaned variant.
func searchTerms(name string) []string {
	raw := strings.ToLower(strings.TrimSpace(name))
	if raw == "" {
		return nil
	}

	terms := []string{raw}
	seen := map[string]bool{raw: true}

	cleaned := cleanForSearch(raw)
	if cleaned != "" && !seen[cleaned] {
		terms = append(terms, cleaned)
		seen[cleaned] = true
	}

	words := strings.Fields(cleaned)
	if len(words) > 1 {
		for _, word := range words {
			if len(word) > 3 && !seen[word] {
				terms = append(terms, word)
				seen[word] = true
			}
		}
	}

	return terms
}

// cleanForSearch removes filler words and stereochemistry prefixes
func cleanForSearch(name string) string {
	words := strings.Fields(name)
	kept := make([]string, 0, len(words))
	for _, word := range words {
		if matchFillerWords[word] {
			continue
		}
		for _, prefix := range []string{"dl-", "l-", "d-"} {
			if strings.HasPrefix(word, prefix) && len(word) > len(prefix) {
				word = word[len(prefix):]
				break
			}
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// scoreCandidate is the pure scoring function for one (ingredient, candidate)
// pair: base name similarity, +0.3 for a close synonym, +0.2 for dosage/role
// plausibility, capped at 1.0. Deterministic.
func scoreCandidate(ing domain.ParsedIngredient, rec domain.CompoundRecord) (float64, []string) {
	score := stringSimilarity(ing.Name, rec.Name)

	var matchedSynonyms []string
	for _, syn := range rec.Synonyms {
		if stringSimilarity(ing.Name, syn) > 0.8 {
			matchedSynonyms = append(matchedSynonyms, syn)
		}
	}
	if len(matchedSynonyms) > 0 {
		score += 0.3
	}

	if isPlausible(ing, rec) {
		score += 0.2
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, matchedSynonyms
}

// isPlausible holds when the parsed dosage falls in the category's typical
// range, or when an active ingredient meets a plain supplement compound.
func isPlausible(ing domain.ParsedIngredient, rec domain.CompoundRecord) bool {
	if ing.Dosage != nil {
		if r, ok := typicalDosageRanges[rec.Category]; ok {
			if ing.Dosage.Amount >= r.Min && ing.Dosage.Amount <= r.Max {
				return true
			}
		}
	}
	return ing.Type == domain.IngredientActive && rec.Category == "supplement"
}

// analyzeDosage classifies a parsed amount. Boundary semantics: exactly 5000
// is normal, exactly 1 is normal.
func analyzeDosage(dosage *domain.Dosage, category string) domain.DosageAnalysis {
	if dosage == nil {
		return domain.DosageAnalysis{
			Status:  domain.DosageUnknown,
			Message: "No dosage information found on the label",
		}
	}

	analysis := domain.DosageAnalysis{}
	switch {
	case dosage.Amount > 5000:
		analysis.Status = domain.DosageExcessive
		analysis.Message = fmt.Sprintf("%g %s exceeds typical supplemental amounts", dosage.Amount, dosage.Unit)
	case dosage.Amount < 1:
		analysis.Status = domain.DosageLow
		analysis.Message = fmt.Sprintf("%g %s is below typical supplemental amounts", dosage.Amount, dosage.Unit)
	default:
		analysis.Status = domain.DosageNormal
		analysis.Message = fmt.Sprintf("%g %s is within typical supplemental amounts", dosage.Amount, dosage.Unit)
	}

	if r, ok := typicalDosageRanges[category]; ok {
		analysis.RecommendedRange = fmt.Sprintf("%g-%g mg", r.Min, r.Max)
	}

	return analysis
}
