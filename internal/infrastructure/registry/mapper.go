package registry

import (
	"strings"

	"github.com/labelscan/backend/internal/domain"
)

// Wire types for the registry listing endpoint. Synonym and rating fields are
// nullable upstream, so they are normalized here before reaching the domain.

type listingResponse struct {
	Data     []compoundDTO `json:"data"`
	Metadata metadataDTO   `json:"metadata"`
}

type compoundDTO struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Synonyms     []string `json:"synonyms"`
	Category     string   `json:"category"`
	SafetyRating string   `json:"safety_rating"`
	LegalStatus  string   `json:"legal_status"`
}

type metadataDTO struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// mapListing converts a wire listing page into domain records
func mapListing(resp *listingResponse) *domain.CompoundListing {
	records := make([]domain.CompoundRecord, 0, len(resp.Data))
	for _, dto := range resp.Data {
		records = append(records, mapCompound(&dto))
	}

	return &domain.CompoundListing{
		Data: records,
		Metadata: domain.ListingMetadata{
			Total:      resp.Metadata.Total,
			Page:       resp.Metadata.Page,
			PageSize:   resp.Metadata.PageSize,
			TotalPages: resp.Metadata.TotalPages,
		},
	}
}

// mapCompound normalizes one registry entry
func mapCompound(dto *compoundDTO) domain.CompoundRecord {
	synonyms := make([]string, 0, len(dto.Synonyms))
	for _, s := range dto.Synonyms {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			synonyms = append(synonyms, trimmed)
		}
	}

	return domain.CompoundRecord{
		ID:           dto.ID,
		Name:         strings.TrimSpace(dto.Name),
		Synonyms:     synonyms,
		Category:     strings.ToLower(strings.TrimSpace(dto.Category)),
		SafetyRating: normalizeSafetyRating(dto.SafetyRating),
		LegalStatus:  dto.LegalStatus,
	}
}

// normalizeSafetyRating maps upstream rating strings to the letter grades
func normalizeSafetyRating(rating string) domain.SafetyRating {
	switch strings.ToUpper(strings.TrimSpace(rating)) {
	case "A":
		return domain.SafetyRatingA
	case "B":
		return domain.SafetyRatingB
	case "C":
		return domain.SafetyRatingC
	case "D":
		return domain.SafetyRatingD
	default:
		return domain.SafetyRatingUnknown
	}
}
