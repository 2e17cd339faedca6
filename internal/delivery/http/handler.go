package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/labelscan/backend/internal/domain"
	"github.com/labelscan/backend/internal/usecase"
)

// maxImageBytes caps uploaded label photos at 10 MB
const maxImageBytes = 10 << 20

// Handler holds dependencies for HTTP handlers
type Handler struct {
	scanner    *usecase.Scanner
	researcher *usecase.Researcher
	matcher    *usecase.Matcher
}

// NewHandler creates a new HTTP handler
func NewHandler(scanner *usecase.Scanner, researcher *usecase.Researcher, matcher *usecase.Matcher) *Handler {
	return &Handler{
		scanner:    scanner,
		researcher: researcher,
		matcher:    matcher,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	status := "healthy"
	if !h.matcher.Ready() {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          status,
		"service":         "labelscan-backend",
		"version":         "1.0.0",
		"registry_loaded": h.matcher.Ready(),
	})
}

// Scan handles one label photograph upload and returns the full scan result
func (h *Handler) Scan(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image file"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return
	}
	if len(image) > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds 10MB limit"})
		return
	}

	scanType := domain.ScanType(c.PostForm("scan_type"))
	switch scanType {
	case domain.ScanTypeSupplement, domain.ScanTypeFood, domain.ScanTypeAuto:
	case "":
		scanType = domain.ScanTypeAuto
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scan_type must be supplement, food, or auto"})
		return
	}

	result, err := h.scanner.Scan(c.Request.Context(), &domain.RawCapture{
		Image:    image,
		ScanType: scanType,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Stage-tagged failure: the scan is retryable, no partial result exists.
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// researchRequest is the POST body for the deep research endpoint
type researchRequest struct {
	Name            string            `json:"name" binding:"required"`
	KnownAttributes map[string]string `json:"known_attributes,omitempty"`
}

// Research handles single-compound deep research requests
func (h *Handler) Research(c *gin.Context) {
	var req researchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	result, err := h.researcher.Research(c.Request.Context(), req.Name, req.KnownAttributes)
	if err != nil {
		c.JSON(researchErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// researchErrorStatus maps the AI error taxonomy onto HTTP statuses
func researchErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAICredentialMissing):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAIQuotaExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrAIRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
