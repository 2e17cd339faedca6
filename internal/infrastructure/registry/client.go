package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/labelscan/backend/internal/domain"
	"golang.org/x/time/rate"
)

// snapshotPageSize is the "effectively all" page requested when pulling the
// full registry at matcher load time.
const snapshotPageSize = 1000

// Client handles communication with the compound registry API
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a new compound registry client
func NewClient(apiKey, baseURL string) *Client {
	// The registry is a read-only catalogue; 2 req/sec with a small burst is
	// plenty for snapshot pulls and refreshes.
	limiter := rate.NewLimiter(rate.Limit(2), 5)

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: limiter,
	}
}

// SetDebug enables or disables debug logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// ListCompounds retrieves one page of the compound registry
func (c *Client) ListCompounds(ctx context.Context, page, pageSize int) (*domain.CompoundListing, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = snapshotPageSize
	}

	endpoint := fmt.Sprintf("%s/api/compounds", c.baseURL)
	params := url.Values{}
	params.Add("page", fmt.Sprintf("%d", page))
	params.Add("page_size", fmt.Sprintf("%d", pageSize))
	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	var listing *domain.CompoundListing
	err := retry.Do(
		func() error {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(fmt.Errorf("rate limiter error: %w", err))
			}

			body, err := c.doRequest(ctx, reqURL)
			if err != nil {
				return err
			}

			var resp listingResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to decode registry response: %w", err))
			}

			listing = mapListing(&resp)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		log.Printf("[REGISTRY] ListCompounds failed (page %d): %v", page, err)
		return nil, err
	}

	if c.debug {
		log.Printf("[REGISTRY] page %d/%d: %d compounds (total %d)",
			listing.Metadata.Page, listing.Metadata.TotalPages,
			len(listing.Data), listing.Metadata.Total)
	}

	return listing, nil
}

// FetchAll pulls the complete registry snapshot, following pagination when the
// catalogue exceeds one large page.
func (c *Client) FetchAll(ctx context.Context) ([]domain.CompoundRecord, error) {
	first, err := c.ListCompounds(ctx, 1, snapshotPageSize)
	if err != nil {
		return nil, err
	}

	records := first.Data
	for page := 2; page <= first.Metadata.TotalPages; page++ {
		listing, err := c.ListCompounds(ctx, page, snapshotPageSize)
		if err != nil {
			return nil, err
		}
		records = append(records, listing.Data...)
	}

	log.Printf("[REGISTRY] snapshot loaded: %d compounds", len(records))
	return records, nil
}

// doRequest executes an HTTP GET and returns the response body
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", "LabelScan/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRegistryFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrRegistryFailure, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", domain.ErrRegistryFailure, resp.StatusCode)
	default:
		return nil, retry.Unrecoverable(fmt.Errorf("%w: status %d, body: %s",
			domain.ErrRegistryFailure, resp.StatusCode, string(body)))
	}
}
