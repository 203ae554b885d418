// Package cadastral talks to the external cadastral lookup service that
// owns parcel geometry. The server only mirrors what it fetches here.
package cadastral

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/sitefit/server/internal/config"
)

// ErrParcelUnknown means the cadastral source has no such parcel. This is
// permanent and distinct from transient fetch failures, which callers may
// retry later.
var ErrParcelUnknown = errors.New("parcel unknown to the cadastral source")

// Client handles communication with the cadastral lookup service.
type Client struct {
	baseURL    string
	retryCount int
	client     *http.Client
}

// NewClient creates a new cadastral service client.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.Cadastral.BaseURL,
		retryCount: cfg.Cadastral.RetryCount,
		client: &http.Client{
			Timeout: cfg.Cadastral.Timeout,
		},
	}
}

// ParcelFeature is a fetched parcel: geometry plus the source attributes
// the feasibility flow cares about.
type ParcelFeature struct {
	ID           string
	Jurisdiction string
	Geometry     orb.MultiPolygon
	Source       string
	FetchedAt    time.Time
}

type healthResponse struct {
	Status string `json:"status"`
}

// HealthCheck checks if the cadastral service is reachable and healthy.
func (c *Client) HealthCheck() error {
	resp, err := c.client.Get(fmt.Sprintf("%s/health", c.baseURL))
	if err != nil {
		return fmt.Errorf("cadastral health check failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("Warning: failed to close cadastral health response body: %v", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cadastral health check failed with status %d", resp.StatusCode)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode cadastral health response: %w", err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("cadastral service reported unhealthy status: %s", health.Status)
	}
	return nil
}

// FetchParcel retrieves a parcel feature by jurisdiction and id, retrying
// transient failures with exponential backoff. A 404 from the source is
// returned as ErrParcelUnknown without retrying.
func (c *Client) FetchParcel(jurisdiction, parcelID string) (*ParcelFeature, error) {
	if parcelID == "" {
		return nil, fmt.Errorf("parcel id is required")
	}

	endpoint := fmt.Sprintf("%s/api/v1/parcels/%s/%s",
		c.baseURL, url.PathEscape(jurisdiction), url.PathEscape(parcelID))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 100ms, 200ms, 400ms
			backoff := time.Duration(100*(1<<uint(attempt-1))) * time.Millisecond
			time.Sleep(backoff)
		}

		feature, retryable, err := c.fetchOnce(endpoint, jurisdiction, parcelID)
		if err == nil {
			return feature, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("cadastral fetch failed after %d attempts: %w", c.retryCount+1, lastErr)
}

func (c *Client) fetchOnce(endpoint, jurisdiction, parcelID string) (*ParcelFeature, bool, error) {
	resp, err := c.client.Get(endpoint)
	if err != nil {
		return nil, true, fmt.Errorf("cadastral request failed: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		log.Printf("Warning: failed to close cadastral response body: %v", closeErr)
	}
	if err != nil {
		return nil, true, fmt.Errorf("failed to read cadastral response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrParcelUnknown
	case resp.StatusCode != http.StatusOK:
		return nil, true, fmt.Errorf("cadastral fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	feature, err := geojson.UnmarshalFeature(body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode cadastral feature: %w", err)
	}

	var geom orb.MultiPolygon
	switch g := feature.Geometry.(type) {
	case orb.MultiPolygon:
		geom = g
	case orb.Polygon:
		geom = orb.MultiPolygon{g}
	default:
		return nil, false, fmt.Errorf("unsupported cadastral geometry type %T", feature.Geometry)
	}

	source := "cadastre"
	if s, ok := feature.Properties["source"].(string); ok && s != "" {
		source = s
	}

	return &ParcelFeature{
		ID:           parcelID,
		Jurisdiction: jurisdiction,
		Geometry:     geom,
		Source:       source,
		FetchedAt:    time.Now(),
	}, false, nil
}
