// Package reccobeats is the feature-service adapter: it maps external track
// ids to the service's own ids and fetches their audio features.
package reccobeats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.reccobeats.com/v1"

// Client is an HTTP client for the feature service.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	logger      *zap.Logger
	maxRetries  int
	baseBackoff time.Duration
}

// compile-time interface assertion
var _ ports.FeatureService = (*Client)(nil)

// NewClient constructs a client. Retry behaviour comes from
// FEATURES_MAX_RETRIES and FEATURES_RETRY_BACKOFF_MS.
func NewClient(httpClient *http.Client, baseURL string, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRetries, backoff := getRetryConfig()
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger,
		maxRetries:  maxRetries,
		baseBackoff: backoff,
	}
}

// LookupTrack resolves an external track id through the search endpoint.
// The entry whose href names the external id wins; without hrefs the first
// entry is used.
func (c *Client) LookupTrack(ctx context.Context, externalID string) (string, error) {
	if strings.TrimSpace(externalID) == "" {
		return "", fmt.Errorf("reccobeats adapter: empty track id: %w", domain.ErrNotFound)
	}

	endpoint := fmt.Sprintf("%s/track?ids=%s", c.baseURL, url.QueryEscape(externalID))
	var body trackSearchResponse
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return "", err
	}

	id := matchEntry(body.Content, externalID)
	if id == "" {
		return "", fmt.Errorf("reccobeats adapter: no entry for track %s: %w", externalID, domain.ErrNotFound)
	}
	return id, nil
}

// AudioFeatures fetches the feature vector for a service id.
func (c *Client) AudioFeatures(ctx context.Context, id string) (domain.AudioFeatures, error) {
	endpoint := fmt.Sprintf("%s/track/%s/audio-features", c.baseURL, url.PathEscape(id))
	var body audioFeaturesResponse
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return domain.AudioFeatures{}, err
	}

	if allFeaturesZero(body) {
		return domain.AudioFeatures{}, fmt.Errorf("reccobeats adapter: features for %s: %w", id, domain.ErrEmptyResponse)
	}
	return mapFeaturesToDomain(id, body), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("reccobeats adapter: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("reccobeats adapter: %s: %w", req.URL.Path, domain.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("reccobeats adapter: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("reccobeats adapter: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func matchEntry(entries []trackEntry, externalID string) string {
	anyHref := false
	for _, e := range entries {
		if e.Href == "" {
			continue
		}
		anyHref = true
		if strings.Contains(e.Href, externalID) && e.ID != "" {
			return e.ID
		}
	}
	if !anyHref && len(entries) > 0 {
		return entries[0].ID
	}
	return ""
}

func allFeaturesZero(f audioFeaturesResponse) bool {
	return f.Acousticness == 0 &&
		f.Danceability == 0 &&
		f.Energy == 0 &&
		f.Instrumentalness == 0 &&
		f.Liveness == 0 &&
		f.Loudness == 0 &&
		f.Speechiness == 0 &&
		f.Tempo == 0 &&
		f.Valence == 0
}

func mapFeaturesToDomain(id string, f audioFeaturesResponse) domain.AudioFeatures {
	return domain.AudioFeatures{
		TrackID:          id,
		Acousticness:     f.Acousticness,
		Danceability:     f.Danceability,
		Energy:           f.Energy,
		Instrumentalness: f.Instrumentalness,
		Key:              f.Key,
		Liveness:         f.Liveness,
		Loudness:         f.Loudness,
		Mode:             f.Mode,
		Speechiness:      f.Speechiness,
		Tempo:            f.Tempo,
		Valence:          f.Valence,
	}
}
