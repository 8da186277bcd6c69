// Package geocode resolves free-text addresses to map coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bananalabs-oss/powkie/internal/metrics"
)

const DefaultBaseURL = "https://api.mapbox.com"

var (
	ErrMissingCredential = errors.New("geocoding credential is not configured")
	ErrNotFound          = errors.New("address could not be found on the map")
)

type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

func (p Point) Valid() bool {
	return !math.IsNaN(p.Lng) && !math.IsNaN(p.Lat) &&
		p.Lng >= -180 && p.Lng <= 180 && p.Lat >= -90 && p.Lat <= 90
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (Point, error)
}

// Mapbox talks to the Mapbox Geocoding v5 places endpoint and asks for the
// single best match.
type Mapbox struct {
	token   string
	baseURL string
	client  *http.Client
	metrics *metrics.Metrics
}

func NewMapbox(token, baseURL string, m *metrics.Metrics) *Mapbox {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Mapbox{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		metrics: m,
	}
}

type placesResponse struct {
	Features []struct {
		Center []float64 `json:"center"`
	} `json:"features"`
}

func (g *Mapbox) Geocode(ctx context.Context, address string) (Point, error) {
	if g.token == "" {
		g.metrics.GeocodeRequest("no_credential")
		return Point{}, ErrMissingCredential
	}

	endpoint := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s",
		g.baseURL,
		url.PathEscape(strings.TrimSpace(address)),
		url.Values{"limit": {"1"}, "access_token": {g.token}}.Encode(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Point{}, fmt.Errorf("failed to build geocoding request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.metrics.GeocodeRequest("error")
		return Point{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.metrics.GeocodeRequest("error")
		return Point{}, fmt.Errorf("geocoding request failed with status %d", resp.StatusCode)
	}

	var body placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		g.metrics.GeocodeRequest("error")
		return Point{}, fmt.Errorf("failed to decode geocoding response: %w", err)
	}

	if len(body.Features) == 0 || len(body.Features[0].Center) != 2 {
		g.metrics.GeocodeRequest("not_found")
		return Point{}, ErrNotFound
	}

	p := Point{Lng: body.Features[0].Center[0], Lat: body.Features[0].Center[1]}
	if !p.Valid() {
		g.metrics.GeocodeRequest("not_found")
		log.Printf("[Geocode] Discarding out-of-range center %v for %q", body.Features[0].Center, address)
		return Point{}, ErrNotFound
	}

	g.metrics.GeocodeRequest("ok")
	return p, nil
}
