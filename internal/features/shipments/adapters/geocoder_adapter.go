package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"freight-tracker/internal/core/cache"
	"freight-tracker/internal/core/geo"
	"freight-tracker/internal/core/httpclient"
	"freight-tracker/internal/core/logger"

	"go.uber.org/zap"
)

// geocodeCacheTTL keeps resolved city coordinates for a month; city centers
// do not move.
const geocodeCacheTTL = 30 * 24 * time.Hour

// HTTPGeocoder resolves Brazilian city/state pairs against a Nominatim-style
// search endpoint, caching results to spare the rate-limited upstream.
type HTTPGeocoder struct {
	baseURL string
	token   string
	client  *http.Client
	cache   cache.Cache
}

// NewHTTPGeocoder creates the geocoder. cache may be nil to disable caching.
func NewHTTPGeocoder(baseURL, token string, store cache.Cache) *HTTPGeocoder {
	return &HTTPGeocoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  httpclient.NewClient(10 * time.Second),
		cache:   store,
	}
}

// geocodeResult is one candidate from the search endpoint. Coordinates come
// back as strings.
type geocodeResult struct {
	Lat string `json:"lat"`
	Lng string `json:"lon"`
}

// Geocode resolves a city/state pair to its coordinate. Cache first, then the
// upstream search endpoint; the first candidate wins.
func (g *HTTPGeocoder) Geocode(ctx context.Context, city, state string) (geo.Point, error) {
	if strings.TrimSpace(city) == "" || strings.TrimSpace(state) == "" {
		return geo.Point{}, fmt.Errorf("city and state are required for geocoding")
	}

	key := geocodeCacheKey(city, state)
	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, key); err == nil {
			var point geo.Point
			if err := json.Unmarshal(cached, &point); err == nil && point.Valid() {
				return point, nil
			}
		}
	}

	point, err := g.fetch(ctx, city, state)
	if err != nil {
		return geo.Point{}, err
	}

	if g.cache != nil {
		if payload, err := json.Marshal(point); err == nil {
			if err := g.cache.Set(ctx, key, payload, geocodeCacheTTL); err != nil {
				logger.Get().Debug("failed to cache geocode result", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return point, nil
}

func (g *HTTPGeocoder) fetch(ctx context.Context, city, state string) (geo.Point, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("%s, %s, Brasil", city, state))
	query.Set("format", "json")
	query.Set("limit", "1")

	endpoint := fmt.Sprintf("%s/search?%s", g.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return geo.Point{}, fmt.Errorf("failed to build geocode request: %w", err)
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return geo.Point{}, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Point{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var results []geocodeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geo.Point{}, fmt.Errorf("failed to parse geocoder response: %w", err)
	}
	if len(results) == 0 {
		return geo.Point{}, fmt.Errorf("no geocoding result for %s/%s", city, state)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid latitude in geocoder response: %w", err)
	}
	lng, err := strconv.ParseFloat(results[0].Lng, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid longitude in geocoder response: %w", err)
	}

	point := geo.Point{Lat: lat, Lng: lng}
	if !point.Valid() {
		return geo.Point{}, fmt.Errorf("geocoder returned out-of-range coordinate for %s/%s", city, state)
	}
	return point, nil
}

func geocodeCacheKey(city, state string) string {
	return fmt.Sprintf("geocode:%s:%s",
		strings.ToLower(strings.TrimSpace(state)),
		strings.ToLower(strings.TrimSpace(city)),
	)
}
