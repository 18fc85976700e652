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

	"freight-tracker/internal/core/httpclient"
	"freight-tracker/internal/features/tracking/domain"
	"freight-tracker/internal/features/tracking/ports"
)

// GatewayProvider implements ports.GeolocationProvider against the mobile
// location gateway. The gateway relays the acquisition request to the
// driver's device and returns the fresh reading.
type GatewayProvider struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewGatewayProvider creates the provider for the given gateway endpoint.
func NewGatewayProvider(baseURL, token string) *GatewayProvider {
	return &GatewayProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  httpclient.NewClient(15 * time.Second),
	}
}

// gatewayResponse is the gateway's position payload.
type gatewayResponse struct {
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	SpeedKmh       *float64 `json:"velocidade"`
	AccuracyMeters float64  `json:"precisao_metros"`
	Timestamp      string   `json:"timestamp"`
}

// GetCurrentPosition asks the gateway for a fresh fix from the device behind
// the tracking token.
func (p *GatewayProvider) GetCurrentPosition(ctx context.Context, deviceToken string, opts ports.CaptureOptions) (*ports.Observation, error) {
	query := url.Values{}
	query.Set("token", deviceToken)
	query.Set("alta_precisao", strconv.FormatBool(opts.HighAccuracy))
	query.Set("timeout_ms", strconv.FormatInt(opts.Timeout.Milliseconds(), 10))
	query.Set("idade_maxima_ms", strconv.FormatInt(opts.MaxAge.Milliseconds(), 10))

	endpoint := fmt.Sprintf("%s/posicao/atual?%s", p.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decoding
	case http.StatusForbidden:
		return nil, domain.ErrPermissionDenied
	case http.StatusNotImplemented, http.StatusNotFound:
		return nil, domain.ErrUnsupported
	default:
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var body gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse gateway response: %w", err)
	}

	obs := &ports.Observation{
		Latitude:       body.Latitude,
		Longitude:      body.Longitude,
		SpeedKmh:       body.SpeedKmh,
		AccuracyMeters: body.AccuracyMeters,
	}
	if body.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, body.Timestamp); err == nil {
			obs.Timestamp = ts
		}
	}
	return obs, nil
}
