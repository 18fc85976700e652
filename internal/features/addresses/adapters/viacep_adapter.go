package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"freight-tracker/internal/core/cache"
	"freight-tracker/internal/core/httpclient"
	"freight-tracker/internal/core/logger"
	"freight-tracker/internal/features/addresses/domain"

	"go.uber.org/zap"
)

// cepCacheTTL keeps CEP lookups for a week. Postal codes change rarely, and
// negative results are cached too so repeated typos don't hammer the upstream.
const cepCacheTTL = 7 * 24 * time.Hour

// ViaCepClient resolves Brazilian postal codes against a ViaCEP-compatible
// endpoint, caching both hits and not-found results.
type ViaCepClient struct {
	baseURL string
	client  *http.Client
	cache   cache.Cache
}

// NewViaCepClient creates the CEP lookup client. store may be nil to disable
// caching.
func NewViaCepClient(baseURL string, store cache.Cache) *ViaCepClient {
	return &ViaCepClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpclient.NewClient(10 * time.Second),
		cache:   store,
	}
}

// viaCepResponse mirrors the upstream payload. A nonexistent CEP answers
// 200 with {"erro": true}.
type viaCepResponse struct {
	CEP          string `json:"cep"`
	Street       string `json:"logradouro"`
	Neighborhood string `json:"bairro"`
	City         string `json:"localidade"`
	State        string `json:"uf"`
	Error        bool   `json:"erro"`
}

// cachedLookup is the cache envelope. Found=false records a confirmed miss.
type cachedLookup struct {
	Found   bool            `json:"found"`
	Address *domain.Address `json:"address,omitempty"`
}

// Lookup resolves an 8-digit CEP. Returns (nil, nil) when the upstream
// confirms the code does not exist.
func (v *ViaCepClient) Lookup(ctx context.Context, cep string) (*domain.Address, error) {
	key := "cep:" + cep
	if v.cache != nil {
		if raw, err := v.cache.Get(ctx, key); err == nil {
			var entry cachedLookup
			if err := json.Unmarshal(raw, &entry); err == nil {
				if !entry.Found {
					return nil, nil
				}
				if entry.Address != nil {
					return entry.Address, nil
				}
			}
		}
	}

	address, err := v.fetch(ctx, cep)
	if err != nil {
		return nil, err
	}

	if v.cache != nil {
		entry := cachedLookup{Found: address != nil, Address: address}
		if payload, err := json.Marshal(entry); err == nil {
			if err := v.cache.Set(ctx, key, payload, cepCacheTTL); err != nil {
				logger.Get().Debug("failed to cache CEP lookup", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return address, nil
}

func (v *ViaCepClient) fetch(ctx context.Context, cep string) (*domain.Address, error) {
	endpoint := fmt.Sprintf("%s/%s/json/", v.baseURL, cep)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build CEP request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("CEP request failed: %w", err)
	}
	defer resp.Body.Close()

	// ViaCEP answers 400 for malformed codes; anything else non-200 is an
	// upstream failure.
	if resp.StatusCode == http.StatusBadRequest {
		return nil, domain.ErrInvalidCEP
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CEP service returned status %d", resp.StatusCode)
	}

	var payload viaCepResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse CEP response: %w", err)
	}
	if payload.Error {
		return nil, nil
	}

	return &domain.Address{
		CEP:          payload.CEP,
		Street:       payload.Street,
		Neighborhood: payload.Neighborhood,
		City:         payload.City,
		State:        payload.State,
	}, nil
}
