package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"freight-tracker/internal/features/addresses/domain"
	"freight-tracker/internal/features/addresses/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLookup struct {
	address *domain.Address
	err     error
	gotCEP  string
}

func (s *stubLookup) Lookup(_ context.Context, cep string) (*domain.Address, error) {
	s.gotCEP = cep
	return s.address, s.err
}

func setupApp(lookup *stubLookup) *fiber.App {
	app := fiber.New()
	h := NewAddressHandler(service.NewAddressService(lookup))
	h.RegisterRoutes(app)
	return app
}

func TestAddressHandler_Resolve_Success(t *testing.T) {
	lookup := &stubLookup{address: &domain.Address{
		CEP:          "01310-100",
		Street:       "Avenida Paulista",
		Neighborhood: "Bela Vista",
		City:         "São Paulo",
		State:        "SP",
	}}
	app := setupApp(lookup)

	req := httptest.NewRequest(http.MethodGet, "/enderecos/01310-100", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "01310100", lookup.gotCEP)

	var body domain.Address
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Avenida Paulista", body.Street)
	assert.Equal(t, "SP", body.State)
}

func TestAddressHandler_Resolve_InvalidCEP(t *testing.T) {
	app := setupApp(&stubLookup{})

	req := httptest.NewRequest(http.MethodGet, "/enderecos/123", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddressHandler_Resolve_NotFound(t *testing.T) {
	app := setupApp(&stubLookup{address: nil})

	req := httptest.NewRequest(http.MethodGet, "/enderecos/99999999", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddressHandler_Resolve_UpstreamFailure(t *testing.T) {
	app := setupApp(&stubLookup{err: errors.New("upstream down")})

	req := httptest.NewRequest(http.MethodGet, "/enderecos/01310100", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
