package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"freight-tracker/internal/core/geo"
	"freight-tracker/internal/features/shipments/adapters"
	"freight-tracker/internal/features/shipments/domain"
	"freight-tracker/internal/features/shipments/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGeocoder struct{}

func (stubGeocoder) Geocode(ctx context.Context, city, state string) (geo.Point, error) {
	return geo.Point{Lat: -23.5505, Lng: -46.6333}, nil
}

func setupApp(t *testing.T) (*fiber.App, *adapters.MemoryStore) {
	store := adapters.NewMemoryStore()
	svc := service.NewShipmentService(
		store.Shipments(), store.Positions(), store.History(), store.Alerts(),
		stubGeocoder{}, nil, "https://rastreio.example.com",
	)

	app := fiber.New()
	NewShipmentHandler(svc).RegisterRoutes(app)
	return app, store
}

func draftBody(t *testing.T) []byte {
	departure := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	body, err := json.Marshal(domain.ShipmentDraft{
		ShipperID:        "emb-1",
		Invoice:          "NF-1001",
		OriginCity:       "São Paulo",
		OriginState:      "SP",
		DestinationCity:  "Rio de Janeiro",
		DestinationState: "RJ",
		WeightTons:       24,
		DepartureAt:      departure,
		ArrivalDeadline:  departure.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	return body
}

func createShipment(t *testing.T, app *fiber.App) *domain.Shipment {
	req := httptest.NewRequest(http.MethodPost, "/cargas/", bytes.NewReader(draftBody(t)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result service.CreateResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.NotNil(t, result.Shipment)
	return result.Shipment
}

func TestShipmentHandler_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		app, _ := setupApp(t)

		shipment := createShipment(t, app)
		assert.Equal(t, domain.StatusInTransit, shipment.Status)
		assert.Equal(t, "NF-1001", shipment.Invoice)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		app, _ := setupApp(t)

		req := httptest.NewRequest(http.MethodPost, "/cargas/", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		app, _ := setupApp(t)

		departure := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
		body, _ := json.Marshal(domain.ShipmentDraft{
			ShipperID:        "emb-1",
			Invoice:          "NF-1001",
			OriginCity:       "São Paulo",
			OriginState:      "SP",
			DestinationCity:  "Rio de Janeiro",
			DestinationState: "RJ",
			DepartureAt:      departure,
			ArrivalDeadline:  departure.Add(9 * 24 * time.Hour), // past the 8-day ceiling
		})

		req := httptest.NewRequest(http.MethodPost, "/cargas/", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var errResp ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
		assert.Contains(t, errResp.Message, "8 days")
	})
}

func TestShipmentHandler_GetByID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		app, _ := setupApp(t)
		shipment := createShipment(t, app)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/cargas/"+shipment.ID, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("NotFound", func(t *testing.T) {
		app, _ := setupApp(t)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/cargas/nope", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestShipmentHandler_List(t *testing.T) {
	app, _ := setupApp(t)
	createShipment(t, app)

	t.Run("All", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/cargas/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var list []*domain.Shipment
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
		assert.Len(t, list, 1)
	})

	t.Run("FilteredOut", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/cargas/?status=entregue", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var list []*domain.Shipment
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
		assert.Empty(t, list)
	})

	t.Run("BadDateFilter", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/cargas/?prazo_entrega_inicio=ontem", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestShipmentHandler_Delivery(t *testing.T) {
	app, _ := setupApp(t)
	shipment := createShipment(t, app)

	deliver := func() *http.Response {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, fmt.Sprintf("/cargas/%s/entrega", shipment.ID), nil))
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, http.StatusNoContent, deliver().StatusCode)
	// Repeated delivery conflicts.
	assert.Equal(t, http.StatusConflict, deliver().StatusCode)
}

func TestShipmentHandler_Cancel(t *testing.T) {
	app, store := setupApp(t)
	shipment := createShipment(t, app)

	body, _ := json.Marshal(cancelRequest{Reason: "cliente desistiu"})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/cargas/%s/cancelamento", shipment.ID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	entries, err := store.History().ByShipment(context.Background(), shipment.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "cliente desistiu", entries[1].Note)
}

func TestShipmentHandler_Delete(t *testing.T) {
	app, _ := setupApp(t)
	shipment := createShipment(t, app)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/cargas/"+shipment.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Gone from reads afterwards.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/cargas/"+shipment.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestShipmentHandler_GenerateTrackingLink(t *testing.T) {
	t.Run("NoDriverPhone", func(t *testing.T) {
		app, _ := setupApp(t)
		shipment := createShipment(t, app)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, fmt.Sprintf("/cargas/%s/link-rastreamento", shipment.ID), nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Success", func(t *testing.T) {
		app, _ := setupApp(t)
		shipment := createShipment(t, app)

		phone := "98765-4321"
		whatsapp := true
		body, _ := json.Marshal(fiber.Map{"motorista_telefone": phone, "telefone_eh_whatsapp": whatsapp})
		req := httptest.NewRequest(http.MethodPatch, "/cargas/"+shipment.ID, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = app.Test(httptest.NewRequest(http.MethodPost, fmt.Sprintf("/cargas/%s/link-rastreamento", shipment.ID), nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var links service.ShareLinks
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&links))
		assert.Contains(t, links.TrackingURL, "/rastreamento/")
		assert.Contains(t, links.WhatsAppURL, "https://wa.me/55987654321")
		assert.Contains(t, links.SMSURL, "sms:+55987654321")
	})
}
