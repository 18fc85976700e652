package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"freight-tracker/internal/core/geo"
	"freight-tracker/internal/features/shipments/adapters"
	"freight-tracker/internal/features/shipments/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGeocoder is a mock implementation of ports.Geocoder.
type mockGeocoder struct {
	point geo.Point
	err   error
	calls int
}

func (m *mockGeocoder) Geocode(ctx context.Context, city, state string) (geo.Point, error) {
	m.calls++
	if m.err != nil {
		return geo.Point{}, m.err
	}
	return m.point, nil
}

// mockEvents records published events.
type mockEvents struct {
	alerts  []*domain.Alert
	changed []string
	err     error
}

func (m *mockEvents) PublishDeliveryAlert(ctx context.Context, alert *domain.Alert) error {
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *mockEvents) PublishShipmentChanged(ctx context.Context, shipmentID string) error {
	if m.err != nil {
		return m.err
	}
	m.changed = append(m.changed, shipmentID)
	return nil
}

type fixture struct {
	svc      *ShipmentService
	store    *adapters.MemoryStore
	geocoder *mockGeocoder
	events   *mockEvents
}

func newFixture() *fixture {
	store := adapters.NewMemoryStore()
	geocoder := &mockGeocoder{point: geo.Point{Lat: -23.5505, Lng: -46.6333}}
	events := &mockEvents{}

	svc := NewShipmentService(
		store.Shipments(),
		store.Positions(),
		store.History(),
		store.Alerts(),
		geocoder,
		events,
		"https://rastreio.example.com/",
	)
	return &fixture{svc: svc, store: store, geocoder: geocoder, events: events}
}

func draft() domain.ShipmentDraft {
	departure := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	return domain.ShipmentDraft{
		ShipperID:        "emb-1",
		Invoice:          "NF-1001",
		OriginCity:       "São Paulo",
		OriginState:      "SP",
		DestinationCity:  "Rio de Janeiro",
		DestinationState: "RJ",
		WeightTons:       24,
		DepartureAt:      departure,
		ArrivalDeadline:  departure.Add(48 * time.Hour),
	}
}

func TestShipmentService_Create_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.Create(ctx, draft())
	require.NoError(t, err)
	require.NotNil(t, result.Shipment)

	s := result.Shipment
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, domain.StatusInTransit, s.Status)
	assert.Equal(t, domain.DeadlineOnTime, s.DeadlineStatus)
	assert.True(t, s.Active)
	assert.Equal(t, domain.DefaultAvgSpeedKmh, s.AvgSpeedKmh)
	// Both endpoints geocoded (no coordinates in the draft).
	assert.Equal(t, 2, f.geocoder.calls)
	assert.Equal(t, 0.0, s.TotalDistanceKm) // both resolved to the same mock point
	assert.Nil(t, result.Links)             // no driver phone

	// Creation history entry with nil previous status.
	entries, err := f.store.History().ByShipment(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].PreviousStatus)
	assert.Equal(t, domain.StatusInTransit, entries[0].NewStatus)
	assert.Equal(t, "Carga criada", entries[0].Note)

	assert.Contains(t, f.events.changed, s.ID)
}

func TestShipmentService_Create_ComputesDistanceFromSuppliedCoords(t *testing.T) {
	f := newFixture()

	d := draft()
	olat, olng := -23.5505, -46.6333
	dlat, dlng := -22.9068, -43.1729
	d.OriginLat, d.OriginLng = &olat, &olng
	d.DestinationLat, d.DestinationLng = &dlat, &dlng

	result, err := f.svc.Create(context.Background(), d)
	require.NoError(t, err)

	// Supplied coordinates skip the geocoder entirely.
	assert.Equal(t, 0, f.geocoder.calls)
	assert.InDelta(t, 360, result.Shipment.TotalDistanceKm, 10)
}

func TestShipmentService_Create_GeocoderFailureFallsBack(t *testing.T) {
	f := newFixture()
	f.geocoder.err = errors.New("geocoder down")

	result, err := f.svc.Create(context.Background(), draft())
	require.NoError(t, err)

	s := result.Shipment
	assert.Equal(t, domain.FallbackCoordinate.Lat, s.OriginLat)
	assert.Equal(t, domain.FallbackCoordinate.Lng, s.OriginLng)
	assert.Equal(t, domain.FallbackCoordinate.Lat, s.DestinationLat)
	assert.Equal(t, domain.FallbackCoordinate.Lng, s.DestinationLng)
}

func TestShipmentService_Create_ValidationRejectedBeforePersistence(t *testing.T) {
	f := newFixture()

	d := draft()
	d.ArrivalDeadline = d.DepartureAt.Add(domain.MaxDeliveryWindow + time.Hour)

	_, err := f.svc.Create(context.Background(), d)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	// Nothing was persisted or geocoded.
	assert.Equal(t, 0, f.geocoder.calls)
	list, _ := f.store.Shipments().List(context.Background(), "", domain.Filter{})
	assert.Empty(t, list)
}

func TestShipmentService_Create_WithDriverPhoneIssuesLinks(t *testing.T) {
	f := newFixture()

	d := draft()
	d.DriverName = "João Silva"
	d.DriverPhone = "98765-4321"
	d.PhoneIsWhatsApp = true

	result, err := f.svc.Create(context.Background(), d)
	require.NoError(t, err)
	require.NotNil(t, result.Links)

	assert.Contains(t, result.Links.TrackingURL, "https://rastreio.example.com/rastreamento/")
	assert.True(t, strings.HasPrefix(result.Links.WhatsAppURL, "https://wa.me/55987654321?text="))
	assert.True(t, strings.HasPrefix(result.Links.SMSURL, "sms:+55987654321?body="))

	// Token persisted on the record.
	stored, err := f.store.Shipments().GetByID(context.Background(), result.Shipment.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.TrackingToken)
	assert.Contains(t, result.Links.TrackingURL, stored.TrackingToken)
}

func TestShipmentService_MarkDelivered_Idempotence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.Create(ctx, draft())
	require.NoError(t, err)
	id := result.Shipment.ID

	require.NoError(t, f.svc.MarkDelivered(ctx, id))

	first, err := f.store.Shipments().GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, first.DeliveredAt)
	assert.Equal(t, domain.StatusDelivered, first.Status)

	// Second invocation is rejected, not silently repeated.
	err = f.svc.MarkDelivered(ctx, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)

	// Status and delivery timestamp unchanged.
	second, err := f.store.Shipments().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.True(t, first.DeliveredAt.Equal(*second.DeliveredAt))
}

func TestShipmentService_MarkDelivered_EmitsAlert(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.Create(ctx, draft())
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkDelivered(ctx, result.Shipment.ID))

	recorded := f.store.Alerts().All()
	require.Len(t, recorded, 1)
	assert.Equal(t, "entrega", recorded[0].Type)
	assert.Equal(t, "embarcador", recorded[0].Recipient)
	assert.Contains(t, recorded[0].Message, "NF-1001")

	require.Len(t, f.events.alerts, 1)
}

func TestShipmentService_MarkDelivered_AlertFailureDoesNotRollBack(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.Create(ctx, draft())
	require.NoError(t, err)

	f.events.err = errors.New("broker unavailable")
	require.NoError(t, f.svc.MarkDelivered(ctx, result.Shipment.ID))

	stored, err := f.store.Shipments().GetByID(ctx, result.Shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, stored.Status)
}

func TestShipmentService_MarkDelivered_NotFound(t *testing.T) {
	f := newFixture()

	err := f.svc.MarkDelivered(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShipmentService_Cancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.Create(ctx, draft())
	require.NoError(t, err)
	id := result.Shipment.ID

	require.NoError(t, f.svc.Cancel(ctx, id, "cliente desistiu"))

	stored, err := f.store.Shipments().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)

	entries, err := f.store.History().ByShipment(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "cliente desistiu", entries[1].Note)

	// Cancelling a terminal shipment is rejected.
	err = f.svc.Cancel(ctx, id, "again")
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)
}

func TestShipmentService_SoftDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.Create(ctx, draft())
	require.NoError(t, err)
	id := result.Shipment.ID

	require.NoError(t, f.svc.SoftDelete(ctx, id))

	// Excluded from reads and listings.
	_, err = f.store.Shipments().GetByID(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := f.store.Shipments().List(ctx, "", domain.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	// Exclusion is audited; lifecycle status unchanged in the entry.
	entries, err := f.store.History().ByShipment(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Carga excluída", entries[1].Note)
	assert.Equal(t, domain.StatusInTransit, entries[1].NewStatus)
}

func TestShipmentService_Update_DeadlineWindowRevalidated(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.Create(ctx, draft())
	require.NoError(t, err)
	id := result.Shipment.ID

	tooLate := result.Shipment.DepartureAt.Add(domain.MaxDeliveryWindow + time.Hour)
	_, err = f.svc.Update(ctx, id, ShipmentUpdate{ArrivalDeadline: &tooLate})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	exact := result.Shipment.DepartureAt.Add(domain.MaxDeliveryWindow)
	updated, err := f.svc.Update(ctx, id, ShipmentUpdate{ArrivalDeadline: &exact})
	require.NoError(t, err)
	assert.True(t, updated.ArrivalDeadline.Equal(exact))
}

func TestShipmentService_GenerateTrackingLink_RequiresPhone(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.Create(ctx, draft())
	require.NoError(t, err)

	_, err = f.svc.GenerateTrackingLink(ctx, result.Shipment.ID)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}
