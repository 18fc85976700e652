package ports

import (
	"context"
	"time"

	"freight-tracker/internal/core/geo"
	"freight-tracker/internal/features/shipments/domain"
)

// ShipmentRepository is the persistence port for shipment records.
// Implementations must exclude soft-deleted shipments from every read.
type ShipmentRepository interface {
	// Insert persists a new shipment.
	Insert(ctx context.Context, s *domain.Shipment) error
	// GetByID returns the shipment or domain.ErrNotFound.
	GetByID(ctx context.Context, id string) (*domain.Shipment, error)
	// GetByToken resolves a tracking token or returns domain.ErrInvalidToken.
	GetByToken(ctx context.Context, token string) (*domain.Shipment, error)
	// List returns active shipments, newest first, optionally scoped to one
	// shipper and narrowed by the filter.
	List(ctx context.Context, shipperID string, filter domain.Filter) ([]*domain.Shipment, error)
	// Update persists field changes on an existing shipment.
	Update(ctx context.Context, s *domain.Shipment) error
}

// PositionRepository is the append-only store of GPS fixes.
type PositionRepository interface {
	// Append stores a new fix. Fixes are never mutated or deleted.
	Append(ctx context.Context, fix *domain.PositionFix) error
	// Latest returns the fix with the maximum stored timestamp for the
	// shipment, or nil when none exist. Resilient to insertion order.
	Latest(ctx context.Context, shipmentID string) (*domain.PositionFix, error)
	// History returns fixes for a shipment within [from, to], newest first.
	History(ctx context.Context, shipmentID string, from, to time.Time) ([]*domain.PositionFix, error)
}

// HistoryRepository is the append-only audit trail of status transitions.
type HistoryRepository interface {
	// Append stores one transition entry.
	Append(ctx context.Context, entry *domain.StatusHistoryEntry) error
	// ByShipment returns the entries for a shipment, oldest first.
	ByShipment(ctx context.Context, shipmentID string) ([]*domain.StatusHistoryEntry, error)
}

// AlertRepository stores best-effort notification records.
type AlertRepository interface {
	// Insert stores an alert record.
	Insert(ctx context.Context, alert *domain.Alert) error
}

// Geocoder resolves a city/state pair to a coordinate.
type Geocoder interface {
	// Geocode returns the coordinate for the given city and state.
	Geocode(ctx context.Context, city, state string) (geo.Point, error)
}

// EventPublisher pushes shipment events to interested parties. Publishing is
// best-effort: failures are logged by the caller and never roll back the
// state transition that produced the event.
type EventPublisher interface {
	// PublishDeliveryAlert announces a completed delivery.
	PublishDeliveryAlert(ctx context.Context, alert *domain.Alert) error
	// PublishShipmentChanged announces that a shipment row changed, so
	// dashboards can refresh.
	PublishShipmentChanged(ctx context.Context, shipmentID string) error
}
