package domain

import (
	"time"

	"freight-tracker/internal/core/geo"
)

// LifecycleStatus represents the current lifecycle state of a shipment.
type LifecycleStatus string

const (
	// StatusInTransit indicates the shipment is on the road. Initial state.
	StatusInTransit LifecycleStatus = "em_transito"
	// StatusDelivered indicates the shipment reached its destination. Terminal.
	StatusDelivered LifecycleStatus = "entregue"
	// StatusCancelled indicates the shipment was called off. Terminal.
	StatusCancelled LifecycleStatus = "cancelada"
)

// Terminal reports whether no further lifecycle transition is allowed.
func (s LifecycleStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// DeadlineStatus classifies a shipment's timeliness against its promised arrival.
type DeadlineStatus string

const (
	// DeadlineOnTime indicates the shipment is within schedule.
	DeadlineOnTime DeadlineStatus = "no_prazo"
	// DeadlineLate indicates the shipment is past its promised arrival.
	DeadlineLate DeadlineStatus = "atrasado"
	// DeadlineEarly indicates arrival materially ahead of schedule.
	DeadlineEarly DeadlineStatus = "adiantado"
)

// Shipment represents one freight movement from origin to destination.
// Wire names follow the cooperative's existing column naming.
type Shipment struct {
	// ID is the unique identifier for the shipment.
	ID string `json:"id"`
	// ShipperID references the owning shipper (embarcador).
	ShipperID string `json:"embarcador_id"`
	// Invoice is the fiscal invoice number (nota fiscal) for the cargo.
	Invoice string `json:"nota_fiscal"`
	// OriginCity and OriginState locate where the cargo is loaded.
	OriginCity  string `json:"origem_cidade"`
	OriginState string `json:"origem_uf"`
	// OriginAddress is an optional street-level address at the origin.
	OriginAddress string  `json:"origem_endereco,omitempty"`
	OriginLat     float64 `json:"origem_lat"`
	OriginLng     float64 `json:"origem_lng"`
	// DestinationCity and DestinationState locate the delivery point.
	DestinationCity    string  `json:"destino_cidade"`
	DestinationState   string  `json:"destino_uf"`
	DestinationAddress string  `json:"destino_endereco,omitempty"`
	DestinationLat     float64 `json:"destino_lat"`
	DestinationLng     float64 `json:"destino_lng"`
	// WeightTons is the cargo weight in metric tons.
	WeightTons float64 `json:"toneladas"`
	// Description is free text about the cargo.
	Description string `json:"descricao"`
	// DepartureAt is the scheduled loading/departure timestamp.
	DepartureAt time.Time `json:"data_carregamento"`
	// ArrivalDeadline is the promised delivery timestamp.
	ArrivalDeadline time.Time `json:"prazo_entrega"`
	// DeliveredAt is the actual delivery timestamp, nil until delivered.
	DeliveredAt *time.Time `json:"data_entrega_real,omitempty"`
	// DriverName identifies the driver, when known.
	DriverName string `json:"motorista_nome,omitempty"`
	// DriverPhone is the driver's mobile used for the tracking link.
	DriverPhone string `json:"motorista_telefone,omitempty"`
	// VehiclePlate is the truck plate, when known.
	VehiclePlate string `json:"placa_veiculo,omitempty"`
	// AvgSpeedKmh is the estimated average travel speed. Defaults to 60.
	AvgSpeedKmh float64 `json:"velocidade_media_estimada"`
	// TotalDistanceKm is the great-circle route length, set at creation.
	TotalDistanceKm float64 `json:"distancia_total_km"`
	// Status is the lifecycle state.
	Status LifecycleStatus `json:"status"`
	// DeadlineStatus is the stored timeliness classification. It is only
	// refreshed at creation and delivery; read paths that care recompute it.
	DeadlineStatus DeadlineStatus `json:"status_prazo"`
	// Active is the inverse of the soft-delete flag. Inactive shipments are
	// excluded from every query and aggregate.
	Active bool `json:"ativo"`
	// TrackingToken is the opaque token embedded in the driver link, empty
	// until a link is issued.
	TrackingToken string `json:"link_rastreamento,omitempty"`
	// CreatedAt is the record creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// Origin returns the origin coordinate.
func (s *Shipment) Origin() geo.Point {
	return geo.Point{Lat: s.OriginLat, Lng: s.OriginLng}
}

// Destination returns the destination coordinate.
func (s *Shipment) Destination() geo.Point {
	return geo.Point{Lat: s.DestinationLat, Lng: s.DestinationLng}
}

// CurrentPosition returns the coordinate of the most recent fix, or the
// origin when no fix has been reported yet.
func (s *Shipment) CurrentPosition(last *PositionFix) geo.Point {
	if last == nil {
		return s.Origin()
	}
	return geo.Point{Lat: last.Latitude, Lng: last.Longitude}
}

// PositionFix is a single timestamped GPS observation for a shipment.
// Fixes are append-only; they are never mutated or deleted.
type PositionFix struct {
	// ID is the unique identifier for the fix.
	ID string `json:"id"`
	// ShipmentID references the owning shipment.
	ShipmentID string `json:"carga_id"`
	// Latitude and Longitude are the observed coordinates.
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// SpeedKmh is the reported speed, nil when the device omits it.
	SpeedKmh *float64 `json:"velocidade,omitempty"`
	// AccuracyMeters is the reported accuracy radius.
	AccuracyMeters float64 `json:"precisao_metros"`
	// Timestamp is the capture time. "Most recent" queries sort on this
	// stored value, not on insertion order.
	Timestamp time.Time `json:"timestamp"`
	// Source tags the ingestion channel (e.g., navegador, api_rastreamento).
	Source string `json:"origem"`
}

// Point returns the fix coordinate.
func (f *PositionFix) Point() geo.Point {
	return geo.Point{Lat: f.Latitude, Lng: f.Longitude}
}

// StatusHistoryEntry is an immutable audit record of a lifecycle transition.
type StatusHistoryEntry struct {
	// ID is the unique identifier for the entry.
	ID string `json:"id"`
	// ShipmentID references the shipment the transition belongs to.
	ShipmentID string `json:"carga_id"`
	// PreviousStatus is nil for the creation entry.
	PreviousStatus *LifecycleStatus `json:"status_anterior,omitempty"`
	// NewStatus is the status after the transition.
	NewStatus LifecycleStatus `json:"status_novo"`
	// Note is free text describing the transition (e.g., cancellation reason).
	Note string `json:"observacao"`
	// CreatedAt is the transition timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// Alert is a best-effort notification record emitted on delivery.
type Alert struct {
	// ID is the unique identifier for the alert.
	ID string `json:"id"`
	// ShipmentID references the shipment that triggered the alert.
	ShipmentID string `json:"carga_id"`
	// Type categorizes the alert (e.g., entrega).
	Type string `json:"tipo"`
	// Recipient names the audience (e.g., embarcador).
	Recipient string `json:"destinatario"`
	// Message is the human-readable alert text.
	Message string `json:"mensagem"`
	// Sent reports whether the alert left the system.
	Sent bool `json:"enviado"`
	// CreatedAt is the alert creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows shipment listings. Zero values mean "no constraint".
type Filter struct {
	// Statuses restricts to a set of lifecycle statuses.
	Statuses []LifecycleStatus `json:"status,omitempty"`
	// DeadlineStatuses restricts to a set of timeliness classifications.
	DeadlineStatuses []DeadlineStatus `json:"status_prazo,omitempty"`
	// Invoice is a case-insensitive substring match on the invoice number.
	Invoice string `json:"nota_fiscal,omitempty"`
	// OriginState and DestinationState are exact state (UF) matches.
	OriginState      string `json:"origem_uf,omitempty"`
	DestinationState string `json:"destino_uf,omitempty"`
	// DriverName is a case-insensitive substring match on the driver name.
	DriverName string `json:"motorista_nome,omitempty"`
	// VehiclePlate is a case-insensitive substring match on the plate.
	VehiclePlate string `json:"placa_veiculo,omitempty"`
	// Departure and deadline ranges are inclusive; nil means unbounded.
	DepartureFrom *time.Time `json:"data_carregamento_inicio,omitempty"`
	DepartureTo   *time.Time `json:"data_carregamento_fim,omitempty"`
	DeadlineFrom  *time.Time `json:"prazo_entrega_inicio,omitempty"`
	DeadlineTo    *time.Time `json:"prazo_entrega_fim,omitempty"`
}
