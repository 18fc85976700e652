package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"freight-tracker/internal/core/geo"
	"freight-tracker/internal/core/logger"
	"freight-tracker/internal/features/shipments/domain"
	"freight-tracker/internal/features/shipments/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCreateTimeout bounds the whole creation sequence (geocoding plus
// persistence) so the caller never hangs on a slow collaborator.
const DefaultCreateTimeout = 15 * time.Second

// ShareLinks are the driver-facing tracking link and its share targets.
// The core only constructs these URLs; delivery is an external collaborator.
type ShareLinks struct {
	// TrackingURL is the public page the driver opens to share location.
	TrackingURL string `json:"link_rastreamento"`
	// WhatsAppURL is a wa.me deep link carrying the invite message.
	WhatsAppURL string `json:"whatsapp_url"`
	// SMSURL is an sms: deep link with the same message body.
	SMSURL string `json:"sms_url"`
}

// CreateResult is the outcome of a successful shipment creation.
type CreateResult struct {
	Shipment *domain.Shipment `json:"carga"`
	// Links is set when a driver phone was supplied and link issuance
	// succeeded; a link failure never fails the creation itself.
	Links *ShareLinks `json:"compartilhamento,omitempty"`
}

// ShipmentUpdate carries optional field edits for a live shipment.
// Nil pointers leave the field untouched.
type ShipmentUpdate struct {
	Description     *string    `json:"descricao,omitempty"`
	DriverName      *string    `json:"motorista_nome,omitempty"`
	DriverPhone     *string    `json:"motorista_telefone,omitempty"`
	VehiclePlate    *string    `json:"placa_veiculo,omitempty"`
	AvgSpeedKmh     *float64   `json:"velocidade_media_estimada,omitempty"`
	ArrivalDeadline *time.Time `json:"prazo_entrega,omitempty"`
}

// ShipmentService is the authority over the shipment lifecycle. All status
// transitions flow through it; no other component writes the status field.
type ShipmentService struct {
	shipments ports.ShipmentRepository
	positions ports.PositionRepository
	history   ports.HistoryRepository
	alerts    ports.AlertRepository
	geocoder  ports.Geocoder
	events    ports.EventPublisher

	baseURL       string
	createTimeout time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// NewShipmentService creates the lifecycle service. events may be nil when no
// broker is configured; publishing is then skipped.
func NewShipmentService(
	shipments ports.ShipmentRepository,
	positions ports.PositionRepository,
	history ports.HistoryRepository,
	alerts ports.AlertRepository,
	geocoder ports.Geocoder,
	events ports.EventPublisher,
	baseURL string,
) *ShipmentService {
	return &ShipmentService{
		shipments:     shipments,
		positions:     positions,
		history:       history,
		alerts:        alerts,
		geocoder:      geocoder,
		events:        events,
		baseURL:       strings.TrimRight(baseURL, "/"),
		createTimeout: DefaultCreateTimeout,
		now:           time.Now,
		logger:        logger.Get(),
	}
}

// Create validates the draft, resolves missing coordinates (falling back to
// the fixed default pair on geocoder failure), computes the route distance,
// persists the shipment as em_transito/no_prazo and appends the creation
// history entry. The whole network sequence is bounded by the creation
// timeout and fails with domain.ErrTimeout, which is retryable.
//
// When a driver phone was supplied the tracking link and share URLs are
// issued as a side effect; their failure is logged, never propagated.
func (s *ShipmentService) Create(ctx context.Context, draft domain.ShipmentDraft) (*CreateResult, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.createTimeout)
	defer cancel()

	origin := s.resolveCoordinate(ctx, draft.OriginLat, draft.OriginLng, draft.OriginCity, draft.OriginState)
	destination := s.resolveCoordinate(ctx, draft.DestinationLat, draft.DestinationLng, draft.DestinationCity, draft.DestinationState)

	avgSpeed := draft.AvgSpeedKmh
	if avgSpeed <= 0 {
		avgSpeed = domain.DefaultAvgSpeedKmh
	}

	now := s.now()
	shipment := &domain.Shipment{
		ID:                 uuid.NewString(),
		ShipperID:          draft.ShipperID,
		Invoice:            draft.Invoice,
		OriginCity:         draft.OriginCity,
		OriginState:        draft.OriginState,
		OriginAddress:      draft.OriginAddress,
		OriginLat:          origin.Lat,
		OriginLng:          origin.Lng,
		DestinationCity:    draft.DestinationCity,
		DestinationState:   draft.DestinationState,
		DestinationAddress: draft.DestinationAddress,
		DestinationLat:     destination.Lat,
		DestinationLng:     destination.Lng,
		WeightTons:         draft.WeightTons,
		Description:        draft.Description,
		DepartureAt:        draft.DepartureAt,
		ArrivalDeadline:    draft.ArrivalDeadline,
		DriverName:         draft.DriverName,
		DriverPhone:        driverContactPhone(draft),
		VehiclePlate:       draft.VehiclePlate,
		AvgSpeedKmh:        avgSpeed,
		TotalDistanceKm:    geo.Distance(origin, destination),
		Status:             domain.StatusInTransit,
		DeadlineStatus:     domain.DeadlineOnTime,
		Active:             true,
		CreatedAt:          now,
	}

	if err := s.shipments.Insert(ctx, shipment); err != nil {
		return nil, s.mapTimeout(ctx, fmt.Errorf("failed to persist carga: %w", err))
	}

	s.appendHistory(ctx, shipment.ID, nil, domain.StatusInTransit, "Carga criada")
	s.notifyChanged(ctx, shipment.ID)

	result := &CreateResult{Shipment: shipment}
	if shipment.DriverPhone != "" {
		links, err := s.GenerateTrackingLink(ctx, shipment.ID)
		if err != nil {
			s.logger.Warn("tracking link issuance failed",
				zap.String("carga_id", shipment.ID),
				zap.Error(err),
			)
		} else {
			result.Links = links
			shipment.TrackingToken = extractToken(links.TrackingURL)
		}
	}

	return result, nil
}

// Update applies field edits to a live shipment, re-validating the delivery
// window when the deadline moves.
func (s *ShipmentService) Update(ctx context.Context, id string, changes ShipmentUpdate) (*domain.Shipment, error) {
	shipment, err := s.shipments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if shipment.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyTerminal, id)
	}

	if changes.ArrivalDeadline != nil {
		if err := domain.ValidateDeliveryWindow(shipment.DepartureAt, *changes.ArrivalDeadline); err != nil {
			return nil, err
		}
		shipment.ArrivalDeadline = *changes.ArrivalDeadline
	}
	if changes.Description != nil {
		shipment.Description = *changes.Description
	}
	if changes.DriverName != nil {
		shipment.DriverName = *changes.DriverName
	}
	if changes.DriverPhone != nil {
		if *changes.DriverPhone != "" && !domain.IsValidMobile(*changes.DriverPhone) {
			return nil, domain.NewValidationError("invalid phone: 9 digits required and the first must be 9")
		}
		shipment.DriverPhone = *changes.DriverPhone
	}
	if changes.VehiclePlate != nil {
		shipment.VehiclePlate = *changes.VehiclePlate
	}
	if changes.AvgSpeedKmh != nil && *changes.AvgSpeedKmh > 0 {
		shipment.AvgSpeedKmh = *changes.AvgSpeedKmh
	}

	if err := s.shipments.Update(ctx, shipment); err != nil {
		return nil, fmt.Errorf("failed to update carga: %w", err)
	}
	s.notifyChanged(ctx, shipment.ID)
	return shipment, nil
}

// MarkDelivered transitions a shipment to entregue, stamping the actual
// delivery time. A second invocation on the same shipment is rejected with
// domain.ErrAlreadyTerminal and leaves status and timestamps unchanged.
// The delivery alert is best-effort and never rolls back the transition.
func (s *ShipmentService) MarkDelivered(ctx context.Context, id string) error {
	shipment, err := s.shipments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if shipment.Status.Terminal() {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyTerminal, id)
	}

	previous := shipment.Status
	now := s.now()
	last, err := s.positions.Latest(ctx, id)
	if err != nil {
		s.logger.Warn("latest fix lookup failed on delivery", zap.String("carga_id", id), zap.Error(err))
		last = nil
	}

	shipment.Status = domain.StatusDelivered
	shipment.DeliveredAt = &now
	shipment.DeadlineStatus = domain.DeadlineStatusAt(shipment, last, now)

	if err := s.shipments.Update(ctx, shipment); err != nil {
		return fmt.Errorf("failed to mark carga delivered: %w", err)
	}

	s.appendHistory(ctx, id, &previous, domain.StatusDelivered, "Carga entregue")
	s.emitDeliveryAlert(ctx, shipment)
	s.notifyChanged(ctx, id)
	return nil
}

// Cancel transitions a shipment to cancelada, carrying the reason in the
// audit trail.
func (s *ShipmentService) Cancel(ctx context.Context, id, reason string) error {
	shipment, err := s.shipments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if shipment.Status.Terminal() {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyTerminal, id)
	}

	previous := shipment.Status
	shipment.Status = domain.StatusCancelled

	if err := s.shipments.Update(ctx, shipment); err != nil {
		return fmt.Errorf("failed to cancel carga: %w", err)
	}

	s.appendHistory(ctx, id, &previous, domain.StatusCancelled, reason)
	s.notifyChanged(ctx, id)
	return nil
}

// SoftDelete flags the shipment as excluded. Lifecycle status is untouched;
// the record stays in storage but disappears from every query and aggregate.
func (s *ShipmentService) SoftDelete(ctx context.Context, id string) error {
	shipment, err := s.shipments.GetByID(ctx, id)
	if err != nil {
		return err
	}

	current := shipment.Status
	shipment.Active = false

	if err := s.shipments.Update(ctx, shipment); err != nil {
		return fmt.Errorf("failed to exclude carga: %w", err)
	}

	s.appendHistory(ctx, id, &current, current, "Carga excluída")
	s.notifyChanged(ctx, id)
	return nil
}

// GetByID returns a shipment by id.
func (s *ShipmentService) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	return s.shipments.GetByID(ctx, id)
}

// List returns active shipments newest first, optionally scoped to a shipper
// and narrowed by the filter.
func (s *ShipmentService) List(ctx context.Context, shipperID string, filter domain.Filter) ([]*domain.Shipment, error) {
	return s.shipments.List(ctx, shipperID, filter)
}

// History returns the audit trail for a shipment, oldest first.
func (s *ShipmentService) History(ctx context.Context, id string) ([]*domain.StatusHistoryEntry, error) {
	if _, err := s.shipments.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.history.ByShipment(ctx, id)
}

// GenerateTrackingLink issues (or reissues) the opaque tracking token for a
// shipment and builds the share URLs for the stored driver phone.
func (s *ShipmentService) GenerateTrackingLink(ctx context.Context, id string) (*ShareLinks, error) {
	shipment, err := s.shipments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if shipment.DriverPhone == "" {
		return nil, domain.NewValidationError("carga has no driver phone for link sharing")
	}

	token := s.newToken()
	shipment.TrackingToken = token
	if err := s.shipments.Update(ctx, shipment); err != nil {
		return nil, fmt.Errorf("failed to store tracking token: %w", err)
	}

	trackingURL := fmt.Sprintf("%s/rastreamento/%s", s.baseURL, token)
	message := shareMessage(trackingURL)
	phone := domain.DigitsOnly(shipment.DriverPhone)

	return &ShareLinks{
		TrackingURL: trackingURL,
		WhatsAppURL: fmt.Sprintf("https://wa.me/55%s?text=%s", phone, url.QueryEscape(message)),
		SMSURL:      fmt.Sprintf("sms:+55%s?body=%s", phone, url.QueryEscape(message)),
	}, nil
}

// newToken builds an opaque, unguessable token: capture-time millis plus a
// random suffix.
func (s *ShipmentService) newToken() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:13]
	return fmt.Sprintf("%d-%s", s.now().UnixMilli(), suffix)
}

func (s *ShipmentService) resolveCoordinate(ctx context.Context, lat, lng *float64, city, state string) geo.Point {
	if lat != nil && lng != nil {
		p := geo.Point{Lat: *lat, Lng: *lng}
		if p.Valid() {
			return p
		}
	}

	point, err := s.geocoder.Geocode(ctx, city, state)
	if err != nil || !point.Valid() {
		s.logger.Warn("geocoding failed, using fallback coordinate",
			zap.String("cidade", city),
			zap.String("uf", state),
			zap.Error(err),
		)
		return domain.FallbackCoordinate
	}
	return point
}

func (s *ShipmentService) appendHistory(ctx context.Context, shipmentID string, previous *domain.LifecycleStatus, status domain.LifecycleStatus, note string) {
	entry := &domain.StatusHistoryEntry{
		ID:             uuid.NewString(),
		ShipmentID:     shipmentID,
		PreviousStatus: previous,
		NewStatus:      status,
		Note:           note,
		CreatedAt:      s.now(),
	}
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append status history",
			zap.String("carga_id", shipmentID),
			zap.Error(err),
		)
	}
}

func (s *ShipmentService) emitDeliveryAlert(ctx context.Context, shipment *domain.Shipment) {
	alert := &domain.Alert{
		ID:         uuid.NewString(),
		ShipmentID: shipment.ID,
		Type:       "entrega",
		Recipient:  "embarcador",
		Message:    fmt.Sprintf("Carga NF %s foi entregue com sucesso!", shipment.Invoice),
		CreatedAt:  s.now(),
	}

	if err := s.alerts.Insert(ctx, alert); err != nil {
		s.logger.Warn("failed to record delivery alert", zap.String("carga_id", shipment.ID), zap.Error(err))
	}
	if s.events != nil {
		if err := s.events.PublishDeliveryAlert(ctx, alert); err != nil {
			s.logger.Warn("failed to publish delivery alert", zap.String("carga_id", shipment.ID), zap.Error(err))
		}
	}
}

func (s *ShipmentService) notifyChanged(ctx context.Context, shipmentID string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishShipmentChanged(ctx, shipmentID); err != nil {
		s.logger.Debug("shipment change notification failed", zap.String("carga_id", shipmentID), zap.Error(err))
	}
}

func (s *ShipmentService) mapTimeout(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return err
}

// driverContactPhone picks the number stored on the record: the WhatsApp
// number when the primary is not WhatsApp-capable, otherwise the primary.
func driverContactPhone(draft domain.ShipmentDraft) string {
	if draft.DriverPhone == "" {
		return ""
	}
	if !draft.PhoneIsWhatsApp && draft.WhatsAppPhone != "" {
		return domain.DigitsOnly(draft.WhatsAppPhone)
	}
	return domain.DigitsOnly(draft.DriverPhone)
}

func shareMessage(link string) string {
	return "Olá! Para que possamos rastrear sua carga em tempo real, " +
		"clique no link abaixo e permita o acesso à sua localização:\n\n" +
		link + "\n\nEste link é seguro e será usado apenas para acompanhar a entrega da carga."
}

func extractToken(trackingURL string) string {
	idx := strings.LastIndex(trackingURL, "/")
	if idx < 0 {
		return ""
	}
	return trackingURL[idx+1:]
}
