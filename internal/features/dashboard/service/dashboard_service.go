package service

import (
	"context"
	"fmt"
	"time"

	"freight-tracker/internal/core/logger"
	"freight-tracker/internal/features/dashboard/domain"
	shipments "freight-tracker/internal/features/shipments/domain"
	shipmentports "freight-tracker/internal/features/shipments/ports"

	"go.uber.org/zap"
)

// ShipmentView is one dashboard row: the shipment, its freshest fix and the
// progress fields recomputed at read time.
type ShipmentView struct {
	Shipment *shipments.Shipment    `json:"carga"`
	LastFix  *shipments.PositionFix `json:"ultima_posicao,omitempty"`
	Progress shipments.Progress     `json:"progresso"`
}

// Snapshot is one full dashboard state, broadcast to connected clients.
type Snapshot struct {
	Shipments   []ShipmentView          `json:"cargas"`
	Metrics     domain.DashboardMetrics `json:"metricas"`
	GeneratedAt time.Time               `json:"gerado_em"`
}

// DashboardService builds the live shipment table and its aggregate panel.
// It is read-only over the shipment stores; all writes go through the
// lifecycle service.
type DashboardService struct {
	shipmentRepo shipmentports.ShipmentRepository
	positions    shipmentports.PositionRepository
	now          func() time.Time
	logger       *zap.Logger
}

// NewDashboardService creates the read-side service.
func NewDashboardService(
	shipmentRepo shipmentports.ShipmentRepository,
	positions shipmentports.PositionRepository,
) *DashboardService {
	return &DashboardService{
		shipmentRepo: shipmentRepo,
		positions:    positions,
		now:          time.Now,
		logger:       logger.Get(),
	}
}

// ListShipments returns the dashboard rows, newest first, narrowed by the
// filter. The deadline-status criterion is applied to the RECOMPUTED
// classification, not the stored one, so a shipment that slid past its
// deadline since the last write shows up under "atrasado" immediately.
func (s *DashboardService) ListShipments(ctx context.Context, shipperID string, filter shipments.Filter) ([]ShipmentView, error) {
	// The repository filters on stored columns; deadline statuses are
	// re-evaluated here, so they are stripped from the pushed-down filter.
	deadlineSet := filter.DeadlineStatuses
	filter.DeadlineStatuses = nil

	items, err := s.shipmentRepo.List(ctx, shipperID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list cargas: %w", err)
	}

	now := s.now()
	views := make([]ShipmentView, 0, len(items))
	for _, item := range items {
		last, err := s.positions.Latest(ctx, item.ID)
		if err != nil {
			s.logger.Warn("latest fix lookup failed", zap.String("carga_id", item.ID), zap.Error(err))
			last = nil
		}

		progress := shipments.ComputeProgress(item, last, now)
		if len(deadlineSet) > 0 && !containsDeadline(deadlineSet, progress.DeadlineStatus) {
			continue
		}

		views = append(views, ShipmentView{
			Shipment: item,
			LastFix:  last,
			Progress: progress,
		})
	}
	return views, nil
}

// Metrics computes the aggregate panel over every active shipment in scope.
func (s *DashboardService) Metrics(ctx context.Context, shipperID string) (domain.DashboardMetrics, error) {
	items, err := s.shipmentRepo.List(ctx, shipperID, shipments.Filter{})
	if err != nil {
		return domain.DashboardMetrics{}, fmt.Errorf("failed to list cargas: %w", err)
	}

	lastFixes := make(map[string]*shipments.PositionFix, len(items))
	for _, item := range items {
		last, err := s.positions.Latest(ctx, item.ID)
		if err != nil {
			s.logger.Warn("latest fix lookup failed", zap.String("carga_id", item.ID), zap.Error(err))
			continue
		}
		if last != nil {
			lastFixes[item.ID] = last
		}
	}

	return domain.ComputeMetrics(items, lastFixes, s.now()), nil
}

// Snapshot assembles the full dashboard state for broadcasting.
func (s *DashboardService) Snapshot(ctx context.Context, shipperID string) (*Snapshot, error) {
	views, err := s.ListShipments(ctx, shipperID, shipments.Filter{})
	if err != nil {
		return nil, err
	}
	metrics, err := s.Metrics(ctx, shipperID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Shipments:   views,
		Metrics:     metrics,
		GeneratedAt: s.now(),
	}, nil
}

func containsDeadline(set []shipments.DeadlineStatus, v shipments.DeadlineStatus) bool {
	for _, d := range set {
		if d == v {
			return true
		}
	}
	return false
}
