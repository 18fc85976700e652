package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"freight-tracker/internal/core/geo"
	"freight-tracker/internal/core/logger"
	shipments "freight-tracker/internal/features/shipments/domain"
	shipmentports "freight-tracker/internal/features/shipments/ports"
	"freight-tracker/internal/features/tracking/domain"
	"freight-tracker/internal/features/tracking/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultCaptureInterval is how often a tracking session acquires a fix.
	DefaultCaptureInterval = 5 * time.Minute
	// DefaultCaptureTimeout bounds a single position acquisition.
	DefaultCaptureTimeout = 10 * time.Second

	// SourceSession tags fixes captured by the server-side session loop.
	SourceSession = "api_rastreamento"
	// SourceBrowser tags fixes pushed by the driver's browser page.
	SourceBrowser = "navegador"
)

// TrackingSession is one live position-capture loop for a shipment. Each
// session owns its cancel handle; there is no shared timer registry.
type TrackingSession struct {
	ShipmentID string
	Token      string

	cancel   context.CancelFunc
	done     chan struct{}
	inFlight atomic.Bool
}

// PositionInput is a browser-pushed position report.
type PositionInput struct {
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	SpeedKmh       *float64 `json:"velocidade,omitempty"`
	AccuracyMeters float64  `json:"precisao_metros"`
}

// TrackedShipment is the public view behind a tracking link.
type TrackedShipment struct {
	Shipment      *shipments.Shipment    `json:"carga"`
	LastFix       *shipments.PositionFix `json:"ultima_posicao,omitempty"`
	Progress      shipments.Progress     `json:"progresso"`
	SharingActive bool                   `json:"compartilhamento_ativo"`
}

// TrackingService manages position-capture sessions and token-scoped reads.
// At most one session runs per shipment; restarting replaces the old one.
type TrackingService struct {
	shipmentRepo shipmentports.ShipmentRepository
	positions    shipmentports.PositionRepository
	provider     ports.GeolocationProvider

	interval       time.Duration
	captureTimeout time.Duration
	now            func() time.Time
	logger         *zap.Logger

	mu       sync.Mutex
	sessions map[string]*TrackingSession
}

// NewTrackingService creates the service. provider may be nil when no
// location gateway is configured; StartTracking then fails with
// domain.ErrUnsupported, while browser-pushed ingestion keeps working.
func NewTrackingService(
	shipmentRepo shipmentports.ShipmentRepository,
	positions shipmentports.PositionRepository,
	provider ports.GeolocationProvider,
	interval, captureTimeout time.Duration,
) *TrackingService {
	if interval <= 0 {
		interval = DefaultCaptureInterval
	}
	if captureTimeout <= 0 {
		captureTimeout = DefaultCaptureTimeout
	}
	return &TrackingService{
		shipmentRepo:   shipmentRepo,
		positions:      positions,
		provider:       provider,
		interval:       interval,
		captureTimeout: captureTimeout,
		now:            time.Now,
		sessions:       make(map[string]*TrackingSession),
		logger:         logger.Get(),
	}
}

// StartTracking resolves the token and begins a capture session: one fix
// immediately, then one per interval until stopped. Starting again for the
// same shipment cancels the previous session first.
//
// The immediate capture surfaces domain.ErrUnsupported and
// domain.ErrPermissionDenied to the caller; transient failures are logged
// and left to the loop to retry.
func (s *TrackingService) StartTracking(ctx context.Context, token string) (*TrackingSession, error) {
	shipment, err := s.shipmentRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, domain.ErrUnsupported
	}

	if err := s.capture(ctx, shipment.ID, token); err != nil {
		if errors.Is(err, domain.ErrUnsupported) || errors.Is(err, domain.ErrPermissionDenied) {
			return nil, err
		}
		s.logger.Warn("initial position capture failed",
			zap.String("carga_id", shipment.ID),
			zap.Error(err),
		)
	}

	// Detached from the request context: the session outlives the request.
	sessionCtx, cancel := context.WithCancel(context.Background())
	session := &TrackingSession{
		ShipmentID: shipment.ID,
		Token:      token,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	if prior, ok := s.sessions[shipment.ID]; ok {
		prior.cancel()
	}
	s.sessions[shipment.ID] = session
	s.mu.Unlock()

	go s.run(sessionCtx, session)

	s.logger.Info("tracking session started",
		zap.String("carga_id", shipment.ID),
		zap.Duration("interval", s.interval),
	)
	return session, nil
}

// StopTracking cancels the session for the shipment, if any. Idempotent; no
// further capture is scheduled after it returns.
func (s *TrackingService) StopTracking(shipmentID string) {
	s.mu.Lock()
	session, ok := s.sessions[shipmentID]
	if ok {
		delete(s.sessions, shipmentID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	session.cancel()
	<-session.done
	s.logger.Info("tracking session stopped", zap.String("carga_id", shipmentID))
}

// StopByToken resolves the token and stops its session.
func (s *TrackingService) StopByToken(ctx context.Context, token string) error {
	shipment, err := s.shipmentRepo.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	s.StopTracking(shipment.ID)
	return nil
}

// PushPosition appends one browser-reported fix for the shipment behind the
// token. Same validation as the session loop; the fix is tagged navegador.
func (s *TrackingService) PushPosition(ctx context.Context, token string, input PositionInput) (*shipments.PositionFix, error) {
	shipment, err := s.shipmentRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	point := geo.Point{Lat: input.Latitude, Lng: input.Longitude}
	if !point.Valid() {
		return nil, shipments.NewValidationError("invalid coordinates")
	}

	fix := &shipments.PositionFix{
		ID:             uuid.NewString(),
		ShipmentID:     shipment.ID,
		Latitude:       input.Latitude,
		Longitude:      input.Longitude,
		SpeedKmh:       input.SpeedKmh,
		AccuracyMeters: input.AccuracyMeters,
		Timestamp:      s.now(),
		Source:         SourceBrowser,
	}
	if err := s.positions.Append(ctx, fix); err != nil {
		return nil, fmt.Errorf("failed to persist posicao: %w", err)
	}
	return fix, nil
}

// PublicView resolves the token to the driver/recipient-facing shipment view
// with its freshest fix, recomputed progress and the sharing flag.
func (s *TrackingService) PublicView(ctx context.Context, token string) (*TrackedShipment, error) {
	shipment, err := s.shipmentRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	last, err := s.positions.Latest(ctx, shipment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest posicao: %w", err)
	}

	now := s.now()
	return &TrackedShipment{
		Shipment:      shipment,
		LastFix:       last,
		Progress:      shipments.ComputeProgress(shipment, last, now),
		SharingActive: domain.SharingActive(last, now),
	}, nil
}

// RouteHistory returns the fixes recorded for the shipment behind the token
// within [from, to], newest first. A zero from/to defaults to the last 24h,
// which is what the driver page plots.
func (s *TrackingService) RouteHistory(ctx context.Context, token string, from, to time.Time) ([]*shipments.PositionFix, error) {
	shipment, err := s.shipmentRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if to.Before(from) {
		return nil, shipments.NewValidationError("history range end precedes start")
	}

	fixes, err := s.positions.History(ctx, shipment.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load posicoes: %w", err)
	}
	return fixes, nil
}

// Active reports whether a session is currently running for the shipment.
func (s *TrackingService) Active(shipmentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[shipmentID]
	return ok
}

// Shutdown stops every running session.
func (s *TrackingService) Shutdown() {
	s.mu.Lock()
	sessions := make([]*TrackingSession, 0, len(s.sessions))
	for id, session := range s.sessions {
		sessions = append(sessions, session)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		session.cancel()
		<-session.done
	}
}

// run is the per-session capture loop. A tick that fires while the previous
// capture is still in flight is skipped, never queued. An in-flight capture
// is joined before done closes, so a stopped session is fully quiescent: no
// fix is appended after StopTracking returns.
func (s *TrackingService) run(ctx context.Context, session *TrackingSession) {
	defer close(session.done)

	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !session.inFlight.CompareAndSwap(false, true) {
				continue
			}
			inFlight.Add(1)
			go func() {
				defer inFlight.Done()
				defer session.inFlight.Store(false)
				if err := s.capture(ctx, session.ShipmentID, session.Token); err != nil {
					s.logger.Warn("position capture failed",
						zap.String("carga_id", session.ShipmentID),
						zap.Error(err),
					)
				}
			}()
		}
	}
}

// capture acquires one fresh high-accuracy fix and appends it.
func (s *TrackingService) capture(ctx context.Context, shipmentID, token string) error {
	captureCtx, cancel := context.WithTimeout(ctx, s.captureTimeout)
	defer cancel()

	obs, err := s.provider.GetCurrentPosition(captureCtx, token, ports.CaptureOptions{
		HighAccuracy: true,
		Timeout:      s.captureTimeout,
		MaxAge:       0,
	})
	if err != nil {
		return err
	}

	point := geo.Point{Lat: obs.Latitude, Lng: obs.Longitude}
	if !point.Valid() {
		return fmt.Errorf("provider returned invalid coordinates (%f, %f)", obs.Latitude, obs.Longitude)
	}

	timestamp := obs.Timestamp
	if timestamp.IsZero() {
		timestamp = s.now()
	}

	fix := &shipments.PositionFix{
		ID:             uuid.NewString(),
		ShipmentID:     shipmentID,
		Latitude:       obs.Latitude,
		Longitude:      obs.Longitude,
		SpeedKmh:       obs.SpeedKmh,
		AccuracyMeters: obs.AccuracyMeters,
		Timestamp:      timestamp,
		Source:         SourceSession,
	}
	if err := s.positions.Append(ctx, fix); err != nil {
		return fmt.Errorf("failed to persist posicao: %w", err)
	}
	return nil
}
