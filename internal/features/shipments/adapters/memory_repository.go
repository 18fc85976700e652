package adapters

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"freight-tracker/internal/features/shipments/domain"
)

// MemoryStore is an in-memory implementation of the shipment repository
// ports, used by tests and local development without a database. Each port is
// exposed as a facet over the same shared state; all methods are safe for
// concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	shipments map[string]*domain.Shipment
	fixes     map[string][]*domain.PositionFix
	history   map[string][]*domain.StatusHistoryEntry
	alerts    []*domain.Alert
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shipments: make(map[string]*domain.Shipment),
		fixes:     make(map[string][]*domain.PositionFix),
		history:   make(map[string][]*domain.StatusHistoryEntry),
	}
}

// Shipments returns the ShipmentRepository facet.
func (m *MemoryStore) Shipments() *MemoryShipmentRepository {
	return &MemoryShipmentRepository{store: m}
}

// Positions returns the PositionRepository facet.
func (m *MemoryStore) Positions() *MemoryPositionRepository {
	return &MemoryPositionRepository{store: m}
}

// History returns the HistoryRepository facet.
func (m *MemoryStore) History() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{store: m}
}

// Alerts returns the AlertRepository facet.
func (m *MemoryStore) Alerts() *MemoryAlertRepository {
	return &MemoryAlertRepository{store: m}
}

// MemoryShipmentRepository implements ports.ShipmentRepository in memory.
type MemoryShipmentRepository struct {
	store *MemoryStore
}

// Insert persists a new shipment.
func (r *MemoryShipmentRepository) Insert(ctx context.Context, s *domain.Shipment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.shipments[s.ID]; exists {
		return fmt.Errorf("carga %s already exists", s.ID)
	}
	clone := *s
	r.store.shipments[s.ID] = &clone
	return nil
}

// GetByID returns the shipment or domain.ErrNotFound. Soft-deleted
// shipments are invisible.
func (r *MemoryShipmentRepository) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	s, ok := r.store.shipments[id]
	if !ok || !s.Active {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	clone := *s
	return &clone, nil
}

// GetByToken resolves a tracking token or returns domain.ErrInvalidToken.
func (r *MemoryShipmentRepository) GetByToken(ctx context.Context, token string) (*domain.Shipment, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, s := range r.store.shipments {
		if s.Active && s.TrackingToken == token {
			clone := *s
			return &clone, nil
		}
	}
	return nil, domain.ErrInvalidToken
}

// List returns active shipments newest first, scoped and filtered.
func (r *MemoryShipmentRepository) List(ctx context.Context, shipperID string, filter domain.Filter) ([]*domain.Shipment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Shipment
	for _, s := range r.store.shipments {
		if !s.Active {
			continue
		}
		if shipperID != "" && s.ShipperID != shipperID {
			continue
		}
		if !filter.Matches(s) {
			continue
		}
		clone := *s
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update persists field changes on an existing shipment. Unlike reads,
// Update still reaches soft-deleted rows: exclusion itself is an update.
func (r *MemoryShipmentRepository) Update(ctx context.Context, s *domain.Shipment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.shipments[s.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, s.ID)
	}
	clone := *s
	r.store.shipments[s.ID] = &clone
	return nil
}

// MemoryPositionRepository implements ports.PositionRepository in memory.
type MemoryPositionRepository struct {
	store *MemoryStore
}

// Append stores a new fix. Fixes are append-only.
func (r *MemoryPositionRepository) Append(ctx context.Context, fix *domain.PositionFix) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	clone := *fix
	r.store.fixes[fix.ShipmentID] = append(r.store.fixes[fix.ShipmentID], &clone)
	return nil
}

// Latest returns the fix with the maximum stored timestamp, or nil. The scan
// compares timestamps rather than insertion order, so out-of-order writes
// (clock skew, delayed persists) still resolve correctly.
func (r *MemoryPositionRepository) Latest(ctx context.Context, shipmentID string) (*domain.PositionFix, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var latest *domain.PositionFix
	for _, fix := range r.store.fixes[shipmentID] {
		if latest == nil || fix.Timestamp.After(latest.Timestamp) {
			latest = fix
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

// History returns fixes within [from, to], newest first.
func (r *MemoryPositionRepository) History(ctx context.Context, shipmentID string, from, to time.Time) ([]*domain.PositionFix, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.PositionFix
	for _, fix := range r.store.fixes[shipmentID] {
		if fix.Timestamp.Before(from) || fix.Timestamp.After(to) {
			continue
		}
		clone := *fix
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// MemoryHistoryRepository implements ports.HistoryRepository in memory.
type MemoryHistoryRepository struct {
	store *MemoryStore
}

// Append stores one status transition entry.
func (r *MemoryHistoryRepository) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	clone := *entry
	r.store.history[entry.ShipmentID] = append(r.store.history[entry.ShipmentID], &clone)
	return nil
}

// ByShipment returns the audit entries for a shipment, oldest first.
func (r *MemoryHistoryRepository) ByShipment(ctx context.Context, shipmentID string) ([]*domain.StatusHistoryEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entries := r.store.history[shipmentID]
	out := make([]*domain.StatusHistoryEntry, 0, len(entries))
	for _, e := range entries {
		clone := *e
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// MemoryAlertRepository implements ports.AlertRepository in memory.
type MemoryAlertRepository struct {
	store *MemoryStore
}

// Insert stores an alert record.
func (r *MemoryAlertRepository) Insert(ctx context.Context, alert *domain.Alert) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	clone := *alert
	r.store.alerts = append(r.store.alerts, &clone)
	return nil
}

// All returns a snapshot of the recorded alerts.
func (r *MemoryAlertRepository) All() []*domain.Alert {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Alert, 0, len(r.store.alerts))
	for _, a := range r.store.alerts {
		clone := *a
		out = append(out, &clone)
	}
	return out
}
