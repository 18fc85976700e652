package adapters

import (
	"context"
	"testing"
	"time"

	"freight-tracker/internal/features/shipments/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedShipment(id string, createdAt time.Time) *domain.Shipment {
	return &domain.Shipment{
		ID:               id,
		ShipperID:        "emb-1",
		Invoice:          "NF-" + id,
		OriginCity:       "São Paulo",
		OriginState:      "SP",
		DestinationCity:  "Rio de Janeiro",
		DestinationState: "RJ",
		Status:           domain.StatusInTransit,
		DeadlineStatus:   domain.DeadlineOnTime,
		Active:           true,
		CreatedAt:        createdAt,
	}
}

func TestMemoryShipmentRepository_InsertGet(t *testing.T) {
	store := NewMemoryStore()
	repo := store.Shipments()
	ctx := context.Background()

	s := seedShipment("c-1", time.Now())
	require.NoError(t, repo.Insert(ctx, s))

	got, err := repo.GetByID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "NF-c-1", got.Invoice)

	// Duplicate insert fails.
	assert.Error(t, repo.Insert(ctx, s))

	// Unknown id yields ErrNotFound.
	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryShipmentRepository_SoftDeletedInvisible(t *testing.T) {
	store := NewMemoryStore()
	repo := store.Shipments()
	ctx := context.Background()

	s := seedShipment("c-1", time.Now())
	require.NoError(t, repo.Insert(ctx, s))

	s.Active = false
	require.NoError(t, repo.Update(ctx, s))

	_, err := repo.GetByID(ctx, "c-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := repo.List(ctx, "", domain.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryShipmentRepository_TokenResolution(t *testing.T) {
	store := NewMemoryStore()
	repo := store.Shipments()
	ctx := context.Background()

	s := seedShipment("c-1", time.Now())
	s.TrackingToken = "1700000000000-abc123"
	require.NoError(t, repo.Insert(ctx, s))

	got, err := repo.GetByToken(ctx, "1700000000000-abc123")
	require.NoError(t, err)
	assert.Equal(t, "c-1", got.ID)

	_, err = repo.GetByToken(ctx, "unknown-token")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = repo.GetByToken(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestMemoryShipmentRepository_ListOrderAndScope(t *testing.T) {
	store := NewMemoryStore()
	repo := store.Shipments()
	ctx := context.Background()

	base := time.Now()
	older := seedShipment("c-1", base.Add(-time.Hour))
	newer := seedShipment("c-2", base)
	other := seedShipment("c-3", base.Add(-time.Minute))
	other.ShipperID = "emb-2"

	require.NoError(t, repo.Insert(ctx, older))
	require.NoError(t, repo.Insert(ctx, newer))
	require.NoError(t, repo.Insert(ctx, other))

	list, err := repo.List(ctx, "", domain.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c-2", list[0].ID) // newest first

	scoped, err := repo.List(ctx, "emb-2", domain.Filter{})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "c-3", scoped[0].ID)
}

func TestMemoryPositionRepository_LatestIgnoresInsertionOrder(t *testing.T) {
	store := NewMemoryStore()
	repo := store.Positions()
	ctx := context.Background()

	base := time.Now()

	// The newest fix by timestamp is inserted first; a stale one arrives later.
	newest := &domain.PositionFix{ID: "f-2", ShipmentID: "c-1", Latitude: -22.9, Longitude: -43.2, Timestamp: base}
	stale := &domain.PositionFix{ID: "f-1", ShipmentID: "c-1", Latitude: -23.5, Longitude: -46.6, Timestamp: base.Add(-10 * time.Minute)}

	require.NoError(t, repo.Append(ctx, newest))
	require.NoError(t, repo.Append(ctx, stale))

	latest, err := repo.Latest(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "f-2", latest.ID)
}

func TestMemoryPositionRepository_LatestEmpty(t *testing.T) {
	store := NewMemoryStore()

	latest, err := store.Positions().Latest(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestMemoryPositionRepository_HistoryRange(t *testing.T) {
	store := NewMemoryStore()
	repo := store.Positions()
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		fix := &domain.PositionFix{
			ID:         string(rune('a' + i)),
			ShipmentID: "c-1",
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.Append(ctx, fix))
	}

	fixes, err := repo.History(ctx, "c-1", base.Add(30*time.Minute), base.Add(150*time.Minute))
	require.NoError(t, err)
	require.Len(t, fixes, 2)
	// Newest first.
	assert.True(t, fixes[0].Timestamp.After(fixes[1].Timestamp))
}

func TestMemoryHistoryRepository_OldestFirst(t *testing.T) {
	store := NewMemoryStore()
	repo := store.History()
	ctx := context.Background()

	base := time.Now()
	prev := domain.StatusInTransit
	require.NoError(t, repo.Append(ctx, &domain.StatusHistoryEntry{
		ID: "h-2", ShipmentID: "c-1", PreviousStatus: &prev,
		NewStatus: domain.StatusDelivered, CreatedAt: base,
	}))
	require.NoError(t, repo.Append(ctx, &domain.StatusHistoryEntry{
		ID: "h-1", ShipmentID: "c-1",
		NewStatus: domain.StatusInTransit, CreatedAt: base.Add(-time.Hour),
	}))

	entries, err := repo.ByShipment(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "h-1", entries[0].ID)
	assert.Nil(t, entries[0].PreviousStatus)
	assert.Equal(t, domain.StatusDelivered, entries[1].NewStatus)
}
