package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func transitShipment() *Shipment {
	departure := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	return &Shipment{
		ID:              "c-1",
		OriginLat:       -23.5505,
		OriginLng:       -46.6333,
		DestinationLat:  -22.9068,
		DestinationLng:  -43.1729,
		DepartureAt:     departure,
		ArrivalDeadline: departure.Add(24 * time.Hour),
		AvgSpeedKmh:     60,
		TotalDistanceKm: 360,
		Status:          StatusInTransit,
		DeadlineStatus:  DeadlineOnTime,
		Active:          true,
	}
}

func TestPercentComplete_NoFixes(t *testing.T) {
	s := transitShipment()
	assert.Equal(t, 0.0, PercentComplete(s, nil))
}

func TestPercentComplete_Delivered(t *testing.T) {
	s := transitShipment()
	s.Status = StatusDelivered

	// Delivered is 100 regardless of the last fix.
	fix := &PositionFix{Latitude: s.OriginLat, Longitude: s.OriginLng}
	assert.Equal(t, 100.0, PercentComplete(s, fix))
	assert.Equal(t, 100.0, PercentComplete(s, nil))
}

func TestPercentComplete_Bounds(t *testing.T) {
	s := transitShipment()

	atDest := &PositionFix{Latitude: s.DestinationLat, Longitude: s.DestinationLng}
	pastDest := &PositionFix{Latitude: -22.5, Longitude: -41.0}

	for _, fix := range []*PositionFix{nil, atDest, pastDest} {
		pct := PercentComplete(s, fix)
		assert.GreaterOrEqual(t, pct, 0.0)
		assert.LessOrEqual(t, pct, 100.0)
	}
}

func TestPercentComplete_MalformedCoordinates(t *testing.T) {
	s := transitShipment()
	s.OriginLat = math.NaN()

	fix := &PositionFix{Latitude: -23.0, Longitude: -45.0}
	pct := PercentComplete(s, fix)
	assert.False(t, math.IsNaN(pct))
	assert.Equal(t, 0.0, pct)
}

func TestTimeRemaining(t *testing.T) {
	s := transitShipment()

	now := s.ArrivalDeadline.Add(-2 * time.Hour)
	assert.Equal(t, 2*time.Hour, TimeRemaining(s, now))

	overdue := s.ArrivalDeadline.Add(90 * time.Minute)
	assert.Equal(t, -90*time.Minute, TimeRemaining(s, overdue))
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "2d 4h", FormatRemaining(52*time.Hour))
	assert.Equal(t, "1h 10min", FormatRemaining(70*time.Minute))
	assert.Equal(t, "35min", FormatRemaining(35*time.Minute))
	assert.Equal(t, "-1h 10min", FormatRemaining(-70*time.Minute))
	assert.Equal(t, "0min", FormatRemaining(0))
}

func TestDeadlineStatusAt_InTransit(t *testing.T) {
	s := transitShipment()

	// Before the deadline with a plausible projection: on time.
	now := s.DepartureAt.Add(2 * time.Hour)
	assert.Equal(t, DeadlineOnTime, DeadlineStatusAt(s, nil, now))

	// Past the deadline while still in transit: late.
	past := s.ArrivalDeadline.Add(time.Minute)
	assert.Equal(t, DeadlineLate, DeadlineStatusAt(s, nil, past))
}

func TestDeadlineStatusAt_ProjectedEarly(t *testing.T) {
	s := transitShipment()
	// Fix at the destination: remaining distance ~0, projected arrival ~now,
	// which beats the deadline by far more than the margin.
	fix := &PositionFix{Latitude: s.DestinationLat, Longitude: s.DestinationLng}
	now := s.DepartureAt.Add(2 * time.Hour)

	assert.Equal(t, DeadlineEarly, DeadlineStatusAt(s, fix, now))
}

func TestDeadlineStatusAt_Delivered(t *testing.T) {
	s := transitShipment()
	s.Status = StatusDelivered

	// Delivered after the deadline: late.
	lateDelivery := s.ArrivalDeadline.Add(3 * time.Hour)
	s.DeliveredAt = &lateDelivery
	assert.Equal(t, DeadlineLate, DeadlineStatusAt(s, nil, lateDelivery))

	// Delivered just before the deadline: on time, not early.
	justBefore := s.ArrivalDeadline.Add(-time.Hour)
	s.DeliveredAt = &justBefore
	assert.Equal(t, DeadlineOnTime, DeadlineStatusAt(s, nil, justBefore))

	// Delivered at least the margin before the deadline: early.
	wellBefore := s.ArrivalDeadline.Add(-EarlyArrivalMargin)
	s.DeliveredAt = &wellBefore
	assert.Equal(t, DeadlineEarly, DeadlineStatusAt(s, nil, wellBefore))
}

func TestDeadlineStatusAt_CancelledKeepsStored(t *testing.T) {
	s := transitShipment()
	s.Status = StatusCancelled
	s.DeadlineStatus = DeadlineLate

	now := s.ArrivalDeadline.Add(-time.Hour)
	assert.Equal(t, DeadlineLate, DeadlineStatusAt(s, nil, now))
}

func TestProjectedArrival(t *testing.T) {
	s := transitShipment()

	now := s.DepartureAt
	// No fix: full 360 km at 60 km/h = 6 hours out.
	projected := ProjectedArrival(s, nil, now)
	assert.WithinDuration(t, now.Add(6*time.Hour), projected, time.Minute)

	// Unknown route distance: no estimate.
	s.TotalDistanceKm = 0
	assert.True(t, ProjectedArrival(s, nil, now).IsZero())
}

func TestComputeProgress(t *testing.T) {
	s := transitShipment()
	now := s.ArrivalDeadline.Add(time.Hour)

	p := ComputeProgress(s, nil, now)
	assert.Equal(t, 0.0, p.PercentComplete)
	assert.True(t, p.Overdue)
	assert.Equal(t, DeadlineLate, p.DeadlineStatus)
	assert.Equal(t, "-1h 0min", p.TimeRemaining)
}
