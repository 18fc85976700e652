package domain

import (
	"fmt"
	"math"
	"time"

	"freight-tracker/internal/core/geo"
)

// EarlyArrivalMargin is how far ahead of the promised arrival a delivery (or
// projection) must land to be classified "adiantado" rather than "no_prazo".
const EarlyArrivalMargin = 12 * time.Hour

// Progress is the read-time delivery status derived for one shipment. It is
// computed fresh from {now, schedule, fixes}; the stored DeadlineStatus is
// only a cache updated at creation and delivery.
type Progress struct {
	// PercentComplete is the route fraction completed, 0-100, rounded.
	PercentComplete float64 `json:"percentual_concluido"`
	// TimeRemaining is a human-readable duration until the promised arrival.
	TimeRemaining string `json:"tempo_restante"`
	// Overdue is true when the promised arrival has passed undelivered.
	Overdue bool `json:"em_atraso"`
	// DeadlineStatus is the recomputed timeliness classification.
	DeadlineStatus DeadlineStatus `json:"status_prazo"`
}

// PercentComplete returns the percentage of route completed, rounded for
// display. A delivered shipment is always 100 regardless of its last fix;
// a shipment with no fixes is 0. Malformed coordinates short-circuit to 0
// rather than propagating NaN.
func PercentComplete(s *Shipment, last *PositionFix) float64 {
	if s.Status == StatusDelivered {
		return 100
	}

	var current *geo.Point
	if last != nil {
		p := last.Point()
		current = &p
	}

	fraction := geo.RouteProgress(s.Origin(), s.Destination(), current)
	return math.Round(fraction * 100)
}

// TimeRemaining returns the duration until the promised arrival. Negative
// means overdue.
func TimeRemaining(s *Shipment, now time.Time) time.Duration {
	return s.ArrivalDeadline.Sub(now)
}

// FormatRemaining renders a duration as a compact human-readable string,
// e.g. "2d 4h", "35min", "-1h 10min".
func FormatRemaining(d time.Duration) string {
	prefix := ""
	if d < 0 {
		prefix = "-"
		d = -d
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%s%dd %dh", prefix, days, hours)
	case hours > 0:
		return fmt.Sprintf("%s%dh %dmin", prefix, hours, minutes)
	default:
		return fmt.Sprintf("%s%dmin", prefix, minutes)
	}
}

// DeadlineStatusAt classifies the shipment's timeliness at the given instant.
// Pure function of {now, promised arrival, actual delivery, route progress};
// never trusts the stored DeadlineStatus.
//
// Delivered: late when delivered past the deadline, early when delivered at
// least EarlyArrivalMargin before it. In transit: late once the deadline has
// passed, early when the projected arrival (remaining distance at the
// estimated average speed) beats the deadline by the margin. A cancelled
// shipment keeps whatever classification it had.
func DeadlineStatusAt(s *Shipment, last *PositionFix, now time.Time) DeadlineStatus {
	if s.Status == StatusCancelled {
		return s.DeadlineStatus
	}

	if s.Status == StatusDelivered && s.DeliveredAt != nil {
		if s.DeliveredAt.After(s.ArrivalDeadline) {
			return DeadlineLate
		}
		if s.ArrivalDeadline.Sub(*s.DeliveredAt) >= EarlyArrivalMargin {
			return DeadlineEarly
		}
		return DeadlineOnTime
	}

	if now.After(s.ArrivalDeadline) {
		return DeadlineLate
	}

	// Only project "early" from an observed fix; with no position data the
	// projection would just restate the schedule.
	if last != nil {
		projected := ProjectedArrival(s, last, now)
		if !projected.IsZero() && s.ArrivalDeadline.Sub(projected) >= EarlyArrivalMargin {
			return DeadlineEarly
		}
	}
	return DeadlineOnTime
}

// ProjectedArrival estimates when the shipment will reach its destination,
// assuming the remaining route distance is covered at the estimated average
// speed. Returns the zero time when no estimate is possible (unknown route
// distance or malformed coordinates).
func ProjectedArrival(s *Shipment, last *PositionFix, now time.Time) time.Time {
	if s.TotalDistanceKm <= 0 {
		return time.Time{}
	}

	var current *geo.Point
	if last != nil {
		p := last.Point()
		current = &p
	}

	fraction := geo.RouteProgress(s.Origin(), s.Destination(), current)
	remainingKm := s.TotalDistanceKm * (1 - fraction)

	speed := s.AvgSpeedKmh
	if speed <= 0 {
		speed = DefaultAvgSpeedKmh
	}

	travel := time.Duration(remainingKm / speed * float64(time.Hour))
	return now.Add(travel)
}

// ComputeProgress derives the full read-time delivery status for a shipment.
func ComputeProgress(s *Shipment, last *PositionFix, now time.Time) Progress {
	remaining := TimeRemaining(s, now)
	return Progress{
		PercentComplete: PercentComplete(s, last),
		TimeRemaining:   FormatRemaining(remaining),
		Overdue:         s.Status == StatusInTransit && remaining < 0,
		DeadlineStatus:  DeadlineStatusAt(s, last, now),
	}
}
