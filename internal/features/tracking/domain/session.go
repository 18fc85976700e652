package domain

import (
	"errors"
	"time"

	shipments "freight-tracker/internal/features/shipments/domain"
)

// ErrUnsupported is returned when the location provider reports no
// geolocation capability for the device.
var ErrUnsupported = errors.New("geolocation not supported")

// ErrPermissionDenied is returned when the driver refused the location
// permission prompt.
var ErrPermissionDenied = errors.New("location permission denied")

// SharingActiveWindow is how recent the newest fix must be for position
// sharing to count as active.
const SharingActiveWindow = 10 * time.Minute

// SharingActive reports whether the driver is still sharing: true iff the
// newest fix is younger than the sharing window.
func SharingActive(last *shipments.PositionFix, now time.Time) bool {
	if last == nil {
		return false
	}
	return now.Sub(last.Timestamp) < SharingActiveWindow
}
