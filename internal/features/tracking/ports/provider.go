package ports

import (
	"context"
	"time"
)

// CaptureOptions tune a single position acquisition.
type CaptureOptions struct {
	// HighAccuracy requests GPS-grade positioning over coarse sources.
	HighAccuracy bool
	// Timeout bounds the acquisition; exceeding it fails the capture.
	Timeout time.Duration
	// MaxAge is the oldest acceptable cached fix. Zero forces a fresh read.
	MaxAge time.Duration
}

// Observation is one raw position reading from a provider.
type Observation struct {
	Latitude       float64
	Longitude      float64
	SpeedKmh       *float64
	AccuracyMeters float64
	Timestamp      time.Time
}

// GeolocationProvider acquires the current position of the device identified
// by the shipment's tracking token. Implementations return
// domain.ErrUnsupported when the device has no location capability and
// domain.ErrPermissionDenied when the driver refused the permission prompt.
type GeolocationProvider interface {
	GetCurrentPosition(ctx context.Context, deviceToken string, opts CaptureOptions) (*Observation, error)
}
