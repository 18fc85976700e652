package service

import (
	"context"
	"time"

	"freight-tracker/internal/core/logger"

	"go.uber.org/zap"
)

// DefaultRefreshInterval is the periodic dashboard refresh cadence.
const DefaultRefreshInterval = 30 * time.Second

// Broadcaster pushes a dashboard snapshot to connected clients.
type Broadcaster interface {
	Broadcast(payload any)
}

// Refresher drives dashboard updates through one code path regardless of the
// trigger: the periodic ticker, an explicit refresh request, or a change
// notification from the shipment lifecycle.
type Refresher struct {
	dashboard *DashboardService
	hub       Broadcaster
	interval  time.Duration

	notify chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher creates and starts the refresh loop.
func NewRefresher(dashboard *DashboardService, hub Broadcaster, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Refresher{
		dashboard: dashboard,
		hub:       hub,
		interval:  interval,
		notify:    make(chan struct{}, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go r.run(ctx)
	return r
}

// Notify requests a refresh because shipment data changed. Coalescing: a
// pending notification absorbs further ones until the loop picks it up.
func (r *Refresher) Notify() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Refresh builds a snapshot immediately and broadcasts it. Also the manual
// refresh entry point for the HTTP handler.
func (r *Refresher) Refresh(ctx context.Context) error {
	snapshot, err := r.dashboard.Snapshot(ctx, "")
	if err != nil {
		return err
	}
	r.hub.Broadcast(snapshot)
	return nil
}

// Close stops the ticker; no broadcast is emitted after it returns.
func (r *Refresher) Close() {
	r.cancel()
	<-r.done
}

func (r *Refresher) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.notify:
		}

		if err := r.Refresh(ctx); err != nil {
			logger.Get().Warn("dashboard refresh failed", zap.Error(err))
		}
	}
}
