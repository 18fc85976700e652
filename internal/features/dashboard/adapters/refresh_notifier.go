package adapters

import (
	"context"

	"freight-tracker/internal/features/dashboard/service"
	shipments "freight-tracker/internal/features/shipments/domain"
	shipmentports "freight-tracker/internal/features/shipments/ports"
)

// RefreshNotifier decorates an event publisher so every shipment change also
// nudges the dashboard refresher. The inner publisher may be nil when no
// broker is configured; change notifications then stay in-process.
type RefreshNotifier struct {
	inner     shipmentports.EventPublisher
	refresher *service.Refresher
}

// NewRefreshNotifier wraps inner with dashboard notifications.
func NewRefreshNotifier(inner shipmentports.EventPublisher, refresher *service.Refresher) *RefreshNotifier {
	return &RefreshNotifier{inner: inner, refresher: refresher}
}

// PublishDeliveryAlert forwards the alert and nudges the dashboard.
func (n *RefreshNotifier) PublishDeliveryAlert(ctx context.Context, alert *shipments.Alert) error {
	n.refresher.Notify()
	if n.inner == nil {
		return nil
	}
	return n.inner.PublishDeliveryAlert(ctx, alert)
}

// PublishShipmentChanged forwards the change event and nudges the dashboard.
func (n *RefreshNotifier) PublishShipmentChanged(ctx context.Context, shipmentID string) error {
	n.refresher.Notify()
	if n.inner == nil {
		return nil
	}
	return n.inner.PublishShipmentChanged(ctx, shipmentID)
}
