package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"freight-tracker/internal/core/logger"
	"freight-tracker/internal/features/shipments/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AmqpPublisher implements ports.EventPublisher over a RabbitMQ topic
// exchange. Dashboards and notification workers bind their own queues to the
// routing keys below.
type AmqpPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewAmqpPublisher dials the broker and declares the topic exchange.
func NewAmqpPublisher(brokerURL, exchange string) (*AmqpPublisher, error) {
	conn, err := amqp.Dial(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	logger.Get().Info("broker connected", zap.String("exchange", exchange))
	return &AmqpPublisher{conn: conn, channel: channel, exchange: exchange}, nil
}

// PublishDeliveryAlert announces a completed delivery.
func (p *AmqpPublisher) PublishDeliveryAlert(ctx context.Context, alert *domain.Alert) error {
	routingKey := fmt.Sprintf("carga.entregue.%s", alert.ShipmentID)
	return p.publish(ctx, routingKey, alert)
}

// PublishShipmentChanged announces that a shipment row changed.
func (p *AmqpPublisher) PublishShipmentChanged(ctx context.Context, shipmentID string) error {
	routingKey := fmt.Sprintf("carga.atualizada.%s", shipmentID)
	payload := map[string]string{"carga_id": shipmentID}
	return p.publish(ctx, routingKey, payload)
}

func (p *AmqpPublisher) publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

// Close shuts down the channel and connection.
func (p *AmqpPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
