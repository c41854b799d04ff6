// Package events fans committed order and table changes out to RabbitMQ and
// consumes them again on the notification side.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"restaurant-assistant/internal/connections/rabbitmq"
	"restaurant-assistant/internal/domain"
)

// Publisher is told about changes after they commit. Publishing never fails
// the change that caused it.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Event) {}

type amqpPublisher interface {
	Publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table) error
}

var _ amqpPublisher = (*rabbitmq.Client)(nil)

// RabbitPublisher sends each event to the orders topic exchange under
// "<kind>.<tenant>" and a copy to the notifications fanout.
type RabbitPublisher struct {
	client  amqpPublisher
	lg      *zap.Logger
	timeout time.Duration
}

func NewRabbitPublisher(client *rabbitmq.Client, lg *zap.Logger) *RabbitPublisher {
	return &RabbitPublisher{client: client, lg: lg, timeout: 3 * time.Second}
}

// RoutingKey is the topic key an event is published under.
func RoutingKey(ev domain.Event) string {
	return ev.Kind + "." + ev.TenantID
}

func (p *RabbitPublisher) Publish(ctx context.Context, ev domain.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		p.lg.Error("event_marshal_failed", zap.String("kind", ev.Kind), zap.Error(err))
		return
	}
	// The request may already be finishing; the publish gets its own deadline.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	headers := amqp.Table{"kind": ev.Kind, "tenant_id": ev.TenantID}
	if err := p.client.Publish(pubCtx, rabbitmq.OrdersExchange, RoutingKey(ev), body, headers); err != nil {
		p.lg.Warn("publish_failed", zap.String("exchange", rabbitmq.OrdersExchange), zap.String("kind", ev.Kind),
			zap.String("order_id", ev.OrderID), zap.Error(err))
		return
	}
	if err := p.client.Publish(pubCtx, rabbitmq.NotificationsExchange, "", body, headers); err != nil {
		p.lg.Warn("publish_failed", zap.String("exchange", rabbitmq.NotificationsExchange), zap.String("kind", ev.Kind),
			zap.String("order_id", ev.OrderID), zap.Error(err))
		return
	}
	p.lg.Debug("event_published", zap.String("kind", ev.Kind), zap.String("tenant_id", ev.TenantID),
		zap.String("order_id", ev.OrderID))
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *Recorder) Publish(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func (r *Recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}
