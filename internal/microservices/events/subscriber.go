package events

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"restaurant-assistant/internal/domain"
)

// HandlerFunc processes one decoded notification. A returned error sends the
// message to the dead-letter queue.
type HandlerFunc func(ctx context.Context, ev domain.Event) error

// Subscriber drains the notifications queue.
type Subscriber struct {
	lg     *zap.Logger
	handle HandlerFunc
}

// NewSubscriber uses the logging handler when handle is nil.
func NewSubscriber(lg *zap.Logger, handle HandlerFunc) *Subscriber {
	s := &Subscriber{lg: lg, handle: handle}
	if s.handle == nil {
		s.handle = s.logEvent
	}
	return s
}

// Run blocks until ctx is done or the delivery channel closes.
func (s *Subscriber) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				s.lg.Warn("notification_channel_closed")
				return nil
			}
			s.process(ctx, d)
		}
	}
}

func (s *Subscriber) process(ctx context.Context, d amqp.Delivery) {
	var ev domain.Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		s.lg.Error("notification_malformed", zap.Error(err), zap.Int("bytes", len(d.Body)))
		_ = d.Nack(false, false)
		return
	}
	if err := s.handle(ctx, ev); err != nil {
		s.lg.Error("notification_failed", zap.String("kind", ev.Kind), zap.String("order_id", ev.OrderID), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (s *Subscriber) logEvent(_ context.Context, ev domain.Event) error {
	fields := []zap.Field{
		zap.String("kind", ev.Kind),
		zap.String("tenant_id", ev.TenantID),
		zap.Time("occurred_at", ev.OccurredAt),
	}
	if ev.OrderID != "" {
		fields = append(fields, zap.String("order_id", ev.OrderID), zap.String("order_number", ev.OrderNumber))
	}
	if ev.TableNumber != "" {
		fields = append(fields, zap.String("table_number", ev.TableNumber))
	}
	if ev.NewStatus != "" {
		fields = append(fields, zap.String("old_status", ev.OldStatus), zap.String("new_status", ev.NewStatus))
	}
	if ev.Amount != 0 {
		fields = append(fields, zap.Float64("amount", ev.Amount))
	}
	s.lg.Info("notification_received", fields...)
	return nil
}
