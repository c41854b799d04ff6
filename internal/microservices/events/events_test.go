package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"restaurant-assistant/internal/connections/rabbitmq"
	"restaurant-assistant/internal/domain"
)

type sent struct {
	exchange, key string
	body          []byte
}

type fakeBroker struct {
	mu   sync.Mutex
	sent []sent
	fail map[string]error
}

func (f *fakeBroker) Publish(_ context.Context, exchange, key string, body []byte, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[exchange]; err != nil {
		return err
	}
	f.sent = append(f.sent, sent{exchange: exchange, key: key, body: body})
	return nil
}

func TestRabbitPublisher_TopicAndFanout(t *testing.T) {
	b := &fakeBroker{}
	p := &RabbitPublisher{client: b, lg: zap.NewNop(), timeout: time.Second}

	p.Publish(context.Background(), domain.Event{Kind: domain.EventOrderPlaced, TenantID: "R1", OrderID: "o-1"})

	require.Len(t, b.sent, 2)
	assert.Equal(t, rabbitmq.OrdersExchange, b.sent[0].exchange)
	assert.Equal(t, "order.placed.R1", b.sent[0].key)
	assert.Equal(t, rabbitmq.NotificationsExchange, b.sent[1].exchange)

	var ev domain.Event
	require.NoError(t, json.Unmarshal(b.sent[1].body, &ev))
	assert.Equal(t, "o-1", ev.OrderID)
}

func TestRabbitPublisher_BrokerFailureIsSwallowed(t *testing.T) {
	b := &fakeBroker{fail: map[string]error{rabbitmq.OrdersExchange: errors.New("nack")}}
	p := &RabbitPublisher{client: b, lg: zap.NewNop(), timeout: time.Second}

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), domain.Event{Kind: domain.EventOrderBilled, TenantID: "R1"})
	})
	assert.Empty(t, b.sent)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Publish(context.Background(), domain.Event{Kind: domain.EventOrderPlaced})
	r.Publish(context.Background(), domain.Event{Kind: domain.EventTableStatusChanged})
	assert.Equal(t, []string{domain.EventOrderPlaced, domain.EventTableStatusChanged}, r.Kinds())
	assert.Len(t, r.Events(), 2)
}

type fakeAck struct {
	acked, nacked int
}

func (f *fakeAck) Ack(uint64, bool) error        { f.acked++; return nil }
func (f *fakeAck) Nack(uint64, bool, bool) error { f.nacked++; return nil }
func (f *fakeAck) Reject(uint64, bool) error     { f.nacked++; return nil }

func TestSubscriber_AcksGoodAndDeadLettersBad(t *testing.T) {
	ack := &fakeAck{}
	var got []domain.Event
	s := NewSubscriber(zap.NewNop(), func(_ context.Context, ev domain.Event) error {
		if ev.Kind == "boom" {
			return errors.New("handler failed")
		}
		got = append(got, ev)
		return nil
	})

	good, _ := json.Marshal(domain.Event{Kind: domain.EventOrderPlaced, TenantID: "R1"})
	bad, _ := json.Marshal(domain.Event{Kind: "boom"})

	ch := make(chan amqp.Delivery, 3)
	ch <- amqp.Delivery{Acknowledger: ack, Body: good}
	ch <- amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")}
	ch <- amqp.Delivery{Acknowledger: ack, Body: bad}
	close(ch)

	require.NoError(t, s.Run(context.Background(), ch))
	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 2, ack.nacked)
	require.Len(t, got, 1)
	assert.Equal(t, "R1", got[0].TenantID)
}

func TestSubscriber_DefaultHandlerLogs(t *testing.T) {
	ack := &fakeAck{}
	s := NewSubscriber(zap.NewNop(), nil)
	body, _ := json.Marshal(domain.Event{Kind: domain.EventTableStatusChanged, TableNumber: "5", NewStatus: "occupied"})

	ch := make(chan amqp.Delivery, 1)
	ch <- amqp.Delivery{Acknowledger: ack, Body: body}
	close(ch)

	require.NoError(t, s.Run(context.Background(), ch))
	assert.Equal(t, 1, ack.acked)
}

func TestSubscriber_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewSubscriber(zap.NewNop(), nil)
	assert.NoError(t, s.Run(ctx, make(chan amqp.Delivery)))
}
