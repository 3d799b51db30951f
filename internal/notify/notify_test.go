package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/safar/go-storefront/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

type mockOutbox struct {
	mu        sync.Mutex
	events    []models.OutboxEvent
	published map[int64]bool
	fetchErr  error
	markErr   error
}

func newMockOutbox(events ...models.OutboxEvent) *mockOutbox {
	return &mockOutbox{events: events, published: map[int64]bool{}}
}

func (m *mockOutbox) PendingEvents(_ context.Context, limit int) ([]models.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var pending []models.OutboxEvent
	for _, e := range m.events {
		if !m.published[e.ID] && len(pending) < limit {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

func (m *mockOutbox) MarkPublished(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.published[id] = true
	return nil
}

func (m *mockOutbox) isPublished(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published[id]
}

type mockPublisher struct {
	mu   sync.Mutex
	sent []models.OutboxEvent
	fail map[int64]error
}

func (m *mockPublisher) Publish(_ context.Context, event models.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[event.ID]; err != nil {
		return err
	}
	m.sent = append(m.sent, event)
	return nil
}

func testEvent(t *testing.T, id int64) models.OutboxEvent {
	t.Helper()
	order := &models.Order{
		ID:               id,
		OrderNumber:      "WEB-00AA11BB22",
		ClientName:       "Ana",
		ClientPhone:      "+56911111111",
		PaymentMethod:    models.PaymentMethodPickupPay,
		PaymentReference: models.PaymentReferenceNotApplicable,
		Items: []models.CartLine{{
			Product:  models.Product{ID: 1, Name: "California Roll", Price: decimal.NewFromInt(5000)},
			Quantity: 2,
		}},
		Total: decimal.NewFromInt(10000),
	}
	payload, err := json.Marshal(models.NewOrderPlacedEvent(order))
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:          id,
		AggregateID: order.OrderNumber,
		EventType:   models.EventOrderPlaced,
		Payload:     payload,
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.Publish(context.Background(), testEvent(t, 7)))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "WEB-00AA11BB22", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, models.EventOrderPlaced, string(msg.Headers[0].Value))

	var event models.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, int64(7), event.OrderID)
	assert.Equal(t, models.PaymentMethodPickupPay, event.PaymentMethod)
	assert.True(t, decimal.NewFromInt(10000).Equal(event.Total))
	require.Len(t, event.Items, 1)
	assert.Equal(t, 2, event.Items[0].Quantity)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &mockWriter{err: errors.New("broker down")}}

	err := p.Publish(context.Background(), testEvent(t, 7))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEB-00AA11BB22")
	assert.Contains(t, err.Error(), "broker down")
}

func TestOutboxPoller_PublishesAndMarks(t *testing.T) {
	store := newMockOutbox(testEvent(t, 1), testEvent(t, 2))
	pub := &mockPublisher{}
	p := NewOutboxPoller(store, pub, time.Second, 10, nil)

	assert.Equal(t, 2, p.processPending(context.Background()))
	assert.True(t, store.isPublished(1))
	assert.True(t, store.isPublished(2))
	require.Len(t, pub.sent, 2)

	assert.Equal(t, 0, p.processPending(context.Background()), "nothing left to send")
	assert.Len(t, pub.sent, 2)
}

func TestOutboxPoller_PublishFailureLeavesEventPending(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := newMockOutbox(testEvent(t, 1), testEvent(t, 2))
	pub := &mockPublisher{fail: map[int64]error{1: errors.New("broker down")}}
	p := NewOutboxPoller(store, pub, time.Second, 10, zap.New(core))

	assert.Equal(t, 1, p.processPending(context.Background()))
	assert.False(t, store.isPublished(1))
	assert.True(t, store.isPublished(2))

	entries := logs.FilterMessage("order event not published").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["event_id"])

	pub.mu.Lock()
	pub.fail = nil
	pub.mu.Unlock()
	assert.Equal(t, 1, p.processPending(context.Background()), "retried on the next tick")
	assert.True(t, store.isPublished(1))
}

func TestOutboxPoller_MarkFailureIsRetried(t *testing.T) {
	store := newMockOutbox(testEvent(t, 1))
	store.markErr = errors.New("db down")
	pub := &mockPublisher{}
	p := NewOutboxPoller(store, pub, time.Second, 10, nil)

	assert.Equal(t, 0, p.processPending(context.Background()))
	assert.False(t, store.isPublished(1))

	store.mu.Lock()
	store.markErr = nil
	store.mu.Unlock()
	assert.Equal(t, 1, p.processPending(context.Background()))
	assert.Len(t, pub.sent, 2, "at least once delivery")
}

func TestOutboxPoller_FetchError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := newMockOutbox()
	store.fetchErr = errors.New("db down")
	p := NewOutboxPoller(store, &mockPublisher{}, time.Second, 10, zap.New(core))

	assert.Equal(t, 0, p.processPending(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("failed to fetch outbox events").Len())
}

func TestOutboxPoller_RunDrainsUntilCancelled(t *testing.T) {
	store := newMockOutbox(testEvent(t, 1))
	p := NewOutboxPoller(store, &mockPublisher{}, 5*time.Millisecond, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.isPublished(1) }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
