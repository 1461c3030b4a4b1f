package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp091.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestEvent_JSONRoundTrip(t *testing.T) {
	e := Event{
		Type:      PaymentRecorded,
		ExpenseID: "e1",
		TripID:    "trip-1",
		Version:   3,
		Status:    "paid",
		Pending:   2,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := e.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"expense.payment_recorded"`)

	got, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte("{"))
	assert.Error(t, err)
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{channel: ch, exchangeName: "tripsplit", timeout: time.Second}

	err := p.Publish(context.Background(), Event{Type: ExpenseRecalculated, ExpenseID: "e1", Version: 7})
	require.NoError(t, err)

	assert.Equal(t, "tripsplit", ch.exchange)
	assert.Equal(t, "expense.recalculated", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp091.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "e1@7", ch.msg.MessageId)
	assert.False(t, ch.msg.Timestamp.IsZero())

	decoded, err := FromJSON(ch.msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "e1", decoded.ExpenseID)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := &AMQPPublisher{channel: ch, exchangeName: "tripsplit", timeout: time.Second}

	err := p.Publish(context.Background(), Event{Type: ExpenseCreated})
	assert.ErrorContains(t, err, "channel closed")
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
