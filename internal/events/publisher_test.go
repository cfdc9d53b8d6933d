package events

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher() *Publisher {
	return NewPublisher(slog.Default())
}

func TestPublishFansOutToTopicSubscribers(t *testing.T) {
	p := newTestPublisher()

	var got []any
	p.Subscribe("trade", func(event any) { got = append(got, event) })
	p.Subscribe("trade", func(event any) { got = append(got, event) })
	p.Subscribe("other", func(event any) { t.Fatal("wrong topic delivered") })

	p.Publish("trade", 42)
	require.Len(t, got, 2)
	assert.Equal(t, 42, got[0])
	assert.Equal(t, 42, got[1])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	p := newTestPublisher()

	calls := 0
	sub := p.Subscribe("trade", func(any) { calls++ })
	require.Equal(t, 1, p.SubscriberCount("trade"))

	p.Publish("trade", nil)
	p.Unsubscribe(sub)
	p.Publish("trade", nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, p.SubscriberCount("trade"))

	// Double unsubscribe and nil are no-ops.
	p.Unsubscribe(sub)
	p.Unsubscribe(nil)
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	p := newTestPublisher()

	delivered := false
	p.Subscribe("trade", func(any) { panic("handler exploded") })
	p.Subscribe("trade", func(any) { delivered = true })

	assert.NotPanics(t, func() { p.Publish("trade", nil) })
	assert.True(t, delivered)
}

func TestPublishNoSubscribers(t *testing.T) {
	p := newTestPublisher()
	assert.NotPanics(t, func() { p.Publish("trade", "event") })
}
