package ws

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookengine/internal/domain"
)

type fakeBus struct {
	channels map[string]chan []byte
}

func newFakeBus(channels ...string) *fakeBus {
	b := &fakeBus{channels: make(map[string]chan []byte, len(channels))}
	for _, ch := range channels {
		b.channels[ch] = make(chan []byte, 16)
	}
	return b
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.channels[channel] <- payload
	return nil
}

func (b *fakeBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	return b.channels[channel], nil
}

func (b *fakeBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func runHub(t *testing.T, h *Hub) (cancel func(), wait func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(ctx) }()
	return stop, func() error { return <-errCh }
}

func TestHubRoutesBusMessagesToSubscribers(t *testing.T) {
	bus := newFakeBus("book_tops")
	h := NewHub(bus, []string{"book_tops"}, slog.Default())
	cancel, wait := runHub(t, h)
	defer func() { cancel(); wait() }()

	c := &client{hub: h, send: make(chan []byte, 4), subs: map[string]bool{"book_tops": true}}
	h.register <- c

	require.NoError(t, bus.Publish(context.Background(), "book_tops", []byte(`{"best_bid":99}`)))

	select {
	case msg := <-c.send:
		assert.JSONEq(t, `{"best_bid":99}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("subscribed client never received the bus message")
	}
}

func TestHubDropWhileRunning(t *testing.T) {
	h := NewHub(newFakeBus(), nil, slog.Default())
	cancel, wait := runHub(t, h)
	defer func() { cancel(); wait() }()

	c := &client{hub: h, send: make(chan []byte, 1), subs: map[string]bool{}}
	h.register <- c
	h.drop(c)

	select {
	case _, open := <-c.send:
		assert.False(t, open, "hub closes the send channel on unregister")
	case <-time.After(time.Second):
		t.Fatal("send channel not closed after drop")
	}
}

func TestHubDropAfterShutdownDoesNotBlock(t *testing.T) {
	h := NewHub(newFakeBus(), nil, slog.Default())
	cancel, wait := runHub(t, h)

	cancel()
	require.ErrorIs(t, wait(), context.Canceled)

	// A reader goroutine may outlive the event loop; its final handoff must
	// still return.
	c := &client{hub: h, send: make(chan []byte, 1), subs: map[string]bool{}}
	finished := make(chan struct{})
	go func() {
		h.drop(c)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("drop blocked after the hub stopped")
	}
}
