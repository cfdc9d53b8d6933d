// Package events provides the in-process publish/subscribe mechanism the
// order books announce trade events through. Subscriptions are explicit
// handles: Subscribe returns a token-bearing Subscription that must be passed
// to Unsubscribe, so cleanup never depends on garbage collection.
package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine; keep them fast.
type Handler func(event any)

// Subscription identifies one registered handler on one topic.
type Subscription struct {
	Token uuid.UUID
	Topic string
}

// Publisher fans events out to topic subscribers. A panicking handler is
// recovered and logged; it never affects other subscribers or the caller.
type Publisher struct {
	mu     sync.RWMutex
	topics map[string]map[uuid.UUID]Handler
	logger *slog.Logger
}

// NewPublisher creates an empty Publisher.
func NewPublisher(logger *slog.Logger) *Publisher {
	return &Publisher{
		topics: make(map[string]map[uuid.UUID]Handler),
		logger: logger.With(slog.String("component", "event_publisher")),
	}
}

// Subscribe registers a handler for a topic and returns the handle needed to
// unsubscribe it.
func (p *Publisher) Subscribe(topic string, h Handler) *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs, ok := p.topics[topic]
	if !ok {
		subs = make(map[uuid.UUID]Handler)
		p.topics[topic] = subs
	}
	token := uuid.New()
	subs[token] = h
	return &Subscription{Token: token, Topic: topic}
}

// Unsubscribe removes a previously registered handler. Unknown or already
// removed subscriptions are ignored.
func (p *Publisher) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	subs, ok := p.topics[sub.Topic]
	if !ok {
		return
	}
	delete(subs, sub.Token)
	if len(subs) == 0 {
		delete(p.topics, sub.Topic)
	}
}

// Publish delivers event to every subscriber of topic, synchronously and in
// unspecified order.
func (p *Publisher) Publish(topic string, event any) {
	p.mu.RLock()
	handlers := make([]Handler, 0, len(p.topics[topic]))
	for _, h := range p.topics[topic] {
		handlers = append(handlers, h)
	}
	p.mu.RUnlock()

	for _, h := range handlers {
		p.dispatch(topic, h, event)
	}
}

// dispatch invokes one handler with panic isolation.
func (p *Publisher) dispatch(topic string, h Handler, event any) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("subscriber panicked",
				slog.String("topic", topic),
				slog.Any("panic", r),
			)
		}
	}()
	h(event)
}

// SubscriberCount returns the number of handlers registered on a topic.
func (p *Publisher) SubscriberCount(topic string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.topics[topic])
}
