package broadcast

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vanit/vanit/pkg/fleet"
)

// Forwarder pushes a published event to an external fan-out target (redis
// channel, queue). Forwarder failures never reach the publisher.
type Forwarder func(topic string, event fleet.Event) error

const forwardQueueSize = 4096

type forwardJob struct {
	topic string
	event fleet.Event
}

// Hub is a topic-keyed publish/subscribe fabric. Events published on a topic
// reach every subscriber present at publish time, in publish order per
// subscriber. Topics are route names; direct notification topics use a
// subscriber-specific name.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[*Subscriber]struct{}

	forwarders   []Forwarder
	forwardQueue chan forwardJob
}

func NewHub() *Hub {
	hub := &Hub{
		topics:       make(map[string]map[*Subscriber]struct{}),
		forwardQueue: make(chan forwardJob, forwardQueueSize),
	}

	go hub.runForwarders()

	return hub
}

// RegisterForwarder must be called before the first Publish.
func (h *Hub) RegisterForwarder(forwarder Forwarder) {
	h.mu.Lock()
	h.forwarders = append(h.forwarders, forwarder)
	h.mu.Unlock()
}

func (h *Hub) Subscribe(topic string) *Subscriber {
	subscriber := newSubscriber(topic)

	h.mu.Lock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Subscriber]struct{})
	}
	h.topics[topic][subscriber] = struct{}{}
	h.mu.Unlock()

	return subscriber
}

// Unsubscribe stops further deliveries. A delivery already handed to the
// subscriber channel is unaffected.
func (h *Hub) Unsubscribe(subscriber *Subscriber) {
	h.mu.Lock()
	if subscribers := h.topics[subscriber.Topic]; subscribers != nil {
		delete(subscribers, subscriber)
		if len(subscribers) == 0 {
			delete(h.topics, subscriber.Topic)
		}
	}
	h.mu.Unlock()

	subscriber.close()
}

// Publish hands the event to every current subscriber of the topic and to the
// forwarder queue. It never blocks on slow consumers.
func (h *Hub) Publish(topic string, event fleet.Event) {
	h.mu.Lock()
	for subscriber := range h.topics[topic] {
		subscriber.enqueue(event)
	}
	hasForwarders := len(h.forwarders) > 0
	h.mu.Unlock()

	if !hasForwarders {
		return
	}

	select {
	case h.forwardQueue <- forwardJob{topic: topic, event: event}:
	default:
		// The write path must not stall on a backed-up fan-out
		log.Warn().Str("topic", topic).Str("type", string(event.Type)).Msg("Forward queue full, dropping event")
	}
}

func (h *Hub) runForwarders() {
	for job := range h.forwardQueue {
		h.mu.Lock()
		forwarders := h.forwarders
		h.mu.Unlock()

		for _, forwarder := range forwarders {
			if err := forwarder(job.topic, job.event); err != nil {
				log.Error().Err(err).Str("topic", job.topic).Str("type", string(job.event.Type)).Msg("Failed to forward event")
			}
		}
	}
}
