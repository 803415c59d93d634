package broadcast

import (
	"sync"

	"github.com/vanit/vanit/pkg/fleet"
)

// Subscriber receives the events published on one topic, in publish order.
// The consumer reads from Events until it is closed by an Unsubscribe.
type Subscriber struct {
	Topic string

	mu      sync.Mutex
	cond    *sync.Cond
	pending []fleet.Event
	closed  bool

	quit chan struct{}
	out  chan fleet.Event
}

func newSubscriber(topic string) *Subscriber {
	subscriber := &Subscriber{
		Topic: topic,
		quit:  make(chan struct{}),
		out:   make(chan fleet.Event),
	}
	subscriber.cond = sync.NewCond(&subscriber.mu)

	go subscriber.deliver()

	return subscriber
}

func (s *Subscriber) Events() <-chan fleet.Event {
	return s.out
}

func (s *Subscriber) enqueue(event fleet.Event) {
	s.mu.Lock()
	if !s.closed {
		s.pending = append(s.pending, event)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *Subscriber) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.quit)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *Subscriber) deliver() {
	defer close(s.out)

	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		event := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- event:
		case <-s.quit:
			return
		}
	}
}
