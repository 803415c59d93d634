package broadcast

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vanit/vanit/pkg/fleet"
)

func makeEvent(sequence int) fleet.Event {
	return fleet.Event{
		Type:      fleet.EventTypeLocationUpdate,
		Timestamp: time.Now(),
		Body:      fmt.Sprintf("event-%d", sequence),
	}
}

func TestPublishOrderPreservedPerSubscriber(t *testing.T) {
	hub := NewHub()
	subscriber := hub.Subscribe("R1")
	defer hub.Unsubscribe(subscriber)

	const count = 100
	for i := 0; i < count; i++ {
		hub.Publish("R1", makeEvent(i))
	}

	for i := 0; i < count; i++ {
		select {
		case event := <-subscriber.Events():
			expected := fmt.Sprintf("event-%d", i)
			if event.Body != expected {
				t.Fatalf("expected %s at position %d, got %v", expected, i, event.Body)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	hub := NewHub()
	subscriberA := hub.Subscribe("R1")
	subscriberB := hub.Subscribe("R2")
	defer hub.Unsubscribe(subscriberA)
	defer hub.Unsubscribe(subscriberB)

	hub.Publish("R1", makeEvent(1))

	select {
	case <-subscriberA.Events():
	case <-time.After(time.Second):
		t.Fatal("R1 subscriber never received the event")
	}

	select {
	case event := <-subscriberB.Events():
		t.Fatalf("R2 subscriber received unexpected event %v", event.Body)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDeliveryAndClosesChannel(t *testing.T) {
	hub := NewHub()
	subscriber := hub.Subscribe("R1")

	hub.Unsubscribe(subscriber)
	hub.Publish("R1", makeEvent(1))

	select {
	case _, open := <-subscriber.Events():
		if open {
			t.Fatal("received event after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber channel never closed")
	}
}

func TestAllSubscribersAtPublishTimeReceive(t *testing.T) {
	hub := NewHub()

	const subscriberCount = 10
	subscribers := make([]*Subscriber, subscriberCount)
	for i := range subscribers {
		subscribers[i] = hub.Subscribe("R1")
	}

	hub.Publish("R1", makeEvent(42))

	for i, subscriber := range subscribers {
		select {
		case <-subscriber.Events():
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
		hub.Unsubscribe(subscriber)
	}
}

func TestForwarderReceivesEventsInOrder(t *testing.T) {
	hub := NewHub()

	var mu sync.Mutex
	var received []string
	done := make(chan struct{})

	hub.RegisterForwarder(func(topic string, event fleet.Event) error {
		mu.Lock()
		received = append(received, event.Body.(string))
		count := len(received)
		mu.Unlock()

		if count == 5 {
			close(done)
		}
		return nil
	})

	for i := 0; i < 5; i++ {
		hub.Publish("R1", makeEvent(i))
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder never saw all events")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, body := range received {
		expected := fmt.Sprintf("event-%d", i)
		if body != expected {
			t.Errorf("expected %s at position %d, got %s", expected, i, body)
		}
	}
}

func TestForwarderErrorDoesNotReachPublisher(t *testing.T) {
	hub := NewHub()
	hub.RegisterForwarder(func(topic string, event fleet.Event) error {
		return errors.New("fan-out unavailable")
	})

	// Must not panic or block
	hub.Publish("R1", makeEvent(1))
}
