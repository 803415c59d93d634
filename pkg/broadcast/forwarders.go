package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/vanit/vanit/pkg/fleet"
)

// NewRedisForwarder mirrors every published event onto the route's redis
// channel so out-of-process consumers (dashboards, the admin subsystem) see
// the same stream as in-process subscribers.
func NewRedisForwarder(client *redis.Client) Forwarder {
	return func(topic string, event fleet.Event) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}

		return client.Publish(context.Background(), fmt.Sprintf("route:%s:events", topic), payload).Err()
	}
}

// NewQueueForwarder enqueues events for the notify worker.
func NewQueueForwarder(queue rmq.Queue) Forwarder {
	return func(topic string, event fleet.Event) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}

		return queue.PublishBytes(payload)
	}
}
