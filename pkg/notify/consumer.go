package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adjust/rmq/v5"
	"github.com/kr/pretty"
	"github.com/vanit/vanit/pkg/fleet"
	"github.com/vanit/vanit/pkg/redis_client"
	"github.com/vanit/vanit/pkg/roster"
)

// notificationDedupeWindow stops a student getting pinged again for every
// subsequent position update near their stop.
const notificationDedupeWindow = 1 * time.Hour

type EventBatchConsumer struct {
	roster *roster.Repository
	push   *PushManager
}

func NewEventBatchConsumer(push *PushManager) *EventBatchConsumer {
	return &EventBatchConsumer{
		roster: roster.NewRepository(),
		push:   push,
	}
}

func (c *EventBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		c.handlePayload([]byte(payload))
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Fatal().Err(err).Msg("Failed to consume from queue")
		}
	}
}

func (c *EventBatchConsumer) handlePayload(payload []byte) {
	var envelope fleet.EventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		log.Warn().Err(err).Msg("Could not decode event payload")
		pretty.Println(string(payload))
		return
	}

	switch envelope.Type {
	case fleet.EventTypeStopApproaching:
		var event fleet.StopApproachingEvent
		if err := json.Unmarshal(envelope.Body, &event); err != nil {
			log.Warn().Err(err).Msg("Could not decode stop approaching event")
			return
		}

		c.notifyStopApproaching(event)
	default:
		// Remaining event types only feed the live stream
	}
}

func (c *EventBatchConsumer) notifyStopApproaching(event fleet.StopApproachingEvent) {
	ctx := context.Background()

	students, err := c.roster.StudentsAtStop(ctx, event.RouteName, event.StopName)
	if err != nil {
		log.Error().Err(err).Str("stop", event.StopName).Msg("Could not load students for stop")
		return
	}

	for _, student := range students {
		dedupeKey := fmt.Sprintf("student:%s:last_notification", student.PrimaryIdentifier)

		wasSet, err := redis_client.Client.SetNX(ctx, dedupeKey, event.At.Format(time.RFC3339), notificationDedupeWindow).Result()
		if err != nil {
			log.Error().Err(err).Str("student", student.PrimaryIdentifier).Msg("Notification dedupe check failed")
			continue
		}
		if !wasSet {
			continue
		}

		title := fmt.Sprintf("Shuttle approaching %s", event.StopName)
		message := fmt.Sprintf("Vehicle %s on route %s is %.1f km away", event.VehicleID, event.RouteName, event.DistanceKm)

		if err := c.push.SendPush(student.PrimaryIdentifier, title, message); err != nil {
			log.Warn().Err(err).Str("student", student.PrimaryIdentifier).Msg("Could not send push notification")
		}
	}
}
