package geofence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/vanit/vanit/pkg/broadcast"
	"github.com/vanit/vanit/pkg/elastic_client"
	"github.com/vanit/vanit/pkg/fleet"
)

type RouteSource interface {
	Route(ctx context.Context, name string) (*fleet.Route, error)
}

// Notifier decides, for every position update, whether any stop on the
// vehicle's route should be told the vehicle is approaching. Each stop is
// evaluated independently; a per-stop cooldown caps notification frequency no
// matter how many qualifying updates arrive.
type Notifier struct {
	RadiusKm float64
	Cooldown time.Duration

	routes RouteSource
	hub    *broadcast.Hub

	mu           sync.Mutex
	lastNotified map[string]time.Time

	now func() time.Time
}

func NewNotifier(radiusKm float64, cooldown time.Duration, routes RouteSource, hub *broadcast.Hub) *Notifier {
	return &Notifier{
		RadiusKm: radiusKm,
		Cooldown: cooldown,

		routes:       routes,
		hub:          hub,
		lastNotified: map[string]time.Time{},
		now:          time.Now,
	}
}

// PositionUpdated runs the geofence check for one position update. Called
// synchronously after the registry write.
func (n *Notifier) PositionUpdated(ctx context.Context, position fleet.VehiclePosition) {
	route, err := n.routes.Route(ctx, position.RouteName)
	if err != nil {
		log.Error().Err(err).Str("route", position.RouteName).Msg("Failed to load route for geofence check")
		return
	}
	if route == nil {
		log.Debug().Str("route", position.RouteName).Msg("No route reference data, skipping geofence check")
		return
	}

	checkPool := pool.New()
	for _, stop := range route.Stops {
		stop := stop
		checkPool.Go(func() {
			n.checkStop(position, stop)
		})
	}
	checkPool.Wait()
}

func (n *Notifier) checkStop(position fleet.VehiclePosition, stop fleet.Stop) {
	if !stop.HasLocation() {
		// Reference data gap, nothing sensible to compare against
		return
	}

	distance := position.Location.DistanceKm(stop.Location)
	if distance > n.RadiusKm {
		return
	}

	now := n.now()

	// The cooldown stamp is taken before publishing so concurrent qualifying
	// updates cannot both fire for the same stop.
	n.mu.Lock()
	if last, ok := n.lastNotified[stop.PrimaryIdentifier]; ok && now.Sub(last) < n.Cooldown {
		n.mu.Unlock()
		return
	}
	n.lastNotified[stop.PrimaryIdentifier] = now
	n.mu.Unlock()

	event := fleet.StopApproachingEvent{
		StopID:     stop.PrimaryIdentifier,
		StopName:   stop.Name,
		VehicleID:  position.VehicleID,
		DistanceKm: distance,
		RouteName:  position.RouteName,
		At:         now,
	}

	n.hub.Publish(position.RouteName, fleet.Event{
		Type:      fleet.EventTypeStopApproaching,
		Timestamp: now,
		Body:      event,
	})

	indexNotificationEvent(event)

	log.Info().
		Str("stop", stop.PrimaryIdentifier).
		Str("vehicle", position.VehicleID).
		Float64("distancekm", distance).
		Msg("Stop approaching")
}

func indexNotificationEvent(event fleet.StopApproachingEvent) {
	yearNumber, weekNumber := event.At.ISOWeek()
	indexName := fmt.Sprintf("geofence-notification-events-%d-%d", yearNumber, weekNumber)

	elasticEvent, _ := json.Marshal(event)
	elastic_client.IndexRequest(indexName, bytes.NewReader(elasticEvent))
}
