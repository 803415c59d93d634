package geofence

import (
	"context"
	"testing"
	"time"

	"github.com/vanit/vanit/pkg/broadcast"
	"github.com/vanit/vanit/pkg/fleet"
)

type staticRoutes struct {
	route *fleet.Route
}

func (s *staticRoutes) Route(ctx context.Context, name string) (*fleet.Route, error) {
	if s.route != nil && s.route.Name == name {
		return s.route, nil
	}
	return nil, nil
}

func testRoute() *fleet.Route {
	return &fleet.Route{
		Name: "R1",
		Stops: []fleet.Stop{
			{
				PrimaryIdentifier: "S1",
				Name:              "Main Gate",
				Location:          fleet.Location{Latitude: 33.6844, Longitude: 73.0479},
			},
			{
				PrimaryIdentifier: "S2",
				Name:              "Library",
				Location:          fleet.Location{Latitude: 33.8000, Longitude: 73.2000},
			},
		},
	}
}

func positionNear(vehicleID string, stop fleet.Stop) fleet.VehiclePosition {
	return fleet.VehiclePosition{
		VehicleID:  vehicleID,
		RouteName:  "R1",
		Location:   fleet.Location{Latitude: stop.Location.Latitude + 0.0004, Longitude: stop.Location.Longitude},
		ObservedAt: time.Now(),
	}
}

func collectEvents(t *testing.T, subscriber *broadcast.Subscriber, wait time.Duration) []fleet.Event {
	t.Helper()

	var events []fleet.Event
	timeout := time.After(wait)
	for {
		select {
		case event := <-subscriber.Events():
			events = append(events, event)
		case <-timeout:
			return events
		}
	}
}

func TestSingleNotificationWithinCooldown(t *testing.T) {
	hub := broadcast.NewHub()
	subscriber := hub.Subscribe("R1")
	defer hub.Unsubscribe(subscriber)

	route := testRoute()
	notifier := NewNotifier(2, 30*time.Minute, &staticRoutes{route: route}, hub)

	current := time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)
	notifier.now = func() time.Time { return current }

	// 100 qualifying updates inside the cooldown window
	for i := 0; i < 100; i++ {
		notifier.PositionUpdated(context.Background(), positionNear("V1", route.Stops[0]))
		current = current.Add(10 * time.Second)
	}

	events := collectEvents(t, subscriber, 100*time.Millisecond)
	if len(events) != 1 {
		t.Fatalf("expected exactly one StopApproaching event, got %d", len(events))
	}

	body := events[0].Body.(fleet.StopApproachingEvent)
	if body.StopID != "S1" {
		t.Errorf("expected stop S1, got %s", body.StopID)
	}
	if body.DistanceKm > 2 {
		t.Errorf("distance %f exceeds radius", body.DistanceKm)
	}
}

func TestNotificationFiresAgainAfterCooldown(t *testing.T) {
	hub := broadcast.NewHub()
	subscriber := hub.Subscribe("R1")
	defer hub.Unsubscribe(subscriber)

	route := testRoute()
	notifier := NewNotifier(2, 30*time.Minute, &staticRoutes{route: route}, hub)

	current := time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)
	notifier.now = func() time.Time { return current }

	notifier.PositionUpdated(context.Background(), positionNear("V1", route.Stops[0]))

	current = current.Add(31 * time.Minute)
	notifier.PositionUpdated(context.Background(), positionNear("V1", route.Stops[0]))

	events := collectEvents(t, subscriber, 100*time.Millisecond)
	if len(events) != 2 {
		t.Fatalf("expected two events across separate cooldown windows, got %d", len(events))
	}
}

func TestOutsideRadiusNeverNotifies(t *testing.T) {
	hub := broadcast.NewHub()
	subscriber := hub.Subscribe("R1")
	defer hub.Unsubscribe(subscriber)

	route := testRoute()
	notifier := NewNotifier(2, 30*time.Minute, &staticRoutes{route: route}, hub)

	position := fleet.VehiclePosition{
		VehicleID:  "V1",
		RouteName:  "R1",
		Location:   fleet.Location{Latitude: 34.5, Longitude: 74.5},
		ObservedAt: time.Now(),
	}
	notifier.PositionUpdated(context.Background(), position)

	events := collectEvents(t, subscriber, 100*time.Millisecond)
	if len(events) != 0 {
		t.Fatalf("expected no events outside the radius, got %d", len(events))
	}
}

func TestStopsEvaluatedIndependently(t *testing.T) {
	hub := broadcast.NewHub()
	subscriber := hub.Subscribe("R1")
	defer hub.Unsubscribe(subscriber)

	// Two stops close enough together that one position qualifies both
	route := &fleet.Route{
		Name: "R1",
		Stops: []fleet.Stop{
			{PrimaryIdentifier: "S1", Name: "A", Location: fleet.Location{Latitude: 33.6844, Longitude: 73.0479}},
			{PrimaryIdentifier: "S2", Name: "B", Location: fleet.Location{Latitude: 33.6900, Longitude: 73.0479}},
		},
	}
	notifier := NewNotifier(2, 30*time.Minute, &staticRoutes{route: route}, hub)

	notifier.PositionUpdated(context.Background(), positionNear("V1", route.Stops[0]))

	events := collectEvents(t, subscriber, 100*time.Millisecond)
	if len(events) != 2 {
		t.Fatalf("expected both stops to notify independently, got %d events", len(events))
	}

	seen := map[string]bool{}
	for _, event := range events {
		seen[event.Body.(fleet.StopApproachingEvent).StopID] = true
	}
	if !seen["S1"] || !seen["S2"] {
		t.Errorf("expected notifications for S1 and S2, got %v", seen)
	}
}

func TestStopWithoutCoordinatesSkipped(t *testing.T) {
	hub := broadcast.NewHub()
	subscriber := hub.Subscribe("R1")
	defer hub.Unsubscribe(subscriber)

	route := &fleet.Route{
		Name: "R1",
		Stops: []fleet.Stop{
			{PrimaryIdentifier: "S1", Name: "Unsurveyed"},
		},
	}
	notifier := NewNotifier(2, 30*time.Minute, &staticRoutes{route: route}, hub)

	position := fleet.VehiclePosition{
		VehicleID:  "V1",
		RouteName:  "R1",
		Location:   fleet.Location{Latitude: 0.001, Longitude: 0.001},
		ObservedAt: time.Now(),
	}
	notifier.PositionUpdated(context.Background(), position)

	events := collectEvents(t, subscriber, 100*time.Millisecond)
	if len(events) != 0 {
		t.Fatalf("stop without coordinates must not notify, got %d events", len(events))
	}
}
