package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vanit/vanit/pkg/broadcast"
	"github.com/vanit/vanit/pkg/fleet"
	"github.com/vanit/vanit/pkg/util"
)

var (
	ErrVehicleNotFound  = errors.New("vehicle not found")
	ErrVehicleInactive  = errors.New("vehicle is not active")
	ErrPositionNotFound = errors.New("no known position for vehicle")
)

type CaptainRoster interface {
	Captain(ctx context.Context, identifier string) (*fleet.Captain, error)
}

type ProximityNotifier interface {
	PositionUpdated(ctx context.Context, position fleet.VehiclePosition)
}

type SessionEnder interface {
	EndForCaptain(ctx context.Context, captainID string) error
}

type storedPosition struct {
	position fleet.VehiclePosition
	storedAt time.Time
}

// Registry holds the latest known position per active vehicle. It is a
// process-local cache, rebuilt from the update stream after a restart; the
// redis mirror carries positions to out-of-process readers with the same TTL.
type Registry struct {
	TTL time.Duration

	// Optional collaborators, wired after construction.
	Notifier ProximityNotifier
	Sessions SessionEnder
	Mirror   *cache.Cache[fleet.VehiclePosition]

	roster CaptainRoster
	hub    *broadcast.Hub

	mu        sync.Mutex
	positions map[string]storedPosition

	now func() time.Time
}

func NewRegistry(ttl time.Duration, roster CaptainRoster, hub *broadcast.Hub) *Registry {
	return &Registry{
		TTL:       ttl,
		roster:    roster,
		hub:       hub,
		positions: map[string]storedPosition{},
		now:       time.Now,
	}
}

// NewPositionMirror builds the redis write-through cache for positions.
func NewPositionMirror(redisClient *redis.Client, ttl time.Duration) *cache.Cache[fleet.VehiclePosition] {
	redisStore := redisstore.NewRedis(redisClient, store.WithExpiration(ttl))

	return cache.New[fleet.VehiclePosition](redisStore)
}

// Update stores a new position for the vehicle, publishes it on the route
// topic and runs the geofence check. Updates older than the stored position
// for the same vehicle are discarded so out-of-order delivery can never roll
// a vehicle backwards.
func (r *Registry) Update(ctx context.Context, vehicleID string, latitude float64, longitude float64, observedAt time.Time) error {
	captain, err := r.roster.Captain(ctx, vehicleID)
	if err != nil {
		return err
	}
	if captain == nil {
		return ErrVehicleNotFound
	}
	if !captain.Active {
		return ErrVehicleInactive
	}

	position := fleet.VehiclePosition{
		VehicleID:  vehicleID,
		RouteName:  captain.RouteName,
		Location:   fleet.Location{Latitude: latitude, Longitude: longitude},
		ObservedAt: observedAt,
	}

	r.mu.Lock()
	if existing, ok := r.positions[vehicleID]; ok && observedAt.Before(existing.position.ObservedAt) {
		r.mu.Unlock()
		log.Debug().Str("vehicle", vehicleID).Time("observedat", observedAt).Msg("Discarding stale position update")
		return nil
	}
	r.positions[vehicleID] = storedPosition{position: position, storedAt: r.now()}
	r.mu.Unlock()

	if r.Mirror != nil {
		if err := r.Mirror.Set(ctx, mirrorKey(vehicleID), position); err != nil {
			log.Error().Err(err).Str("vehicle", vehicleID).Msg("Failed to mirror position")
		}
	}

	r.hub.Publish(captain.RouteName, fleet.Event{
		Type:      fleet.EventTypeLocationUpdate,
		Timestamp: r.now(),
		Body:      position,
	})

	if r.Notifier != nil {
		r.Notifier.PositionUpdated(ctx, position)
	}

	return nil
}

// Get returns the vehicle's latest position. Expiry is lazy: a position past
// the TTL is evicted on read.
func (r *Registry) Get(vehicleID string) (*fleet.VehiclePosition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.positions[vehicleID]
	if !ok {
		return nil, ErrPositionNotFound
	}

	if r.now().Sub(stored.storedAt) > r.TTL {
		delete(r.positions, vehicleID)
		return nil, ErrPositionNotFound
	}

	position := stored.position
	return &position, nil
}

func (r *Registry) ListForRoute(routeName string) []fleet.VehiclePosition {
	now := r.now()

	r.mu.Lock()
	var positions []fleet.VehiclePosition
	for vehicleID, stored := range r.positions {
		if now.Sub(stored.storedAt) > r.TTL {
			delete(r.positions, vehicleID)
			continue
		}
		positions = append(positions, stored.position)
	}
	r.mu.Unlock()

	util.InPlaceFilter(&positions, func(position fleet.VehiclePosition) bool {
		return position.RouteName == routeName
	})

	return positions
}

// Start marks the beginning of a vehicle's tracking stream. The roster check
// is the only gate; positions arrive through Update.
func (r *Registry) Start(ctx context.Context, vehicleID string) error {
	captain, err := r.roster.Captain(ctx, vehicleID)
	if err != nil {
		return err
	}
	if captain == nil {
		return ErrVehicleNotFound
	}

	log.Info().Str("vehicle", vehicleID).Msg("Started location tracking")

	return nil
}

// Stop removes the cached position immediately and ends the captain's active
// boarding sessions.
func (r *Registry) Stop(ctx context.Context, vehicleID string) error {
	r.mu.Lock()
	delete(r.positions, vehicleID)
	r.mu.Unlock()

	if r.Mirror != nil {
		if err := r.Mirror.Delete(ctx, mirrorKey(vehicleID)); err != nil {
			log.Error().Err(err).Str("vehicle", vehicleID).Msg("Failed to drop mirrored position")
		}
	}

	if r.Sessions != nil {
		if err := r.Sessions.EndForCaptain(ctx, vehicleID); err != nil {
			return err
		}
	}

	log.Info().Str("vehicle", vehicleID).Msg("Stopped location tracking")

	return nil
}

func mirrorKey(vehicleID string) string {
	return fmt.Sprintf("captain:%s:location", vehicleID)
}
