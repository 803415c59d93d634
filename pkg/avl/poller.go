package avl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog/log"
	"github.com/vanit/vanit/pkg/registry"
	"google.golang.org/protobuf/proto"
)

// Skip any records that haven't been updated in over 20 minutes
const staleRecordCutoff = 20 * time.Minute

// Poller feeds a GTFS-RT VehiclePositions feed into the location registry.
// Vehicle identifiers in the feed must match captain identifiers.
type Poller struct {
	URL      string
	Interval time.Duration

	registry   *registry.Registry
	httpClient *http.Client
}

func NewPoller(url string, interval time.Duration, vehicleRegistry *registry.Registry) *Poller {
	return &Poller{
		URL:      url,
		Interval: interval,

		registry: vehicleRegistry,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		if err := p.pollOnce(ctx); err != nil {
			log.Error().Err(err).Str("url", p.URL).Msg("AVL poll failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}

	response, err := p.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("feed returned status %d", response.StatusCode)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	feed := gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, &feed); err != nil {
		return fmt.Errorf("failed parsing GTFS-RT protobuf: %w", err)
	}

	accepted := 0
	skipped := 0

	for _, entity := range feed.Entity {
		vehiclePosition := entity.GetVehicle()
		if vehiclePosition == nil || vehiclePosition.Position == nil {
			continue
		}

		vehicleID := vehiclePosition.GetVehicle().GetId()
		if vehicleID == "" {
			vehicleID = entity.GetId()
		}

		observedAt := time.Now()
		if vehiclePosition.Timestamp != nil {
			observedAt = time.Unix(int64(*vehiclePosition.Timestamp), 0)

			if time.Since(observedAt) > staleRecordCutoff {
				skipped += 1
				continue
			}
		}

		position := vehiclePosition.Position
		err := p.registry.Update(ctx, vehicleID, float64(position.GetLatitude()), float64(position.GetLongitude()), observedAt)
		switch {
		case errors.Is(err, registry.ErrVehicleNotFound), errors.Is(err, registry.ErrVehicleInactive):
			skipped += 1
		case err != nil:
			log.Warn().Err(err).Str("vehicle", vehicleID).Msg("Could not apply AVL position")
		default:
			accepted += 1
		}
	}

	log.Info().
		Int("accepted", accepted).
		Int("skipped", skipped).
		Msg("Processed AVL feed")

	return nil
}
