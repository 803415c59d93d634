package avl

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/vanit/vanit/pkg/broadcast"
	"github.com/vanit/vanit/pkg/database"
	"github.com/vanit/vanit/pkg/elastic_client"
	"github.com/vanit/vanit/pkg/geofence"
	"github.com/vanit/vanit/pkg/redis_client"
	"github.com/vanit/vanit/pkg/registry"
	"github.com/vanit/vanit/pkg/roster"
	"github.com/vanit/vanit/pkg/util"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "avl",
		Usage: "Feed an automatic vehicle location stream into the registry",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "poll a GTFS-RT VehiclePositions feed",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "url",
						Usage:    "URL of the GTFS-RT VehiclePositions feed",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "interval",
						Value: 30 * time.Second,
						Usage: "how often to poll the feed",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}
					if err := elastic_client.Connect(false); err != nil {
						return err
					}

					hub := broadcast.NewHub()
					hub.RegisterForwarder(broadcast.NewRedisForwarder(redis_client.Client))

					eventQueue, err := redis_client.QueueConnection.OpenQueue("events-queue")
					if err != nil {
						return err
					}
					hub.RegisterForwarder(broadcast.NewQueueForwarder(eventQueue))

					rosterRepository := roster.NewRepository()

					notifier := geofence.NewNotifier(
						util.GetEnvironmentFloat("VANIT_NOTIFY_RADIUS_KM", 2),
						util.GetEnvironmentDuration("VANIT_NOTIFY_COOLDOWN", 30*time.Minute),
						rosterRepository,
						hub,
					)

					locationTTL := util.GetEnvironmentDuration("VANIT_LOCATION_TTL", 5*time.Minute)
					vehicleRegistry := registry.NewRegistry(locationTTL, rosterRepository, hub)
					vehicleRegistry.Mirror = registry.NewPositionMirror(redis_client.Client, locationTTL)
					vehicleRegistry.Notifier = notifier

					poller := NewPoller(c.String("url"), c.Duration("interval"), vehicleRegistry)

					return poller.Run(context.Background())
				},
			},
		},
	}
}
