package api

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"github.com/vanit/vanit/pkg/attendance"
	"github.com/vanit/vanit/pkg/boardingtoken"
	"github.com/vanit/vanit/pkg/broadcast"
	"github.com/vanit/vanit/pkg/database"
	"github.com/vanit/vanit/pkg/elastic_client"
	"github.com/vanit/vanit/pkg/geofence"
	"github.com/vanit/vanit/pkg/redis_client"
	"github.com/vanit/vanit/pkg/registry"
	"github.com/vanit/vanit/pkg/roster"
	"github.com/vanit/vanit/pkg/util"
	"github.com/vanit/vanit/pkg/ws"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the core web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
					&cli.StringFlag{
						Name:  "ws-listen",
						Value: ":8081",
						Usage: "listen target for the websocket event stream",
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

					tokenSecret := util.GetEnvironmentVariable("VANIT_TOKEN_SECRET", "")
					if tokenSecret == "" {
						return errors.New("VANIT_TOKEN_SECRET must be set")
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

					tokenService := boardingtoken.NewService(
						[]byte(tokenSecret),
						util.GetEnvironmentDuration("VANIT_TOKEN_TTL", 5*time.Minute),
					)

					attendanceManager := attendance.NewManager(
						attendance.NewMongoStore(),
						rosterRepository,
						tokenService,
						hub,
						util.GetEnvironmentDuration("VANIT_SCAN_SUPPRESSION", time.Minute),
					)
					vehicleRegistry.Sessions = attendanceManager

					go func() {
						if err := ws.NewServer(hub).Listen(c.String("ws-listen")); err != nil {
							log.Fatal().Err(err).Msg("Websocket server failed")
						}
					}()

					return SetupServer(c.String("listen"), Dependencies{
						Registry:   vehicleRegistry,
						Attendance: attendanceManager,
						Tokens:     tokenService,
					})
				},
			},
		},
	}
}
