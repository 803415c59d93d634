package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"github.com/vanit/vanit/pkg/api"
	"github.com/vanit/vanit/pkg/archiver"
	"github.com/vanit/vanit/pkg/avl"
	"github.com/vanit/vanit/pkg/dataimporter"
	"github.com/vanit/vanit/pkg/notify"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("VANIT_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("VANIT_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "vanit",
		Description: "Single binary of truth for Vanit - runs all the services",

		Commands: []*cli.Command{
			api.RegisterCLI(),
			notify.RegisterCLI(),
			avl.RegisterCLI(),
			dataimporter.RegisterCLI(),
			archiver.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
