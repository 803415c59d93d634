package dataimporter

import (
	"github.com/urfave/cli/v2"
	"github.com/vanit/vanit/pkg/database"

	_ "time/tzdata"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "data-importer",
		Usage: "Import reference datasets",
		Subcommands: []*cli.Command{
			{
				Name:  "routes",
				Usage: "Import route & stop definitions from a YAML dataset",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Usage:    "Path of the route dataset file",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					return ImportRoutes(c.String("file"))
				},
			},
			{
				Name:  "students",
				Usage: "Import student assignments from a CSV file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Usage:    "Path of the students CSV file",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					return ImportStudents(c.String("file"))
				},
			},
			{
				Name:  "captains",
				Usage: "Import captain & vehicle assignments from a CSV file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Usage:    "Path of the captains CSV file",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					return ImportCaptains(c.String("file"))
				},
			},
		},
	}
}
