package archiver

import (
	"time"

	"github.com/urfave/cli/v2"
	"github.com/vanit/vanit/pkg/database"
	"github.com/vanit/vanit/pkg/util"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "archiver",
		Usage: "Move ended boarding sessions out of the database and into an object store",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run a single archive pass",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "output-directory",
						Usage:    "Directory to write output files to",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "cloud-upload",
						Usage: "Upload the bundle to the cloud bucket",
					},
					&cli.StringFlag{
						Name:  "cloud-bucket",
						Value: "vanit-attendance-history",
						Usage: "Name of the cloud bucket to upload to",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					archiveRunner := Archiver{
						OutputDirectory:     c.String("output-directory"),
						WriteIndividualFile: false,
						WriteBundle:         true,
						CloudUpload:         c.Bool("cloud-upload"),
						CloudBucketName:     c.String("cloud-bucket"),

						RetentionPeriod: util.GetEnvironmentDuration("VANIT_ARCHIVE_RETENTION", 30*24*time.Hour),
					}
					archiveRunner.Perform()

					return nil
				},
			},
		},
	}
}
