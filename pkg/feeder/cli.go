package feeder

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ridepulse/ridepulse/pkg/redis_client"
	"github.com/ridepulse/ridepulse/pkg/util"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "feeder",
		Usage: "Poll a GTFS-RT feed into the telemetry queue",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the feed poller",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "interval",
						Usage: "Poll the feed every X (eg. 30s)",
						Value: "30s",
					},
				},
				Action: func(c *cli.Context) error {
					env := util.GetEnvironmentVariables()

					feedURL := env["RIDEPULSE_GTFSRT_URL"]
					if feedURL == "" {
						return errors.New("RIDEPULSE_GTFSRT_URL must be set")
					}

					interval, err := time.ParseDuration(c.String("interval"))
					if err != nil {
						return err
					}

					if err := redis_client.Connect(); err != nil {
						log.Fatal().Err(err).Msg("Failed to connect to Redis")
					}

					telemetryQueue, err := redis_client.QueueConnection.OpenQueue("telemetry-queue")
					if err != nil {
						log.Fatal().Err(err).Msg("Failed to start telemetry queue")
					}

					feeder := NewFeeder(feedURL, telemetryQueue)

					log.Info().Str("url", feedURL).Dur("interval", interval).Msg("Starting feed poller")

					for {
						startTime := time.Now()

						if err := feeder.Poll(); err != nil {
							log.Error().Err(err).Msg("Feed poll failed")
						}

						executionDuration := time.Since(startTime)
						waitTime := interval - executionDuration
						if waitTime > 0 {
							time.Sleep(waitTime)
						}
					}
				},
			},
		},
	}
}
