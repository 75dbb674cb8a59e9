package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/ridepulse/ridepulse/pkg/api"
	"github.com/ridepulse/ridepulse/pkg/feeder"
	"github.com/ridepulse/ridepulse/pkg/notify"
	"github.com/ridepulse/ridepulse/pkg/tracker"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("RIDEPULSE_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("RIDEPULSE_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "ridepulse",
		Description: "Single binary of truth for RidePulse - runs all the services",

		Commands: []*cli.Command{
			api.RegisterCLI(),
			tracker.RegisterCLI(),
			feeder.RegisterCLI(),
			notify.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
