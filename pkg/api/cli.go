package api

import (
	"github.com/ridepulse/ridepulse/pkg/database"
	"github.com/ridepulse/ridepulse/pkg/elastic_client"
	"github.com/ridepulse/ridepulse/pkg/hub"
	"github.com/ridepulse/ridepulse/pkg/redis_client"
	"github.com/ridepulse/ridepulse/pkg/schedules"
	"github.com/ridepulse/ridepulse/pkg/scheduler"
	"github.com/ridepulse/ridepulse/pkg/statestore"
	"github.com/ridepulse/ridepulse/pkg/tracker"
	"github.com/ridepulse/ridepulse/pkg/trends"
	"github.com/urfave/cli/v2"
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
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := elastic_client.Connect(false); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					trends.CreateTripWindowCache()

					store := statestore.NewStore()
					store.Snapshotter = statestore.NewMongoSnapshotter()

					eventHub := hub.NewHub()

					notificationScheduler := scheduler.NewScheduler(eventHub, scheduler.NewRealClock())
					notificationScheduler.Sink = tracker.NewQueueNotificationSink()

					analyzer := trends.NewAnalyzer(trends.MongoTripRecordRepository{})

					engine := tracker.NewTracker(store, eventHub, notificationScheduler, analyzer, schedules.LoadFromEnvironment(), scheduler.NewRealClock())

					return SetupServer(c.String("listen"), Dependencies{
						Engine:    engine,
						Analyzer:  analyzer,
						Hub:       eventHub,
						Scheduler: notificationScheduler,
					})
				},
			},
		},
	}
}
