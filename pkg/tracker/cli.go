package tracker

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/ridepulse/ridepulse/pkg/consumer"
	"github.com/ridepulse/ridepulse/pkg/database"
	"github.com/ridepulse/ridepulse/pkg/elastic_client"
	"github.com/ridepulse/ridepulse/pkg/hub"
	"github.com/ridepulse/ridepulse/pkg/redis_client"
	"github.com/ridepulse/ridepulse/pkg/schedules"
	"github.com/ridepulse/ridepulse/pkg/scheduler"
	"github.com/ridepulse/ridepulse/pkg/statestore"
	"github.com/ridepulse/ridepulse/pkg/transit"
	"github.com/ridepulse/ridepulse/pkg/trends"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "tracker",
		Usage: "Realtime engine ingests vehicle telemetry and drives tracking notifications",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run an instance of the realtime tracking engine",
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
					notificationScheduler.Sink = NewQueueNotificationSink()

					analyzer := trends.NewAnalyzer(trends.MongoTripRecordRepository{})

					engine := NewTracker(store, eventHub, notificationScheduler, analyzer, schedules.LoadFromEnvironment(), scheduler.NewRealClock())

					redisConsumer := consumer.RedisConsumer{
						QueueName:       "telemetry-queue",
						NumberConsumers: numConsumers,
						BatchSize:       batchSize,
						Timeout:         2 * time.Second,
						Consumer:        NewTelemetryBatchConsumer(0, engine),
					}
					redisConsumer.Setup()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					notificationScheduler.Shutdown()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					elastic_client.WaitUntilQueueEmpty()

					return nil
				},
			},
			{
				Name:  "test-telemetry",
				Usage: "publish a synthetic telemetry event onto the queue",
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					speed := 32.5
					passengers := 18
					trafficLevel := transit.TrafficLevelModerate
					location := transit.NewLocation(12.9716, 77.5946)

					telemetryEvent := transit.TelemetryEvent{
						DeviceID: "BUS001",

						Location: &location,

						SpeedKMH:       &speed,
						PassengerCount: &passengers,
						TrafficLevel:   &trafficLevel,

						RouteID: "42A",

						RecordedAt: time.Now(),
						DataSource: "test-telemetry",
					}

					telemetryQueue, err := redis_client.QueueConnection.OpenQueue("telemetry-queue")
					if err != nil {
						log.Fatal().Err(err).Msg("Failed to open telemetry queue")
					}

					eventBytes, _ := json.Marshal(telemetryEvent)

					telemetryQueue.PublishBytes(eventBytes)

					pretty.Println(telemetryEvent)

					return nil
				},
			},
		},
	}
}
