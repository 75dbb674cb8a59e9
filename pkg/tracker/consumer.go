package tracker

import (
	"context"
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/ridepulse/ridepulse/pkg/transit"
)

const numConsumers = 5
const batchSize = 200

// TelemetryBatchConsumer drains the telemetry queue in batches. Events are
// grouped by device so one device's stream stays in arrival order while
// different devices process in parallel.
type TelemetryBatchConsumer struct {
	id      int
	tracker *Tracker
}

func NewTelemetryBatchConsumer(id int, tracker *Tracker) *TelemetryBatchConsumer {
	return &TelemetryBatchConsumer{id: id, tracker: tracker}
}

func (consumer *TelemetryBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	perDevice := map[string][]transit.TelemetryEvent{}

	for _, payload := range payloads {
		var telemetryEvent transit.TelemetryEvent
		if err := json.Unmarshal([]byte(payload), &telemetryEvent); err != nil {
			log.Error().Err(err).Msg("Failed to decode telemetry event")
			continue
		}

		if telemetryEvent.DeviceID == "" {
			log.Error().Msg("Telemetry event missing device identifier")
			continue
		}

		perDevice[telemetryEvent.DeviceID] = append(perDevice[telemetryEvent.DeviceID], telemetryEvent)
	}

	workers := pool.New().WithMaxGoroutines(numConsumers)

	for _, events := range perDevice {
		events := events

		workers.Go(func() {
			for _, telemetryEvent := range events {
				if err := consumer.tracker.HandleTelemetry(context.Background(), telemetryEvent); err != nil {
					log.Error().Err(err).Str("device", telemetryEvent.DeviceID).Msg("Failed to handle telemetry event")
				}
			}
		})
	}

	workers.Wait()

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Fatal().Err(err).Msg("Failed to ack telemetry event")
		}
	}
}
