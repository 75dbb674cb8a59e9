// Package feeder polls a GTFS-RT VehiclePositions feed and converts it into
// telemetry events on the ingest queue.
package feeder

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/ridepulse/ridepulse/pkg/transit"
	"google.golang.org/protobuf/proto"
)

// Records older than this are considered stale and dropped
const maxRecordAge = 20 * time.Minute

const dataSourceName = "GTFS-RT"

type Feeder struct {
	FeedURL string

	queue      rmq.Queue
	httpClient *http.Client
}

func NewFeeder(feedURL string, queue rmq.Queue) *Feeder {
	return &Feeder{
		FeedURL: feedURL,
		queue:   queue,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Poll fetches the feed once and enqueues every fresh vehicle position
func (f *Feeder) Poll() error {
	resp, err := f.httpClient.Get(f.FeedURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	return f.ProcessFeed(body)
}

// ProcessFeed parses a GTFS-RT protobuf payload and enqueues telemetry events
func (f *Feeder) ProcessFeed(body []byte) error {
	feed := gtfs.FeedMessage{}
	err := proto.Unmarshal(body, &feed)
	if err != nil {
		return err
	}

	enqueued := 0
	stale := 0
	skipped := 0

	for _, entity := range feed.Entity {
		vehiclePosition := entity.GetVehicle()
		if vehiclePosition == nil || vehiclePosition.Position == nil {
			skipped += 1
			continue
		}

		recordedAt := time.Now().UTC()
		if vehiclePosition.Timestamp != nil {
			recordedAt = time.Unix(int64(vehiclePosition.GetTimestamp()), 0)

			// Skip any records that haven't been updated in over 20 minutes
			if time.Now().UTC().Sub(recordedAt) > maxRecordAge {
				stale += 1
				continue
			}
		}

		deviceID := vehiclePosition.Vehicle.GetId()
		if deviceID == "" {
			deviceID = vehiclePosition.GetTrip().GetTripId()
		}
		if deviceID == "" {
			skipped += 1
			continue
		}

		telemetryEvent := ConvertVehiclePosition(deviceID, vehiclePosition, recordedAt)

		telemetryEventJson, _ := json.Marshal(telemetryEvent)
		f.queue.PublishBytes(telemetryEventJson)

		enqueued += 1
	}

	log.Info().
		Int("enqueued", enqueued).
		Int("stale", stale).
		Int("skipped", skipped).
		Int("total", len(feed.Entity)).
		Msg("Submitted vehicle positions")

	return nil
}

// ConvertVehiclePosition maps a GTFS-RT VehiclePosition onto the internal
// telemetry event shape
func ConvertVehiclePosition(deviceID string, vehiclePosition *gtfs.VehiclePosition, recordedAt time.Time) transit.TelemetryEvent {
	location := transit.NewLocation(
		float64(vehiclePosition.Position.GetLatitude()),
		float64(vehiclePosition.Position.GetLongitude()),
	)

	telemetryEvent := transit.TelemetryEvent{
		DeviceID:   deviceID,
		Location:   &location,
		RouteID:    vehiclePosition.GetTrip().GetRouteId(),
		RecordedAt: recordedAt,
		DataSource: dataSourceName,
	}

	if vehiclePosition.Position.Speed != nil {
		// feed speed is metres per second
		speedKMH := float64(vehiclePosition.Position.GetSpeed()) * 3.6
		telemetryEvent.SpeedKMH = &speedKMH
	}

	if vehiclePosition.Position.Bearing != nil {
		bearing := float64(vehiclePosition.Position.GetBearing())
		telemetryEvent.DirectionDegrees = &bearing
	}

	if passengerCount, ok := passengerEstimate(vehiclePosition); ok {
		telemetryEvent.PassengerCount = &passengerCount
	}

	if vehiclePosition.CongestionLevel != nil {
		trafficLevel := congestionToTrafficLevel(vehiclePosition.GetCongestionLevel())
		telemetryEvent.TrafficLevel = &trafficLevel
	}

	return telemetryEvent
}

// passengerEstimate derives a rough occupancy percentage from the feed. Actual
// percentages win over the coarse status enum.
func passengerEstimate(vehiclePosition *gtfs.VehiclePosition) (int, bool) {
	if vehiclePosition.OccupancyPercentage != nil {
		return int(vehiclePosition.GetOccupancyPercentage()), true
	}

	if vehiclePosition.OccupancyStatus == nil {
		return 0, false
	}

	switch vehiclePosition.GetOccupancyStatus() {
	case gtfs.VehiclePosition_EMPTY:
		return 0, true
	case gtfs.VehiclePosition_MANY_SEATS_AVAILABLE:
		return 30, true
	case gtfs.VehiclePosition_FEW_SEATS_AVAILABLE:
		return 50, true
	case gtfs.VehiclePosition_STANDING_ROOM_ONLY:
		return 70, true
	case gtfs.VehiclePosition_CRUSHED_STANDING_ROOM_ONLY:
		return 80, true
	case gtfs.VehiclePosition_FULL:
		return 90, true
	case gtfs.VehiclePosition_NOT_ACCEPTING_PASSENGERS, gtfs.VehiclePosition_NOT_BOARDABLE:
		return 100, true
	case gtfs.VehiclePosition_NO_DATA_AVAILABLE:
		return 0, false
	}

	return 0, false
}

func congestionToTrafficLevel(level gtfs.VehiclePosition_CongestionLevel) transit.TrafficLevel {
	switch level {
	case gtfs.VehiclePosition_RUNNING_SMOOTHLY:
		return transit.TrafficLevelLight
	case gtfs.VehiclePosition_STOP_AND_GO:
		return transit.TrafficLevelModerate
	case gtfs.VehiclePosition_CONGESTION:
		return transit.TrafficLevelHeavy
	case gtfs.VehiclePosition_SEVERE_CONGESTION:
		return transit.TrafficLevelSevere
	}

	return transit.TrafficLevelUnknown
}
