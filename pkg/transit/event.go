package transit

import (
	"fmt"
	"time"
)

// Event names published to hub topics
const (
	EventLocationUpdate  = "location-update"
	EventTrackingUpdate  = "tracking-update"
	EventETAUpdate       = "eta-update"
	EventPassengerUpdate = "passenger-update"
	EventTrafficUpdate   = "traffic-update"
	EventNotification    = "notification"
)

const (
	BusTopicFormat    = "bus:%s"
	UserTopicFormat   = "notifications:%s"
	DriverTopicFormat = "driver:%s"
)

func BusTopic(deviceID string) string {
	return fmt.Sprintf(BusTopicFormat, deviceID)
}

func UserTopic(userID string) string {
	return fmt.Sprintf(UserTopicFormat, userID)
}

func DriverTopic(driverID string) string {
	return fmt.Sprintf(DriverTopicFormat, driverID)
}

// TelemetryEvent is the inbound queue payload produced by the API layer and the
// GTFS-RT feeder, consumed by the tracker
type TelemetryEvent struct {
	DeviceID string `json:"deviceId"`

	Location *Location `json:"location,omitempty"`

	SpeedKMH         *float64      `json:"speedKmh,omitempty"`
	DirectionDegrees *float64      `json:"directionDegrees,omitempty"`
	PassengerCount   *int          `json:"passengerCount,omitempty"`
	TrafficLevel     *TrafficLevel `json:"trafficLevel,omitempty"`

	Destination *Location `json:"destination,omitempty"`

	RouteID string `json:"routeId,omitempty"`

	RecordedAt time.Time `json:"recordedAt"`

	DataSource string `json:"dataSource,omitempty"`
}
