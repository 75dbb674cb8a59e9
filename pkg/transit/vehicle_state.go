package transit

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("could not find record matching identifier")
var ErrVehicleFull = errors.New("vehicle is at full capacity")

// RouteHistoryMaxEntries bounds the per-vehicle replay log - older points are
// dropped, full history persistence is handled upstream
const RouteHistoryMaxEntries = 500

type TrafficLevel string

const (
	TrafficLevelLight    TrafficLevel = "light"
	TrafficLevelModerate TrafficLevel = "moderate"
	TrafficLevelHeavy    TrafficLevel = "heavy"
	TrafficLevelSevere   TrafficLevel = "severe"
	TrafficLevelUnknown  TrafficLevel = "unknown"
)

type VehicleState struct {
	DeviceID string `groups:"basic" bson:"deviceid"`

	Position         *Position `groups:"basic" bson:"position"`
	PreviousPosition *Position `groups:"detailed" bson:"previousposition"`

	RouteHistory []RouteHistoryEntry `groups:"internal" bson:"routehistory"`

	Telemetry Telemetry `groups:"basic" bson:"telemetry"`
	Capacity  Capacity  `groups:"basic" bson:"capacity"`

	SharedWith []ShareGrant `groups:"detailed" bson:"sharedwith"`

	CreationDateTime     time.Time `groups:"detailed" bson:"creationdatetime"`
	ModificationDateTime time.Time `groups:"detailed" bson:"modificationdatetime"`
}

type Position struct {
	Location  Location  `groups:"basic" bson:"location"`
	Timestamp time.Time `groups:"basic" bson:"timestamp"`
}

type RouteHistoryEntry struct {
	Location       Location  `groups:"internal" bson:"location"`
	Timestamp      time.Time `groups:"internal" bson:"timestamp"`
	SpeedKMH       float64   `groups:"internal" bson:"speedkmh"`
	Accuracy       float64   `groups:"internal" bson:"accuracy"`
	Direction      float64   `groups:"internal" bson:"direction"`
	PassengerCount int       `groups:"internal" bson:"passengercount"`
}

type Telemetry struct {
	SpeedKMH         float64      `groups:"basic" bson:"speedkmh"`
	DirectionDegrees float64      `groups:"basic" bson:"directiondegrees"`
	PassengerCount   int          `groups:"basic" bson:"passengercount"`
	TrafficLevel     TrafficLevel `groups:"basic" bson:"trafficlevel"`
	ETA              *time.Time   `groups:"basic" bson:"eta"`
	LastUpdated      time.Time    `groups:"basic" bson:"lastupdated"`
}

type Capacity struct {
	Total     int `groups:"basic" bson:"total"`
	Occupied  int `groups:"basic" bson:"occupied"`
	Available int `groups:"basic" bson:"available"`
}

type ShareGrant struct {
	Recipient string    `groups:"detailed" bson:"recipient"`
	SharedAt  time.Time `groups:"detailed" bson:"sharedat"`
	ExpiresAt time.Time `groups:"detailed" bson:"expiresat"`
}

func (g *ShareGrant) IsActive(at time.Time) bool {
	return at.Before(g.ExpiresAt)
}
