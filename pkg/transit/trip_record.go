package transit

import "time"

// TripRecord is an immutable historical record of a completed trip, used for
// read-aggregation by the trend analyzer
type TripRecord struct {
	RouteID string `bson:"routeid"`

	DayOfWeek int `bson:"dayofweek"` // 0 = Sunday
	HourOfDay int `bson:"hourofday"`

	ActualDurationMinutes   float64 `bson:"actualdurationminutes"`
	ExpectedDurationMinutes float64 `bson:"expecteddurationminutes"`
	DelayMinutes            float64 `bson:"delayminutes"`

	Weather      string  `bson:"weather"`
	TrafficLevel int     `bson:"trafficlevel"` // 1-5
	DistanceKM   float64 `bson:"distancekm"`

	RecordedAt time.Time `bson:"recordedat"`
}

// NewTripRecord clamps early arrivals to a zero delay, matching the upstream
// data feeds which never report negative delay
func NewTripRecord(routeID string, startedAt time.Time, actualMinutes float64, expectedMinutes float64, weather string, trafficLevel int, distanceKM float64) TripRecord {
	delayMinutes := actualMinutes - expectedMinutes
	if delayMinutes < 0 {
		delayMinutes = 0
	}

	return TripRecord{
		RouteID: routeID,

		DayOfWeek: int(startedAt.Weekday()),
		HourOfDay: startedAt.Hour(),

		ActualDurationMinutes:   actualMinutes,
		ExpectedDurationMinutes: expectedMinutes,
		DelayMinutes:            delayMinutes,

		Weather:      weather,
		TrafficLevel: trafficLevel,
		DistanceKM:   distanceKM,

		RecordedAt: startedAt,
	}
}
