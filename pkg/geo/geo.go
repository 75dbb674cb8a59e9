// Package geo provides the stateless geospatial arithmetic used by the
// realtime tracking engine. Everything here is a pure function and safe to
// call from any goroutine.
package geo

import (
	"github.com/ridepulse/ridepulse/pkg/transit"
)

// DefaultCruisingSpeedKMH substitutes for missing or stationary speed readings
// when estimating arrival times
const DefaultCruisingSpeedKMH = 25.0

var trafficMultipliers = map[transit.TrafficLevel]float64{
	transit.TrafficLevelLight:    1.0,
	transit.TrafficLevelModerate: 1.3,
	transit.TrafficLevelHeavy:    1.6,
	transit.TrafficLevelSevere:   2.0,
	transit.TrafficLevelUnknown:  1.2,
}

// Distance returns the great-circle distance between two coordinates in kilometers
func Distance(lat1 float64, lon1 float64, lat2 float64, lon2 float64) (float64, error) {
	a := transit.NewLocation(lat1, lon1)
	b := transit.NewLocation(lat2, lon2)

	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	return a.Distance(&b), nil
}

// Bearing returns the initial compass bearing from the first coordinate to the
// second, in degrees [0, 360)
func Bearing(lat1 float64, lon1 float64, lat2 float64, lon2 float64) (float64, error) {
	a := transit.NewLocation(lat1, lon1)
	b := transit.NewLocation(lat2, lon2)

	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	return a.Bearing(&b), nil
}

// ETAMinutes estimates travel time for a distance at a given speed, inflated by
// the traffic multiplier. A zero or negative speed falls back to the default
// cruising speed rather than dividing by zero.
func ETAMinutes(distanceKM float64, speedKMH float64, trafficMultiplier float64) float64 {
	if speedKMH <= 0 {
		speedKMH = DefaultCruisingSpeedKMH
	}

	return (distanceKM / speedKMH) * 60 * trafficMultiplier
}

func TrafficMultiplier(level transit.TrafficLevel) float64 {
	if multiplier, ok := trafficMultipliers[level]; ok {
		return multiplier
	}

	return trafficMultipliers[transit.TrafficLevelUnknown]
}
