package transit

import (
	"errors"
	"math"
)

var ErrInvalidLocation = errors.New("invalid location coordinates")

const earthRadiusKM = 6371.0

type Location struct {
	Type        string    `json:"-" groups:"basic"`
	Coordinates []float64 `json:"coordinates" groups:"basic"` // [longitude, latitude]
}

func NewLocation(latitude float64, longitude float64) Location {
	return Location{
		Type:        "Point",
		Coordinates: []float64{longitude, latitude},
	}
}

func (l *Location) Longitude() float64 {
	return l.Coordinates[0]
}

func (l *Location) Latitude() float64 {
	return l.Coordinates[1]
}

func (l *Location) Validate() error {
	if len(l.Coordinates) != 2 {
		return ErrInvalidLocation
	}

	longitude := l.Coordinates[0]
	latitude := l.Coordinates[1]

	if math.IsNaN(longitude) || math.IsNaN(latitude) {
		return ErrInvalidLocation
	}

	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return ErrInvalidLocation
	}

	return nil
}

// Distance returns the great-circle (haversine) distance to the other location in kilometers
func (l *Location) Distance(other *Location) float64 {
	lat1 := l.Latitude() * math.Pi / 180
	lat2 := other.Latitude() * math.Pi / 180
	dLat := (other.Latitude() - l.Latitude()) * math.Pi / 180
	dLon := (other.Longitude() - l.Longitude()) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKM * c
}

// Bearing returns the initial compass bearing towards the other location in degrees [0, 360)
func (l *Location) Bearing(other *Location) float64 {
	lat1 := l.Latitude() * math.Pi / 180
	lat2 := other.Latitude() * math.Pi / 180
	dLon := (other.Longitude() - l.Longitude()) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	bearing := math.Atan2(y, x) * 180 / math.Pi

	return math.Mod(bearing+360, 360)
}

// Shameless taken 'inspiration' from https://stackoverflow.com/a/6853926
func (l *Location) DistanceFromLine(a Location, b Location) float64 {
	A := l.Coordinates[0] - a.Coordinates[0]
	B := l.Coordinates[1] - a.Coordinates[1]
	C := b.Coordinates[0] - a.Coordinates[0]
	D := b.Coordinates[1] - a.Coordinates[1]

	dot := A*C + B*D
	len_sq := C*C + D*D

	var param float64
	param = -1
	if len_sq != 0 {
		param = dot / len_sq
	}

	var xx, yy float64

	if param < 0 {
		xx = a.Coordinates[0]
		yy = a.Coordinates[1]
	} else if param > 1 {
		xx = b.Coordinates[0]
		yy = b.Coordinates[1]
	} else {
		xx = a.Coordinates[0] + param*C
		yy = a.Coordinates[1] + param*D
	}

	var dx = l.Coordinates[0] - xx
	var dy = l.Coordinates[1] - yy
	return math.Sqrt(dx*dx + dy*dy)
}
