// Package schedules loads the route baseline file - the expected trip
// durations that delay checks compare live estimates against.
package schedules

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/ridepulse/ridepulse/pkg/util"
	"gopkg.in/yaml.v3"
)

type RouteSchedule struct {
	RouteID string `yaml:"route"`

	ExpectedDurationMinutes float64 `yaml:"expected_duration_minutes"`

	// Destination of the route terminus, used as the default ETA target
	// when telemetry carries no explicit destination
	DestinationLatitude  float64 `yaml:"destination_latitude"`
	DestinationLongitude float64 `yaml:"destination_longitude"`
}

type Schedules struct {
	routes map[string]RouteSchedule
}

type schedulesFile struct {
	Routes []RouteSchedule `yaml:"routes"`
}

func Load(path string) (*Schedules, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file schedulesFile
	if err := yaml.Unmarshal(contents, &file); err != nil {
		return nil, err
	}

	schedules := &Schedules{
		routes: map[string]RouteSchedule{},
	}

	for _, route := range file.Routes {
		schedules.routes[route.RouteID] = route
	}

	return schedules, nil
}

// LoadFromEnvironment reads the file named by RIDEPULSE_SCHEDULES_PATH,
// falling back to an empty set when unset or unreadable
func LoadFromEnvironment() *Schedules {
	env := util.GetEnvironmentVariables()

	if env["RIDEPULSE_SCHEDULES_PATH"] == "" {
		log.Info().Msg("No schedules file configured, delay checks disabled")
		return Empty()
	}

	schedules, err := Load(env["RIDEPULSE_SCHEDULES_PATH"])
	if err != nil {
		log.Error().Err(err).Msg("Failed to load schedules file")
		return Empty()
	}

	log.Info().Int("routes", schedules.Count()).Msg("Loaded route schedules")

	return schedules
}

// Empty returns a schedule set with no baselines - every delay check becomes a
// no-op
func Empty() *Schedules {
	return &Schedules{
		routes: map[string]RouteSchedule{},
	}
}

func (s *Schedules) Route(routeID string) (RouteSchedule, bool) {
	route, ok := s.routes[routeID]
	return route, ok
}

func (s *Schedules) Count() int {
	return len(s.routes)
}
