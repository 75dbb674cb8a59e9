// Package tracker is the integration layer of the realtime engine. Every
// inbound telemetry event flows through here: state update, ETA computation,
// delay comparison, notification scheduling and finally the hub broadcast.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ridepulse/ridepulse/pkg/geo"
	"github.com/ridepulse/ridepulse/pkg/schedules"
	"github.com/ridepulse/ridepulse/pkg/scheduler"
	"github.com/ridepulse/ridepulse/pkg/statestore"
	"github.com/ridepulse/ridepulse/pkg/transit"
	"github.com/ridepulse/ridepulse/pkg/trends"
)

var ErrUnknownAction = errors.New("unknown passenger action")

// routeDeviationThreshold is in coordinate degrees, roughly 2km. The corridor
// is the straight chord from the first fix to the scheduled terminus, so the
// threshold stays generous.
const routeDeviationThreshold = 0.02

type deviceRouteMap struct {
	mutex  sync.RWMutex
	routes map[string]string
}

func (m *deviceRouteMap) set(deviceID string, routeID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.routes == nil {
		m.routes = map[string]string{}
	}
	m.routes[deviceID] = routeID
}

func (m *deviceRouteMap) get(deviceID string) string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.routes[deviceID]
}

type deviceFlagMap struct {
	mutex sync.Mutex
	flags map[string]bool
}

// swap stores the new value and returns the previous one, so threshold
// crossings notify once instead of on every update
func (m *deviceFlagMap) swap(deviceID string, value bool) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.flags == nil {
		m.flags = map[string]bool{}
	}

	previous := m.flags[deviceID]
	m.flags[deviceID] = value

	return previous
}

// EventPublisher is the hub-facing broadcast contract
type EventPublisher interface {
	Publish(topic string, event string, payload interface{})
}

type Tracker struct {
	Store     *statestore.Store
	Hub       EventPublisher
	Scheduler *scheduler.Scheduler
	Analyzer  *trends.Analyzer
	Schedules *schedules.Schedules
	Clock     scheduler.Clock

	// deviceRoutes remembers the last reported route per device so delay
	// checks keep working when later updates omit the route
	deviceRoutes deviceRouteMap

	offRoute deviceFlagMap
}

type ETAResult struct {
	DeviceID string `json:"deviceId"`

	DistanceKM float64   `json:"distance"`
	ETAMinutes float64   `json:"etaMinutes"`
	ETA        time.Time `json:"eta"`

	CurrentSpeedKMH float64              `json:"currentSpeed"`
	TrafficLevel    transit.TrafficLevel `json:"trafficLevel"`
}

func NewTracker(store *statestore.Store, eventHub EventPublisher, notificationScheduler *scheduler.Scheduler, analyzer *trends.Analyzer, routeSchedules *schedules.Schedules, clock scheduler.Clock) *Tracker {
	return &Tracker{
		Store:     store,
		Hub:       eventHub,
		Scheduler: notificationScheduler,
		Analyzer:  analyzer,
		Schedules: routeSchedules,
		Clock:     clock,
	}
}

// HandleTelemetry runs the full update pipeline for one inbound event. Alerting
// failures degrade silently - the state update and live broadcast always
// complete.
func (t *Tracker) HandleTelemetry(ctx context.Context, event transit.TelemetryEvent) error {
	update := statestore.TelemetryUpdate{
		Location:         event.Location,
		SpeedKMH:         event.SpeedKMH,
		DirectionDegrees: event.DirectionDegrees,
		PassengerCount:   event.PassengerCount,
		TrafficLevel:     event.TrafficLevel,
		RecordedAt:       event.RecordedAt,
	}

	t.deriveMotion(event, &update)

	state, err := t.Store.UpsertTelemetry(event.DeviceID, update)
	if err != nil {
		return err
	}

	if event.RouteID != "" {
		t.deviceRoutes.set(event.DeviceID, event.RouteID)
	}

	// analysis & scheduling are additive - never a precondition for the
	// live broadcast below
	t.analyse(ctx, event, state)

	topic := transit.BusTopic(event.DeviceID)

	t.Hub.Publish(topic, transit.EventLocationUpdate, map[string]interface{}{
		"deviceId":         state.DeviceID,
		"position":         state.Position,
		"previousPosition": state.PreviousPosition,
		"lastUpdated":      state.Telemetry.LastUpdated,
	})

	t.Hub.Publish(topic, transit.EventTrackingUpdate, map[string]interface{}{
		"deviceId": state.DeviceID,
		"realTimeData": map[string]interface{}{
			"speed":          state.Telemetry.SpeedKMH,
			"direction":      state.Telemetry.DirectionDegrees,
			"passengerCount": state.Telemetry.PassengerCount,
			"trafficLevel":   state.Telemetry.TrafficLevel,
		},
		"capacity":         state.Capacity,
		"trafficCondition": state.Telemetry.TrafficLevel,
	})

	if event.TrafficLevel != nil {
		t.Hub.Publish(topic, transit.EventTrafficUpdate, map[string]interface{}{
			"deviceId":     state.DeviceID,
			"trafficLevel": *event.TrafficLevel,
		})
	}

	return nil
}

// deriveMotion fills in speed and heading from consecutive positions when the
// device does not report them itself
func (t *Tracker) deriveMotion(event transit.TelemetryEvent, update *statestore.TelemetryUpdate) {
	if event.Location == nil || (event.SpeedKMH != nil && event.DirectionDegrees != nil) {
		return
	}

	previous, err := t.Store.GetState(event.DeviceID)
	if err != nil || previous.Position == nil {
		return
	}

	if err := event.Location.Validate(); err != nil {
		return
	}

	distanceKM := previous.Position.Location.Distance(event.Location)

	if update.SpeedKMH == nil {
		recordedAt := event.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = t.Clock.Now()
		}

		elapsed := recordedAt.Sub(previous.Position.Timestamp)
		if elapsed > 0 {
			derivedSpeed := distanceKM / elapsed.Hours()
			update.SpeedKMH = &derivedSpeed
		}
	}

	if update.DirectionDegrees == nil && distanceKM > 0 {
		bearing := previous.Position.Location.Bearing(event.Location)
		update.DirectionDegrees = &bearing
	}
}

func (t *Tracker) analyse(ctx context.Context, event transit.TelemetryEvent, state transit.VehicleState) {
	if state.Position == nil {
		return
	}

	destination := event.Destination

	routeID := event.RouteID
	if routeID == "" {
		routeID = t.deviceRoutes.get(event.DeviceID)
	}

	var baseline *schedules.RouteSchedule
	if routeID != "" {
		if route, ok := t.Schedules.Route(routeID); ok {
			baseline = &route

			if destination == nil && (route.DestinationLatitude != 0 || route.DestinationLongitude != 0) {
				routeDestination := transit.NewLocation(route.DestinationLatitude, route.DestinationLongitude)
				destination = &routeDestination
			}
		}
	}

	if destination == nil {
		return
	}

	if err := destination.Validate(); err != nil {
		log.Error().Err(err).Str("device", event.DeviceID).Msg("Invalid destination for ETA computation")
		return
	}

	distanceKM := state.Position.Location.Distance(destination)
	multiplier := geo.TrafficMultiplier(state.Telemetry.TrafficLevel)
	etaMinutes := geo.ETAMinutes(distanceKM, state.Telemetry.SpeedKMH, multiplier)

	now := t.Clock.Now()
	eta := now.Add(time.Duration(etaMinutes * float64(time.Minute)))

	if err := t.Store.SetETA(event.DeviceID, eta); err != nil {
		log.Error().Err(err).Str("device", event.DeviceID).Msg("Failed to record ETA")
	}

	t.Hub.Publish(transit.BusTopic(event.DeviceID), transit.EventETAUpdate, map[string]interface{}{
		"deviceId":     event.DeviceID,
		"distance":     distanceKM,
		"etaMinutes":   etaMinutes,
		"eta":          eta,
		"currentSpeed": state.Telemetry.SpeedKMH,
		"trafficLevel": state.Telemetry.TrafficLevel,
	})

	// one batch reschedule per device covers every tracker of the topic,
	// not a timer per subscriber
	t.Scheduler.ScheduleArrival(
		scheduler.Key{DeviceID: event.DeviceID, Scope: scheduler.ScopeAllTrackers},
		etaMinutes,
		transit.Notification{
			Type:     transit.NotificationTypeBusArrival,
			Title:    "Bus arriving soon",
			Message:  "Your bus arrives in about 5 minutes",
			DeviceID: event.DeviceID,
			Metadata: map[string]interface{}{
				"etaMinutes": etaMinutes,
			},
		},
	)

	if baseline != nil && len(state.RouteHistory) > 0 {
		elapsedMinutes := now.Sub(state.RouteHistory[0].Timestamp).Minutes()
		projectedMinutes := elapsedMinutes + etaMinutes

		t.Scheduler.CheckAndSendDelay(event.DeviceID, baseline.ExpectedDurationMinutes, projectedMinutes)

		t.checkRouteDeviation(event.DeviceID, routeID, baseline, state, now)
	}
}

// checkRouteDeviation compares the current position against the corridor from
// the first fix to the scheduled terminus and raises a route change alert when
// the vehicle strays off it
func (t *Tracker) checkRouteDeviation(deviceID string, routeID string, baseline *schedules.RouteSchedule, state transit.VehicleState, now time.Time) {
	if baseline.DestinationLatitude == 0 && baseline.DestinationLongitude == 0 {
		return
	}
	if len(state.RouteHistory) < 2 {
		return
	}

	terminus := transit.NewLocation(baseline.DestinationLatitude, baseline.DestinationLongitude)
	deviation := state.Position.Location.DistanceFromLine(state.RouteHistory[0].Location, terminus)

	offRoute := deviation > routeDeviationThreshold
	wasOffRoute := t.offRoute.swap(deviceID, offRoute)

	if !offRoute || wasOffRoute {
		return
	}

	log.Info().Str("device", deviceID).Str("route", routeID).Float64("deviation", deviation).Msg("Vehicle left its route corridor")

	t.Hub.Publish(transit.BusTopic(deviceID), transit.EventNotification, transit.Notification{
		Type:      transit.NotificationTypeRouteChange,
		Title:     "Route changed",
		Message:   "Your bus has deviated from its usual route",
		DeviceID:  deviceID,
		Timestamp: now,
		Metadata: map[string]interface{}{
			"routeId":   routeID,
			"deviation": deviation,
		},
	})
}

// ETAToDestination answers an on-demand ETA request against the live state
func (t *Tracker) ETAToDestination(deviceID string, destLat float64, destLng float64) (ETAResult, error) {
	state, err := t.Store.GetState(deviceID)
	if err != nil {
		return ETAResult{}, err
	}

	if state.Position == nil {
		return ETAResult{}, transit.ErrNotFound
	}

	distanceKM, err := geo.Distance(
		state.Position.Location.Latitude(), state.Position.Location.Longitude(),
		destLat, destLng,
	)
	if err != nil {
		return ETAResult{}, err
	}

	multiplier := geo.TrafficMultiplier(state.Telemetry.TrafficLevel)
	etaMinutes := geo.ETAMinutes(distanceKM, state.Telemetry.SpeedKMH, multiplier)

	return ETAResult{
		DeviceID: deviceID,

		DistanceKM: distanceKM,
		ETAMinutes: etaMinutes,
		ETA:        t.Clock.Now().Add(time.Duration(etaMinutes * float64(time.Minute))),

		CurrentSpeedKMH: state.Telemetry.SpeedKMH,
		TrafficLevel:    state.Telemetry.TrafficLevel,
	}, nil
}

// Passenger adjusts capacity counters and broadcasts the result
func (t *Tracker) Passenger(deviceID string, action string) (transit.VehicleState, error) {
	var state transit.VehicleState
	var err error

	switch action {
	case "board":
		state, err = t.Store.Board(deviceID)
	case "alight":
		state, err = t.Store.Alight(deviceID)
	default:
		return transit.VehicleState{}, ErrUnknownAction
	}

	if err != nil {
		return state, err
	}

	t.Hub.Publish(transit.BusTopic(deviceID), transit.EventPassengerUpdate, map[string]interface{}{
		"deviceId":       deviceID,
		"occupiedSeats":  state.Capacity.Occupied,
		"availableSeats": state.Capacity.Available,
		"totalSeats":     state.Capacity.Total,
	})

	return state, nil
}

// ShareLocation appends share grants and returns the updated state
func (t *Tracker) ShareLocation(deviceID string, recipients []string, expiryHours int) (transit.VehicleState, error) {
	return t.Store.ShareLocation(deviceID, recipients, time.Duration(expiryHours)*time.Hour)
}

// StopTracking cancels every pending notification for a device
func (t *Tracker) StopTracking(deviceID string) {
	t.Scheduler.CancelAllForDevice(deviceID)
}
