// Package statestore owns the live state of every tracked vehicle. Mutation is
// partitioned per device identifier - concurrent updates to different vehicles
// proceed independently, updates to the same vehicle are serialized.
package statestore

import (
	"sync"
	"time"

	"github.com/ridepulse/ridepulse/pkg/transit"
)

type Store struct {
	mutex    sync.RWMutex
	vehicles map[string]*vehicleEntry

	Snapshotter Snapshotter
}

type vehicleEntry struct {
	mutex sync.Mutex
	state *transit.VehicleState
}

// Snapshotter receives state copies after each mutation, fire and forget
type Snapshotter interface {
	SnapshotVehicleState(state transit.VehicleState)
}

type TelemetryUpdate struct {
	Location *transit.Location

	SpeedKMH         *float64
	DirectionDegrees *float64
	PassengerCount   *int
	TrafficLevel     *transit.TrafficLevel

	Accuracy float64

	RecordedAt time.Time
}

func NewStore() *Store {
	return &Store{
		vehicles: map[string]*vehicleEntry{},
	}
}

func (s *Store) entry(deviceID string, create bool) *vehicleEntry {
	s.mutex.RLock()
	entry := s.vehicles[deviceID]
	s.mutex.RUnlock()

	if entry != nil || !create {
		return entry
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if entry = s.vehicles[deviceID]; entry == nil {
		entry = &vehicleEntry{
			state: &transit.VehicleState{
				DeviceID: deviceID,
				Telemetry: transit.Telemetry{
					TrafficLevel: transit.TrafficLevelUnknown,
				},
				CreationDateTime: time.Now(),
			},
		}
		s.vehicles[deviceID] = entry
	}

	return entry
}

// UpsertTelemetry merges the provided fields into the vehicle state, preserving
// anything unspecified. The state is created on the first report for a device.
func (s *Store) UpsertTelemetry(deviceID string, update TelemetryUpdate) (transit.VehicleState, error) {
	if update.Location != nil {
		if err := update.Location.Validate(); err != nil {
			return transit.VehicleState{}, err
		}
	}

	entry := s.entry(deviceID, true)

	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	state := entry.state

	recordedAt := update.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	if update.SpeedKMH != nil {
		state.Telemetry.SpeedKMH = *update.SpeedKMH
	}
	if update.DirectionDegrees != nil {
		state.Telemetry.DirectionDegrees = *update.DirectionDegrees
	}
	if update.TrafficLevel != nil {
		state.Telemetry.TrafficLevel = *update.TrafficLevel
	}
	if update.PassengerCount != nil {
		state.Telemetry.PassengerCount = *update.PassengerCount
		if state.Capacity.Total > 0 {
			state.Capacity.Occupied = min(*update.PassengerCount, state.Capacity.Total)
			state.Capacity.Available = state.Capacity.Total - state.Capacity.Occupied
		}
	}

	if update.Location != nil {
		positionChanged := state.Position == nil ||
			state.Position.Location.Latitude() != update.Location.Latitude() ||
			state.Position.Location.Longitude() != update.Location.Longitude()

		if positionChanged {
			state.PreviousPosition = state.Position
			state.Position = &transit.Position{
				Location:  *update.Location,
				Timestamp: recordedAt,
			}

			state.RouteHistory = append(state.RouteHistory, transit.RouteHistoryEntry{
				Location:       *update.Location,
				Timestamp:      recordedAt,
				SpeedKMH:       state.Telemetry.SpeedKMH,
				Accuracy:       update.Accuracy,
				Direction:      state.Telemetry.DirectionDegrees,
				PassengerCount: state.Telemetry.PassengerCount,
			})

			if len(state.RouteHistory) > transit.RouteHistoryMaxEntries {
				state.RouteHistory = state.RouteHistory[len(state.RouteHistory)-transit.RouteHistoryMaxEntries:]
			}
		}
	}

	// lastUpdated is monotonic even when feeds replay old records
	if recordedAt.After(state.Telemetry.LastUpdated) {
		state.Telemetry.LastUpdated = recordedAt
	}
	state.ModificationDateTime = time.Now()

	snapshot := copyState(state)

	if s.Snapshotter != nil {
		go s.Snapshotter.SnapshotVehicleState(snapshot)
	}

	return snapshot, nil
}

// GetState returns a snapshot copy of the current vehicle state
func (s *Store) GetState(deviceID string) (transit.VehicleState, error) {
	entry := s.entry(deviceID, false)
	if entry == nil {
		return transit.VehicleState{}, transit.ErrNotFound
	}

	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	return copyState(entry.state), nil
}

// SetETA records the latest computed arrival estimate on the vehicle telemetry
func (s *Store) SetETA(deviceID string, eta time.Time) error {
	entry := s.entry(deviceID, false)
	if entry == nil {
		return transit.ErrNotFound
	}

	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	entry.state.Telemetry.ETA = &eta

	return nil
}

// SetCapacity configures the total seat count for a vehicle
func (s *Store) SetCapacity(deviceID string, total int) (transit.VehicleState, error) {
	entry := s.entry(deviceID, true)

	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	state := entry.state
	state.Capacity.Total = total
	if state.Capacity.Occupied > total {
		state.Capacity.Occupied = total
	}
	state.Capacity.Available = total - state.Capacity.Occupied
	state.ModificationDateTime = time.Now()

	return copyState(state), nil
}

// Board increments the occupied counter, rejecting boarding at full capacity
func (s *Store) Board(deviceID string) (transit.VehicleState, error) {
	entry := s.entry(deviceID, false)
	if entry == nil {
		return transit.VehicleState{}, transit.ErrNotFound
	}

	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	state := entry.state

	if state.Capacity.Occupied >= state.Capacity.Total {
		return copyState(state), transit.ErrVehicleFull
	}

	state.Capacity.Occupied++
	state.Capacity.Available = state.Capacity.Total - state.Capacity.Occupied
	state.Telemetry.PassengerCount = state.Capacity.Occupied
	state.ModificationDateTime = time.Now()

	return copyState(state), nil
}

// Alight decrements the occupied counter, flooring at zero
func (s *Store) Alight(deviceID string) (transit.VehicleState, error) {
	entry := s.entry(deviceID, false)
	if entry == nil {
		return transit.VehicleState{}, transit.ErrNotFound
	}

	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	state := entry.state

	if state.Capacity.Occupied > 0 {
		state.Capacity.Occupied--
		state.Capacity.Available = state.Capacity.Total - state.Capacity.Occupied
		state.Telemetry.PassengerCount = state.Capacity.Occupied
		state.ModificationDateTime = time.Now()
	}

	return copyState(state), nil
}

// ShareLocation appends share grants for the given recipients
func (s *Store) ShareLocation(deviceID string, recipients []string, expiry time.Duration) (transit.VehicleState, error) {
	entry := s.entry(deviceID, false)
	if entry == nil {
		return transit.VehicleState{}, transit.ErrNotFound
	}

	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	state := entry.state
	now := time.Now()

	for _, recipient := range recipients {
		state.SharedWith = append(state.SharedWith, transit.ShareGrant{
			Recipient: recipient,
			SharedAt:  now,
			ExpiresAt: now.Add(expiry),
		})
	}
	state.ModificationDateTime = now

	return copyState(state), nil
}

func copyState(state *transit.VehicleState) transit.VehicleState {
	snapshot := *state

	if state.Position != nil {
		position := *state.Position
		snapshot.Position = &position
	}
	if state.PreviousPosition != nil {
		previous := *state.PreviousPosition
		snapshot.PreviousPosition = &previous
	}
	if state.Telemetry.ETA != nil {
		eta := *state.Telemetry.ETA
		snapshot.Telemetry.ETA = &eta
	}

	snapshot.RouteHistory = append([]transit.RouteHistoryEntry{}, state.RouteHistory...)
	snapshot.SharedWith = append([]transit.ShareGrant{}, state.SharedWith...)

	return snapshot
}

func min(a int, b int) int {
	if a < b {
		return a
	}
	return b
}
