package statestore_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ridepulse/ridepulse/pkg/statestore"
	"github.com/ridepulse/ridepulse/pkg/transit"
	"github.com/stretchr/testify/require"
)

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

func TestUpsertCreatesStateOnFirstReport(t *testing.T) {
	store := statestore.NewStore()

	location := transit.NewLocation(12.9716, 77.5946)
	state, err := store.UpsertTelemetry("BUS001", statestore.TelemetryUpdate{
		Location: &location,
		SpeedKMH: float64Ptr(32),
	})
	require.NoError(t, err)

	require.Equal(t, "BUS001", state.DeviceID)
	require.NotNil(t, state.Position)
	require.Nil(t, state.PreviousPosition)
	require.Equal(t, 32.0, state.Telemetry.SpeedKMH)
	require.Equal(t, transit.TrafficLevelUnknown, state.Telemetry.TrafficLevel)
	require.Len(t, state.RouteHistory, 1)
}

func TestUpsertMergesPartialFields(t *testing.T) {
	store := statestore.NewStore()

	location := transit.NewLocation(12.9716, 77.5946)
	_, err := store.UpsertTelemetry("BUS001", statestore.TelemetryUpdate{
		Location: &location,
		SpeedKMH: float64Ptr(32),
	})
	require.NoError(t, err)

	trafficLevel := transit.TrafficLevelHeavy
	state, err := store.UpsertTelemetry("BUS001", statestore.TelemetryUpdate{
		TrafficLevel: &trafficLevel,
	})
	require.NoError(t, err)

	require.Equal(t, 32.0, state.Telemetry.SpeedKMH, "unspecified fields are preserved")
	require.Equal(t, transit.TrafficLevelHeavy, state.Telemetry.TrafficLevel)
	require.Len(t, state.RouteHistory, 1, "no new history point without a position change")
}

func TestUpsertTracksPreviousPosition(t *testing.T) {
	store := statestore.NewStore()

	first := transit.NewLocation(12.9700, 77.5900)
	second := transit.NewLocation(12.9716, 77.5946)

	_, err := store.UpsertTelemetry("BUS001", statestore.TelemetryUpdate{Location: &first})
	require.NoError(t, err)

	state, err := store.UpsertTelemetry("BUS001", statestore.TelemetryUpdate{Location: &second})
	require.NoError(t, err)

	require.NotNil(t, state.PreviousPosition)
	require.Equal(t, first.Latitude(), state.PreviousPosition.Location.Latitude())
	require.Equal(t, second.Latitude(), state.Position.Location.Latitude())
	require.Len(t, state.RouteHistory, 2)
}

func TestUpsertRejectsInvalidCoordinates(t *testing.T) {
	store := statestore.NewStore()

	bad := transit.NewLocation(999, 77.5946)
	_, err := store.UpsertTelemetry("BUS001", statestore.TelemetryUpdate{Location: &bad})
	require.ErrorIs(t, err, transit.ErrInvalidLocation)

	_, err = store.GetState("BUS001")
	require.ErrorIs(t, err, transit.ErrNotFound, "rejected update must not create state")
}

func TestRouteHistoryBounded(t *testing.T) {
	store := statestore.NewStore()

	for i := 0; i < transit.RouteHistoryMaxEntries+25; i++ {
		location := transit.NewLocation(12.9+float64(i)*0.0001, 77.59)
		_, err := store.UpsertTelemetry("BUS001", statestore.TelemetryUpdate{Location: &location})
		require.NoError(t, err)
	}

	state, err := store.GetState("BUS001")
	require.NoError(t, err)
	require.Len(t, state.RouteHistory, transit.RouteHistoryMaxEntries)
}

func TestLastUpdatedMonotonic(t *testing.T) {
	store := statestore.NewStore()

	now := time.Now()

	_, err := store.UpsertTelemetry("BUS001", statestore.TelemetryUpdate{
		SpeedKMH:   float64Ptr(30),
		RecordedAt: now,
	})
	require.NoError(t, err)

	// replayed stale record must not rewind lastUpdated
	state, err := store.UpsertTelemetry("BUS001", statestore.TelemetryUpdate{
		SpeedKMH:   float64Ptr(20),
		RecordedAt: now.Add(-5 * time.Minute),
	})
	require.NoError(t, err)

	require.Equal(t, now.Unix(), state.Telemetry.LastUpdated.Unix())
	require.Equal(t, 20.0, state.Telemetry.SpeedKMH)
}

func TestGetStateUnknownDevice(t *testing.T) {
	store := statestore.NewStore()

	_, err := store.GetState("GHOST")
	require.ErrorIs(t, err, transit.ErrNotFound)
}

func TestBoardingAndAlighting(t *testing.T) {
	store := statestore.NewStore()

	_, err := store.SetCapacity("BUS001", 2)
	require.NoError(t, err)

	state, err := store.Board("BUS001")
	require.NoError(t, err)
	require.Equal(t, 1, state.Capacity.Occupied)
	require.Equal(t, 1, state.Capacity.Available)

	state, err = store.Board("BUS001")
	require.NoError(t, err)
	require.Equal(t, 2, state.Capacity.Occupied)

	state, err = store.Board("BUS001")
	require.ErrorIs(t, err, transit.ErrVehicleFull)
	require.Equal(t, 2, state.Capacity.Occupied, "counters unchanged on rejected boarding")
	require.Equal(t, 0, state.Capacity.Available)

	state, err = store.Alight("BUS001")
	require.NoError(t, err)
	require.Equal(t, 1, state.Capacity.Occupied)

	_, err = store.Alight("BUS001")
	require.NoError(t, err)
	state, err = store.Alight("BUS001")
	require.NoError(t, err)
	require.Equal(t, 0, state.Capacity.Occupied, "alighting floors at zero")
}

func TestCapacityInvariant(t *testing.T) {
	store := statestore.NewStore()

	_, err := store.SetCapacity("BUS001", 40)
	require.NoError(t, err)

	state, err := store.UpsertTelemetry("BUS001", statestore.TelemetryUpdate{
		PassengerCount: intPtr(12),
	})
	require.NoError(t, err)

	require.Equal(t, 12, state.Capacity.Occupied)
	require.Equal(t, 28, state.Capacity.Available)
	require.Equal(t, state.Capacity.Total, state.Capacity.Occupied+state.Capacity.Available)
}

func TestShareLocation(t *testing.T) {
	store := statestore.NewStore()

	location := transit.NewLocation(12.9716, 77.5946)
	_, err := store.UpsertTelemetry("BUS001", statestore.TelemetryUpdate{Location: &location})
	require.NoError(t, err)

	state, err := store.ShareLocation("BUS001", []string{"rider-1", "rider-2"}, 2*time.Hour)
	require.NoError(t, err)

	require.Len(t, state.SharedWith, 2)
	require.True(t, state.SharedWith[0].IsActive(time.Now()))
	require.False(t, state.SharedWith[0].IsActive(time.Now().Add(3*time.Hour)))
}

func TestConcurrentUpdatesAcrossDevices(t *testing.T) {
	store := statestore.NewStore()

	var wg sync.WaitGroup

	for d := 0; d < 8; d++ {
		deviceID := fmt.Sprintf("BUS%03d", d)

		wg.Add(1)
		go func(deviceID string) {
			defer wg.Done()

			for i := 0; i < 200; i++ {
				location := transit.NewLocation(12.9+float64(i)*0.0001, 77.59)
				_, err := store.UpsertTelemetry(deviceID, statestore.TelemetryUpdate{
					Location: &location,
					SpeedKMH: float64Ptr(float64(i % 60)),
				})
				require.NoError(t, err)
			}
		}(deviceID)
	}

	wg.Wait()

	for d := 0; d < 8; d++ {
		state, err := store.GetState(fmt.Sprintf("BUS%03d", d))
		require.NoError(t, err)
		require.Len(t, state.RouteHistory, 200)
	}
}
