package statestore

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ridepulse/ridepulse/pkg/database"
	"github.com/ridepulse/ridepulse/pkg/transit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSnapshotter mirrors vehicle state into the vehicle_states collection so
// dashboards and the API survive a process restart. Writes happen off the hot
// telemetry path and failures only get logged.
type MongoSnapshotter struct {
	WriteTimeout time.Duration
}

func NewMongoSnapshotter() *MongoSnapshotter {
	return &MongoSnapshotter{
		WriteTimeout: 10 * time.Second,
	}
}

func (m *MongoSnapshotter) SnapshotVehicleState(state transit.VehicleState) {
	ctx, cancel := context.WithTimeout(context.Background(), m.WriteTimeout)
	defer cancel()

	vehicleStatesCollection := database.GetCollection("vehicle_states")

	updateOptions := options.Update().SetUpsert(true)

	_, err := vehicleStatesCollection.UpdateOne(ctx,
		bson.M{"deviceid": state.DeviceID},
		bson.M{"$set": state},
		updateOptions,
	)

	if err != nil {
		log.Error().Err(err).Str("device", state.DeviceID).Msg("Failed to snapshot vehicle state")
	}
}

// LoadVehicleState restores a single vehicle document, used by the API when the
// in-memory store has no entry yet
func LoadVehicleState(ctx context.Context, deviceID string) (*transit.VehicleState, error) {
	vehicleStatesCollection := database.GetCollection("vehicle_states")

	var state *transit.VehicleState
	vehicleStatesCollection.FindOne(ctx, bson.M{"deviceid": deviceID}).Decode(&state)

	if state == nil {
		return nil, transit.ErrNotFound
	}

	return state, nil
}
