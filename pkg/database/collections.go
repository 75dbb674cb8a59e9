package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createVehicleStatesIndexes()
	createTripRecordsIndexes()
	createNotificationTargetIndexes()
}

func createVehicleStatesIndexes() {
	vehicleStatesCollection := GetCollection("vehicle_states")
	vehicleStatesIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "deviceid", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "position.location.coordinates", Value: "2d"}},
		},
		{
			Keys: bson.D{{Key: "telemetry.lastupdated", Value: -1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := vehicleStatesCollection.Indexes().CreateMany(context.Background(), vehicleStatesIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createTripRecordsIndexes() {
	tripRecordsCollection := GetCollection("trip_records")
	tripRecordsIndex := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "routeid", Value: 1},
				{Key: "recordedat", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "routeid", Value: 1},
				{Key: "dayofweek", Value: 1},
				{Key: "hourofday", Value: 1},
			},
		},
	}

	opts := options.CreateIndexes()
	_, err := tripRecordsCollection.Indexes().CreateMany(context.Background(), tripRecordsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createNotificationTargetIndexes() {
	targetsCollection := GetCollection("user_push_notification_target")
	targetsIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userid", Value: 1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := targetsCollection.Indexes().CreateMany(context.Background(), targetsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
