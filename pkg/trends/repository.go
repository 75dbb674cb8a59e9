package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/ridepulse/ridepulse/pkg/database"
	"github.com/ridepulse/ridepulse/pkg/redis_client"
	"github.com/ridepulse/ridepulse/pkg/transit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var tripWindowCache *cache.Cache[string]

// CreateTripWindowCache initializes the Redis cache for trip record windows
func CreateTripWindowCache() {
	redisStore := redisstore.NewRedis(redis_client.Client, store.WithExpiration(10*time.Minute))

	tripWindowCache = cache.New[string](redisStore)
}

// MongoTripRecordRepository reads historical trip windows from the trip_records
// collection, newest first, optionally memoised in Redis
type MongoTripRecordRepository struct {
}

func (r MongoTripRecordRepository) RecentTrips(ctx context.Context, routeID string, limit int) ([]transit.TripRecord, error) {
	cacheKey := fmt.Sprintf("trip_window:%s:%d", routeID, limit)

	if tripWindowCache != nil {
		if cached, err := tripWindowCache.Get(ctx, cacheKey); err == nil && cached != "" {
			var records []transit.TripRecord
			if err := json.Unmarshal([]byte(cached), &records); err == nil {
				return records, nil
			}
		}
	}

	tripRecordsCollection := database.GetCollection("trip_records")

	findOptions := options.Find().
		SetSort(bson.D{{Key: "recordedat", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := tripRecordsCollection.Find(ctx, bson.M{"routeid": routeID}, findOptions)
	if err != nil {
		return nil, err
	}

	var records []transit.TripRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	if tripWindowCache != nil {
		if recordsJSON, err := json.Marshal(records); err == nil {
			tripWindowCache.Set(ctx, cacheKey, string(recordsJSON))
		}
	}

	return records, nil
}

// AppendTripRecord stores a newly completed trip for future aggregation
func AppendTripRecord(ctx context.Context, record transit.TripRecord) error {
	tripRecordsCollection := database.GetCollection("trip_records")

	_, err := tripRecordsCollection.InsertOne(ctx, record)

	return err
}
