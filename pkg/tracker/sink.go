package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/ridepulse/ridepulse/pkg/elastic_client"
	"github.com/ridepulse/ridepulse/pkg/redis_client"
	"github.com/ridepulse/ridepulse/pkg/transit"
)

// QueueNotificationSink mirrors every emitted notification onto the notify
// queue for push delivery, and indexes delay alerts for analytics
type QueueNotificationSink struct {
	notifyQueue rmq.Queue
}

func NewQueueNotificationSink() *QueueNotificationSink {
	notifyQueue, err := redis_client.QueueConnection.OpenQueue("notify-queue")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open notify queue")
	}

	return &QueueNotificationSink{
		notifyQueue: notifyQueue,
	}
}

func (s *QueueNotificationSink) DeliverNotification(notification transit.Notification) {
	notificationBytes, err := json.Marshal(notification)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode notification")
		return
	}

	if err := s.notifyQueue.PublishBytes(notificationBytes); err != nil {
		log.Error().Err(err).Msg("Failed to publish notification to queue")
	}

	if notification.Type == transit.NotificationTypeBusDelayed {
		currentTime := time.Now()
		yearNumber, weekNumber := currentTime.ISOWeek()
		indexName := fmt.Sprintf("ridepulse-delay-events-%d-%d", yearNumber, weekNumber)

		elasticEvent, _ := json.Marshal(DelayAlertElasticEvent{
			Timestamp: currentTime,

			DeviceID: notification.DeviceID,
			Metadata: notification.Metadata,
		})

		elastic_client.IndexRequest(indexName, bytes.NewReader(elasticEvent))
	}
}
