package notify

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/adjust/rmq/v5"
	"github.com/kr/pretty"
	"github.com/ridepulse/ridepulse/pkg/transit"
)

type NotifyBatchConsumer struct {
	pushManager *PushManager
}

// NewNotifyBatchConsumer takes a nil pushManager to run in debug mode, where
// notifications are printed instead of delivered
func NewNotifyBatchConsumer(pushManager *PushManager) *NotifyBatchConsumer {
	return &NotifyBatchConsumer{pushManager: pushManager}
}

func (c *NotifyBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		if c.pushManager == nil {
			pretty.Println(payload)
			continue
		}

		var notification transit.Notification
		if err := json.Unmarshal([]byte(payload), &notification); err != nil {
			log.Error().Err(err).Msg("Failed to decode notification")
			continue
		}

		if notification.TargetUser == "" {
			continue
		}

		if err := c.pushManager.SendPush(notification); err != nil {
			log.Error().Err(err).Str("target", notification.TargetUser).Msg("Failed to send push notification")
		}
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Fatal().Err(err).Msg("Failed to consume from queue")
		}
	}
}
