package tracker

import (
	"time"
)

type DelayAlertElasticEvent struct {
	Timestamp time.Time

	DeviceID string
	Metadata map[string]interface{}
}
