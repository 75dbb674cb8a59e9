package transit

import "time"

type Notification struct {
	Type NotificationType `json:"type"`

	Title   string `json:"title"`
	Message string `json:"message"`

	DeviceID   string `json:"deviceId"`
	TargetUser string `json:"targetUser,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type UserPushNotificationTarget struct {
	UserID                string    `bson:"userid"`
	PushNotificationToken string    `bson:"pushnotificationtoken"`
	ModificationDateTime  time.Time `bson:"modificationdatetime"`
}

type NotificationType string

const (
	NotificationTypeBusArrival       NotificationType = "bus_arrival"
	NotificationTypeBusDelayed       NotificationType = "bus_delayed"
	NotificationTypeRouteChange      NotificationType = "route_change"
	NotificationTypeWeatherAlert     NotificationType = "weather_alert"
	NotificationTypeMaintenanceAlert NotificationType = "maintenance_alert"
	NotificationTypeTrafficAlert     NotificationType = "traffic_alert"
	NotificationTypeEmergency        NotificationType = "emergency"
	NotificationTypeSystem           NotificationType = "system"
)
