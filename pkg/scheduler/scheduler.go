// Package scheduler maintains the keyed collection of deferred, cancelable
// notification timers. One outstanding timer per key - scheduling over an
// existing key cancels and replaces it.
package scheduler

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ridepulse/ridepulse/pkg/transit"
)

// arrivalLeadMinutes is how far ahead of the estimated arrival the imminent
// notification fires
const arrivalLeadMinutes = 5

// delayToleranceMinutes is the overage above which a delay alert is emitted
const delayToleranceMinutes = 5

type Scope string

const ScopeAllTrackers Scope = "all-trackers"

func UserScope(userID string) Scope {
	return Scope("user:" + userID)
}

// UserID extracts the user identifier from a user scope
func (s Scope) UserID() (string, bool) {
	if strings.HasPrefix(string(s), "user:") {
		return string(s)[len("user:"):], true
	}

	return "", false
}

type Key struct {
	DeviceID string
	Scope    Scope
}

// Publisher is the hub-facing delivery contract
type Publisher interface {
	Publish(topic string, event string, payload interface{})
}

// Sink receives a copy of every emitted notification for out-of-process
// delivery (push, analytics). Optional, best effort.
type Sink interface {
	DeliverNotification(notification transit.Notification)
}

type Scheduler struct {
	publisher Publisher
	clock     Clock

	Sink Sink

	mutex  sync.Mutex
	timers map[Key]Timer
	done   bool
}

func NewScheduler(publisher Publisher, clock Clock) *Scheduler {
	return &Scheduler{
		publisher: publisher,
		clock:     clock,
		timers:    map[Key]Timer{},
	}
}

// ScheduleArrival arms a one-shot arrival-imminent timer. A non-positive ETA is
// a no-op; an ETA inside the lead window fires immediately.
func (s *Scheduler) ScheduleArrival(key Key, etaMinutes float64, notification transit.Notification) {
	if etaMinutes <= 0 {
		return
	}

	if notification.Timestamp.IsZero() {
		notification.Timestamp = s.clock.Now()
	}

	if etaMinutes <= arrivalLeadMinutes {
		s.Cancel(key)
		s.fire(key, notification)
		return
	}

	fireDelay := time.Duration((etaMinutes - arrivalLeadMinutes) * float64(time.Minute))

	s.mutex.Lock()

	if s.done {
		s.mutex.Unlock()
		return
	}

	// cancel-then-replace is atomic under the lock, two timers can never
	// coexist for one key
	if existing := s.timers[key]; existing != nil {
		existing.Stop()
	}

	var armed Timer
	armed = s.clock.AfterFunc(fireDelay, func() {
		s.timerFired(key, &armed, notification)
	})
	s.timers[key] = armed

	s.mutex.Unlock()
}

// timerFired only proceeds when the map still holds the exact timer whose
// callback is running. A replaced timer that lost the Stop race to its own
// expiry would otherwise deliver a stale notification and delete its
// replacement's map entry.
func (s *Scheduler) timerFired(key Key, armed *Timer, notification transit.Notification) {
	s.mutex.Lock()
	current, active := s.timers[key]
	if active && current == *armed {
		delete(s.timers, key)
	} else {
		active = false
	}
	s.mutex.Unlock()

	// a cancelled or replaced timer that lost the race to its own firing
	// stops here
	if !active {
		return
	}

	s.fire(key, notification)
}

func (s *Scheduler) fire(key Key, notification transit.Notification) {
	topic := transit.BusTopic(key.DeviceID)
	if userID, ok := key.Scope.UserID(); ok {
		topic = transit.UserTopic(userID)
	}

	s.publisher.Publish(topic, transit.EventNotification, notification)

	if s.Sink != nil {
		s.Sink.DeliverNotification(notification)
	}
}

// CheckAndSendDelay compares actual against expected arrival and publishes a
// delay alert when the overage exceeds tolerance. Evaluated synchronously on
// each telemetry update, never timer-deferred.
func (s *Scheduler) CheckAndSendDelay(deviceID string, expectedMinutes float64, actualMinutes float64) bool {
	overage := actualMinutes - expectedMinutes

	if overage <= delayToleranceMinutes {
		return false
	}

	notification := transit.Notification{
		Type:      transit.NotificationTypeBusDelayed,
		Title:     "Bus delayed",
		Message:   "Your bus is running behind schedule",
		DeviceID:  deviceID,
		Timestamp: s.clock.Now(),
		Metadata: map[string]interface{}{
			"expectedMinutes": expectedMinutes,
			"actualMinutes":   actualMinutes,
			"delayMinutes":    overage,
		},
	}

	s.publisher.Publish(transit.BusTopic(deviceID), transit.EventNotification, notification)

	if s.Sink != nil {
		s.Sink.DeliverNotification(notification)
	}

	log.Info().Str("device", deviceID).Float64("overage", overage).Msg("Delay alert emitted")

	return true
}

// Cancel clears the timer for a key if present. Cancelling an idle key is a
// no-op.
func (s *Scheduler) Cancel(key Key) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if timer := s.timers[key]; timer != nil {
		timer.Stop()
		delete(s.timers, key)
	}
}

// CancelAllForDevice clears every timer scoped to a device
func (s *Scheduler) CancelAllForDevice(deviceID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for key, timer := range s.timers {
		if key.DeviceID == deviceID {
			timer.Stop()
			delete(s.timers, key)
		}
	}
}

func (s *Scheduler) ActiveCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.timers)
}

// Shutdown cancels all outstanding timers. Nothing fires after shutdown.
func (s *Scheduler) Shutdown() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}

	s.done = true
}
