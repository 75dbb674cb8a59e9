package scheduler_test

import (
	"sync"
	"testing"
	"time"

	"github.com/ridepulse/ridepulse/pkg/scheduler"
	"github.com/ridepulse/ridepulse/pkg/transit"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	Topic   string
	Event   string
	Payload interface{}
}

type fakePublisher struct {
	mutex  sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(topic string, event string, payload interface{}) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.events = append(p.events, publishedEvent{Topic: topic, Event: event, Payload: payload})
}

func (p *fakePublisher) published() []publishedEvent {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return append([]publishedEvent{}, p.events...)
}

func arrivalNotification(deviceID string) transit.Notification {
	return transit.Notification{
		Type:     transit.NotificationTypeBusArrival,
		Title:    "Bus arriving soon",
		Message:  "Your bus arrives in about 5 minutes",
		DeviceID: deviceID,
	}
}

func newTestScheduler() (*scheduler.Scheduler, *fakePublisher, *scheduler.FakeClock) {
	publisher := &fakePublisher{}
	clock := scheduler.NewFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	return scheduler.NewScheduler(publisher, clock), publisher, clock
}

func TestScheduleArrivalArmsTimer(t *testing.T) {
	s, publisher, clock := newTestScheduler()

	key := scheduler.Key{DeviceID: "BUS001", Scope: scheduler.ScopeAllTrackers}

	s.ScheduleArrival(key, 20, arrivalNotification("BUS001"))
	require.Equal(t, 1, s.ActiveCount())
	require.Empty(t, publisher.published())

	// fires at eta-5
	clock.Advance(15 * time.Minute)

	events := publisher.published()
	require.Len(t, events, 1)
	require.Equal(t, "bus:BUS001", events[0].Topic)
	require.Equal(t, transit.EventNotification, events[0].Event)
	require.Zero(t, s.ActiveCount())
}

func TestScheduleArrivalNonPositiveETAIsNoOp(t *testing.T) {
	s, publisher, _ := newTestScheduler()

	key := scheduler.Key{DeviceID: "BUS001", Scope: scheduler.ScopeAllTrackers}

	s.ScheduleArrival(key, 0, arrivalNotification("BUS001"))
	s.ScheduleArrival(key, -3, arrivalNotification("BUS001"))

	require.Zero(t, s.ActiveCount())
	require.Empty(t, publisher.published())
}

func TestScheduleArrivalImminentFiresImmediately(t *testing.T) {
	s, publisher, _ := newTestScheduler()

	key := scheduler.Key{DeviceID: "BUS001", Scope: scheduler.ScopeAllTrackers}

	s.ScheduleArrival(key, 4, arrivalNotification("BUS001"))

	require.Len(t, publisher.published(), 1)
	require.Zero(t, s.ActiveCount())
}

func TestScheduleArrivalReplacesExistingTimer(t *testing.T) {
	s, publisher, clock := newTestScheduler()

	key := scheduler.Key{DeviceID: "BUS001", Scope: scheduler.ScopeAllTrackers}

	s.ScheduleArrival(key, 30, arrivalNotification("BUS001"))
	s.ScheduleArrival(key, 10, arrivalNotification("BUS001"))

	require.Equal(t, 1, s.ActiveCount(), "back-to-back schedules leave exactly one timer")

	clock.Advance(60 * time.Minute)

	require.Len(t, publisher.published(), 1, "replaced timer never fires")
}

func TestCancelIdleKeyIsNoOp(t *testing.T) {
	s, _, _ := newTestScheduler()

	s.Cancel(scheduler.Key{DeviceID: "BUS001", Scope: scheduler.ScopeAllTrackers})
	require.Zero(t, s.ActiveCount())
}

func TestCancelledTimerNeverFires(t *testing.T) {
	s, publisher, clock := newTestScheduler()

	key := scheduler.Key{DeviceID: "BUS001", Scope: scheduler.ScopeAllTrackers}

	s.ScheduleArrival(key, 20, arrivalNotification("BUS001"))
	s.Cancel(key)

	clock.Advance(60 * time.Minute)

	require.Empty(t, publisher.published())
	require.Zero(t, s.ActiveCount())
}

func TestCancelAllForDevice(t *testing.T) {
	s, _, _ := newTestScheduler()

	s.ScheduleArrival(scheduler.Key{DeviceID: "BUS001", Scope: scheduler.ScopeAllTrackers}, 20, arrivalNotification("BUS001"))
	s.ScheduleArrival(scheduler.Key{DeviceID: "BUS001", Scope: scheduler.UserScope("rider-1")}, 20, arrivalNotification("BUS001"))
	s.ScheduleArrival(scheduler.Key{DeviceID: "BUS002", Scope: scheduler.ScopeAllTrackers}, 20, arrivalNotification("BUS002"))

	require.Equal(t, 3, s.ActiveCount())

	s.CancelAllForDevice("BUS001")

	require.Equal(t, 1, s.ActiveCount())
}

func TestUserScopedNotificationTargetsUserTopic(t *testing.T) {
	s, publisher, clock := newTestScheduler()

	key := scheduler.Key{DeviceID: "BUS001", Scope: scheduler.UserScope("rider-1")}

	s.ScheduleArrival(key, 10, arrivalNotification("BUS001"))
	clock.Advance(5 * time.Minute)

	events := publisher.published()
	require.Len(t, events, 1)
	require.Equal(t, "notifications:rider-1", events[0].Topic)
}

func TestCheckAndSendDelay(t *testing.T) {
	s, publisher, _ := newTestScheduler()

	// 8 minute overage emits
	require.True(t, s.CheckAndSendDelay("BUS001", 20, 28))

	events := publisher.published()
	require.Len(t, events, 1)
	require.Equal(t, "bus:BUS001", events[0].Topic)

	notification := events[0].Payload.(transit.Notification)
	require.Equal(t, transit.NotificationTypeBusDelayed, notification.Type)
	require.Equal(t, 8.0, notification.Metadata["delayMinutes"])

	// 3 minute overage stays quiet
	require.False(t, s.CheckAndSendDelay("BUS001", 20, 23))
	require.Len(t, publisher.published(), 1)

	// early arrival stays quiet
	require.False(t, s.CheckAndSendDelay("BUS001", 20, 15))
	require.Len(t, publisher.published(), 1)
}

func TestShutdownCancelsEverything(t *testing.T) {
	s, publisher, clock := newTestScheduler()

	for _, deviceID := range []string{"BUS001", "BUS002", "BUS003"} {
		s.ScheduleArrival(scheduler.Key{DeviceID: deviceID, Scope: scheduler.ScopeAllTrackers}, 30, arrivalNotification(deviceID))
	}
	require.Equal(t, 3, s.ActiveCount())

	s.Shutdown()
	require.Zero(t, s.ActiveCount())

	clock.Advance(2 * time.Hour)
	require.Empty(t, publisher.published(), "no orphaned fire after shutdown")

	// scheduling after shutdown stays inert
	s.ScheduleArrival(scheduler.Key{DeviceID: "BUS004", Scope: scheduler.ScopeAllTrackers}, 30, arrivalNotification("BUS004"))
	require.Zero(t, s.ActiveCount())
}

type countingSink struct {
	mutex sync.Mutex
	count int
}

func (c *countingSink) DeliverNotification(notification transit.Notification) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.count++
}

func TestSinkReceivesCopies(t *testing.T) {
	s, _, clock := newTestScheduler()

	sink := &countingSink{}
	s.Sink = sink

	s.ScheduleArrival(scheduler.Key{DeviceID: "BUS001", Scope: scheduler.ScopeAllTrackers}, 10, arrivalNotification("BUS001"))
	clock.Advance(5 * time.Minute)

	s.CheckAndSendDelay("BUS001", 20, 30)

	require.Equal(t, 2, sink.count)
}

// expiredTimer mimics a time.AfterFunc timer that has already expired: Stop
// reports false and the callback can still run after replacement.
type expiredTimer struct {
	callback func()
}

func (t *expiredTimer) Stop() bool { return false }

type expiryClock struct {
	now    time.Time
	timers []*expiredTimer
}

func (c *expiryClock) Now() time.Time { return c.now }

func (c *expiryClock) AfterFunc(d time.Duration, f func()) scheduler.Timer {
	timer := &expiredTimer{callback: f}
	c.timers = append(c.timers, timer)

	return timer
}

func TestReplacedTimerExpiringDuringReplacementStaysSilent(t *testing.T) {
	publisher := &fakePublisher{}
	clock := &expiryClock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	s := scheduler.NewScheduler(publisher, clock)

	key := scheduler.Key{DeviceID: "BUS001", Scope: scheduler.ScopeAllTrackers}

	first := arrivalNotification("BUS001")
	first.Message = "first estimate"
	s.ScheduleArrival(key, 30, first)

	second := arrivalNotification("BUS001")
	second.Message = "second estimate"
	s.ScheduleArrival(key, 45, second)

	require.Len(t, clock.timers, 2)

	// the replaced timer expired concurrently with the re-arm; its late
	// callback must neither deliver nor disturb the replacement
	clock.timers[0].callback()

	require.Empty(t, publisher.published(), "replaced timer delivered a stale notification")
	require.Equal(t, 1, s.ActiveCount(), "replacement timer must stay armed")

	clock.timers[1].callback()

	events := publisher.published()
	require.Len(t, events, 1)
	require.Equal(t, "second estimate", events[0].Payload.(transit.Notification).Message)
	require.Zero(t, s.ActiveCount())
}

func TestScopeUserID(t *testing.T) {
	userID, ok := scheduler.UserScope("rider-1").UserID()
	require.True(t, ok)
	require.Equal(t, "rider-1", userID)

	_, ok = scheduler.ScopeAllTrackers.UserID()
	require.False(t, ok)

	_, ok = scheduler.Scope("").UserID()
	require.False(t, ok)
}

func TestFireWithZeroValueScopeTargetsBusTopic(t *testing.T) {
	publisher := &fakePublisher{}
	clock := scheduler.NewFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	s := scheduler.NewScheduler(publisher, clock)

	s.ScheduleArrival(scheduler.Key{DeviceID: "BUS001"}, 3, arrivalNotification("BUS001"))

	events := publisher.published()
	require.Len(t, events, 1)
	require.Equal(t, "bus:BUS001", events[0].Topic)
}
