package hub_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ridepulse/ridepulse/pkg/hub"
	"github.com/ridepulse/ridepulse/pkg/transit"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	Event   string
	Payload interface{}
}

type fakeConnection struct {
	id string

	mutex  sync.Mutex
	events []recordedEvent

	failSends bool
}

func newFakeConnection(id string) *fakeConnection {
	return &fakeConnection{id: id}
}

func (c *fakeConnection) ID() string { return c.id }

func (c *fakeConnection) Send(event string, payload interface{}) error {
	if c.failSends {
		return errors.New("connection gone")
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.events = append(c.events, recordedEvent{Event: event, Payload: payload})
	return nil
}

func (c *fakeConnection) received() []recordedEvent {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return append([]recordedEvent{}, c.events...)
}

func TestJoinPublishLeave(t *testing.T) {
	h := hub.NewHub()

	rider := newFakeConnection("rider-1")
	topic := transit.BusTopic("BUS001")

	h.Join(rider, topic)
	require.Equal(t, 1, h.MembersOf(topic))

	h.Publish(topic, transit.EventLocationUpdate, map[string]string{"deviceId": "BUS001"})
	require.Len(t, rider.received(), 1)
	require.Equal(t, transit.EventLocationUpdate, rider.received()[0].Event)

	h.Leave(rider, topic)
	require.Zero(t, h.MembersOf(topic))

	h.Publish(topic, transit.EventLocationUpdate, nil)
	require.Len(t, rider.received(), 1, "no delivery after leaving")
}

func TestJoinIsIdempotentPerConnection(t *testing.T) {
	h := hub.NewHub()

	rider := newFakeConnection("rider-1")
	topic := transit.BusTopic("BUS001")

	h.Join(rider, topic)
	h.Join(rider, topic)

	require.Equal(t, 1, h.MembersOf(topic))

	h.Publish(topic, transit.EventTrackingUpdate, nil)
	require.Len(t, rider.received(), 1, "joined twice but delivered once")
}

func TestPublishBestEffort(t *testing.T) {
	h := hub.NewHub()

	healthy := newFakeConnection("rider-1")
	broken := newFakeConnection("rider-2")
	broken.failSends = true

	topic := transit.BusTopic("BUS001")
	h.Join(healthy, topic)
	h.Join(broken, topic)

	h.Publish(topic, transit.EventETAUpdate, nil)

	require.Len(t, healthy.received(), 1, "a broken consumer never blocks the rest")
}

func TestPublishToEmptyTopic(t *testing.T) {
	h := hub.NewHub()

	h.Publish("bus:GHOST", transit.EventLocationUpdate, nil)
	require.Zero(t, h.MembersOf("bus:GHOST"))
}

func TestDisconnectAll(t *testing.T) {
	h := hub.NewHub()

	rider := newFakeConnection("rider-1")

	h.Join(rider, transit.BusTopic("BUS001"))
	h.Join(rider, transit.BusTopic("BUS002"))
	h.Join(rider, transit.UserTopic("rider-1"))

	h.DisconnectAll(rider)

	require.Zero(t, h.MembersOf(transit.BusTopic("BUS001")))
	require.Zero(t, h.MembersOf(transit.BusTopic("BUS002")))
	require.Zero(t, h.MembersOf(transit.UserTopic("rider-1")))
}

func TestConcurrentMembershipAndPublish(t *testing.T) {
	h := hub.NewHub()

	topic := transit.BusTopic("BUS001")

	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		connection := newFakeConnection(fmt.Sprintf("rider-%d", i))

		wg.Add(1)
		go func(connection *fakeConnection) {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				h.Join(connection, topic)
				h.Publish(topic, transit.EventTrackingUpdate, j)
				h.Leave(connection, topic)
			}
		}(connection)
	}

	wg.Wait()

	require.Zero(t, h.MembersOf(topic))
}

func TestTopicCounts(t *testing.T) {
	h := hub.NewHub()

	h.Join(newFakeConnection("rider-1"), transit.BusTopic("BUS001"))
	h.Join(newFakeConnection("rider-2"), transit.BusTopic("BUS001"))
	h.Join(newFakeConnection("driver-1"), transit.DriverTopic("driver-1"))

	counts := h.TopicCounts()

	require.Equal(t, 2, counts["bus:BUS001"])
	require.Equal(t, 1, counts["driver:driver-1"])
}
