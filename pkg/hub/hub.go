// Package hub is the transport fan-out for state and notification events.
// Topics are string-keyed sets of live connections - fire and forget, no
// delivery guarantee, no persistence. A slow or disconnected consumer simply
// misses the event.
package hub

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Connection is a single subscriber session. Send failures are treated as the
// consumer's problem.
type Connection interface {
	ID() string
	Send(event string, payload interface{}) error
}

type Hub struct {
	mutex  sync.RWMutex
	topics map[string]map[string]Connection
}

func NewHub() *Hub {
	return &Hub{
		topics: map[string]map[string]Connection{},
	}
}

func (h *Hub) Join(connection Connection, topic string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	members := h.topics[topic]
	if members == nil {
		members = map[string]Connection{}
		h.topics[topic] = members
	}

	members[connection.ID()] = connection
}

func (h *Hub) Leave(connection Connection, topic string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.leaveLocked(connection, topic)
}

func (h *Hub) leaveLocked(connection Connection, topic string) {
	members := h.topics[topic]
	if members == nil {
		return
	}

	delete(members, connection.ID())

	if len(members) == 0 {
		delete(h.topics, topic)
	}
}

// DisconnectAll removes the connection from every topic, called when a session
// terminates
func (h *Hub) DisconnectAll(connection Connection) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for topic := range h.topics {
		h.leaveLocked(connection, topic)
	}
}

// Publish delivers the event to every currently joined member of the topic,
// best effort
func (h *Hub) Publish(topic string, event string, payload interface{}) {
	h.mutex.RLock()
	members := make([]Connection, 0, len(h.topics[topic]))
	for _, connection := range h.topics[topic] {
		members = append(members, connection)
	}
	h.mutex.RUnlock()

	for _, connection := range members {
		if err := connection.Send(event, payload); err != nil {
			log.Debug().Err(err).Str("topic", topic).Str("connection", connection.ID()).Msg("Dropped event for connection")
		}
	}
}

func (h *Hub) MembersOf(topic string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.topics[topic])
}

// TopicCounts returns membership per topic for operational monitoring
func (h *Hub) TopicCounts() map[string]int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	counts := map[string]int{}
	for topic, members := range h.topics {
		counts[topic] = len(members)
	}

	return counts
}
