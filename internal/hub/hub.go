// Package hub provides per-room fan-out of queue events to connected
// clients. Each room has its own subscriber set, created on first subscribe
// and discarded when the last subscriber leaves.
package hub

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/party-queue-system/pkg/events"
)

// subscriberBuffer is how many undelivered events a subscriber may lag
// behind before it is considered dead and pruned.
const subscriberBuffer = 16

type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[chan events.Event]struct{}
	log   *log.Logger
}

func New(logger *log.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[chan events.Event]struct{}),
		log:   logger.With("component", "hub"),
	}
}

// Subscribe registers a new subscriber for the room and returns its channel.
// The hub closes the channel when the subscriber is removed.
func (h *Hub) Subscribe(roomCode string) chan events.Event {
	ch := make(chan events.Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomCode] == nil {
		h.rooms[roomCode] = make(map[chan events.Event]struct{})
	}
	h.rooms[roomCode][ch] = struct{}{}
	h.log.Debug("subscriber added", "room", roomCode, "subscribers", len(h.rooms[roomCode]))
	return ch
}

// Unsubscribe removes the channel from the room's subscriber set. Removing
// the last subscriber drops the room's registry entry entirely.
func (h *Hub) Unsubscribe(roomCode string, ch chan events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(roomCode, ch)
}

// remove must be called with h.mu held. Closing happens exactly when the
// channel leaves the map, so a later Unsubscribe after an automatic prune is
// a no-op.
func (h *Hub) remove(roomCode string, ch chan events.Event) {
	subs, ok := h.rooms[roomCode]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(h.rooms, roomCode)
	}
}

// Publish delivers the event to every subscriber of the room. Events arrive
// at every live subscriber in Publish-call order for that room. A subscriber
// whose buffer is full is pruned rather than waited on, so one dead or slow
// consumer never delays the others.
func (h *Hub) Publish(roomCode string, event events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[roomCode]
	if !ok {
		return
	}

	var dead []chan events.Event
	for ch := range subs {
		select {
		case ch <- event:
		default:
			dead = append(dead, ch)
		}
	}

	for _, ch := range dead {
		h.log.Warn("dropping unresponsive subscriber", "room", roomCode, "event", event.Type)
		h.remove(roomCode, ch)
	}
}

// SubscriberCount reports the number of live subscribers for a room.
func (h *Hub) SubscriberCount(roomCode string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomCode])
}

// RoomCount reports how many rooms currently have at least one subscriber.
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}
