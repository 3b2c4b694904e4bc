// Package broadcast fans room events out to every connected member of a
// room group.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Event names published to room groups.
const (
	ParticipantJoined = "participantJoined"
	ParticipantLeft   = "participantLeft"
	StatusUpdated     = "statusUpdated"
	RoleUpdated       = "roleUpdated"
	RoomUpdated       = "roomUpdated"
	RoomClosed        = "roomClosed"
	SpinStarted       = "spinStarted"
	SpinResult        = "spinResult"
	WheelUpdated      = "wheelUpdated"
	WheelDeleted      = "wheelDeleted"
	HistoryCleared    = "historyCleared"
	NewMessage        = "newMessage"
	EmojiReaction     = "emojiReaction"
)

// Event is the envelope every member receives.
type Event struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"roomId"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(typ, roomID string, payload any) Event {
	return Event{Type: typ, RoomID: roomID, Payload: payload, Timestamp: time.Now().UTC()}
}

// Publisher sends an event to every member of a room group. Events
// published from one goroutine reach each member in publish order.
type Publisher interface {
	Publish(ctx context.Context, roomID string, ev Event) error
}

// Subscription is one member's view of a room group. C is closed when the
// member unsubscribes, is replaced by a newer connection with the same
// member id, or falls too far behind.
type Subscription struct {
	RoomID   string
	MemberID string
	C        <-chan []byte

	ch chan []byte
}

// Broker is an in-process pub/sub for room events, keyed by room ID.
type Broker struct {
	mu     sync.Mutex
	rooms  map[string]map[string]*Subscription
	buffer int
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broker{
		rooms:  make(map[string]map[string]*Subscription),
		buffer: buffer,
	}
}

// Subscribe adds memberID to the room group. An existing subscription for
// the same member is closed and replaced.
func (b *Broker) Subscribe(roomID, memberID string) *Subscription {
	ch := make(chan []byte, b.buffer)
	sub := &Subscription{RoomID: roomID, MemberID: memberID, C: ch, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	members := b.rooms[roomID]
	if members == nil {
		members = make(map[string]*Subscription)
		b.rooms[roomID] = members
	}
	if old, ok := members[memberID]; ok {
		close(old.ch)
	}
	members[memberID] = sub
	return sub
}

// Unsubscribe removes sub from its room group. It is safe to call more than
// once and after the broker evicted the subscription.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(sub)
}

func (b *Broker) remove(sub *Subscription) {
	members := b.rooms[sub.RoomID]
	if members[sub.MemberID] != sub {
		return
	}
	close(sub.ch)
	delete(members, sub.MemberID)
	if len(members) == 0 {
		delete(b.rooms, sub.RoomID)
	}
}

// Publish implements Publisher for a single process.
func (b *Broker) Publish(_ context.Context, roomID string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Type, err)
	}
	b.Deliver(roomID, data)
	return nil
}

// Deliver hands an encoded event to every member of the room and returns
// how many received it. A member whose buffer is full is evicted rather than
// skipped, so nobody observes a gap in the sequence; the client reconnects
// and re-syncs by query. Delivering to an empty room is a no-op.
func (b *Broker) Deliver(roomID string, data []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for _, sub := range b.rooms[roomID] {
		select {
		case sub.ch <- data:
			delivered++
		default:
			b.remove(sub)
		}
	}
	return delivered
}

// Members returns the number of subscriptions in the room group.
func (b *Broker) Members(roomID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms[roomID])
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, members := range b.rooms {
		for _, sub := range members {
			b.remove(sub)
		}
	}
}
