package models

import "fmt"

// RoomType controls which requesters a room is compatible with.
type RoomType string

const (
	// RoomTypeOpen rooms accept anyone.
	RoomTypeOpen RoomType = "friend-zone"
	// RoomTypeFiltered rooms only group occupants of the same gender.
	RoomTypeFiltered RoomType = "propagation"
)

// ParseRoomType validates a room type received from the wire.
func ParseRoomType(raw string) (RoomType, error) {
	switch t := RoomType(raw); t {
	case RoomTypeOpen, RoomTypeFiltered:
		return t, nil
	default:
		return "", fmt.Errorf("unknown room type %q", raw)
	}
}

// Room is one matching group. Participants are connection ids kept in join
// order; the set never holds duplicates and never exceeds Capacity.
type Room struct {
	ID       string
	Type     RoomType
	Capacity int

	participants []string
	messages     []Message
}

// NewRoom returns an empty room.
func NewRoom(id string, roomType RoomType, capacity int) *Room {
	return &Room{ID: id, Type: roomType, Capacity: capacity}
}

func (r *Room) CanJoin() bool {
	return len(r.participants) < r.Capacity
}

// AddParticipant adds connID unless the room is full. Adding a connection that
// is already present is a no-op that reports success.
func (r *Room) AddParticipant(connID string) bool {
	if r.Has(connID) {
		return true
	}
	if !r.CanJoin() {
		return false
	}
	r.participants = append(r.participants, connID)
	return true
}

func (r *Room) RemoveParticipant(connID string) {
	for i, id := range r.participants {
		if id == connID {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			return
		}
	}
}

func (r *Room) Has(connID string) bool {
	for _, id := range r.participants {
		if id == connID {
			return true
		}
	}
	return false
}

func (r *Room) IsEmpty() bool {
	return len(r.participants) == 0
}

func (r *Room) Size() int {
	return len(r.participants)
}

// Participants returns a copy of the participant connection ids in join order.
func (r *Room) Participants() []string {
	out := make([]string, len(r.participants))
	copy(out, r.participants)
	return out
}

// AddMessage appends a message, clamping its value to maxLen characters.
func (r *Room) AddMessage(msg Message, maxLen int) {
	msg.Value = Truncate(msg.Value, maxLen)
	r.messages = append(r.messages, msg)
}

// Messages returns a copy of the room's message history.
func (r *Room) Messages() []Message {
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
