package hub

import (
	"github.com/manpreetbhatti/huddle/internal/protocol"
)

// Snapshot queries. Each runs on the loop and returns a zero value once the hub
// has stopped.

func (h *Hub) RoomCount() int {
	var n int
	h.call(func() { n = h.members.Len() })
	return n
}

func (h *Hub) ClientCount() int {
	var n int
	h.call(func() { n = h.registry.Len() })
	return n
}

// ActiveRooms returns the member count of every occupied room.
func (h *Hub) ActiveRooms() map[string]int {
	rooms := make(map[string]int)
	h.call(func() { rooms = h.members.Counts() })
	return rooms
}

// Members returns the presence list of a room and whether it is occupied.
func (h *Hub) Members(roomID string) ([]protocol.Member, bool) {
	members := make([]protocol.Member, 0)
	var ok bool
	h.call(func() { members, ok = h.members.Members(roomID) })
	return members, ok
}
