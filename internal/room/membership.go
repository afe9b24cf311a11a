// Package room holds the room-keyed state of the hub: who is in each room and
// the ephemeral whiteboard and task-board data that lives as long as they are.
package room

import (
	"slices"

	"github.com/manpreetbhatti/huddle/internal/protocol"
	"github.com/samber/lo"
)

// Membership maps room ids to their ordered presence lists. Insertion order is
// join order. It is owned by the hub's event loop and is not safe for concurrent use.
type Membership struct {
	rooms map[string][]protocol.Member
}

func NewMembership() *Membership {
	return &Membership{rooms: make(map[string][]protocol.Member)}
}

// Join appends a member, creating the room's list if needed. It reports false
// when the room or connection id is empty and nothing was recorded.
func (m *Membership) Join(room, connID, displayName string) bool {
	if room == "" || connID == "" {
		return false
	}
	m.rooms[room] = append(m.rooms[room], protocol.Member{ID: connID, DisplayName: displayName})
	return true
}

// Leave removes the first entry for connID. emptied is true when that removal
// left the room without members; the room's list is deleted in that case.
func (m *Membership) Leave(room, connID string) (emptied bool) {
	members, ok := m.rooms[room]
	if !ok || connID == "" {
		return false
	}
	_, idx, found := lo.FindIndexOf(members, func(member protocol.Member) bool {
		return member.ID == connID
	})
	if !found {
		return false
	}
	members = slices.Delete(members, idx, idx+1)
	if len(members) == 0 {
		delete(m.rooms, room)
		return true
	}
	m.rooms[room] = members
	return false
}

// Members returns a snapshot of a room's presence list. ok is false when the
// room has no members; the list is then empty, never nil.
func (m *Membership) Members(room string) (members []protocol.Member, ok bool) {
	current, ok := m.rooms[room]
	if !ok {
		return make([]protocol.Member, 0), false
	}
	return slices.Clone(current), true
}

// Counts returns the number of members of every non-empty room.
func (m *Membership) Counts() map[string]int {
	return lo.MapValues(m.rooms, func(members []protocol.Member, _ string) int {
		return len(members)
	})
}

func (m *Membership) Len() int {
	return len(m.rooms)
}
