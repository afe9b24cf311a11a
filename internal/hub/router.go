package hub

import (
	"github.com/manpreetbhatti/huddle/internal/protocol"
	"github.com/samber/lo"
)

// toRoom delivers to every current member of room, the sender included.
func (h *Hub) toRoom(room, event string, payload any) {
	members, ok := h.members.Members(room)
	if !ok {
		return
	}
	h.deliver(members, event, payload)
}

// toRoomExcept delivers to every current member of room but senderID.
func (h *Hub) toRoomExcept(room, senderID, event string, payload any) {
	members, ok := h.members.Members(room)
	if !ok {
		return
	}
	h.deliver(lo.Filter(members, func(m protocol.Member, _ int) bool {
		return m.ID != senderID
	}), event, payload)
}

// toConnection delivers to a single connection. It reports false, and drops the
// event, when the target is not registered.
func (h *Hub) toConnection(connID, event string, payload any) bool {
	conn, ok := h.registry.Lookup(connID)
	if !ok {
		return false
	}
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		h.log.Error("Failed to encode event", "event", event, "error", err)
		return false
	}
	if !conn.Peer.Send(frame) {
		h.log.Warn("Send buffer full, dropping client", "conn", connID)
		h.disconnect(connID)
		return false
	}
	return true
}

// deliver encodes once and fans out in membership order. Recipients whose send
// buffer is full are disconnected after the fan-out.
func (h *Hub) deliver(targets []protocol.Member, event string, payload any) {
	if len(targets) == 0 {
		return
	}
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		h.log.Error("Failed to encode event", "event", event, "error", err)
		return
	}

	var slow []string
	for _, target := range targets {
		conn, ok := h.registry.Lookup(target.ID)
		if !ok {
			continue
		}
		if !conn.Peer.Send(frame) {
			slow = append(slow, target.ID)
		}
	}
	for _, id := range slow {
		h.log.Warn("Send buffer full, dropping client", "conn", id)
		h.disconnect(id)
	}
}
