package hub

import (
	"context"
	"encoding/json"

	"github.com/manpreetbhatti/huddle/internal/protocol"
	"github.com/manpreetbhatti/huddle/internal/registry"
)

// onJoin moves a connection from Connected to Joined. Requests without a room
// or display name leave the session untouched.
func (h *Hub) onJoin(c *registry.Connection, data json.RawMessage) {
	if c.State != registry.Connected {
		h.log.Debug("Ignoring join from a session that already joined", "conn", c.ID, "room", c.Room)
		return
	}
	req, err := protocol.DecodeData[protocol.JoinRequest](data)
	if err != nil {
		h.log.Debug("Ignoring malformed join", "conn", c.ID, "error", err)
		return
	}
	if !h.members.Join(req.Room, c.ID, req.DisplayName) {
		return
	}
	c.Room = req.Room
	c.DisplayName = req.DisplayName
	c.State = registry.Joined

	members, _ := h.members.Members(c.Room)
	h.log.Info("Client joined room", "conn", c.ID, "room", c.Room, "members", len(members))

	h.toRoom(c.Room, protocol.EventPresenceUpdated, members)
	h.toRoomExcept(c.Room, c.ID, protocol.EventPeerJoined, protocol.Member{ID: c.ID, DisplayName: c.DisplayName})
	h.pushInitialState(c.ID, c.Room)
}

// pushInitialState loads chat history off the loop, then sends history,
// whiteboard and task board to the joiner alone. The room state is read when
// the history arrives, so it includes anything drawn in the meantime.
func (h *Hub) pushInitialState(connID, roomID string) {
	h.async(func(ctx context.Context) {
		history := h.loadRecent(ctx, roomID)
		h.post(func() {
			c, ok := h.registry.Lookup(connID)
			if !ok || c.State != registry.Joined || c.Room != roomID {
				return
			}
			if !h.toConnection(connID, protocol.EventMessagesInitial, history) {
				return
			}
			if !h.toConnection(connID, protocol.EventWhiteboardInitial, h.state.Strokes(roomID)) {
				return
			}
			h.toConnection(connID, protocol.EventTasksUpdate, h.state.TaskBoard(roomID))
		})
	})
}

// disconnect is the terminal transition. For a joined session it updates the
// room's presence, tells the remaining members and evicts the room's state once
// nobody is left. Unknown ids are ignored.
func (h *Hub) disconnect(connID string) {
	c, ok := h.registry.Lookup(connID)
	if !ok {
		return
	}
	wasJoined := c.State == registry.Joined
	c.State = registry.Disconnected
	h.registry.Unregister(connID)
	c.Peer.Close()

	if !wasJoined {
		h.log.Debug("Client disconnected", "conn", connID)
		return
	}

	emptied := h.members.Leave(c.Room, connID)
	members, _ := h.members.Members(c.Room)
	h.toRoom(c.Room, protocol.EventPresenceUpdated, members)
	h.toRoomExcept(c.Room, connID, protocol.EventPeerLeft, connID)

	if emptied {
		h.state.Evict(c.Room)
		h.log.Info("Room closed (empty)", "room", c.Room)
		return
	}
	h.log.Info("Client left room", "conn", connID, "room", c.Room, "remaining", len(members))
}
