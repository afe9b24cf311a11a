package hub

import (
	"encoding/json"

	"github.com/manpreetbhatti/huddle/internal/protocol"
	"github.com/manpreetbhatti/huddle/internal/registry"
)

// Whiteboard

func (h *Hub) onDraw(c *registry.Connection, data json.RawMessage) {
	if protocol.IsEmpty(data) {
		return
	}
	h.state.AppendStroke(c.Room, data)
	h.toRoomExcept(c.Room, c.ID, protocol.EventWhiteboardDraw, data)
}

// replaceStrokes handles undo and redo alike: the client sends the full log it
// wants and the store takes it wholesale.
func replaceStrokes(event string) handlerFunc {
	return func(h *Hub, c *registry.Connection, data json.RawMessage) {
		if protocol.IsEmpty(data) {
			h.log.Debug("Ignoring stroke log without data", "event", event, "conn", c.ID)
			return
		}
		var strokes []json.RawMessage
		if err := json.Unmarshal(data, &strokes); err != nil {
			h.log.Debug("Ignoring malformed stroke log", "event", event, "conn", c.ID, "error", err)
			return
		}
		h.state.ReplaceStrokes(c.Room, strokes)
		h.toRoomExcept(c.Room, c.ID, event, strokes)
	}
}

func (h *Hub) onClear(c *registry.Connection, _ json.RawMessage) {
	h.state.ClearStrokes(c.Room)
	h.toRoom(c.Room, protocol.EventWhiteboardClear, nil)
}

// Task board

func (h *Hub) onTasksGet(c *registry.Connection, data json.RawMessage) {
	var req protocol.TasksGetRequest
	if !protocol.IsEmpty(data) {
		if err := json.Unmarshal(data, &req); err != nil {
			h.log.Debug("Ignoring malformed tasks-get", "conn", c.ID, "error", err)
			return
		}
	}
	roomID, ok := sessionRoom(c, req.Room)
	if !ok {
		return
	}
	h.toConnection(c.ID, protocol.EventTasksUpdate, h.state.TaskBoard(roomID))
}

func (h *Hub) onTasksUpdate(c *registry.Connection, data json.RawMessage) {
	req, err := protocol.DecodeData[protocol.TasksUpdateRequest](data)
	if err != nil || protocol.IsEmpty(req.Board) {
		h.log.Debug("Ignoring malformed tasks-update", "conn", c.ID, "error", err)
		return
	}
	roomID, ok := sessionRoom(c, req.Room)
	if !ok {
		return
	}
	h.state.SetTaskBoard(roomID, req.Board)
	h.toRoom(roomID, protocol.EventTasksUpdate, req.Board)
}
