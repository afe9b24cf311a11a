package hub

import (
	"encoding/json"

	"github.com/manpreetbhatti/huddle/internal/protocol"
	"github.com/manpreetbhatti/huddle/internal/registry"
)

type handlerFunc func(h *Hub, c *registry.Connection, data json.RawMessage)

type handler struct {
	fn handlerFunc
	// roomScoped handlers only run for sessions in the Joined state.
	roomScoped bool
}

var handlers = map[string]handler{
	protocol.EventJoin: {fn: (*Hub).onJoin},

	protocol.EventWhiteboardDraw:  {fn: (*Hub).onDraw, roomScoped: true},
	protocol.EventWhiteboardUndo:  {fn: replaceStrokes(protocol.EventWhiteboardUndo), roomScoped: true},
	protocol.EventWhiteboardRedo:  {fn: replaceStrokes(protocol.EventWhiteboardRedo), roomScoped: true},
	protocol.EventWhiteboardClear: {fn: (*Hub).onClear, roomScoped: true},

	protocol.EventTasksGet:    {fn: (*Hub).onTasksGet, roomScoped: true},
	protocol.EventTasksUpdate: {fn: (*Hub).onTasksUpdate, roomScoped: true},

	protocol.EventSendMessage: {fn: (*Hub).onSendMessage, roomScoped: true},

	protocol.EventOffer:        {fn: relay(protocol.EventOffer), roomScoped: true},
	protocol.EventAnswer:       {fn: relay(protocol.EventAnswer), roomScoped: true},
	protocol.EventICECandidate: {fn: relay(protocol.EventICECandidate), roomScoped: true},
}

func (h *Hub) handle(connID string, env protocol.Envelope) {
	c, ok := h.registry.Lookup(connID)
	if !ok {
		return
	}
	hd, ok := handlers[env.Event]
	if !ok {
		h.log.Debug("Ignoring unknown event", "event", env.Event, "conn", connID)
		return
	}
	if hd.roomScoped && c.State != registry.Joined {
		h.log.Debug("Ignoring room event outside a joined session", "event", env.Event, "conn", connID, "state", c.State.String())
		return
	}
	hd.fn(h, c, env.Data)
}

// sessionRoom resolves the room a room-scoped event applies to. Payloads may
// name a room; naming a room other than the session's makes the event malformed.
func sessionRoom(c *registry.Connection, requested string) (string, bool) {
	if requested != "" && requested != c.Room {
		return "", false
	}
	return c.Room, true
}
