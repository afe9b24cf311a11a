package hub

import (
	"encoding/json"

	"github.com/manpreetbhatti/huddle/internal/protocol"
	"github.com/manpreetbhatti/huddle/internal/registry"
)

// relay forwards a peer-connection negotiation message to its target, tagged
// with the originating connection. The payload is never inspected. Messages for
// targets that are gone are dropped.
func relay(kind string) handlerFunc {
	return func(h *Hub, c *registry.Connection, data json.RawMessage) {
		req, err := protocol.DecodeData[protocol.SignalRequest](data)
		if err != nil {
			h.log.Debug("Ignoring malformed signal", "event", kind, "conn", c.ID, "error", err)
			return
		}

		var enriched any
		if kind == protocol.EventOffer {
			enriched = protocol.Offer{Caller: c.ID, Payload: req.Payload}
		} else {
			enriched = protocol.Relayed{From: c.ID, Payload: req.Payload}
		}

		if !h.toConnection(req.Target, kind, enriched) {
			h.log.Debug("Dropped signal for unknown target", "event", kind, "from", c.ID, "target", req.Target)
		}
	}
}
