package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/manpreetbhatti/huddle/internal/protocol"
	"github.com/manpreetbhatti/huddle/internal/registry"
)

// loadRecent never fails: a store error degrades to an empty history so the
// join can still complete. Runs off the loop.
func (h *Hub) loadRecent(ctx context.Context, roomID string) []protocol.ChatMessage {
	messages, err := h.store.RecentMessages(ctx, roomID, h.opts.HistoryLimit)
	if err != nil {
		h.log.Error("Failed to load chat history", "room", roomID, "error", err)
		return make([]protocol.ChatMessage, 0)
	}
	if messages == nil {
		return make([]protocol.ChatMessage, 0)
	}
	return messages
}

// onSendMessage persists a chat message and, once stored, broadcasts it to the
// whole room. Store failures are logged and the message is dropped.
func (h *Hub) onSendMessage(c *registry.Connection, data json.RawMessage) {
	req, err := protocol.DecodeData[protocol.SendMessageRequest](data)
	if err != nil {
		h.log.Debug("Ignoring malformed send-message", "conn", c.ID, "error", err)
		return
	}
	roomID, ok := sessionRoom(c, req.Room)
	if !ok {
		return
	}
	sender := req.Sender
	if sender == "" {
		sender = protocol.DefaultSender
	}

	connID := c.ID
	msg := protocol.ChatMessage{
		ID:        uuid.NewString(),
		Room:      roomID,
		Sender:    sender,
		Text:      req.Text,
		CreatedAt: time.Now().UTC(),
	}
	h.async(func(ctx context.Context) {
		saved, err := h.store.AppendMessage(ctx, msg)
		if err != nil {
			h.log.Error("Failed to persist chat message", "room", msg.Room, "conn", connID, "error", err)
			return
		}
		h.post(func() {
			h.toRoom(saved.Room, protocol.EventMessageNew, saved)
		})
	})
}
