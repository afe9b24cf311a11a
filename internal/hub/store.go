//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_message_store.go -package=mocks
package hub

import (
	"context"

	"github.com/manpreetbhatti/huddle/internal/protocol"
)

// MessageStore is the durable chat history the hub appends to and reads from.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg protocol.ChatMessage) (protocol.ChatMessage, error)
	RecentMessages(ctx context.Context, room string, limit int) ([]protocol.ChatMessage, error)
}
