package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/manpreetbhatti/huddle/internal/protocol"
)

var (
	ErrEmptyRoom    = errors.New("room id is required")
	ErrUnknownStore = errors.New("unknown store kind")
)

// Room is an entry of the room directory kept next to the chat history.
type Room struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Stats struct {
	Rooms    int `json:"room_count"`
	Messages int `json:"message_count"`
}

// Store is the durable chat history consumed by the hub, the retention service
// and the HTTP API.
type Store interface {
	AppendMessage(ctx context.Context, msg protocol.ChatMessage) (protocol.ChatMessage, error)
	// RecentMessages returns up to limit of the newest messages, oldest first.
	RecentMessages(ctx context.Context, room string, limit int) ([]protocol.ChatMessage, error)
	// PruneMessages keeps the newest keep messages of a room and returns how many were deleted.
	PruneMessages(ctx context.Context, room string, keep int) (int, error)
	ListRooms(ctx context.Context, limit, offset int) ([]Room, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Open picks a Store implementation by kind ("sqlite" or "badger").
func Open(kind, sqlitePath, badgerPath string, log *slog.Logger) (Store, error) {
	switch kind {
	case "sqlite":
		return New(sqlitePath, log)
	case "badger":
		return NewBadgerStore(badgerPath, log)
	default:
		return nil, ErrUnknownStore
	}
}
