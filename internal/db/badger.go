package db

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/manpreetbhatti/huddle/internal/protocol"
)

const (
	messagePrefix = "msg:"
	roomPrefix    = "room:"
)

// BadgerStore is the embedded key-value Store. Messages live under
// "msg:{hex room}:{unix nano, 19 digits}:{id}" so a prefix scan walks a room in
// chronological order; the room id is hex encoded so ':' inside ids cannot
// bleed into another room's prefix.
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

var _ Store = (*BadgerStore)(nil)

func NewBadgerStore(path string, log *slog.Logger) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	log.Info("Badger store opened", "path", path)
	return &BadgerStore{db: db, log: log}, nil
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func roomMessagesPrefix(room string) []byte {
	return []byte(messagePrefix + hex.EncodeToString([]byte(room)) + ":")
}

func messageKey(msg protocol.ChatMessage) []byte {
	return fmt.Appendf(roomMessagesPrefix(msg.Room), "%019d:%s", msg.CreatedAt.UnixNano(), msg.ID)
}

func (b *BadgerStore) AppendMessage(_ context.Context, msg protocol.ChatMessage) (protocol.ChatMessage, error) {
	if msg.Room == "" {
		return protocol.ChatMessage{}, ErrEmptyRoom
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return protocol.ChatMessage{}, err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		if err := b.touchRoom(txn, msg.Room, msg.CreatedAt); err != nil {
			return err
		}
		return txn.Set(messageKey(msg), value)
	})
	if err != nil {
		return protocol.ChatMessage{}, err
	}
	return msg, nil
}

func (b *BadgerStore) touchRoom(txn *badger.Txn, id string, at time.Time) error {
	key := []byte(roomPrefix + id)
	room := Room{ID: id, CreatedAt: at, UpdatedAt: at}

	item, err := txn.Get(key)
	switch {
	case err == nil:
		var existing Room
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &existing)
		}); err != nil {
			return err
		}
		room.CreatedAt = existing.CreatedAt
	case !errors.Is(err, badger.ErrKeyNotFound):
		return err
	}

	value, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return txn.Set(key, value)
}

// RecentMessages walks the room prefix backwards from its newest key, then
// flips the result into ascending order.
func (b *BadgerStore) RecentMessages(_ context.Context, room string, limit int) ([]protocol.ChatMessage, error) {
	messages := make([]protocol.ChatMessage, 0)
	if limit <= 0 {
		return messages, nil
	}

	err := b.db.View(func(txn *badger.Txn) error {
		prefix := roomMessagesPrefix(room)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(append(slices.Clone(prefix), 0xff)); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				break
			}
			var msg protocol.ChatMessage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

func (b *BadgerStore) PruneMessages(_ context.Context, room string, keep int) (int, error) {
	var stale [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := roomMessagesPrefix(room)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		seen := 0
		for it.Seek(append(slices.Clone(prefix), 0xff)); it.ValidForPrefix(prefix); it.Next() {
			seen++
			if seen > keep {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return 0, err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// ListRooms returns the room directory ordered by last activity.
func (b *BadgerStore) ListRooms(_ context.Context, limit, offset int) ([]Room, error) {
	rooms := make([]Room, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var room Room
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &room)
			}); err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(rooms, func(a, b Room) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	offset = max(offset, 0)
	if limit <= 0 || offset >= len(rooms) {
		return make([]Room, 0), nil
	}
	end := min(offset+limit, len(rooms))
	return rooms[offset:end], nil
}

func (b *BadgerStore) Stats(_ context.Context) (Stats, error) {
	var stats Stats
	err := b.db.View(func(txn *badger.Txn) error {
		stats.Rooms = countKeys(txn, []byte(roomPrefix))
		stats.Messages = countKeys(txn, []byte(messagePrefix))
		return nil
	})
	return stats, err
}

func countKeys(txn *badger.Txn, prefix []byte) int {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	count := 0
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		count++
	}
	return count
}
