package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/manpreetbhatti/huddle/internal/protocol"
	_ "modernc.org/sqlite"
)

// Database is the sqlite-backed Store.
type Database struct {
	db  *sql.DB
	log *slog.Logger
}

var _ Store = (*Database)(nil)

func New(dbPath string, log *slog.Logger) (*Database, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	log.Info("Database initialized", "path", dbPath)
	return &Database{db: db, log: log}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		room_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_room_created ON chat_messages(room_id, created_at);
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Room directory

func touchRoom(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (id) VALUES (?)
		ON CONFLICT(id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
	`, id)
	return err
}

func (d *Database) ListRooms(ctx context.Context, limit, offset int) ([]Room, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, created_at, updated_at FROM rooms ORDER BY updated_at DESC, id ASC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]Room, 0)
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// Chat messages

// AppendMessage stores a message and records its room in the directory.
func (d *Database) AppendMessage(ctx context.Context, msg protocol.ChatMessage) (protocol.ChatMessage, error) {
	if msg.Room == "" {
		return protocol.ChatMessage{}, ErrEmptyRoom
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return protocol.ChatMessage{}, err
	}
	defer tx.Rollback()

	if err := touchRoom(ctx, tx, msg.Room); err != nil {
		return protocol.ChatMessage{}, fmt.Errorf("touch room: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO chat_messages (id, room_id, sender, text, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.ID, msg.Room, msg.Sender, msg.Text, msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return protocol.ChatMessage{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return protocol.ChatMessage{}, err
	}
	return msg, nil
}

func (d *Database) RecentMessages(ctx context.Context, room string, limit int) ([]protocol.ChatMessage, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, room_id, sender, text, created_at FROM (
			SELECT seq, id, room_id, sender, text, created_at
			FROM chat_messages
			WHERE room_id = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT ?
		) ORDER BY created_at ASC, seq ASC
	`, room, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]protocol.ChatMessage, 0)
	for rows.Next() {
		var msg protocol.ChatMessage
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.Room, &msg.Sender, &msg.Text, &createdAt); err != nil {
			return nil, err
		}
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (d *Database) PruneMessages(ctx context.Context, room string, keep int) (int, error) {
	result, err := d.db.ExecContext(ctx, `
		DELETE FROM chat_messages
		WHERE room_id = ? AND seq NOT IN (
			SELECT seq FROM chat_messages
			WHERE room_id = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT ?
		)
	`, room, room, keep)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	return int(deleted), err
}

// Stats

func (d *Database) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rooms").Scan(&stats.Rooms); err != nil {
		return Stats{}, err
	}
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chat_messages").Scan(&stats.Messages); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
