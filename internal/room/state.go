package room

import (
	"encoding/json"

	"github.com/manpreetbhatti/huddle/internal/protocol"
)

// Ephemeral whiteboard and task-board state of one room
type roomState struct {
	strokes []json.RawMessage
	board   json.RawMessage
}

// StateStore keeps per-room whiteboard logs and task-board snapshots.
// It is owned by the hub's event loop and is not safe for concurrent use.
// Every write is last-write-wins; empty room ids are ignored.
type StateStore struct {
	rooms map[string]*roomState
}

func NewStateStore() *StateStore {
	return &StateStore{rooms: make(map[string]*roomState)}
}

func (s *StateStore) get(room string) *roomState {
	st, ok := s.rooms[room]
	if !ok {
		st = &roomState{strokes: make([]json.RawMessage, 0)}
		s.rooms[room] = st
	}
	return st
}

// AppendStroke appends a stroke, creating the log if the room is unseen.
func (s *StateStore) AppendStroke(room string, stroke json.RawMessage) {
	if room == "" {
		return
	}
	st := s.get(room)
	st.strokes = append(st.strokes, stroke)
}

// ReplaceStrokes replaces the whole stroke log. Undo and redo both land here.
func (s *StateStore) ReplaceStrokes(room string, strokes []json.RawMessage) {
	if room == "" {
		return
	}
	replaced := make([]json.RawMessage, len(strokes))
	copy(replaced, strokes)
	s.get(room).strokes = replaced
}

func (s *StateStore) ClearStrokes(room string) {
	s.ReplaceStrokes(room, nil)
}

// Strokes returns a copy of the stroke log, empty for an unseen room.
func (s *StateStore) Strokes(room string) []json.RawMessage {
	st, ok := s.rooms[room]
	if !ok {
		return make([]json.RawMessage, 0)
	}
	strokes := make([]json.RawMessage, len(st.strokes))
	copy(strokes, st.strokes)
	return strokes
}

func (s *StateStore) SetTaskBoard(room string, board json.RawMessage) {
	if room == "" {
		return
	}
	s.get(room).board = board
}

// TaskBoard returns the room's board or the default skeleton.
func (s *StateStore) TaskBoard(room string) json.RawMessage {
	st, ok := s.rooms[room]
	if !ok || st.board == nil {
		return protocol.DefaultTaskBoard()
	}
	return st.board
}

// Evict drops both the stroke log and the task board of a room.
func (s *StateStore) Evict(room string) {
	delete(s.rooms, room)
}

func (s *StateStore) Has(room string) bool {
	_, ok := s.rooms[room]
	return ok
}

func (s *StateStore) Len() int {
	return len(s.rooms)
}
