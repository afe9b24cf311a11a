// Package api serves the read-only HTTP endpoints next to the websocket:
// health, live stats, active rooms and stored chat history.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/manpreetbhatti/huddle/internal/db"
	"github.com/manpreetbhatti/huddle/internal/protocol"
	"github.com/samber/lo"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 500
	requestTimeout      = 5 * time.Second
)

// Hub answers live snapshot queries.
type Hub interface {
	RoomCount() int
	ClientCount() int
	ActiveRooms() map[string]int
	Members(room string) ([]protocol.Member, bool)
}

type Store interface {
	RecentMessages(ctx context.Context, room string, limit int) ([]protocol.ChatMessage, error)
	Stats(ctx context.Context) (db.Stats, error)
}

type API struct {
	hub   Hub
	store Store
	log   *slog.Logger
}

func New(hub Hub, store Store, log *slog.Logger) *API {
	return &API{
		hub:   hub,
		store: store,
		log:   log,
	}
}

func (a *API) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.log.Error("Error encoding JSON response", "error", err)
	}
}

func (a *API) errorResponse(w http.ResponseWriter, status int, message string) {
	a.jsonResponse(w, status, map[string]string{"error": message})
}

// Routes mounts every endpoint on mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", a.HealthHandler)
	mux.HandleFunc("/api/stats", a.StatsHandler)
	mux.HandleFunc("/api/rooms", a.RoomsRouter)
	mux.HandleFunc("/api/rooms/", a.RoomsRouter)
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	a.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type StatsResponse struct {
	ActiveRooms    int    `json:"active_rooms"`
	ActiveClients  int    `json:"active_clients"`
	StoredRooms    *int   `json:"stored_rooms,omitempty"`
	StoredMessages *int   `json:"stored_messages,omitempty"`
	Timestamp      string `json:"timestamp"`
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats := StatsResponse{
		ActiveRooms:   a.hub.RoomCount(),
		ActiveClients: a.hub.ClientCount(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	stored, err := a.store.Stats(ctx)
	if err != nil {
		a.log.Warn("Failed to read store stats", "error", err)
	} else {
		stats.StoredRooms = lo.ToPtr(stored.Rooms)
		stats.StoredMessages = lo.ToPtr(stored.Messages)
	}

	a.jsonResponse(w, http.StatusOK, stats)
}

type RoomResponse struct {
	ID      string            `json:"id"`
	Members int               `json:"members"`
	People  []protocol.Member `json:"people,omitempty"`
}

// ListRoomsHandler lists the rooms that currently have members.
func (a *API) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	active := a.hub.ActiveRooms()
	rooms := lo.MapToSlice(active, func(id string, members int) RoomResponse {
		return RoomResponse{ID: id, Members: members}
	})
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })

	a.jsonResponse(w, http.StatusOK, map[string]any{
		"rooms": rooms,
		"total": len(rooms),
	})
}

func (a *API) GetRoomHandler(w http.ResponseWriter, r *http.Request, roomID string) {
	members, ok := a.hub.Members(roomID)
	if !ok {
		a.errorResponse(w, http.StatusNotFound, "Room not found")
		return
	}
	a.jsonResponse(w, http.StatusOK, RoomResponse{
		ID:      roomID,
		Members: len(members),
		People:  members,
	})
}

// MessagesHandler returns the newest stored messages of a room, oldest first.
func (a *API) MessagesHandler(w http.ResponseWriter, r *http.Request, roomID string) {
	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxMessageLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	messages, err := a.store.RecentMessages(ctx, roomID, limit)
	if err != nil {
		a.log.Error("Failed to load messages", "room", roomID, "error", err)
		a.errorResponse(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	if messages == nil {
		messages = make([]protocol.ChatMessage, 0)
	}

	a.jsonResponse(w, http.StatusOK, map[string]any{
		"room":     roomID,
		"messages": messages,
		"limit":    limit,
	})
}

// RoomsRouter serves /api/rooms, /api/rooms/{id} and /api/rooms/{id}/messages.
func (a *API) RoomsRouter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/rooms"), "/")
	if path == "" {
		a.ListRoomsHandler(w, r)
		return
	}

	roomID, rest, _ := strings.Cut(path, "/")
	switch rest {
	case "":
		a.GetRoomHandler(w, r, roomID)
	case "messages":
		a.MessagesHandler(w, r, roomID)
	default:
		a.errorResponse(w, http.StatusNotFound, "Not found")
	}
}
