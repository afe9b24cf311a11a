package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Client -> server events
const (
	EventJoin            = "join"
	EventWhiteboardDraw  = "whiteboard-draw"
	EventWhiteboardUndo  = "whiteboard-undo"
	EventWhiteboardRedo  = "whiteboard-redo"
	EventWhiteboardClear = "whiteboard-clear"
	EventSendMessage     = "send-message"
	EventTasksGet        = "tasks-get"
	EventTasksUpdate     = "tasks-update"
	EventOffer           = "offer"
	EventAnswer          = "answer"
	EventICECandidate    = "ice-candidate"
)

// Server -> client events. Whiteboard, task and signaling events are echoed under
// the same names the client used.
const (
	EventPresenceUpdated   = "presence-updated"
	EventPeerJoined        = "peer-joined"
	EventPeerLeft          = "peer-left"
	EventMessagesInitial   = "messages-initial"
	EventWhiteboardInitial = "whiteboard-initial"
	EventMessageNew        = "message-new"
)

// DefaultSender labels chat messages sent without a sender.
const DefaultSender = "Anonymous"

var (
	ErrMissingEvent = errors.New("missing event name")
	ErrEmptyPayload = errors.New("empty payload")
)

var validate = validator.New()

// Envelope is the frame carried on the websocket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinRequest struct {
	Room        string `json:"room" validate:"required"`
	DisplayName string `json:"displayName" validate:"required"`
}

type SendMessageRequest struct {
	Room   string `json:"room" validate:"required"`
	Sender string `json:"sender"`
	Text   string `json:"text" validate:"required"`
}

type TasksGetRequest struct {
	Room string `json:"room"`
}

type TasksUpdateRequest struct {
	Room  string          `json:"room"`
	Board json.RawMessage `json:"board"`
}

type SignalRequest struct {
	Target  string          `json:"target" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

// Member is one entry of a room's presence list.
type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Offer is delivered to the target of an "offer"; Caller is the originating connection.
type Offer struct {
	Caller  string          `json:"caller"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Relayed is delivered to the target of an "answer" or "ice-candidate".
type Relayed struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const defaultTaskBoard = `{"todo":[],"inprogress":[],"done":[]}`

// DefaultTaskBoard returns the skeleton board served for rooms that never set one.
func DefaultTaskBoard() json.RawMessage {
	return json.RawMessage(defaultTaskBoard)
}

// Encode builds a wire frame. A nil payload produces a frame without data.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses a wire frame received from a client.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	return env, nil
}

// DecodeData unmarshals an event payload and runs struct validation on it.
// T must be a struct type.
func DecodeData[T any](data json.RawMessage) (T, error) {
	var v T
	if IsEmpty(data) {
		return v, ErrEmptyPayload
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	if err := validate.Struct(v); err != nil {
		return v, err
	}
	return v, nil
}

// IsEmpty reports whether a payload is absent or JSON null.
func IsEmpty(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}
