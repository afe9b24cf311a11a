package hub

import (
	"encoding/json"
	"testing"

	"github.com/manpreetbhatti/huddle/internal/protocol"
	"github.com/stretchr/testify/require"
)

func twoInRoom(t *testing.T) (*Hub, *fakePeer, *fakePeer) {
	t.Helper()
	h := startHub(t, &memStore{})
	a := connect(t, h, "A")
	b := connect(t, h, "B")
	join(t, h, a, "r1", "Ann")
	join(t, h, b, "r1", "Bob")
	a.reset()
	b.reset()
	return h, a, b
}

func (h *Hub) strokesOf(t *testing.T, room string) []json.RawMessage {
	t.Helper()
	var strokes []json.RawMessage
	require.True(t, h.call(func() { strokes = h.state.Strokes(room) }))
	return strokes
}

func TestWhiteboard_DrawAppendsAndExcludesSender(t *testing.T) {
	req := require.New(t)
	h, a, b := twoInRoom(t)

	send(t, h, "A", protocol.EventWhiteboardDraw, map[string]int{"n": 1})
	send(t, h, "A", protocol.EventWhiteboardDraw, map[string]int{"n": 2})
	flush(t, h)

	req.Len(b.payloads(protocol.EventWhiteboardDraw), 2)
	req.False(a.has(protocol.EventWhiteboardDraw))
	req.Len(h.strokesOf(t, "r1"), 2)
}

func TestWhiteboard_EmptyDrawIsIgnored(t *testing.T) {
	req := require.New(t)
	h, _, b := twoInRoom(t)

	send(t, h, "A", protocol.EventWhiteboardDraw, nil)
	flush(t, h)

	req.Empty(b.eventNames())
	req.Empty(h.strokesOf(t, "r1"))
}

func TestWhiteboard_UndoRedoReplaceWholesale(t *testing.T) {
	req := require.New(t)
	h, a, b := twoInRoom(t)

	for i := 1; i <= 3; i++ {
		send(t, h, "A", protocol.EventWhiteboardDraw, map[string]int{"n": i})
	}
	send(t, h, "A", protocol.EventWhiteboardUndo, []map[string]int{{"n": 1}, {"n": 2}})
	flush(t, h)
	req.Len(h.strokesOf(t, "r1"), 2)
	req.JSONEq(`[{"n":1},{"n":2}]`, string(lastPayload(t, b, protocol.EventWhiteboardUndo)))
	req.False(a.has(protocol.EventWhiteboardUndo))

	send(t, h, "B", protocol.EventWhiteboardRedo, []map[string]int{{"n": 1}, {"n": 2}, {"n": 3}})
	flush(t, h)
	req.Len(h.strokesOf(t, "r1"), 3)
	req.JSONEq(`[{"n":1},{"n":2},{"n":3}]`, string(lastPayload(t, a, protocol.EventWhiteboardRedo)))
	req.False(b.has(protocol.EventWhiteboardRedo))
}

func TestWhiteboard_MalformedUndoIsIgnored(t *testing.T) {
	req := require.New(t)
	h, _, b := twoInRoom(t)
	send(t, h, "A", protocol.EventWhiteboardDraw, map[string]int{"n": 1})
	send(t, h, "A", protocol.EventWhiteboardUndo, map[string]int{"not": 1})
	flush(t, h)

	req.Len(h.strokesOf(t, "r1"), 1)
	req.False(b.has(protocol.EventWhiteboardUndo))
}

func TestWhiteboard_UndoWithoutDataKeepsTheLog(t *testing.T) {
	req := require.New(t)
	h, _, b := twoInRoom(t)
	send(t, h, "A", protocol.EventWhiteboardDraw, map[string]int{"n": 1})
	send(t, h, "A", protocol.EventWhiteboardDraw, map[string]int{"n": 2})
	req.True(h.Dispatch("A", protocol.Envelope{Event: protocol.EventWhiteboardUndo, Data: json.RawMessage("null")}))
	req.True(h.Dispatch("A", protocol.Envelope{Event: protocol.EventWhiteboardRedo}))
	flush(t, h)

	req.Len(h.strokesOf(t, "r1"), 2)
	req.False(b.has(protocol.EventWhiteboardUndo))
	req.False(b.has(protocol.EventWhiteboardRedo))

	send(t, h, "A", protocol.EventWhiteboardUndo, []map[string]int{})
	flush(t, h)
	req.Empty(h.strokesOf(t, "r1"))
	req.JSONEq(`[]`, string(lastPayload(t, b, protocol.EventWhiteboardUndo)))
}

func TestWhiteboard_ClearIsInclusiveAndSeenByLaterJoiners(t *testing.T) {
	req := require.New(t)
	h, a, b := twoInRoom(t)

	send(t, h, "A", protocol.EventWhiteboardDraw, map[string]int{"n": 1})
	send(t, h, "A", protocol.EventWhiteboardUndo, []map[string]int{})
	send(t, h, "A", protocol.EventWhiteboardRedo, []map[string]int{{"n": 1}})
	send(t, h, "B", protocol.EventWhiteboardClear, nil)
	flush(t, h)

	req.True(a.has(protocol.EventWhiteboardClear))
	req.True(b.has(protocol.EventWhiteboardClear))
	req.Empty(h.strokesOf(t, "r1"))

	c := connect(t, h, "C")
	join(t, h, c, "r1", "Cid")
	req.JSONEq(`[]`, string(lastPayload(t, c, protocol.EventWhiteboardInitial)))
}

func TestWhiteboard_LateJoinerGetsLog(t *testing.T) {
	req := require.New(t)
	h, _, _ := twoInRoom(t)
	send(t, h, "A", protocol.EventWhiteboardDraw, map[string]int{"n": 1})
	send(t, h, "B", protocol.EventWhiteboardDraw, map[string]int{"n": 2})

	c := connect(t, h, "C")
	join(t, h, c, "r1", "Cid")
	req.JSONEq(`[{"n":1},{"n":2}]`, string(lastPayload(t, c, protocol.EventWhiteboardInitial)))
}

func TestTasks_GetRepliesToSenderOnly(t *testing.T) {
	req := require.New(t)
	h, a, b := twoInRoom(t)

	send(t, h, "A", protocol.EventTasksGet, protocol.TasksGetRequest{Room: "r1"})
	send(t, h, "A", protocol.EventTasksGet, nil)
	flush(t, h)

	req.Len(a.payloads(protocol.EventTasksUpdate), 2)
	req.JSONEq(`{"todo":[],"inprogress":[],"done":[]}`, string(lastPayload(t, a, protocol.EventTasksUpdate)))
	req.False(b.has(protocol.EventTasksUpdate))
}

func TestTasks_UpdateReplacesAndBroadcastsInclusive(t *testing.T) {
	req := require.New(t)
	h, a, b := twoInRoom(t)
	board := json.RawMessage(`{"todo":[{"id":"t1","title":"write tests"}],"inprogress":[],"done":[]}`)

	send(t, h, "A", protocol.EventTasksUpdate, protocol.TasksUpdateRequest{Room: "r1", Board: board})
	flush(t, h)

	req.JSONEq(string(board), string(lastPayload(t, a, protocol.EventTasksUpdate)))
	req.JSONEq(string(board), string(lastPayload(t, b, protocol.EventTasksUpdate)))

	c := connect(t, h, "C")
	join(t, h, c, "r1", "Cid")
	req.JSONEq(string(board), string(lastPayload(t, c, protocol.EventTasksUpdate)))
}

func TestTasks_MalformedOrForeignRoomIsIgnored(t *testing.T) {
	req := require.New(t)
	h, a, b := twoInRoom(t)

	send(t, h, "A", protocol.EventTasksUpdate, protocol.TasksUpdateRequest{Room: "r1"})
	send(t, h, "A", protocol.EventTasksUpdate, protocol.TasksUpdateRequest{Room: "other", Board: json.RawMessage(`{}`)})
	send(t, h, "A", protocol.EventTasksGet, protocol.TasksGetRequest{Room: "other"})
	flush(t, h)

	req.Empty(a.eventNames())
	req.Empty(b.eventNames())
}

func TestTasks_BoardIsEvictedWithTheRoom(t *testing.T) {
	req := require.New(t)
	h, _, _ := twoInRoom(t)
	send(t, h, "A", protocol.EventTasksUpdate, protocol.TasksUpdateRequest{Board: json.RawMessage(`{"todo":["x"]}`)})
	h.Unregister("A")
	h.Unregister("B")
	flush(t, h)
	req.False(h.roomStateExists(t, "r1"))

	c := connect(t, h, "C")
	join(t, h, c, "r1", "Cid")
	req.JSONEq(`{"todo":[],"inprogress":[],"done":[]}`, string(lastPayload(t, c, protocol.EventTasksUpdate)))
}
