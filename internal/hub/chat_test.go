package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/manpreetbhatti/huddle/internal/mocks"
	"github.com/manpreetbhatti/huddle/internal/protocol"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestChat_SendPersistsThenBroadcastsToWholeRoom(t *testing.T) {
	req := require.New(t)
	store := &memStore{}
	h := startHub(t, store)
	a := connect(t, h, "A")
	b := connect(t, h, "B")
	join(t, h, a, "r1", "Ann")
	join(t, h, b, "r1", "Bob")

	send(t, h, "A", protocol.EventSendMessage, protocol.SendMessageRequest{Room: "r1", Sender: "Ann", Text: "hello"})

	require.Eventually(t, func() bool {
		return a.has(protocol.EventMessageNew) && b.has(protocol.EventMessageNew)
	}, time.Second, 5*time.Millisecond)

	msg := decode[protocol.ChatMessage](t, lastPayload(t, b, protocol.EventMessageNew))
	req.Equal("r1", msg.Room)
	req.Equal("Ann", msg.Sender)
	req.Equal("hello", msg.Text)
	req.NotEmpty(msg.ID)
	req.False(msg.CreatedAt.IsZero())
	req.Equal(1, store.count())
}

func TestChat_SenderDefaultsToPlaceholder(t *testing.T) {
	req := require.New(t)
	h := startHub(t, &memStore{})
	a := connect(t, h, "A")
	join(t, h, a, "r1", "Ann")

	send(t, h, "A", protocol.EventSendMessage, protocol.SendMessageRequest{Room: "r1", Text: "hi"})
	require.Eventually(t, func() bool { return a.has(protocol.EventMessageNew) }, time.Second, 5*time.Millisecond)

	msg := decode[protocol.ChatMessage](t, lastPayload(t, a, protocol.EventMessageNew))
	req.Equal(protocol.DefaultSender, msg.Sender)
}

func TestChat_EmptyTextOrRoomIsANoop(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().RecentMessages(gomock.Any(), "r1", 200).Return(nil, nil)
	store.EXPECT().AppendMessage(gomock.Any(), gomock.Any()).Times(0)

	h := startHub(t, store)
	a := connect(t, h, "A")
	join(t, h, a, "r1", "Ann")
	a.reset()

	send(t, h, "A", protocol.EventSendMessage, protocol.SendMessageRequest{Room: "r1", Text: ""})
	send(t, h, "A", protocol.EventSendMessage, protocol.SendMessageRequest{Room: "", Text: "hi"})
	send(t, h, "A", protocol.EventSendMessage, protocol.SendMessageRequest{Room: "elsewhere", Text: "hi"})
	flush(t, h)

	req.Empty(a.eventNames())
}

func TestChat_JoinReceivesRecentHistory(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	history := []protocol.ChatMessage{
		{ID: "1", Room: "r1", Sender: "Ann", Text: "first", CreatedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)},
		{ID: "2", Room: "r1", Sender: "Bob", Text: "second", CreatedAt: time.Date(2026, 1, 1, 10, 1, 0, 0, time.UTC)},
	}
	store.EXPECT().RecentMessages(gomock.Any(), "r1", 200).Return(history, nil)

	h := startHub(t, store)
	a := connect(t, h, "A")
	join(t, h, a, "r1", "Ann")

	req.Equal(history, decode[[]protocol.ChatMessage](t, lastPayload(t, a, protocol.EventMessagesInitial)))
}

func TestChat_HistoryFailureDoesNotBlockJoin(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().RecentMessages(gomock.Any(), "r1", 200).Return(nil, errors.New("store unreachable"))

	h := startHub(t, store)
	a := connect(t, h, "A")
	join(t, h, a, "r1", "Ann")

	req.JSONEq(`[]`, string(lastPayload(t, a, protocol.EventMessagesInitial)))
	req.JSONEq(`[]`, string(lastPayload(t, a, protocol.EventWhiteboardInitial)))
	req.Equal(1, h.RoomCount())
}

func TestChat_StoreFailureOnSendIsSwallowed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().RecentMessages(gomock.Any(), "r1", 200).Return(nil, nil)

	attempted := make(chan struct{})
	store.EXPECT().AppendMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg protocol.ChatMessage) (protocol.ChatMessage, error) {
			defer close(attempted)
			return protocol.ChatMessage{}, errors.New("disk full")
		})

	h := startHub(t, store)
	a := connect(t, h, "A")
	join(t, h, a, "r1", "Ann")
	a.reset()

	send(t, h, "A", protocol.EventSendMessage, protocol.SendMessageRequest{Room: "r1", Text: "lost"})
	<-attempted
	flush(t, h)

	req.False(a.has(protocol.EventMessageNew))
	req.Equal(1, h.ClientCount())
}

func TestChat_PersistCompletesAfterSenderLeft(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().RecentMessages(gomock.Any(), "r1", 200).Return(nil, nil).Times(2)

	release := make(chan struct{})
	store.EXPECT().AppendMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg protocol.ChatMessage) (protocol.ChatMessage, error) {
			<-release
			return msg, nil
		})

	h := startHub(t, store)
	a := connect(t, h, "A")
	b := connect(t, h, "B")
	join(t, h, a, "r1", "Ann")
	join(t, h, b, "r1", "Bob")

	send(t, h, "A", protocol.EventSendMessage, protocol.SendMessageRequest{Room: "r1", Text: "bye"})
	h.Unregister("A")
	flush(t, h)
	close(release)

	require.Eventually(t, func() bool { return b.has(protocol.EventMessageNew) }, time.Second, 5*time.Millisecond)
	req.False(a.has(protocol.EventMessageNew))
}
