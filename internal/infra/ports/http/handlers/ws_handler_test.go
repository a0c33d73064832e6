package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/MeshRoom/internal/application/config"
	"github.com/qrave1/MeshRoom/internal/domain/events"
	"github.com/qrave1/MeshRoom/internal/domain/models"
	"github.com/qrave1/MeshRoom/internal/infra/adapters/memory"
	"github.com/qrave1/MeshRoom/internal/usecase"
)

func testConfig() *config.Config {
	return &config.Config{
		Debug: true,
		WebSocket: config.WebSocketConfig{
			SendBuffer:     32,
			PingPeriod:     time.Second,
			PongWait:       5 * time.Second,
			WriteWait:      time.Second,
			MaxMessageSize: 64 * 1024,
		},
	}
}

func newSignalingServer(t *testing.T) (*httptest.Server, usecase.RoomUsecase) {
	t.Helper()

	cfg := testConfig()

	wsRepo := memory.NewWSConnectionRepository()
	roomRepo := memory.NewRoomRepository()

	roomUsecase := usecase.NewRoomUsecase(roomRepo, wsRepo, nil)
	signalingUsecase := usecase.NewSignalingUsecase(roomRepo, wsRepo)

	e := echo.New()
	e.GET("/api/v1/ws", NewWebSocketHandler(cfg, wsRepo, roomUsecase, signalingUsecase).Handle)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return srv, roomUsecase
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   uuid.UUID
}

func dial(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &testClient{t: t, conn: conn}

	var welcome events.ConnectedEvent
	c.expect(events.TypeConnected, &welcome)
	require.NotEqual(t, uuid.Nil, welcome.ConnectionID)
	c.id = welcome.ConnectionID

	return c
}

func (c *testClient) send(msgType string, payload any) {
	c.t.Helper()

	msg, err := events.New(msgType, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

func (c *testClient) read() *events.Message {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg events.Message
	require.NoError(c.t, c.conn.ReadJSON(&msg))

	return &msg
}

// expect читает следующее сообщение и проверяет его тип
func (c *testClient) expect(msgType string, v any) {
	c.t.Helper()

	msg := c.read()
	require.Equal(c.t, msgType, msg.Type, "payload: %s", msg.Data)

	if v != nil {
		require.NoError(c.t, msg.Decode(v))
	}
}

func (c *testClient) expectRoomUsers(ids ...uuid.UUID) {
	c.t.Helper()

	var ev events.RoomUsersEvent
	c.expect(events.TypeRoomUsers, &ev)

	got := make([]uuid.UUID, 0, len(ev.Participants))
	for _, p := range ev.Participants {
		got = append(got, p.ConnectionID)
	}

	require.Equal(c.t, ids, got)
}

func TestWebSocketHandler_RoomFlow(t *testing.T) {
	srv, rooms := newSignalingServer(t)

	a := dial(t, srv)
	b := dial(t, srv)

	a.send(events.TypeJoin, events.JoinEvent{Identity: "A", RoomID: "r1"})
	a.expectRoomUsers(a.id)

	b.send(events.TypeJoin, events.JoinEvent{Identity: "B", RoomID: "r1"})
	a.expectRoomUsers(a.id, b.id)
	b.expectRoomUsers(a.id, b.id)

	// A вошёл раньше, он и шлёт offer
	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	a.send(events.TypeOffer, events.DirectedEvent{To: b.id, Offer: offer})

	var relayed events.DirectedEvent
	b.expect(events.TypeOffer, &relayed)
	assert.Equal(t, a.id, relayed.From)
	assert.JSONEq(t, string(offer), string(relayed.Offer))

	b.send(events.TypeAnswer, events.DirectedEvent{To: a.id, Answer: json.RawMessage(`{"type":"answer","sdp":"v=0"}`)})
	a.expect(events.TypeAnswer, &relayed)
	assert.Equal(t, b.id, relayed.From)

	a.send(events.TypeChatMessage, events.ChatEvent{RoomID: "r1", Message: "hello"})

	var chat events.ChatEvent
	b.expect(events.TypeChatMessage, &chat)
	assert.Equal(t, "hello", chat.Message)
	assert.Equal(t, "A", chat.FromIdentity)
	assert.Equal(t, a.id, chat.OriginID)

	b.send(events.TypeReaction, events.ReactionEvent{RoomID: "r1", Emoji: "👍"})

	var reaction events.ReactionEvent
	a.expect(events.TypeReaction, &reaction)
	assert.Equal(t, b.id, reaction.OriginID)

	info, ok := rooms.Room(t.Context(), "r1")
	require.True(t, ok)
	assert.Len(t, info.Participants, 2)

	// обрыв соединения равносилен выходу
	require.NoError(t, b.conn.Close())

	var left events.UserLeftEvent
	a.expect(events.TypeUserLeft, &left)
	assert.Equal(t, b.id, left.ConnectionID)
	a.expectRoomUsers(a.id)

	require.Eventually(t, func() bool {
		info, ok := rooms.Room(t.Context(), "r1")
		return ok && len(info.Participants) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_LeaveRoom(t *testing.T) {
	srv, rooms := newSignalingServer(t)

	a := dial(t, srv)
	b := dial(t, srv)

	a.send(events.TypeJoin, events.JoinEvent{Identity: "A", RoomID: "r1"})
	a.expectRoomUsers(a.id)
	b.send(events.TypeJoin, events.JoinEvent{Identity: "B", RoomID: "r1"})
	a.expectRoomUsers(a.id, b.id)
	b.expectRoomUsers(a.id, b.id)

	b.send(events.TypeLeave, events.LeaveEvent{RoomID: "r1"})

	var left events.UserLeftEvent
	a.expect(events.TypeUserLeft, &left)
	assert.Equal(t, b.id, left.ConnectionID)
	a.expectRoomUsers(a.id)

	a.send(events.TypeLeave, events.LeaveEvent{RoomID: "r1"})

	require.Eventually(t, func() bool {
		return len(rooms.Rooms(t.Context())) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_Errors(t *testing.T) {
	srv, _ := newSignalingServer(t)

	a := dial(t, srv)

	var errEv events.ErrorEvent

	require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	a.expect(events.TypeError, &errEv)
	assert.Equal(t, "malformed message", errEv.Message)

	a.send("dance", struct{}{})
	a.expect(events.TypeError, &errEv)
	assert.Contains(t, errEv.Message, usecase.ErrUnsupportedType.Error())

	a.send(events.TypeJoin, events.JoinEvent{Identity: "A", RoomID: " "})
	a.expect(events.TypeError, &errEv)
	assert.Contains(t, errEv.Message, usecase.ErrEmptyRoomID.Error())

	a.send(events.TypeOffer, events.DirectedEvent{Offer: json.RawMessage(`{}`)})
	a.expect(events.TypeError, &errEv)
	assert.Contains(t, errEv.Message, usecase.ErrMissingTarget.Error())

	a.send(events.TypeChatMessage, events.ChatEvent{RoomID: "nowhere", Message: "hi"})
	a.expect(events.TypeError, &errEv)
	assert.Contains(t, errEv.Message, usecase.ErrNotRoomMember.Error())
}

func TestWebSocketHandler_StaleTargetIsSilent(t *testing.T) {
	srv, _ := newSignalingServer(t)

	a := dial(t, srv)

	a.send(events.TypeCandidate, events.DirectedEvent{To: uuid.New(), Candidate: json.RawMessage(`{"candidate":"c"}`)})

	// следующий ответ сервера относится к join, а не к потерянному кандидату
	a.send(events.TypeJoin, events.JoinEvent{Identity: "A", RoomID: "r1"})

	var ev events.RoomUsersEvent
	a.expect(events.TypeRoomUsers, &ev)
	require.Len(t, ev.Participants, 1)
	assert.Equal(t, models.Participant{ConnectionID: a.id, Identity: "A", JoinOrder: ev.Participants[0].JoinOrder}, ev.Participants[0])
}

type queueOutbound struct {
	frames [][]byte
}

func (q *queueOutbound) TrySend(payload []byte) error {
	q.frames = append(q.frames, payload)
	return nil
}

func TestWebSocketHandler_SendSurvivesUnencodablePayload(t *testing.T) {
	wsRepo := memory.NewWSConnectionRepository()
	roomRepo := memory.NewRoomRepository()

	h := NewWebSocketHandler(
		testConfig(),
		wsRepo,
		usecase.NewRoomUsecase(roomRepo, wsRepo, nil),
		usecase.NewSignalingUsecase(roomRepo, wsRepo),
	)

	connID := uuid.New()
	out := &queueOutbound{}
	wsRepo.Add(connID, out)

	assert.NotPanics(t, func() {
		assert.False(t, h.send(connID, events.TypeError, make(chan int)))
	})
	assert.Empty(t, out.frames)

	require.True(t, h.send(connID, events.TypeError, events.ErrorEvent{Message: "still alive"}))
	require.Len(t, out.frames, 1)

	var msg events.Message
	require.NoError(t, json.Unmarshal(out.frames[0], &msg))
	assert.Equal(t, events.TypeError, msg.Type)
}
