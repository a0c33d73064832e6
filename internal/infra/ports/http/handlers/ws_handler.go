package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/MeshRoom/internal/application/config"
	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/application/metric"
	"github.com/qrave1/MeshRoom/internal/domain/events"
	"github.com/qrave1/MeshRoom/internal/infra/adapters/memory"
	"github.com/qrave1/MeshRoom/internal/infra/appctx"
	"github.com/qrave1/MeshRoom/internal/usecase"
)

type WebSocketHandler struct {
	upgrader *websocket.Upgrader
	wsCfg    config.WebSocketConfig

	wsRepo memory.WebsocketConnectionRepository

	roomUsecase      usecase.RoomUsecase
	signalingUsecase usecase.SignalingUsecase
}

func NewWebSocketHandler(
	cfg *config.Config,
	wsRepo memory.WebsocketConnectionRepository,
	roomUsecase usecase.RoomUsecase,
	signalingUsecase usecase.SignalingUsecase,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				// консольный клиент не присылает Origin
				origin := r.Header.Get("Origin")

				return origin == "" || origin == cfg.Domain
			},
		},
		wsCfg:            cfg.WebSocket,
		wsRepo:           wsRepo,
		roomUsecase:      roomUsecase,
		signalingUsecase: signalingUsecase,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return err
	}

	connID := uuid.New()
	conn := newWSConn(ws, h.wsCfg.SendBuffer)

	// контекст запроса отменяется при остановке сервера, сами операции должны доработать
	ctx := appctx.WithConnectionID(context.WithoutCancel(c.Request().Context()), connID)

	h.wsRepo.Add(connID, conn)
	metric.IncrementWSActiveConnections()

	defer func() {
		h.wsRepo.Remove(connID)
		h.roomUsecase.Disconnect(ctx, connID)
		conn.Close()
		metric.DecrementWSActiveConnections()

		slog.Info("WebSocket connection closed", slog.Any(constant.ConnectionID, connID))
	}()

	go conn.writePump(h.wsCfg.PingPeriod, h.wsCfg.WriteWait)

	slog.Info("WebSocket connection established", slog.Any(constant.ConnectionID, connID))

	h.send(connID, events.TypeConnected, events.ConnectedEvent{ConnectionID: connID})

	ws.SetReadLimit(h.wsCfg.MaxMessageSize)

	if err = ws.SetReadDeadline(time.Now().Add(h.wsCfg.PongWait)); err != nil {
		return nil
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.wsCfg.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("webSocket read error", slog.Any(constant.Error, err))
			}

			return nil
		}

		msg := new(events.Message)

		if err = json.Unmarshal(data, msg); err != nil {
			slog.Warn("unmarshal websocket message", slog.Any(constant.Error, err))
			h.replyError(connID, "malformed message")

			continue
		}

		if err = h.handleMessage(ctx, msg); err != nil {
			slog.Warn(
				"handle message",
				slog.String(constant.MessageType, msg.Type),
				slog.Any(constant.ConnectionID, connID),
				slog.Any(constant.Error, err),
			)
			h.replyError(connID, err.Error())
		}
	}
}

func (h *WebSocketHandler) handleMessage(
	ctx context.Context,
	msg *events.Message,
) error {
	connID, ok := appctx.ConnectionID(ctx)
	if !ok {
		return fmt.Errorf("get connection id from context")
	}

	metric.IncSignalingMessage(msg.Type)

	switch msg.Type {
	case events.TypeJoin:
		var joinEvent events.JoinEvent

		if err := msg.Decode(&joinEvent); err != nil {
			return err
		}

		if err := h.roomUsecase.Join(ctx, connID, joinEvent); err != nil {
			return fmt.Errorf("handle join: %w", err)
		}

	case events.TypeLeave:
		var leaveEvent events.LeaveEvent

		if err := msg.Decode(&leaveEvent); err != nil {
			return err
		}

		if err := h.roomUsecase.Leave(ctx, connID, leaveEvent.RoomID); err != nil {
			return fmt.Errorf("handle leave: %w", err)
		}

	case events.TypeOffer, events.TypeAnswer, events.TypeCandidate:
		var directed events.DirectedEvent

		if err := msg.Decode(&directed); err != nil {
			return err
		}

		if err := h.signalingUsecase.RelayDirected(ctx, connID, msg.Type, directed); err != nil {
			return fmt.Errorf("handle %s: %w", msg.Type, err)
		}

	case events.TypeChatMessage:
		var chat events.ChatEvent

		if err := msg.Decode(&chat); err != nil {
			return err
		}

		if err := h.signalingUsecase.BroadcastChat(ctx, connID, chat); err != nil {
			return fmt.Errorf("handle chat: %w", err)
		}

	case events.TypeReaction:
		var reaction events.ReactionEvent

		if err := msg.Decode(&reaction); err != nil {
			return err
		}

		if err := h.signalingUsecase.BroadcastReaction(ctx, connID, reaction); err != nil {
			return fmt.Errorf("handle reaction: %w", err)
		}

	default:
		return fmt.Errorf("%q: %w", msg.Type, usecase.ErrUnsupportedType)
	}

	return nil
}

func (h *WebSocketHandler) replyError(connID uuid.UUID, text string) {
	h.send(connID, events.TypeError, events.ErrorEvent{Message: text})
}

// send собирает сообщение и ставит его в очередь соединения.
// Ошибка сборки только логируется, соединение продолжает работу.
func (h *WebSocketHandler) send(connID uuid.UUID, msgType string, payload any) bool {
	msg, err := events.New(msgType, payload)
	if err != nil {
		slog.Error(
			"build websocket message",
			slog.String(constant.MessageType, msgType),
			slog.Any(constant.ConnectionID, connID),
			slog.Any(constant.Error, err),
		)

		return false
	}

	return h.wsRepo.Write(connID, msg)
}
