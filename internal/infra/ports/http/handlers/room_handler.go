package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/domain/models"
	"github.com/qrave1/MeshRoom/internal/infra/ports/http/dto"
	"github.com/qrave1/MeshRoom/internal/usecase"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryReader - журнал входов/выходов, может отсутствовать
type HistoryReader interface {
	ListByRoom(ctx context.Context, roomID string, limit int) ([]models.MembershipEvent, error)
}

type RoomHandler struct {
	roomUsecase usecase.RoomUsecase
	history     HistoryReader
}

func NewRoomHandler(roomUsecase usecase.RoomUsecase, history HistoryReader) *RoomHandler {
	return &RoomHandler{roomUsecase: roomUsecase, history: history}
}

func (h *RoomHandler) ListRoomsHandler(c echo.Context) error {
	rooms := h.roomUsecase.Rooms(c.Request().Context())

	resp := dto.ListRoomsResponse{
		Rooms: make([]dto.RoomResponse, 0, len(rooms)),
	}

	for _, room := range rooms {
		resp.Rooms = append(resp.Rooms, dto.NewRoomResponseFromModel(room))
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *RoomHandler) GetRoomHandler(c echo.Context) error {
	room, ok := h.roomUsecase.Room(c.Request().Context(), c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "room not found"})
	}

	return c.JSON(http.StatusOK, dto.NewRoomResponseFromModel(room))
}

func (h *RoomHandler) RoomHistoryHandler(c echo.Context) error {
	if h.history == nil {
		return c.JSON(http.StatusNotImplemented, map[string]string{"error": "membership journal is disabled"})
	}

	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}

		limit = min(n, maxHistoryLimit)
	}

	roomID := c.Param("id")

	list, err := h.history.ListByRoom(c.Request().Context(), roomID, limit)
	if err != nil {
		slog.Error("list membership events", slog.String(constant.RoomID, roomID), slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get room history"})
	}

	return c.JSON(http.StatusOK, dto.NewRoomHistoryResponse(roomID, list))
}
