package server

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/qrave1/MeshRoom/internal/application/config"
	"github.com/qrave1/MeshRoom/internal/infra/ports/http/handlers"
	"github.com/qrave1/MeshRoom/internal/infra/ports/http/middleware"
)

func New(
	cfg *config.Config,
	roomHandler *handlers.RoomHandler,
	iceHandler *handlers.IceHandler,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true

	e.Use(echomw.Recover())
	e.Use(middleware.PrometheusMiddleware())

	if cfg.Debug {
		e.Use(middleware.SlogLogger())
	}

	api := e.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ice", iceHandler.IceServers)

			v1.GET("/ws", wsHandler.Handle)

			v1.GET("/rooms", roomHandler.ListRoomsHandler)
			v1.GET("/rooms/:id", roomHandler.GetRoomHandler)
			v1.GET("/rooms/:id/history", roomHandler.RoomHistoryHandler)
		}
	}

	e.Static("/", cfg.StaticDir)

	return e
}
