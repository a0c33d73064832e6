package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pion/turn/v4"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/MeshRoom/internal/application/config"
	"github.com/qrave1/MeshRoom/internal/application/constant"
)

const turnCredentialTTL = time.Hour

type IceHandler struct {
	cfg *config.Config
}

func NewIceHandler(cfg *config.Config) *IceHandler {
	return &IceHandler{cfg: cfg}
}

// IceServers отдаёт STUN, coturn и встроенный TURN, если они настроены
func (h *IceHandler) IceServers(c echo.Context) error {
	servers := []webrtc.ICEServer{
		{URLs: []string{h.cfg.StunURL}},
	}

	if coturn := h.cfg.CoturnServer; coturn.Enabled() {
		server := webrtc.ICEServer{
			URLs:       coturn.TurnURLs(),
			Username:   coturn.Username,
			Credential: coturn.Password,
		}

		// use-auth-secret: креды живут turnCredentialTTL
		if coturn.Secret != "" {
			username, password, err := turn.GenerateLongTermCredentials(coturn.Secret, turnCredentialTTL)
			if err != nil {
				slog.Error("generate coturn credentials", slog.Any(constant.Error, err))
				return echo.NewHTTPError(http.StatusInternalServerError)
			}

			server.Username, server.Credential = username, password
		}

		servers = append(servers, server)
	}

	if h.cfg.Turn.Enabled() {
		username, password, err := turn.GenerateLongTermCredentials(h.cfg.Turn.Secret, turnCredentialTTL)
		if err != nil {
			slog.Error("generate turn credentials", slog.Any(constant.Error, err))
			return echo.NewHTTPError(http.StatusInternalServerError)
		}

		servers = append(servers, webrtc.ICEServer{
			URLs:       h.cfg.Turn.URLs(),
			Username:   username,
			Credential: password,
		})
	}

	return c.JSON(http.StatusOK, servers)
}
