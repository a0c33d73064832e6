package turn

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/pion/logging"
	"github.com/pion/turn/v4"

	"github.com/qrave1/MeshRoom/internal/application/config"
)

// NewServer запускает встроенный TURN сервер на UDP и TCP.
// Креды временные: username - время истечения, пароль - HMAC от TURN_SECRET.
func NewServer(cfg config.TurnConfig) (*turn.Server, error) {
	addr := fmt.Sprintf(":%d", cfg.Port)

	tcpListener, err := net.Listen("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp listen: %w", err)
	}

	udpListener, err := net.ListenPacket("udp4", addr)
	if err != nil {
		_ = tcpListener.Close()
		return nil, fmt.Errorf("udp listen: %w", err)
	}

	relayAddressGenerator := &turn.RelayAddressGeneratorStatic{
		RelayAddress: net.ParseIP(cfg.PublicIP),
		Address:      "0.0.0.0",
	}

	loggerFactory := logging.NewDefaultLoggerFactory()

	server, err := turn.NewServer(
		turn.ServerConfig{
			Realm:         cfg.Realm,
			AuthHandler:   turn.NewLongTermAuthHandler(cfg.Secret, loggerFactory.NewLogger("turn")),
			LoggerFactory: loggerFactory,
			ListenerConfigs: []turn.ListenerConfig{
				{
					Listener:              tcpListener,
					RelayAddressGenerator: relayAddressGenerator,
				},
			},
			PacketConnConfigs: []turn.PacketConnConfig{
				{
					PacketConn:            udpListener,
					RelayAddressGenerator: relayAddressGenerator,
				},
			},
		})
	if err != nil {
		_ = tcpListener.Close()
		_ = udpListener.Close()
		return nil, fmt.Errorf("new turn server: %w", err)
	}

	slog.Info(
		"TURN server started",
		slog.String("public_ip", cfg.PublicIP),
		slog.Int("port", cfg.Port),
	)

	return server, nil
}
