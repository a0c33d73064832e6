package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qrave1/MeshRoom/internal/application/config"
	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/infra/adapters/rtc"
	"github.com/qrave1/MeshRoom/internal/infra/adapters/signaling"
	"github.com/qrave1/MeshRoom/internal/infra/ports/console"
	"github.com/qrave1/MeshRoom/internal/usecase/mesh"
)

var joinFlags struct {
	room     string
	name     string
	server   string
	audioRTP string
	videoRTP string
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a room as a mesh participant",
	Long: `Join a room and exchange media directly with every other participant.

Commands on stdin:
  /react <emoji>  send a reaction
  /video          toggle local video
  /audio          toggle local audio
  /peers          show peer sessions
  /leave          leave the room and exit
Any other line is sent as a chat message.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewClient()
		if err != nil {
			return err
		}

		if joinFlags.room != "" {
			cfg.RoomID = joinFlags.room
		}
		if joinFlags.name != "" {
			cfg.Identity = joinFlags.name
		}
		if joinFlags.server != "" {
			cfg.ServerURL = joinFlags.server
		}
		if joinFlags.audioRTP != "" {
			cfg.AudioRTPAddr = joinFlags.audioRTP
		}
		if joinFlags.videoRTP != "" {
			cfg.VideoRTPAddr = joinFlags.videoRTP
		}

		return runJoin(cmd.Context(), cfg)
	},
}

func init() {
	joinCmd.Flags().StringVarP(&joinFlags.room, "room", "r", "", "room id (MESH_ROOM)")
	joinCmd.Flags().StringVarP(&joinFlags.name, "name", "n", "", "display name (MESH_IDENTITY)")
	joinCmd.Flags().StringVar(&joinFlags.server, "server", "", "signaling websocket url (MESH_SERVER_URL)")
	joinCmd.Flags().StringVar(&joinFlags.audioRTP, "audio-rtp", "", "UDP address with opus RTP for the local audio track")
	joinCmd.Flags().StringVar(&joinFlags.videoRTP, "video-rtp", "", "UDP address with VP8 RTP for the local video track")

	rootCmd.AddCommand(joinCmd)
}

func runJoin(parent context.Context, cfg *config.ClientConfig) error {
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(
			slog.NewTextHandler(
				os.Stderr,
				&slog.HandlerOptions{Level: level},
			),
		),
	)

	if strings.TrimSpace(cfg.RoomID) == "" {
		return mesh.ErrEmptyRoomID
	}

	client := signaling.NewClient(cfg.ServerURL)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	provider := rtc.NewProvider(cfg.ICEServers(), rtc.Sources{
		AudioAddr: cfg.AudioRTPAddr,
		VideoAddr: cfg.VideoRTPAddr,
	})
	presenter := console.NewPresenter(os.Stdout)

	manager := mesh.NewManager(provider, client, presenter, mesh.WithReactionTTL(cfg.ReactionTTL))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	runDone := make(chan error, 1)
	go func() {
		runDone <- manager.Run(runCtx, client.Incoming())
	}()

	if err := manager.JoinRoom(ctx, cfg.Identity, cfg.RoomID); err != nil {
		stop()
		<-runDone
		return err
	}

	presenter.Notice(fmt.Sprintf("joined room %q, type /leave to exit", cfg.RoomID))

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	var runErr error

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case runErr = <-runDone:
			runDone = nil
			break loop

		case line, ok := <-lines:
			if !ok {
				break loop
			}

			if quit := handleInput(ctx, manager, presenter, line); quit {
				break loop
			}
		}
	}

	if err := manager.LeaveRoom(context.WithoutCancel(ctx)); err != nil {
		slog.Debug("leave room", slog.Any(constant.Error, err))
	}

	stop()
	if runDone != nil {
		runErr = <-runDone
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, mesh.ErrInboundClosed) {
		return runErr
	}

	if errors.Is(runErr, mesh.ErrInboundClosed) {
		presenter.Notice("connection to signaling server lost")
	}

	return nil
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

// handleInput выполняет одну строку ввода. true - пора выходить.
func handleInput(ctx context.Context, manager *mesh.Manager, presenter *console.Presenter, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")

	switch cmd {
	case "/leave":
		return true

	case "/react":
		if err := manager.SendReaction(ctx, strings.TrimSpace(arg)); err != nil {
			presenter.OnError(err)
		}

	case "/video":
		enabled, err := manager.ToggleVideo()
		if err != nil {
			presenter.OnError(err)
			return false
		}
		presenter.Notice(fmt.Sprintf("video enabled: %t", enabled))

	case "/audio":
		enabled, err := manager.ToggleAudio()
		if err != nil {
			presenter.OnError(err)
			return false
		}
		presenter.Notice(fmt.Sprintf("audio enabled: %t", enabled))

	case "/peers":
		sessions := manager.Sessions()
		if len(sessions) == 0 {
			presenter.Notice("no peer sessions")
			return false
		}

		for _, s := range sessions {
			presenter.Notice(fmt.Sprintf(
				"%s role=%s state=%s stream=%t pending=%d",
				s.PeerID, s.Role, s.State, s.HasStream, s.PendingCandidates,
			))
		}

	default:
		if err := manager.SendChat(ctx, line); err != nil {
			presenter.OnError(err)
		}
	}

	return false
}
