package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qrave1/MeshRoom/internal/application/config"
	"github.com/qrave1/MeshRoom/internal/application/constant"
	"github.com/qrave1/MeshRoom/internal/application/metric"
	"github.com/qrave1/MeshRoom/internal/infra/adapters/memory"
	"github.com/qrave1/MeshRoom/internal/infra/adapters/postgres"
	"github.com/qrave1/MeshRoom/internal/infra/adapters/postgres/repository"
	"github.com/qrave1/MeshRoom/internal/infra/adapters/redis"
	"github.com/qrave1/MeshRoom/internal/infra/ports/http/handlers"
	"github.com/qrave1/MeshRoom/internal/infra/ports/http/server"
	"github.com/qrave1/MeshRoom/internal/infra/ports/turn"
	"github.com/qrave1/MeshRoom/internal/usecase"
)

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: level},
			),
		),
	)

	slog.Info("Running app", slog.Bool("debug", cfg.Debug))

	var (
		observers []usecase.MembershipObserver
		history   handlers.HistoryReader
		checks    = make(map[string]metric.HealthCheck)
	)

	if cfg.Postgres.Enabled() {
		dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
		if err != nil {
			slog.Error("connect to postgres", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer dbConn.Close()

		membershipRepo := repository.NewMembershipRepo(dbConn)

		observers = append(observers, membershipRepo)
		history = membershipRepo
		checks["postgres"] = membershipRepo.Ping
	}

	if cfg.Redis.Enabled() {
		redisClient, err := redis.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Error("connect to redis", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer redisClient.Close()

		presenceRepo := redis.NewPresenceRepo(redisClient, cfg.Redis.PresenceTTL)

		observers = append(observers, presenceRepo)
		checks["redis"] = presenceRepo.Ping
	}

	if cfg.Turn.Enabled() {
		turnSrv, err := turn.NewServer(cfg.Turn)
		if err != nil {
			slog.Error("start turn server", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer turnSrv.Close()
	}

	membershipFanout := usecase.NewMembershipFanout(cfg.JournalBuffer, observers...)
	go membershipFanout.Run(ctx)

	wsConnRepo := memory.NewWSConnectionRepository()
	roomRepo := memory.NewRoomRepository()

	roomUsecase := usecase.NewRoomUsecase(roomRepo, wsConnRepo, membershipFanout)
	signalingUsecase := usecase.NewSignalingUsecase(roomRepo, wsConnRepo)

	roomHandler := handlers.NewRoomHandler(roomUsecase, history)
	iceHandler := handlers.NewIceHandler(cfg)
	wsHandler := handlers.NewWebSocketHandler(cfg, wsConnRepo, roomUsecase, signalingUsecase)

	echoSrv := server.New(cfg, roomHandler, iceHandler, wsHandler)
	metricSrv := metric.NewServer(checks)

	srvCh := make(chan error, 1)
	go func() {
		srvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	metricCh := make(chan error, 1)
	go func() {
		metricCh <- metricSrv.Start(":" + cfg.MetricPort)
	}()

	slog.Info("HTTP server starting", slog.String("port", cfg.Port), slog.String("metric_port", cfg.MetricPort))

	select {
	case <-ctx.Done():
		slog.Info("Shutting down server due to context cancel")
	case err = <-srvCh:
		slog.Error("HTTP server failed", slog.Any(constant.Error, err))
	case err = <-metricCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metric server failed", slog.Any(constant.Error, err))
		}
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown server", slog.Any(constant.Error, err))
	}

	if err := metricSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to shutdown metric server", slog.Any(constant.Error, err))
	}
}
