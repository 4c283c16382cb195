package main // Entry point of the board API server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/coral-club-board/internal/config"
	"github.com/iliyamo/coral-club-board/internal/database"
	"github.com/iliyamo/coral-club-board/internal/handler"
	"github.com/iliyamo/coral-club-board/internal/middleware"
	"github.com/iliyamo/coral-club-board/internal/queue"
	"github.com/iliyamo/coral-club-board/internal/repository"
	"github.com/iliyamo/coral-club-board/internal/router"
	"github.com/iliyamo/coral-club-board/internal/service"
	"github.com/iliyamo/coral-club-board/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store: Redis in every real deployment, memory for demos and tests.
	var (
		kv  repository.KV
		rdb *redis.Client
	)
	switch cfg.Store.Driver {
	case "memory":
		kv = repository.NewMemoryKV()
	default:
		rdb, err = config.NewRedisClient()
		if err != nil {
			logger.Warn("redis not reachable, store reports unavailable until it is", "err", err)
		}
		defer func() { _ = rdb.Close() }()
		kv = repository.NewKVRepo(rdb)
	}

	hub := handler.NewRevisionHub(logger)
	writer := service.NewMergeWriter(kv, logger, hub)

	// Optional MySQL archive of reservation events.
	var archive *repository.EventRepo
	if cfg.DB.Enabled() {
		db, err := database.Open(cfg.DB)
		if err != nil {
			logger.Warn("event archive disabled", "err", err)
		} else {
			defer func() { _ = db.Close() }()
			archive = repository.NewEventRepo(db)
			if err := archive.EnsureSchema(ctx); err != nil {
				logger.Warn("event archive schema", "err", err)
			}
		}
	}

	if cfg.Queue.Enabled {
		writer.AddListener(service.NewEventPublisher(cfg.Queue.URL, logger))
		consumer := &queue.Consumer{URL: cfg.Queue.URL, LogDir: cfg.Queue.LogDir, Log: logger}
		if archive != nil {
			consumer.Archive = archive
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("reservation consumer stopped", "err", err)
			}
		}()
	}

	pinHash, err := utils.HashPIN(cfg.Auth.AdminPIN, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Error("hash admin pin", "err", err)
		os.Exit(1)
	}
	if seeded, err := writer.Seed(ctx, cfg.Store.StateKey, cfg.Store.RevKey, pinHash); err != nil {
		logger.Warn("seed skipped", "err", err)
	} else if seeded {
		logger.Info("initial board state written", "state_key", cfg.Store.StateKey)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.Any("err", v.Error),
			)
			return nil
		},
	}))
	e.Use(middleware.CORS(cfg.CORS.AllowOrigins))

	var scripter redis.Scripter
	if rdb != nil {
		scripter = rdb
	}
	limits := middleware.NewLimiter(cfg.RateLimit, scripter, logger)
	board := handler.NewBoardHandler(writer, cfg.Store.StateKey, cfg.Store.RevKey, cfg.Board.HoldTTL)
	admin := handler.NewAdminHandler(board, cfg.Auth)
	if archive != nil {
		admin.Events = archive
	}

	router.RegisterRoutes(e)
	router.RegisterKV(e, handler.NewKVHandler(kv, writer, cfg.Store.StateKey), limits)
	router.RegisterPublic(e, board, hub, limits)
	router.RegisterAdmin(e, admin, cfg.Auth.JWTSecret, limits)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
	logger.Info("server stopped cleanly")
}
