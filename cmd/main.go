package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/pong-tournaments/config"
	"github.com/Dosada05/pong-tournaments/db"
	"github.com/Dosada05/pong-tournaments/handlers"
	"github.com/Dosada05/pong-tournaments/realtime"
	"github.com/Dosada05/pong-tournaments/repositories"
	"github.com/Dosada05/pong-tournaments/rooms"
	api "github.com/Dosada05/pong-tournaments/routes"
	"github.com/Dosada05/pong-tournaments/services"
	"github.com/Dosada05/pong-tournaments/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.Bool("ledger_db", cfg.DatabaseURL != ""),
		slog.Bool("archive_r2", cfg.R2.Enabled()))

	if err := run(cfg, logger); err != nil {
		logger.Error("application stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Журнал результатов: Postgres, если задан DATABASE_URL, иначе только лог
	var (
		reporter     rooms.Reporter = repositories.NewLogMatchResultReporter(logger)
		matchHandler *handlers.MatchHandler
	)
	if cfg.DatabaseURL != "" {
		dbConn, err := db.Connect(cfg.DatabaseURL, db.DefaultPoolConfig(), 5*time.Second, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		}()

		resultRepo := repositories.NewPostgresMatchResultRepository(dbConn)
		schemaCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = resultRepo.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			return err
		}
		reporter = resultRepo
		matchHandler = handlers.NewMatchHandler(resultRepo)
		logger.Info("result ledger connected")
	}

	// Экспорт архивов турниров в Cloudflare R2
	var archiver services.Archiver
	if cfg.R2.Enabled() {
		uploader, err := storage.NewR2Uploader(ctx, cfg.R2)
		if err != nil {
			return fmt.Errorf("initialize Cloudflare R2 uploader: %w", err)
		}
		archiver = storage.NewSnapshotArchiver(uploader, logger)
		logger.Info("Cloudflare R2 archive initialized")
	}

	roomRegistry := rooms.NewRegistry(cfg.Rooms, reporter, logger)
	tournamentService := services.NewTournamentService(
		services.NewRegistry(),
		roomRegistry,
		archiver,
		reporter,
		cfg.Tournament,
		logger,
	)
	roomRegistry.SetResolver(tournamentService.RoomOptions)
	gameService := services.NewGameService(roomRegistry, logger)
	hub := realtime.NewHub(logger)
	logger.Info("services initialized")

	// Планировщик удаления архивных турниров
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(func() {
			if removed := tournamentService.SweepArchived(time.Now()); removed > 0 {
				logger.Info("archived tournaments removed", slog.Int("count", removed))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule archive sweep: %w", err)
	}
	scheduler.Start()
	logger.Info("archive sweep scheduled", slog.Duration("interval", cfg.SweepInterval))

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{JWTSecret: cfg.JWTSecretKey, AllowedOrigins: cfg.CORSAllowedOrigins},
		handlers.NewTournamentHandler(tournamentService),
		handlers.NewGameHandler(gameService),
		handlers.NewWebSocketHandler(roomRegistry, tournamentService, hub, logger),
		matchHandler,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", slog.Duration("timeout", shutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
			_ = server.Close()
		}
		// Hijacked websocket-соединения Shutdown не закрывает
		hub.CloseAll()
		roomRegistry.Shutdown()
		tournamentService.Shutdown()
		if err := scheduler.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
		}
		logger.Info("shutdown complete",
			slog.Int("open_connections", hub.Len()),
			slog.Int("live_rooms", roomRegistry.Len()))
		return errors.Join(errs...)
	})

	return g.Wait()
}
