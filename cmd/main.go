package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vidchat/backend/internal/api/handler"
	"vidchat/backend/internal/chathub"
	"vidchat/backend/internal/config"
	"vidchat/backend/internal/iceconfig"
	"vidchat/backend/internal/models"
	"vidchat/backend/internal/session"
	"vidchat/backend/internal/storage"
)

func newLogger(cfg config.Config) *slog.Logger {
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// setupDependencies connects the optional backends. An empty address or DSN
// leaves the matching backend disabled.
func setupDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (*gorm.DB, *redis.Client, error) {
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, err
		}
		logger.Info("redis connected", "addr", cfg.RedisAddr)
	}

	var db *gorm.DB
	if cfg.DatabaseDSN != "" {
		var err error
		db, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("postgres connected")
	}
	return db, rdb, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("starting signaling server", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	startup, cancel := context.WithTimeout(ctx, config.StorageTimeout)
	db, rdb, err := setupDependencies(startup, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("backend connection failed", "err", err)
		os.Exit(1)
	}
	store := storage.NewStorageService(db, rdb, logger)
	if err := store.Migrate(); err != nil {
		logger.Error("migration failed", "err", err)
		os.Exit(1)
	}

	seed, err := iceconfig.Seed(iceconfig.SeedOptions{
		File:           cfg.ICEServersFile,
		TURNURL:        cfg.ICEServerURL,
		TURNUsername:   cfg.TURNUsername,
		TURNCredential: cfg.TURNCredential,
	})
	if err != nil {
		logger.Error("invalid ice server seed", "err", err)
		os.Exit(1)
	}
	ice := iceconfig.NewManager(seed, cfg.ICETransportPolicy, store, logger)
	if err := ice.Restore(ctx); err != nil {
		logger.Warn("stored ice servers ignored", "err", err)
	}

	// 2. Ініціалізація Chat Hub та Matcher
	registry := session.NewMemoryRegistry(logger)
	matcher := chathub.NewMatcherService(registry,
		chathub.WithCapacity(models.RoomTypeOpen, cfg.CapacityOpen),
		chathub.WithCapacity(models.RoomTypeFiltered, cfg.CapacityFiltered),
		chathub.WithMessageLimit(cfg.MessageMaxLength),
		chathub.WithMatcherLogger(logger),
	)
	hubOpts := []chathub.Option{
		chathub.WithLogger(logger),
		chathub.WithSettlingDelay(cfg.SettlingDelay),
		chathub.WithOffererRevalidation(cfg.RevalidateOfferer),
	}
	if db != nil || rdb != nil {
		hubOpts = append(hubOpts, chathub.WithStorage(store))
	}
	hub := chathub.NewManagerService(registry, matcher, ice, hubOpts...)
	matcher.OnRoomDeleted = hub.RoomClosed

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()

	// 3. Налаштування Gin та роутингу
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler.NewHandler(hub, ice, logger).Routes(r, cfg)

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "err", err)
	}
	stopHub()
	<-hubDone

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
