package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"resumedesk/internal/activity"
	"resumedesk/internal/admin"
	"resumedesk/internal/api"
	"resumedesk/internal/auth"
	"resumedesk/internal/bot"
	"resumedesk/internal/config"
	"resumedesk/internal/database"
	"resumedesk/internal/fields"
	"resumedesk/internal/intake"
	"resumedesk/internal/notify"
	"resumedesk/internal/storage"
	"resumedesk/internal/store"
	"resumedesk/internal/transport"
	"resumedesk/internal/upload"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	operators, err := cfg.Admin.Operators()
	if err != nil {
		log.Fatalf("parse operator ids: %v", err)
	}

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	logger.Info("database ready", slog.String("host", cfg.Database.Host), slog.String("db", cfg.Database.Name))

	objects, err := storage.Open(cfg.Storage, cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	logger.Info("storage ready", slog.String("backend", cfg.Storage.Backend))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	tokens, err := auth.NewTokenService(cfg.Gateway.TokenSecret, cfg.Gateway.TokenTTL)
	if err != nil {
		log.Fatalf("init gateway tokens: %v", err)
	}

	registry := fields.Default()
	records := store.New(db, registry)
	recorder := activity.NewRecorder(records, logger)
	messenger := transport.NewRedisMessenger(redisClient, objects, cfg.Storage.LinkTTL, logger)

	var notifier intake.Notifier = notify.NewFanout(messenger, records, operators, logger)
	if cfg.Notify.Queued {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
		defer asynqClient.Close()
		notifier = notify.NewQueue(asynqClient, records, logger)
	}

	var scanner upload.Scanner
	if cfg.Intake.ClamdAddress != "" {
		scanner = upload.NewClamdScanner(cfg.Intake.ClamdAddress)
	}

	engine := intake.NewEngine(intake.Config{
		Registry:  registry,
		Sessions:  intake.NewRedisSessions(redisClient),
		Records:   records,
		Uploads:   upload.NewHandler(objects, cfg.Intake.MaxUploadBytes, scanner, logger),
		Messenger: messenger,
		Notifier:  notifier,
		Activity:  recorder,
		Logger:    logger,
	})

	adminService := admin.NewService(admin.Options{
		Registry:  registry,
		Records:   records,
		Objects:   objects,
		Activity:  recorder,
		Operators: operators,
		LogLimit:  cfg.Admin.LogLimit,
		Logger:    logger,
	})
	console := admin.NewConsole(adminService, messenger, cfg.Admin.PageSize, logger)
	dispatcher := bot.NewDispatcher(engine, console, records, adminService.IsOperator, logger)

	router := api.NewRouter(logger, cfg.Intake.MaxUploadBytes)
	api.RegisterRoutes(router, api.Handlers{
		Events:         api.NewEventHandler(dispatcher),
		Admin:          api.NewAdminHandler(adminService, cfg.Admin.PageSize),
		Ws:             api.NewWsHandler(redisClient, tokens, logger),
		InternalSecret: cfg.API.InternalSecret,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api listening", slog.String("addr", server.Addr), slog.Int("operators", len(operators)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", slog.Any("error", err))
	}
	recorder.Info(context.Background(), "api stopped")
}
