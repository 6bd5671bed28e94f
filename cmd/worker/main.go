package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"resumedesk/internal/config"
	"resumedesk/internal/database"
	"resumedesk/internal/fields"
	"resumedesk/internal/metrics"
	"resumedesk/internal/notify"
	"resumedesk/internal/storage"
	"resumedesk/internal/store"
	"resumedesk/internal/tasks"
	"resumedesk/internal/transport"
	"resumedesk/internal/worker"
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
	log.Println("database connection ready for worker")

	objects, err := storage.Open(cfg.Storage, cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	records := store.New(db, fields.Default())
	messenger := transport.NewRedisMessenger(redisClient, objects, cfg.Storage.LinkTTL, logger)
	fanout := notify.NewFanout(messenger, records, operators, logger)

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{tasks.QueueNotify: 1},
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeNotifySubmission, worker.NewNotifyTaskHandler(fanout, logger))

	logger.Info("worker service started", slog.String("redis_addr", redisAddr), slog.Int("operators", len(operators)))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
