// Package main consumes queued SMS and push notifications from RabbitMQ and
// delivers them through the channel dispatcher.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unclebandit/shopnotify-backend/internal/channel"
	"github.com/unclebandit/shopnotify-backend/internal/config"
	"github.com/unclebandit/shopnotify-backend/internal/db"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/queue"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
	"github.com/unclebandit/shopnotify-backend/internal/service"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	// The worker shares rows with the API process, so only the SQL store makes sense.
	if cfg.Store.Driver != "postgres" {
		logger.Fatal("worker requires STORE_DRIVER=postgres")
	}
	if cfg.RabbitMQ.URL == "" {
		logger.Fatal("worker requires RABBITMQ_URL")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer conn.Close()
	store := repository.NewPostgresStore(conn)

	dispatcher := channel.NewDispatcher(logger)
	dispatcher.Register(model.ChannelEmail, channel.NewEmailSender(cfg.Email, logger))

	rq, err := queue.NewRabbitQueue(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueuePrefix, logger)
	if err != nil {
		logger.Fatal("rabbitmq", zap.Error(err))
	}
	defer rq.Close()

	if err := service.NewWorker(store, dispatcher, logger).Start(rq); err != nil {
		logger.Fatal("subscribe", zap.Error(err))
	}
	logger.Info("worker started", zap.String("topic", queue.TopicNotificationDispatch))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := zcfg.Build()
	return logger
}
