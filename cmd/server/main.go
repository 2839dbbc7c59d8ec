// Package main runs the notification HTTP API together with the campaign
// sweep and the daily special-day dispatch.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unclebandit/shopnotify-backend/internal/audience"
	"github.com/unclebandit/shopnotify-backend/internal/auth"
	"github.com/unclebandit/shopnotify-backend/internal/channel"
	"github.com/unclebandit/shopnotify-backend/internal/config"
	"github.com/unclebandit/shopnotify-backend/internal/db"
	"github.com/unclebandit/shopnotify-backend/internal/handler"
	"github.com/unclebandit/shopnotify-backend/internal/model"
	"github.com/unclebandit/shopnotify-backend/internal/queue"
	"github.com/unclebandit/shopnotify-backend/internal/repository"
	"github.com/unclebandit/shopnotify-backend/internal/repository/memstore"
	"github.com/unclebandit/shopnotify-backend/internal/scheduler"
	"github.com/unclebandit/shopnotify-backend/internal/service"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	dispatcher := channel.NewDispatcher(logger)
	dispatcher.Register(model.ChannelEmail, channel.NewEmailSender(cfg.Email, logger))

	// Out-of-band channels go through RabbitMQ when configured; otherwise an
	// in-process worker drains the in-memory queue.
	var q queue.Queue
	if cfg.RabbitMQ.URL != "" {
		rq, err := queue.NewRabbitQueue(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueuePrefix, logger)
		if err != nil {
			logger.Fatal("rabbitmq", zap.Error(err))
		}
		q = rq
	} else {
		mq := queue.NewInMemoryQueue(logger)
		if err := service.NewWorker(store, dispatcher, logger).Start(mq); err != nil {
			logger.Fatal("start in-process worker", zap.Error(err))
		}
		q = mq
	}
	defer q.Close()

	resolver := audience.NewResolver(store.Customers, cfg.Audience.NewCustomerWindow, logger)
	campaigns := service.NewCampaignService(store, resolver, dispatcher, q, cfg.Scheduler.SendConcurrency, logger)
	specialDays := service.NewSpecialDayService(store, dispatcher, logger)

	var lock scheduler.Lock = scheduler.NoopLock{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		lock = scheduler.NewRedisLock(rdb)
		logger.Info("sweep lock enabled", zap.String("redis", cfg.Redis.Addr))
	}

	sweeper := scheduler.NewSweeper(store.Campaigns, campaigns, lock, cfg.Scheduler.StaleSending, logger)
	registry := scheduler.NewRegistry(logger)
	if err := registry.Start("campaign-sweep", scheduler.Every(cfg.Scheduler.SweepInterval), sweeper.Run); err != nil {
		logger.Fatal("start sweep", zap.Error(err))
	}
	err = registry.Start("special-days", scheduler.DailyAt(cfg.Scheduler.SpecialDayHour, 0, time.Local), func(ctx context.Context) error {
		report := specialDays.SendAllSpecialDayEmails(ctx)
		if len(report.Errors) > 0 {
			logger.Warn("special-day dispatch finished with errors", zap.Strings("errors", report.Errors))
		}
		return nil
	})
	if err != nil {
		logger.Fatal("start special-day dispatch", zap.Error(err))
	}
	defer registry.StopAll()

	var jwtService *auth.JWTService
	if cfg.JWT.Secret != "" {
		jwtService = auth.NewJWTService(cfg.JWT.Secret, 24*time.Hour)
	}

	router := handler.NewRouter(handler.Services{
		Templates:   service.NewTemplateService(store, logger),
		Campaigns:   campaigns,
		Analytics:   service.NewAnalyticsService(store),
		Triggers:    service.NewTriggerService(store),
		Preferences: service.NewPreferenceService(store),
		Tracker:     service.NewDeliveryTracker(store, logger),
		SpecialDays: specialDays,
	}, jwtService, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Driver),
			zap.Strings("tasks", registry.Running()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	registry.StopAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// openStore returns the configured repositories and a close func.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Store, func()) {
	if cfg.Store.Driver == "memory" {
		logger.Warn("using in-memory store; data is lost on exit")
		return memstore.New().Repositories(), func() {}
	}
	conn, err := db.Open(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if err := db.Migrate(ctx, conn); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	return repository.NewPostgresStore(conn), func() { conn.Close() }
}

func newLogger() *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := zcfg.Build()
	return logger
}
