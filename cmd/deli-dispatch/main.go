package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Desteles/deli-pwa-app/internal/bot"
	"github.com/Desteles/deli-pwa-app/internal/config"
	"github.com/Desteles/deli-pwa-app/internal/database"
	"github.com/Desteles/deli-pwa-app/internal/events"
	"github.com/Desteles/deli-pwa-app/internal/httpapi"
	"github.com/Desteles/deli-pwa-app/internal/logger"
	"github.com/Desteles/deli-pwa-app/internal/repository"
	"github.com/Desteles/deli-pwa-app/internal/service"
	"github.com/Desteles/deli-pwa-app/internal/store"
	"github.com/Desteles/deli-pwa-app/internal/telegram"
	"github.com/Desteles/deli-pwa-app/internal/workflow"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "deli-dispatch")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("Invalid timezone", zap.String("timezone", cfg.Dispatch.Timezone), zap.Error(err))
	}

	directory, err := cfg.BuildDirectory()
	if err != nil {
		log.Fatal("Failed to load role directory", zap.Error(err))
	}

	checks := map[string]httpapi.Checker{}

	var repo repository.DeliveriesRepository = repository.NewMemoryDeliveriesRepo()
	var db *sql.DB
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err = database.EnsureSchema(ctx, d)
			cancel()
			if err != nil {
				log.Fatal("Failed to prepare schema", zap.Error(err))
			}
			db = d
			repo = repository.NewPostgresDeliveriesRepository(d)
			checks["postgres"] = d.PingContext
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory store", zap.Error(err))
		}
	}
	if db != nil {
		defer db.Close()
	}

	var kv store.KV = store.NewMemoryKV()
	var rdb *redis.Client
	if cfg.RedisEnabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		kv = store.NewRedisKV(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	publisher := newPublisher(cfg, rdb, log)
	defer publisher.Close()

	svc := service.NewDispatchService(
		repo,
		workflow.NewTable(kv, cfg.Dispatch.SessionTTL),
		directory,
		publisher,
		service.Options{
			CompletedLimit:        cfg.Dispatch.CompletedLimit,
			DriverCompletedLimit:  cfg.Dispatch.DriverCompletedLimit,
			DriverCompletedWindow: cfg.Dispatch.DriverCompletedWindow,
		},
		log,
	)

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes(httpapi.NewHealthHandler(checks, log))
	if cfg.HTTP.Token == "" {
		log.Warn("HTTP_TOKEN is empty, delivery API refuses all requests")
	}
	router.RegisterDeliveryRoutes(httpapi.NewDeliveriesHandler(svc, loc, log), cfg.HTTP.Token)
	srv := httpapi.NewServer(cfg.HTTP.Addr, router, log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.Telegram.Token != "" {
		client := telegram.NewClient(cfg.Telegram.APIURL, cfg.Telegram.Token, cfg.Telegram.PollTimeout, log)
		b := bot.New(svc, client, loc, log)
		go func() {
			if err := b.Run(ctx, client); err != nil {
				errCh <- err
			}
		}()
	} else {
		log.Warn("TELEGRAM_TOKEN is empty, chat polling disabled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("Service failed", zap.Error(err))
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", zap.Error(err))
	}
}

func newPublisher(cfg *config.Config, rdb *redis.Client, log *zap.Logger) events.Publisher {
	switch cfg.Events.Sink {
	case "mqtt":
		client, err := events.NewMQTTClient(cfg.Events.MQTT)
		if err != nil {
			log.Warn("MQTT connect failed, lifecycle events disabled", zap.Error(err))
			return events.Noop{}
		}
		return events.NewMQTTPublisher(client, cfg.Events.MQTT.Topic)
	case "redis":
		if rdb == nil {
			log.Warn("EVENTS_SINK=redis requires REDIS_ENABLED, lifecycle events disabled")
			return events.Noop{}
		}
		return events.NewStreamPublisher(rdb, cfg.Events.Stream)
	default:
		return events.Noop{}
	}
}
