package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/LockerTrack/config"
	lockerapi "github.com/BearBump/LockerTrack/internal/api/locker_api"
	"github.com/BearBump/LockerTrack/internal/auth"
	"github.com/BearBump/LockerTrack/internal/broker/kafka"
	"github.com/BearBump/LockerTrack/internal/cache/rediscache"
	"github.com/BearBump/LockerTrack/internal/logger"
	"github.com/BearBump/LockerTrack/internal/storage/pglocker"
	"go.uber.org/zap"
)

type lockerAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   lockerAPIOpts
	api    *lockerapi.API
	log    *zap.Logger

	closers []func()
}

func mustBootstrapLockerAPI() *lockerAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "locker-api")
	if err != nil {
		panic(err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret (or JWT_SECRET) is required")
	}

	opts := apiOptsFromConfig(cfg)
	opts.swaggerPath = os.Getenv("swaggerPath")

	topic := cfg.Kafka.PackageEventsTopicName
	if topic == "" {
		topic = "package.changed"
	}

	st := mustOpenPostgresWithRetry(cfg.Database.DSN(), 60*time.Second, log)
	rc := rediscache.New(cfg.Redis.Addr())
	rl := rediscache.NewRateLimiter(cfg.Redis.Addr(), "lockertrack")
	producer := kafka.NewProducer(cfg.Kafka.Brokers())
	events := kafka.NewEventPublisher(producer, topic, log.Named("events"))

	api := buildAPI(st, rc, events, auth.NewVerifier(cfg.Auth.JWTSecret), rl, opts, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return &lockerAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
		api:    api,
		log:    log,
		closers: []func(){
			func() { _ = producer.Close() },
			func() { _ = rl.Close() },
			func() { _ = rc.Close() },
			st.Close,
		},
	}
}

func apiOptsFromConfig(cfg *config.Config) lockerAPIOpts {
	opts := lockerAPIOpts{
		httpAddr:       cfg.LockerTrack.HTTPAddr,
		viewTTL:        time.Duration(cfg.LockerTrack.TrackingViewTTLSeconds) * time.Second,
		maxBatch:       cfg.LockerTrack.MaxBatchSize,
		lookupLimit:    int64(cfg.LockerTrack.PublicLookupRateLimitPerMinute),
		maxImportBytes: cfg.LockerTrack.MaxImportBytes,
	}
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}
	if opts.viewTTL <= 0 {
		opts.viewTTL = 10 * time.Minute
	}
	if opts.lookupLimit <= 0 {
		opts.lookupLimit = 60
	}
	return opts
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration, log *zap.Logger) *pglocker.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pglocker.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		log.Warn("postgres not ready, retrying", zap.Error(err))
		time.Sleep(1 * time.Second)
	}
	log.Fatal("postgres is not ready", zap.Duration("waited", wait), zap.Error(lastErr))
	return nil
}

func (a *lockerAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		c()
	}
	_ = a.log.Sync()
}

func (a *lockerAPIApp) Run() error {
	return runLockerAPI(a.ctx, a.opts, a.api, a.log)
}
