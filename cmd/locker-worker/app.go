package main

import (
	"context"
	"time"

	"github.com/BearBump/LockerTrack/config"
	"github.com/BearBump/LockerTrack/internal/broker/kafka"
	"github.com/BearBump/LockerTrack/internal/cache"
	"github.com/BearBump/LockerTrack/internal/cache/rediscache"
	"github.com/BearBump/LockerTrack/internal/services/packages"
	"github.com/BearBump/LockerTrack/internal/services/projector"
	"github.com/BearBump/LockerTrack/internal/storage"
	"github.com/BearBump/LockerTrack/internal/storage/pglocker"
	"go.uber.org/zap"
)

type workerFactories struct {
	newStorage func(cfg *config.Config) (st storage.Store, closeFn func(), err error)
	newCache   func(cfg *config.Config) (c cache.BytesCache, closeFn func())
	newSource  func(cfg *config.Config, topic, group string) (src projector.Source, closeFn func())
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (storage.Store, func(), error) {
			st, err := pglocker.New(cfg.Database.DSN())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newCache: func(cfg *config.Config) (cache.BytesCache, func()) {
			rc := rediscache.New(cfg.Redis.Addr())
			return rc, func() { _ = rc.Close() }
		},
		newSource: func(cfg *config.Config, topic, group string) (projector.Source, func()) {
			c := kafka.NewConsumer(cfg.Kafka.Brokers(), topic, group)
			return c, func() { _ = c.Close() }
		},
	}
}

type workerSettings struct {
	topic   string
	group   string
	viewTTL time.Duration
	addr    string
}

func workerSettingsFromConfig(cfg *config.Config) workerSettings {
	s := workerSettings{
		topic:   cfg.Kafka.PackageEventsTopicName,
		group:   cfg.LockerTrack.KafkaConsumerGroup,
		viewTTL: time.Duration(cfg.LockerTrack.TrackingViewTTLSeconds) * time.Second,
		addr:    cfg.LockerTrack.WorkerHTTPAddr,
	}
	if s.topic == "" {
		s.topic = "package.changed"
	}
	if s.group == "" {
		s.group = "locker-worker"
	}
	if s.viewTTL <= 0 {
		s.viewTTL = 10 * time.Minute
	}
	if s.addr == "" {
		s.addr = ":8082"
	}
	return s
}

// RunLockerWorker projects package events into the tracking view cache and
// serves the ops endpoints until ctx is done.
func RunLockerWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts workerHTTPOpts, log *zap.Logger) error {
	set := workerSettingsFromConfig(cfg)

	st, closeDB, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeDB != nil {
		defer closeDB()
	}
	c, closeCache := f.newCache(cfg)
	if closeCache != nil {
		defer closeCache()
	}
	src, closeSrc := f.newSource(cfg, set.topic, set.group)
	if closeSrc != nil {
		defer closeSrc()
	}

	views := packages.New(st, c, set.viewTTL, nil, log.Named("views"))
	p := projector.New(views, log.Named("projector"))

	if httpOpts.httpAddr == "" {
		httpOpts.httpAddr = set.addr
	}
	httpOpts.projector = p
	httpOpts.cfg = cfg
	httpOpts.checks = map[string]pinger{}
	if pg, ok := st.(pinger); ok {
		httpOpts.checks["postgres"] = pg
	}
	if rc, ok := c.(pinger); ok {
		httpOpts.checks["redis"] = rc
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	go func() {
		err := runWorkerHTTPServer(runCtx, httpOpts)
		if err != nil {
			log.Error("ops http server stopped", zap.Error(err))
			cancel()
		}
		httpErr <- err
	}()

	log.Info("package events projector started", zap.String("topic", set.topic), zap.String("group", set.group))
	runErr := p.Run(runCtx, src)
	cancel()

	if err := <-httpErr; err != nil {
		return err
	}
	return runErr
}

type pinger interface {
	Ping(ctx context.Context) error
}
