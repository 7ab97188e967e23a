package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	lockerapi "github.com/BearBump/LockerTrack/internal/api/locker_api"
	"github.com/BearBump/LockerTrack/internal/auth"
	"github.com/BearBump/LockerTrack/internal/cache"
	"github.com/BearBump/LockerTrack/internal/services/groups"
	"github.com/BearBump/LockerTrack/internal/services/importer"
	"github.com/BearBump/LockerTrack/internal/services/ledger"
	"github.com/BearBump/LockerTrack/internal/services/lockers"
	"github.com/BearBump/LockerTrack/internal/services/packages"
	"github.com/BearBump/LockerTrack/internal/services/statuses"
	"github.com/BearBump/LockerTrack/internal/storage"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

type lockerAPIOpts struct {
	httpAddr    string
	swaggerPath string

	viewTTL        time.Duration
	maxBatch       int
	lookupLimit    int64
	maxImportBytes int64

	onListen func(httpAddr string)
}

// buildAPI wires the services over one store. c and events may be nil.
func buildAPI(store storage.Store, c cache.BytesCache, events packages.EventSink, verifier *auth.Verifier, limiter lockerapi.RateLimiter, opts lockerAPIOpts, log *zap.Logger) *lockerapi.API {
	pkgs := packages.New(store, c, opts.viewTTL, events, log.Named("packages"), packages.WithMaxBatch(opts.maxBatch))
	svc := lockerapi.Services{
		Statuses: statuses.New(store),
		Groups:   groups.New(store, events, log.Named("groups")),
		Packages: pkgs,
		Ledger:   ledger.New(store, events, log.Named("ledger"), ledger.WithMaxBatch(opts.maxBatch), ledger.WithViewEvicter(pkgs)),
		Lockers:  lockers.New(store, log.Named("lockers")),
		Importer: importer.New(pkgs, log.Named("importer")),
	}
	return lockerapi.New(svc, verifier, limiter, lockerapi.Options{
		LookupLimitPerMinute: opts.lookupLimit,
		MaxImportBytes:       opts.maxImportBytes,
	}, log.Named("http"))
}

func runLockerAPI(ctx context.Context, opts lockerAPIOpts, api *lockerapi.API, log *zap.Logger) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/swagger.json")))
	r.Group(api.Routes)

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("HTTP API listening", zap.String("addr", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}
