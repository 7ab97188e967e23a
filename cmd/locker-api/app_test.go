package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/LockerTrack/config"
	"github.com/BearBump/LockerTrack/internal/auth"
	"github.com/BearBump/LockerTrack/internal/storage/memlocker"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunLockerAPI_ServesSwaggerAndRoutes(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	opts := lockerAPIOpts{httpAddr: "127.0.0.1:0", swaggerPath: sw}
	api := buildAPI(memlocker.New(), nil, nil, auth.NewVerifier("s"), nil, opts, zap.NewNop())

	addrCh := make(chan string, 1)
	opts.onListen = func(addr string) { addrCh <- addr }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- runLockerAPI(ctx, opts, api, zap.NewNop()) }()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-errCh:
		t.Fatalf("server exited early: %v", err)
	}

	resp, err := http.Get("http://" + addr + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"swagger"`)

	resp, err = http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/packages")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting server to stop")
	}
}

func TestRunLockerAPI_RequiresSwagger(t *testing.T) {
	err := runLockerAPI(context.Background(), lockerAPIOpts{httpAddr: "127.0.0.1:0"}, nil, zap.NewNop())
	require.Error(t, err)

	err = runLockerAPI(context.Background(), lockerAPIOpts{httpAddr: "127.0.0.1:0", swaggerPath: "/nope/swagger.json"}, nil, zap.NewNop())
	require.ErrorContains(t, err, "swagger file not found")
}

func TestAPIOptsFromConfig_Defaults(t *testing.T) {
	opts := apiOptsFromConfig(&config.Config{})
	require.Equal(t, ":8080", opts.httpAddr)
	require.Equal(t, 10*time.Minute, opts.viewTTL)
	require.Equal(t, int64(60), opts.lookupLimit)

	opts = apiOptsFromConfig(&config.Config{LockerTrack: config.LockerTrackConfig{
		HTTPAddr:                       ":9000",
		TrackingViewTTLSeconds:         30,
		PublicLookupRateLimitPerMinute: 5,
		MaxBatchSize:                   50,
	}})
	require.Equal(t, ":9000", opts.httpAddr)
	require.Equal(t, 30*time.Second, opts.viewTTL)
	require.Equal(t, int64(5), opts.lookupLimit)
	require.Equal(t, 50, opts.maxBatch)
}
