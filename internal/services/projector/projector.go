// Package projector keeps the cached public tracking views in step with
// package change events.
package projector

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/LockerTrack/internal/broker/messages"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type ViewRefresher interface {
	RefreshTrackingView(ctx context.Context, tracking string) error
	EvictTrackingView(ctx context.Context, tracking string) error
}

// Source delivers raw events; it returns when ctx is done or it breaks.
type Source interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type Projector struct {
	views ViewRefresher
	log   *zap.Logger

	attempts     int
	retryDelay   time.Duration
	restartDelay time.Duration

	startedAtUnixNano int64
	lastEventUnixNano atomic.Int64
	totalConsumed     atomic.Int64
	totalRefreshed    atomic.Int64
	totalEvicted      atomic.Int64
	totalErrors       atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(views ViewRefresher, log *zap.Logger) *Projector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Projector{
		views:             views,
		log:               log,
		attempts:          3,
		retryDelay:        200 * time.Millisecond,
		restartDelay:      2 * time.Second,
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (p *Projector) WithRetry(attempts int, retryDelay, restartDelay time.Duration) *Projector {
	if attempts > 0 {
		p.attempts = attempts
	}
	if retryDelay >= 0 {
		p.retryDelay = retryDelay
	}
	if restartDelay >= 0 {
		p.restartDelay = restartDelay
	}
	return p
}

type Stats struct {
	StartedAt      time.Time  `json:"started_at"`
	LastEventAt    *time.Time `json:"last_event_at,omitempty"`
	TotalConsumed  int64      `json:"total_consumed"`
	TotalRefreshed int64      `json:"total_refreshed"`
	TotalEvicted   int64      `json:"total_evicted"`
	TotalErrors    int64      `json:"total_errors"`
	LastError      string     `json:"last_error,omitempty"`
}

func (p *Projector) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalConsumed:  p.totalConsumed.Load(),
		TotalRefreshed: p.totalRefreshed.Load(),
		TotalEvicted:   p.totalEvicted.Load(),
		TotalErrors:    p.totalErrors.Load(),
	}
	if n := p.lastEventUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastEventAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

// Run consumes src until ctx is done, restarting it after failures.
func (p *Projector) Run(ctx context.Context, src Source) error {
	for {
		err := src.Consume(ctx, func(key, value []byte) error {
			return p.Handle(ctx, value)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.fail(errors.Wrap(err, "consume"))
		p.log.Error("package events consumer stopped, restarting", zap.Error(err), zap.Duration("after", p.restartDelay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.restartDelay):
		}
	}
}

// Handle applies one event. Malformed events and views that keep failing
// to refresh are logged and dropped; the cache TTL bounds the staleness.
func (p *Projector) Handle(ctx context.Context, value []byte) error {
	p.totalConsumed.Add(1)
	p.lastEventUnixNano.Store(time.Now().UTC().UnixNano())

	var msg messages.PackageChanged
	if err := json.Unmarshal(value, &msg); err != nil {
		p.fail(errors.Wrap(err, "decode package event"))
		p.log.Warn("skip malformed package event", zap.Error(err))
		return nil
	}
	if msg.TrackingNumber == "" {
		p.fail(errors.Errorf("package event %d has no tracking number", msg.PackageID))
		return nil
	}

	if msg.PreviousTrackingNumber != nil && *msg.PreviousTrackingNumber != msg.TrackingNumber {
		p.apply(ctx, msg, *msg.PreviousTrackingNumber, true)
	}
	p.apply(ctx, msg, msg.TrackingNumber, msg.Kind == messages.ChangeDeactivated)
	return nil
}

func (p *Projector) apply(ctx context.Context, msg messages.PackageChanged, tracking string, evict bool) {
	var err error
	for i := 0; i < p.attempts; i++ {
		if evict {
			err = p.views.EvictTrackingView(ctx, tracking)
		} else {
			err = p.views.RefreshTrackingView(ctx, tracking)
		}
		if err == nil || ctx.Err() != nil {
			break
		}
		time.Sleep(time.Duration(i+1) * p.retryDelay)
	}

	if err != nil {
		p.fail(err)
		p.log.Error("project tracking view",
			zap.Uint64("package_id", msg.PackageID),
			zap.String("tracking_number", tracking),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err),
		)
		return
	}
	if evict {
		p.totalEvicted.Add(1)
	} else {
		p.totalRefreshed.Add(1)
	}
}

func (p *Projector) fail(err error) {
	p.totalErrors.Add(1)
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}
