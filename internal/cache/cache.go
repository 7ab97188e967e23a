package cache

import (
	"context"
	"time"
)

// BytesCache is a key/value cache of serialized values. A miss is reported
// as ok=false with a nil error.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
