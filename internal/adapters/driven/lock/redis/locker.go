// Package redis provides a distributed per-document lock so several
// plancite processes can share one index.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/logger"
)

var _ driven.DocumentLocker = (*Locker)(nil)

// Defaults for the lock timings.
const (
	DefaultTTL       = 10 * time.Minute
	DefaultRetry     = 100 * time.Millisecond
	DefaultKeyPrefix = "plancite:lock:"
)

// Only the holder's token may release or extend a lock.
var (
	releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Config configures the locker.
type Config struct {
	// Addr is the redis host:port.
	Addr string

	// TTL bounds how long a crashed holder keeps a lock. Live holders
	// extend it every TTL/3.
	TTL time.Duration

	// Retry is the polling interval while waiting.
	Retry time.Duration

	// KeyPrefix namespaces lock keys.
	KeyPrefix string
}

// Locker is a SET NX PX lock with token compare-and-delete release.
type Locker struct {
	client *goredis.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// New connects to redis and verifies it answers.
func New(ctx context.Context, cfg Config) (*Locker, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis lock: address is required")
	}
	client := goredis.NewClient(&goredis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis lock: ping %s: %w", cfg.Addr, err)
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client. Zero config fields use defaults.
func NewWithClient(client *goredis.Client, cfg Config) *Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Retry <= 0 {
		cfg.Retry = DefaultRetry
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	return &Locker{client: client, ttl: cfg.TTL, retry: cfg.Retry, prefix: cfg.KeyPrefix}
}

// Lock polls until the document's key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, documentID string) (func(), error) {
	key := l.prefix + documentID
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", documentID, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(key, token, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
				logger.Warn("Releasing lock for %s failed: %v", documentID, err)
			}
		})
	}, nil
}

// keepAlive extends the key while the holder runs.
func (l *Locker) keepAlive(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			n, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				logger.Warn("Extending lock %s failed: %v", key, err)
				continue
			}
			if n == 0 {
				logger.Warn("Lock %s expired before release", key)
				return
			}
		}
	}
}

// Close closes the redis client.
func (l *Locker) Close() error {
	return l.client.Close()
}
