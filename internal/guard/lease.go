package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ReleaseFunc gives a held lease back.
type ReleaseFunc func(ctx context.Context) error

// Lease is an at-most-one-holder lock around a settlement pass.
type Lease interface {
	// TryAcquire returns ok=false (and a nil release) when another holder has the lease.
	TryAcquire(ctx context.Context) (release ReleaseFunc, ok bool, err error)
}

// ── In-process ──

// LocalLease serializes passes inside one process.
type LocalLease struct {
	mu sync.Mutex
}

// NewLocalLease creates an in-process lease.
func NewLocalLease() *LocalLease {
	return &LocalLease{}
}

func (l *LocalLease) TryAcquire(_ context.Context) (ReleaseFunc, bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, true, nil
}

// ── Redis ──

// releaseScript deletes the key only if it still holds our token, so an
// expired lease taken over by another pass is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLease is a SET NX PX lease shared by every settlement instance.
type RedisLease struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisLease creates a Redis-backed lease. ttl bounds how long a crashed
// holder can block later passes.
func NewRedisLease(rdb *redis.Client, key string, ttl time.Duration) *RedisLease {
	return &RedisLease{rdb: rdb, key: key, ttl: ttl}
}

func (l *RedisLease) TryAcquire(ctx context.Context) (ReleaseFunc, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire redis lease: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("release redis lease: %w", err)
		}
		return nil
	}, true, nil
}

// ── Postgres ──

// PassLockKey is the advisory lock id of the settlement pass.
const PassLockKey int64 = 0x5e771e

// PGAdvisoryLease holds a session-level advisory lock on a dedicated connection
// for the duration of the pass.
type PGAdvisoryLease struct {
	pool *pgxpool.Pool
	key  int64
}

// NewPGAdvisoryLease creates a Postgres advisory-lock lease.
func NewPGAdvisoryLease(pool *pgxpool.Pool, key int64) *PGAdvisoryLease {
	return &PGAdvisoryLease{pool: pool, key: key}
}

func (l *PGAdvisoryLease) TryAcquire(ctx context.Context) (ReleaseFunc, bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease conn: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}

	return func(ctx context.Context) error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
			// Drop the session so the lock dies with it.
			conn.Conn().Close(ctx)
			return fmt.Errorf("advisory unlock: %w", err)
		}
		return nil
	}, true, nil
}
