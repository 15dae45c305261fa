package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger remembers which authorization codes have been presented.
//
// Consume returns true the first time a code is seen and false on every
// later call within ttl. Release forgets a code the provider never consumed,
// so the link can be tried again. Only a hash of the code is stored.
type Ledger interface {
	Consume(ctx context.Context, code string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, code string) error
}

func codeKey(code string) string {
	sum := sha256.Sum256([]byte(code))
	return "authcode:" + hex.EncodeToString(sum[:])
}

// RedisLedger shares consumed codes across server instances.
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) Consume(ctx context.Context, code string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, codeKey(code), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("identity: recording code: %w", err)
	}
	return ok, nil
}

func (l *RedisLedger) Release(ctx context.Context, code string) error {
	if err := l.client.Del(ctx, codeKey(code)).Err(); err != nil {
		return fmt.Errorf("identity: releasing code: %w", err)
	}
	return nil
}

// MemoryLedger is the single-process fallback used when Redis is not
// configured.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryLedger) Consume(_ context.Context, code string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, exp := range l.seen {
		if now.After(exp) {
			delete(l.seen, k)
		}
	}

	key := codeKey(code)
	if _, ok := l.seen[key]; ok {
		return false, nil
	}
	l.seen[key] = now.Add(ttl)
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, codeKey(code))
	return nil
}
