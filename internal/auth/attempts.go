package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptStore はログイン失敗回数を一定期間保持するストア。
// キーは正規化済みメールアドレス。
type AttemptStore interface {
	// Failures は現在の失敗回数を返す。
	Failures(ctx context.Context, key string) (int, error)
	// RecordFailure は失敗を1回記録し、記録後の回数を返す。
	// 最初の失敗からwindowが経過すると回数はリセットされる。
	RecordFailure(ctx context.Context, key string, window time.Duration) (int, error)
	// Reset は失敗回数を破棄する。
	Reset(ctx context.Context, key string) error
}

type attemptEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryAttemptStore はプロセス内で失敗回数を保持するAttemptStore。
// REDIS_URL未設定の単一インスタンス構成で使用する。
type MemoryAttemptStore struct {
	mu      sync.Mutex
	entries map[string]attemptEntry
	now     func() time.Time
}

// NewMemoryAttemptStore はMemoryAttemptStoreを生成する。
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		entries: make(map[string]attemptEntry),
		now:     time.Now,
	}
}

// Failures は期限内の失敗回数を返す。
func (s *MemoryAttemptStore) Failures(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return 0, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return 0, nil
	}
	return e.count, nil
}

// RecordFailure は失敗を記録する。
func (s *MemoryAttemptStore) RecordFailure(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		e = attemptEntry{expiresAt: now.Add(window)}
	}
	e.count++
	s.entries[key] = e
	return e.count, nil
}

// Reset は失敗回数を破棄する。
func (s *MemoryAttemptStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// recordFailureScript は失敗回数の加算と有効期限の設定を1コマンドで行う。
// TTLが無いキー（前回の期限設定が失敗した場合を含む）には必ず期限を付け直す。
var recordFailureScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisAttemptStore はRedisで失敗回数を保持するAttemptStore。
// 複数インスタンスで失敗回数を共有できる。
type RedisAttemptStore struct {
	client *redis.Client
	prefix string
}

// NewRedisAttemptStore はRedisAttemptStoreを生成する。
func NewRedisAttemptStore(client *redis.Client) *RedisAttemptStore {
	return &RedisAttemptStore{
		client: client,
		prefix: "schoolportal:login-failures:",
	}
}

// NewRedisClient はREDIS_URLからクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Failures は現在の失敗回数を返す。
func (s *RedisAttemptStore) Failures(ctx context.Context, key string) (int, error) {
	n, err := s.client.Get(ctx, s.prefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read login failures: %w", err)
	}
	return n, nil
}

// RecordFailure は失敗を記録する。
// 加算と期限設定はRedis上でアトミックに実行されるため、期限の無いキーは残らない。
func (s *RedisAttemptStore) RecordFailure(ctx context.Context, key string, window time.Duration) (int, error) {
	n, err := recordFailureScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds()).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to record login failure: %w", err)
	}
	return n, nil
}

// Reset は失敗回数を破棄する。
func (s *RedisAttemptStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	return nil
}
