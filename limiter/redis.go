package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	chatkit "github.com/kapu/chatkit"
)

const redisKeyPrefix = "chatkit:cooldown"

// RedisCooldownManager implements the cooldown contract against Redis so
// multiple processes share one set of buckets. Each (bucket, key) pair is
// a counter whose TTL is the bucket's reset interval; Redis owns expiry,
// so there is no sweep goroutine here.
type RedisCooldownManager struct {
	client *redis.Client
	logger *zap.Logger

	mu       sync.RWMutex
	buckets  map[string]redisBucket
	fallback redisBucket
}

type redisBucket struct {
	resource   BucketResource
	limit      int
	resetAfter time.Duration
}

type RedisCooldownOption func(*RedisCooldownManager)

func WithRedisCooldownLogger(logger *zap.Logger) RedisCooldownOption {
	return func(m *RedisCooldownManager) { m.logger = logger }
}

func NewRedisCooldownManager(client *redis.Client, opts ...RedisCooldownOption) *RedisCooldownManager {
	m := &RedisCooldownManager{
		client:   client,
		logger:   zap.NewNop(),
		buckets:  make(map[string]redisBucket),
		fallback: redisBucket{resource: ResourceUser, limit: 2, resetAfter: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *RedisCooldownManager) SetBucket(bucketID string, resource BucketResource, limit int, resetAfter time.Duration) *RedisCooldownManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucketID] = redisBucket{resource: resource, limit: limit, resetAfter: resetAfter}
	return m
}

func (m *RedisCooldownManager) DisableBucket(bucketID string) *RedisCooldownManager {
	return m.SetBucket(bucketID, ResourceGlobal, UnlimitedUses, 0)
}

func (m *RedisCooldownManager) bucket(bucketID string) redisBucket {
	m.mu.RLock()
	bucket, ok := m.buckets[bucketID]
	m.mu.RUnlock()
	if ok {
		return bucket
	}
	m.logger.Warn("cooldown bucket not configured, applying fallback",
		zap.String("bucket_id", bucketID))
	return m.fallback
}

func (m *RedisCooldownManager) Check(ctx context.Context, bucketID string, c chatkit.Context, increment bool) (*time.Time, error) {
	bucket := m.bucket(bucketID)
	if bucket.limit == UnlimitedUses {
		return nil, nil
	}

	target, err := resolveKey(ctx, c, bucket.resource)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%s:%s", redisKeyPrefix, bucketID, target)

	if increment {
		return m.checkAndIncrement(ctx, key, bucket)
	}
	return m.checkOnly(ctx, key, bucket)
}

func (m *RedisCooldownManager) checkAndIncrement(ctx context.Context, key string, bucket redisBucket) (*time.Time, error) {
	count, err := m.client.Incr(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("limiter: redis incr: %w", err)
	}
	if count == 1 {
		if err := m.client.PExpire(ctx, key, bucket.resetAfter).Err(); err != nil {
			return nil, fmt.Errorf("limiter: redis pexpire: %w", err)
		}
		return nil, nil
	}
	if count <= int64(bucket.limit) {
		return nil, nil
	}

	// Over the ceiling: undo the speculative increment and report when the
	// key expires.
	if err := m.client.Decr(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("limiter: redis decr: %w", err)
	}
	return m.resetTime(ctx, key, bucket)
}

func (m *RedisCooldownManager) checkOnly(ctx context.Context, key string, bucket redisBucket) (*time.Time, error) {
	count, err := m.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("limiter: redis get: %w", err)
	}
	if count < int64(bucket.limit) {
		return nil, nil
	}
	return m.resetTime(ctx, key, bucket)
}

func (m *RedisCooldownManager) resetTime(ctx context.Context, key string, bucket redisBucket) (*time.Time, error) {
	ttl, err := m.client.PTTL(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("limiter: redis pttl: %w", err)
	}
	if ttl <= 0 {
		// Key expired between the counter read and here.
		return nil, nil
	}
	resetsAt := time.Now().Add(ttl)
	return &resetsAt, nil
}

var _ CooldownManager = (*RedisCooldownManager)(nil)
