package limiter

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	chatkit "github.com/kapu/chatkit"
)

type concurrencyEntry struct {
	counter int
	holders map[chatkit.Context]struct{}
}

type concurrencyBucket struct {
	resource BucketResource
	limit    int

	mu   sync.Mutex
	keys map[string]*concurrencyEntry
}

// tryAcquire reports whether the context got a slot. Re-acquiring for a
// context that already holds one is an idempotent success.
func (b *concurrencyBucket) tryAcquire(key string, c chatkit.Context) bool {
	if b.limit == UnlimitedUses {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entry := b.keys[key]
	if entry == nil {
		entry = &concurrencyEntry{holders: make(map[chatkit.Context]struct{})}
		b.keys[key] = entry
	}
	if _, held := entry.holders[c]; held {
		return true
	}
	if entry.counter >= b.limit {
		return false
	}
	entry.counter++
	entry.holders[c] = struct{}{}
	return true
}

// release frees the context's slot, reporting false when it held none.
func (b *concurrencyBucket) release(key string, c chatkit.Context) bool {
	if b.limit == UnlimitedUses {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entry := b.keys[key]
	if entry == nil {
		return false
	}
	if _, held := entry.holders[c]; !held {
		return false
	}
	delete(entry.holders, c)
	entry.counter--
	return true
}

func (b *concurrencyBucket) gc() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, entry := range b.keys {
		if entry.counter == 0 {
			delete(b.keys, key)
		}
	}
}

// ConcurrencyLimiter caps how many executions may hold a bucket at once,
// scoped by the bucket's resource.
type ConcurrencyLimiter struct {
	logger *zap.Logger

	mu       sync.RWMutex
	buckets  map[string]*concurrencyBucket
	fallback *concurrencyBucket

	lifecycleMu sync.Mutex
	stopCh      chan struct{}
}

type ConcurrencyOption func(*ConcurrencyLimiter)

func WithConcurrencyLogger(logger *zap.Logger) ConcurrencyOption {
	return func(l *ConcurrencyLimiter) { l.logger = logger }
}

func NewConcurrencyLimiter(opts ...ConcurrencyOption) *ConcurrencyLimiter {
	l := &ConcurrencyLimiter{
		logger:   zap.NewNop(),
		buckets:  make(map[string]*concurrencyBucket),
		fallback: &concurrencyBucket{resource: ResourceUser, limit: 1},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *ConcurrencyLimiter) SetBucket(bucketID string, resource BucketResource, limit int) *ConcurrencyLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[bucketID] = &concurrencyBucket{
		resource: resource,
		limit:    limit,
		keys:     make(map[string]*concurrencyEntry),
	}
	return l
}

func (l *ConcurrencyLimiter) DisableBucket(bucketID string) *ConcurrencyLimiter {
	return l.SetBucket(bucketID, ResourceGlobal, UnlimitedUses)
}

func (l *ConcurrencyLimiter) SetFallback(resource BucketResource, limit int) *ConcurrencyLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fallback = &concurrencyBucket{resource: resource, limit: limit}
	return l
}

func (l *ConcurrencyLimiter) bucket(bucketID string) *concurrencyBucket {
	l.mu.RLock()
	bucket, ok := l.buckets[bucketID]
	l.mu.RUnlock()
	if ok {
		return bucket
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if bucket, ok := l.buckets[bucketID]; ok {
		return bucket
	}
	l.logger.Warn("concurrency bucket not configured, applying fallback",
		zap.String("bucket_id", bucketID),
		zap.String("resource", l.fallback.resource.String()),
		zap.Int("limit", l.fallback.limit))
	bucket = &concurrencyBucket{
		resource: l.fallback.resource,
		limit:    l.fallback.limit,
		keys:     make(map[string]*concurrencyEntry),
	}
	l.buckets[bucketID] = bucket
	return bucket
}

// TryAcquire attempts to claim a slot for the context. Acquiring twice for
// the same (bucket, context) pair holds a single slot.
func (l *ConcurrencyLimiter) TryAcquire(ctx context.Context, bucketID string, c chatkit.Context) (bool, error) {
	bucket := l.bucket(bucketID)
	key, err := resolveKey(ctx, c, bucket.resource)
	if err != nil {
		return false, err
	}
	return bucket.tryAcquire(key, c), nil
}

// Release frees the context's slot. Releasing a never-acquired slot is an
// internal invariant violation.
func (l *ConcurrencyLimiter) Release(ctx context.Context, bucketID string, c chatkit.Context) error {
	bucket := l.bucket(bucketID)
	key, err := resolveKey(ctx, c, bucket.resource)
	if err != nil {
		return err
	}
	if !bucket.release(key, c) {
		l.logger.DPanic("release of never-acquired concurrency slot",
			zap.String("bucket_id", bucketID),
			zap.String("key", key))
		return errors.New("limiter: concurrency slot was not acquired")
	}
	return nil
}

// Open starts the eviction sweep for idle keys. Double open is an error.
func (l *ConcurrencyLimiter) Open() error {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.stopCh != nil {
		return errors.New("limiter: concurrency limiter is already open")
	}
	l.stopCh = make(chan struct{})
	go l.sweep(l.stopCh)
	return nil
}

func (l *ConcurrencyLimiter) Close() error {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.stopCh == nil {
		return errors.New("limiter: concurrency limiter is not open")
	}
	close(l.stopCh)
	l.stopCh = nil
	return nil
}

func (l *ConcurrencyLimiter) sweep(stopCh <-chan struct{}) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			l.mu.RLock()
			buckets := make([]*concurrencyBucket, 0, len(l.buckets))
			for _, bucket := range l.buckets {
				buckets = append(buckets, bucket)
			}
			l.mu.RUnlock()
			for _, bucket := range buckets {
				bucket.gc()
			}
		}
	}
}
