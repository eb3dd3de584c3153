package limiter

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	chatkit "github.com/kapu/chatkit"
	"github.com/kapu/chatkit/internal/clock"
)

// UnlimitedUses disables counting for a bucket entirely.
const UnlimitedUses = -1

// gcInterval is how often managers sweep expired per-key state.
const gcInterval = 10 * time.Second

// CooldownManager is the check/increment contract the cooldown hooks run
// against. Check returns the time the bucket resets when the context must
// wait, nil when a use is allowed; increment records a use in the same
// call when requested.
type CooldownManager interface {
	Check(ctx context.Context, bucketID string, c chatkit.Context, increment bool) (*time.Time, error)
}

type cooldownEntry struct {
	counter  int
	resetsAt time.Time
}

type cooldownBucket struct {
	resource   BucketResource
	limit      int
	resetAfter time.Duration

	mu   sync.Mutex
	keys map[string]*cooldownEntry
}

// check applies the counting rules under the bucket lock: a lapsed or
// untouched entry resets, a full entry reports its reset time, and the
// counter never passes the limit.
func (b *cooldownBucket) check(key string, now time.Time, increment bool) *time.Time {
	if b.limit == UnlimitedUses {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entry := b.keys[key]
	if entry == nil || entry.counter == 0 || !now.Before(entry.resetsAt) {
		if increment {
			b.keys[key] = &cooldownEntry{counter: 1, resetsAt: now.Add(b.resetAfter)}
		}
		return nil
	}

	if entry.counter >= b.limit {
		resetsAt := entry.resetsAt
		return &resetsAt
	}
	if increment {
		entry.counter++
	}
	return nil
}

func (b *cooldownBucket) gc(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, entry := range b.keys {
		if !now.Before(entry.resetsAt) {
			delete(b.keys, key)
		}
	}
}

// InMemoryCooldownManager tracks cooldown buckets in process memory. A
// background sweep evicts expired keys while the manager is open.
type InMemoryCooldownManager struct {
	logger *zap.Logger
	now    clock.Clock

	mu       sync.RWMutex
	buckets  map[string]*cooldownBucket
	fallback *cooldownBucket

	lifecycleMu sync.Mutex
	stopCh      chan struct{}
}

type CooldownOption func(*InMemoryCooldownManager)

func WithCooldownLogger(logger *zap.Logger) CooldownOption {
	return func(m *InMemoryCooldownManager) { m.logger = logger }
}

func WithCooldownClock(now clock.Clock) CooldownOption {
	return func(m *InMemoryCooldownManager) { m.now = now }
}

func NewInMemoryCooldownManager(opts ...CooldownOption) *InMemoryCooldownManager {
	m := &InMemoryCooldownManager{
		logger:  zap.NewNop(),
		now:     clock.System(),
		buckets: make(map[string]*cooldownBucket),
		// Matching unconfigured bucket IDs against a modest per-user limit
		// beats failing open.
		fallback: &cooldownBucket{resource: ResourceUser, limit: 2, resetAfter: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetBucket configures a bucket's scope, use ceiling and reset interval.
// limit UnlimitedUses disables counting.
func (m *InMemoryCooldownManager) SetBucket(bucketID string, resource BucketResource, limit int, resetAfter time.Duration) *InMemoryCooldownManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucketID] = &cooldownBucket{
		resource:   resource,
		limit:      limit,
		resetAfter: resetAfter,
		keys:       make(map[string]*cooldownEntry),
	}
	return m
}

// DisableBucket marks a bucket as unlimited so hooks referencing it pass
// without counting.
func (m *InMemoryCooldownManager) DisableBucket(bucketID string) *InMemoryCooldownManager {
	return m.SetBucket(bucketID, ResourceGlobal, UnlimitedUses, 0)
}

// SetFallback replaces the template applied to unconfigured bucket IDs.
func (m *InMemoryCooldownManager) SetFallback(resource BucketResource, limit int, resetAfter time.Duration) *InMemoryCooldownManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &cooldownBucket{resource: resource, limit: limit, resetAfter: resetAfter}
	return m
}

func (m *InMemoryCooldownManager) bucket(bucketID string) *cooldownBucket {
	m.mu.RLock()
	bucket, ok := m.buckets[bucketID]
	m.mu.RUnlock()
	if ok {
		return bucket
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if bucket, ok := m.buckets[bucketID]; ok {
		return bucket
	}
	m.logger.Warn("cooldown bucket not configured, applying fallback",
		zap.String("bucket_id", bucketID),
		zap.String("resource", m.fallback.resource.String()),
		zap.Int("limit", m.fallback.limit))
	bucket = &cooldownBucket{
		resource:   m.fallback.resource,
		limit:      m.fallback.limit,
		resetAfter: m.fallback.resetAfter,
		keys:       make(map[string]*cooldownEntry),
	}
	m.buckets[bucketID] = bucket
	return bucket
}

func (m *InMemoryCooldownManager) Check(ctx context.Context, bucketID string, c chatkit.Context, increment bool) (*time.Time, error) {
	bucket := m.bucket(bucketID)
	key, err := resolveKey(ctx, c, bucket.resource)
	if err != nil {
		return nil, err
	}
	return bucket.check(key, m.now(), increment), nil
}

// Open starts the eviction sweep. Double open is an error.
func (m *InMemoryCooldownManager) Open() error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.stopCh != nil {
		return errors.New("limiter: cooldown manager is already open")
	}
	m.stopCh = make(chan struct{})
	go m.sweep(m.stopCh)
	return nil
}

func (m *InMemoryCooldownManager) Close() error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.stopCh == nil {
		return errors.New("limiter: cooldown manager is not open")
	}
	close(m.stopCh)
	m.stopCh = nil
	return nil
}

func (m *InMemoryCooldownManager) sweep(stopCh <-chan struct{}) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			now := m.now()
			m.mu.RLock()
			buckets := make([]*cooldownBucket, 0, len(m.buckets))
			for _, bucket := range m.buckets {
				buckets = append(buckets, bucket)
			}
			m.mu.RUnlock()
			for _, bucket := range buckets {
				bucket.gc(now)
			}
		}
	}
}
