package inject

import (
	"context"
	"errors"
	"sync"
	"time"
)

// LazyConstant wraps a fetch-once value (application identity, own user,
// etc). The first caller performs the underlying resolution; concurrent
// callers racing before population block on an on-demand lock that is
// discarded once the value is set, leaving the steady state lock-free apart
// from the guard mutex.
type LazyConstant struct {
	callback *CallbackDescriptor

	mu        sync.Mutex
	fetchLock *sync.Mutex
	value     any
	populated bool
}

func NewLazyConstant(callback *CallbackDescriptor) *LazyConstant {
	return &LazyConstant{callback: callback}
}

// Value returns the stored value, reporting whether it has been populated.
func (l *LazyConstant) Value() (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.populated
}

// SetValue populates the constant directly. Errors if already populated.
func (l *LazyConstant) SetValue(value any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.populated {
		return errors.New("inject: lazy constant has already been set")
	}
	l.value = value
	l.populated = true
	l.fetchLock = nil
	return nil
}

// Reset clears the constant so the next Get fetches again.
func (l *LazyConstant) Reset() *LazyConstant {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = nil
	l.populated = false
	l.fetchLock = nil
	return l
}

// Get returns the value, fetching it through the wrapped callback exactly
// once even when many callers race on an unpopulated constant.
func (l *LazyConstant) Get(ctx context.Context, ic *Context) (any, error) {
	l.mu.Lock()
	if l.populated {
		value := l.value
		l.mu.Unlock()
		return value, nil
	}
	if l.fetchLock == nil {
		l.fetchLock = &sync.Mutex{}
	}
	fetchLock := l.fetchLock
	l.mu.Unlock()

	fetchLock.Lock()
	defer fetchLock.Unlock()

	// A racing caller may have populated the value while we waited.
	l.mu.Lock()
	if l.populated {
		value := l.value
		l.mu.Unlock()
		return value, nil
	}
	l.mu.Unlock()

	value, err := l.callback.Resolve(ctx, ic, nil)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.value = value
	l.populated = true
	l.fetchLock = nil
	l.mu.Unlock()
	return value, nil
}

// Callback exposes the constant as an injectable callback so commands can
// declare it as a dependency like any other.
func (l *LazyConstant) Callback(name string) *CallbackDescriptor {
	if l.callback.NeedsInjector() {
		return NewCallback(name, func(ctx context.Context, args Args) (any, error) {
			ic := MustArg[*Context](args, "injectionContext")
			return l.Get(ctx, ic)
		}, WithType[*Context]("injectionContext", SlotContext))
	}
	return NewCallback(name, func(ctx context.Context, _ Args) (any, error) {
		return l.Get(ctx, nil)
	})
}

type cachedCallback struct {
	inner *CallbackDescriptor
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	value     any
	fetchedAt time.Time
	populated bool
}

func (c *cachedCallback) expired() bool {
	if !c.populated {
		return true
	}
	return c.ttl > 0 && c.now().Sub(c.fetchedAt) >= c.ttl
}

func (c *cachedCallback) call(ctx context.Context, ic *Context) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.expired() {
		return c.value, nil
	}

	value, err := c.inner.Resolve(ctx, ic, nil)
	if err != nil {
		return nil, err
	}
	c.value = value
	c.fetchedAt = c.now()
	c.populated = true
	return value, nil
}

// Cached wraps a callback descriptor so its result is shared across
// injection contexts, refetching after ttl (ttl <= 0 caches forever).
// Unlike the per-context memoization every descriptor already gets, this
// cache outlives individual requests.
func Cached(inner *CallbackDescriptor, ttl time.Duration) *CallbackDescriptor {
	c := &cachedCallback{inner: inner, ttl: ttl, now: time.Now}
	name := "cached " + inner.Name()
	if inner.NeedsInjector() {
		return NewCallback(name, func(ctx context.Context, args Args) (any, error) {
			ic := MustArg[*Context](args, "injectionContext")
			return c.call(ctx, ic)
		}, WithType[*Context]("injectionContext", SlotContext))
	}
	return NewCallback(name, func(ctx context.Context, _ Args) (any, error) {
		return c.call(ctx, nil)
	})
}
