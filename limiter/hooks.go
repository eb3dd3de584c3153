package limiter

import (
	"context"
	"time"

	chatkit "github.com/kapu/chatkit"
	"github.com/kapu/chatkit/internal/clock"
)

// Localisation IDs used by the limiter hook replies.
const (
	LocaliseIDCooldown    = "check:cooldown"
	LocaliseIDConcurrency = "check:concurrency"
)

type hookSettings struct {
	now clock.Clock
}

type HookOption func(*hookSettings)

// WithHookClock overrides the time source used to render wait durations.
// It must match the clock the manager counts with.
func WithHookClock(now clock.Clock) HookOption {
	return func(s *hookSettings) { s.now = now }
}

// CooldownPreExecution builds a pre-execution hook that counts one use
// against bucketID and rejects the execution with a user-facing error
// while the bucket is exhausted.
func CooldownPreExecution(manager CooldownManager, bucketID string, opts ...HookOption) chatkit.PreExecutionHook {
	settings := hookSettings{now: clock.System()}
	for _, opt := range opts {
		opt(&settings)
	}
	return func(ctx context.Context, c chatkit.Context) error {
		resetsAt, err := manager.Check(ctx, bucketID, c, true)
		if err != nil {
			return err
		}
		if resetsAt == nil {
			return nil
		}
		wait := resetsAt.Sub(settings.now()).Round(time.Second)
		if wait < time.Second {
			wait = time.Second
		}
		return chatkit.NewCommandError("This command is on cooldown, try again in %s", wait).
			WithLocaliseID(LocaliseIDCooldown)
	}
}

// ConcurrencyPreExecution builds a pre-execution hook claiming a slot in
// bucketID, rejecting the execution when the bucket is saturated. Pair it
// with ConcurrencyPostExecution on the same hooks object and register it
// after any other pre-execution hooks: a failed pre-execution chain skips
// the post-execution stage, so an earlier rejection must not leave a
// claimed slot behind.
func ConcurrencyPreExecution(limiter *ConcurrencyLimiter, bucketID string) chatkit.PreExecutionHook {
	return func(ctx context.Context, c chatkit.Context) error {
		acquired, err := limiter.TryAcquire(ctx, bucketID, c)
		if err != nil {
			return err
		}
		if !acquired {
			return chatkit.NewCommandError("This command is already running too many times, try again later").
				WithLocaliseID(LocaliseIDConcurrency)
		}
		return nil
	}
}

// ConcurrencyPostExecution releases the slot claimed by the matching
// pre-execution hook.
func ConcurrencyPostExecution(limiter *ConcurrencyLimiter, bucketID string) chatkit.PostExecutionHook {
	return func(ctx context.Context, c chatkit.Context) error {
		return limiter.Release(ctx, bucketID, c)
	}
}
