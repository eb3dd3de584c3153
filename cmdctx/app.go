package cmdctx

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	chatkit "github.com/kapu/chatkit"
	"github.com/kapu/chatkit/gateway"
)

// InteractionLifetime is how long the platform keeps an interaction token
// usable after creation.
const InteractionLifetime = 15 * time.Minute

var (
	// ErrDeferTimerActive is returned by StartDeferTimer when a timer has
	// already been scheduled for this context.
	ErrDeferTimerActive = errors.New("cmdctx: defer timer is already active")
	// ErrDeleteAfterTooLate rejects a scheduled deletion that would fire
	// after the interaction token has expired.
	ErrDeleteAfterTooLate = errors.New("cmdctx: interaction expires before the scheduled deletion")
)

// appBase carries the response state machine shared by slash and menu
// contexts. All lifecycle flags sit behind one mutex so concurrent response
// attempts serialise; the loser observes the updated flags and fails (or
// no-ops, for the auto-defer timer) instead of double-responding.
type appBase struct {
	base
	itx  *gateway.Interaction
	kind chatkit.CommandKind

	ephemeralDefault bool

	mu              sync.Mutex
	hasResponded    bool
	hasBeenDeferred bool
	lastResponseID  string

	timerMu    sync.Mutex
	deferTimer *time.Timer
}

func (a *appBase) AuthorID() string {
	if a.itx.Member != nil {
		return a.itx.Member.UserID
	}
	return a.itx.User.ID
}

func (a *appBase) ChannelID() string { return a.itx.ChannelID }

func (a *appBase) GuildID() string { return a.itx.GuildID }

func (a *appBase) Member() *gateway.Member { return a.itx.Member }

func (a *appBase) CreatedAt() time.Time { return a.itx.CreatedAt }

func (a *appBase) Kind() chatkit.CommandKind { return a.kind }

func (a *appBase) Locale() string { return a.itx.Locale }

func (a *appBase) Interaction() *gateway.Interaction { return a.itx }

func (a *appBase) Channel(ctx context.Context) (*gateway.Channel, error) {
	return a.fetchChannel(ctx, a.itx.ChannelID)
}

func (a *appBase) MemberRoles(ctx context.Context) ([]gateway.Role, error) {
	return a.memberRoles(ctx, a.itx.GuildID, a.itx.Member)
}

func (a *appBase) ExpiresAt() time.Time {
	return a.itx.CreatedAt.Add(InteractionLifetime)
}

// SetEphemeralDefault makes responses without an explicit ephemeral flag
// default to ephemeral; the dispatcher applies the bound command's setting.
func (a *appBase) SetEphemeralDefault(v bool) { a.ephemeralDefault = v }

func (a *appBase) HasResponded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasResponded
}

func (a *appBase) HasBeenDeferred() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasBeenDeferred
}

// Defer acknowledges the interaction without content. Errors once the
// context has already responded or deferred.
func (a *appBase) Defer(ctx context.Context) error {
	return a.deferWith(ctx, false)
}

func (a *appBase) deferWith(ctx context.Context, fromTimer bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hasResponded || a.hasBeenDeferred {
		if fromTimer {
			// The command responded while the timer was firing; nothing
			// left to acknowledge.
			return nil
		}
		if a.hasResponded {
			return chatkit.ErrAlreadyResponded
		}
		return chatkit.ErrAlreadyDeferred
	}
	if err := a.rest.CreateDeferredResponse(ctx, a.itx.ID, a.itx.Token, a.ephemeralDefault); err != nil {
		return err
	}
	a.hasBeenDeferred = true
	return nil
}

// StartDeferTimer schedules an automatic deferral after d so slow commands
// never miss the platform's acknowledgement window. Errors if a timer is
// already active.
func (a *appBase) StartDeferTimer(d time.Duration) error {
	a.timerMu.Lock()
	defer a.timerMu.Unlock()
	if a.deferTimer != nil {
		return ErrDeferTimerActive
	}
	a.deferTimer = time.AfterFunc(d, func() {
		if err := a.deferWith(context.Background(), true); err != nil {
			a.logger.Warn("auto-defer failed",
				zap.String("interaction_id", a.itx.ID),
				zap.Error(err))
		}
	})
	return nil
}

// CancelDefer stops a pending auto-defer timer, if any. Every response path
// calls it so the timer can no longer race a real response.
func (a *appBase) CancelDefer() {
	a.timerMu.Lock()
	defer a.timerMu.Unlock()
	if a.deferTimer != nil {
		a.deferTimer.Stop()
		a.deferTimer = nil
	}
}

// validateDeleteAfter rejects deletions scheduled past the token's expiry,
// measured against the context clock at call time.
func (a *appBase) validateDeleteAfter(cfg chatkit.ResponseConfig) error {
	if cfg.DeleteAfter <= 0 {
		return nil
	}
	if cfg.DeleteAfter > a.ExpiresAt().Sub(a.now()) {
		return ErrDeleteAfterTooLate
	}
	return nil
}

func (a *appBase) scheduleDeletion(d time.Duration, del func(context.Context) error, what string) {
	if d <= 0 {
		return
	}
	time.AfterFunc(d, func() {
		err := del(context.Background())
		switch {
		case errors.Is(err, gateway.ErrNotFound):
			a.logger.Debug("scheduled deletion target already gone",
				zap.String("kind", what),
				zap.String("interaction_id", a.itx.ID))
		case err != nil:
			a.logger.Warn("scheduled deletion failed",
				zap.String("kind", what),
				zap.String("interaction_id", a.itx.ID),
				zap.Error(err))
		}
	})
}

func (a *appBase) applyEphemeralDefault(r gateway.Response) gateway.Response {
	if a.ephemeralDefault {
		r.Ephemeral = true
	}
	return r
}

func (a *appBase) createInitialLocked(ctx context.Context, r gateway.Response, cfg chatkit.ResponseConfig) error {
	if a.hasResponded {
		return chatkit.ErrAlreadyResponded
	}
	if a.hasBeenDeferred {
		return chatkit.ErrAlreadyDeferred
	}
	if err := a.validateDeleteAfter(cfg); err != nil {
		return err
	}
	if err := a.rest.CreateInitialResponse(ctx, a.itx.ID, a.itx.Token, a.applyEphemeralDefault(r)); err != nil {
		return err
	}
	a.hasResponded = true
	a.scheduleDeletion(cfg.DeleteAfter, func(ctx context.Context) error {
		return a.rest.DeleteInitialResponse(ctx, a.itx.Token)
	}, "initial response")
	return nil
}

func (a *appBase) createFollowupLocked(ctx context.Context, r gateway.Response, cfg chatkit.ResponseConfig) (*gateway.SentMessage, error) {
	if !a.hasResponded && !a.hasBeenDeferred {
		return nil, chatkit.ErrNoResponse
	}
	if err := a.validateDeleteAfter(cfg); err != nil {
		return nil, err
	}
	sent, err := a.rest.CreateFollowup(ctx, a.itx.Token, a.applyEphemeralDefault(r))
	if err != nil {
		return nil, err
	}
	a.lastResponseID = sent.ID
	// A followup after a bare deferral is the de-facto visible response.
	a.hasResponded = true
	a.scheduleDeletion(cfg.DeleteAfter, func(ctx context.Context) error {
		return a.rest.DeleteFollowup(ctx, a.itx.Token, sent.ID)
	}, "followup")
	return sent, nil
}

func (a *appBase) editInitialLocked(ctx context.Context, r gateway.Response, cfg chatkit.ResponseConfig) (*gateway.SentMessage, error) {
	if err := a.validateDeleteAfter(cfg); err != nil {
		return nil, err
	}
	sent, err := a.rest.EditInitialResponse(ctx, a.itx.Token, r)
	if err != nil {
		return nil, err
	}
	// Editing a deferred acknowledgement is what fills it with content.
	a.hasResponded = true
	a.scheduleDeletion(cfg.DeleteAfter, func(ctx context.Context) error {
		return a.rest.DeleteInitialResponse(ctx, a.itx.Token)
	}, "initial response")
	return sent, nil
}

// CreateInitialResponse sends the one allowed initial response. Errors with
// ErrAlreadyResponded or ErrAlreadyDeferred when the slot is taken.
func (a *appBase) CreateInitialResponse(ctx context.Context, r gateway.Response, opts ...chatkit.ResponseOption) error {
	a.CancelDefer()
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.createInitialLocked(ctx, r, chatkit.NewResponseConfig(opts))
}

// CreateFollowup sends an additional response. Requires a prior initial
// response or deferral and marks the context as responded.
func (a *appBase) CreateFollowup(ctx context.Context, r gateway.Response, opts ...chatkit.ResponseOption) (*gateway.SentMessage, error) {
	a.CancelDefer()
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.createFollowupLocked(ctx, r, chatkit.NewResponseConfig(opts))
}

// EditInitialResponse rewrites the initial response in place. After a bare
// deferral this is the path that produces the visible reply.
func (a *appBase) EditInitialResponse(ctx context.Context, r gateway.Response, opts ...chatkit.ResponseOption) (*gateway.SentMessage, error) {
	a.CancelDefer()
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.editInitialLocked(ctx, r, chatkit.NewResponseConfig(opts))
}

// EditLastResponse edits the most recent followup, falling back to the
// initial response when no followup exists yet.
func (a *appBase) EditLastResponse(ctx context.Context, r gateway.Response, opts ...chatkit.ResponseOption) (*gateway.SentMessage, error) {
	a.CancelDefer()
	a.mu.Lock()
	defer a.mu.Unlock()
	cfg := chatkit.NewResponseConfig(opts)
	if a.lastResponseID != "" {
		if err := a.validateDeleteAfter(cfg); err != nil {
			return nil, err
		}
		id := a.lastResponseID
		sent, err := a.rest.EditFollowup(ctx, a.itx.Token, id, r)
		if err != nil {
			return nil, err
		}
		a.scheduleDeletion(cfg.DeleteAfter, func(ctx context.Context) error {
			return a.rest.DeleteFollowup(ctx, a.itx.Token, id)
		}, "followup")
		return sent, nil
	}
	if a.hasResponded || a.hasBeenDeferred {
		return a.editInitialLocked(ctx, r, cfg)
	}
	return nil, chatkit.ErrNoResponse
}

// DeleteInitialResponse removes the initial response. Deleting a deferred
// acknowledgement still consumes the response slot.
func (a *appBase) DeleteInitialResponse(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.rest.DeleteInitialResponse(ctx, a.itx.Token); err != nil {
		return err
	}
	a.hasResponded = true
	return nil
}

// DeleteLastResponse removes the most recent followup, falling back to the
// initial response.
func (a *appBase) DeleteLastResponse(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastResponseID != "" {
		return a.rest.DeleteFollowup(ctx, a.itx.Token, a.lastResponseID)
	}
	if a.hasResponded || a.hasBeenDeferred {
		if err := a.rest.DeleteInitialResponse(ctx, a.itx.Token); err != nil {
			return err
		}
		a.hasResponded = true
		return nil
	}
	return chatkit.ErrNoResponse
}

func (a *appBase) FetchInitialResponse(ctx context.Context) (*gateway.SentMessage, error) {
	return a.rest.FetchInitialResponse(ctx, a.itx.Token)
}

func (a *appBase) FetchLastResponse(ctx context.Context) (*gateway.SentMessage, error) {
	a.mu.Lock()
	lastID := a.lastResponseID
	responded := a.hasResponded || a.hasBeenDeferred
	a.mu.Unlock()
	if lastID != "" {
		return a.rest.FetchFollowup(ctx, a.itx.Token, lastID)
	}
	if responded {
		return a.rest.FetchInitialResponse(ctx, a.itx.Token)
	}
	return nil, chatkit.ErrNoResponse
}

// Respond picks the right channel for the lifecycle state: initial response
// when untouched, edit when only deferred, followup once responded.
func (a *appBase) Respond(ctx context.Context, content string) error {
	a.CancelDefer()
	a.mu.Lock()
	defer a.mu.Unlock()
	r := gateway.Response{Content: content}
	switch {
	case a.hasResponded:
		_, err := a.createFollowupLocked(ctx, r, chatkit.ResponseConfig{})
		return err
	case a.hasBeenDeferred:
		_, err := a.editInitialLocked(ctx, r, chatkit.ResponseConfig{})
		return err
	default:
		return a.createInitialLocked(ctx, r, chatkit.ResponseConfig{})
	}
}
