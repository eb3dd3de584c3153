// Package cmdctx implements the execution contexts wrapping one inbound
// message or interaction: identity accessors, dependency-injection scoping
// and the single-response-per-interaction state machine.
package cmdctx

import (
	"context"
	"sync"

	"go.uber.org/zap"

	chatkit "github.com/kapu/chatkit"
	"github.com/kapu/chatkit/gateway"
	"github.com/kapu/chatkit/inject"
	"github.com/kapu/chatkit/internal/clock"
)

// Injection slots under which execution contexts register themselves for
// the lifetime of their request.
var (
	SlotContext             = inject.NewSlot[chatkit.Context]("chatkit.Context")
	SlotAppContext          = inject.NewSlot[chatkit.AppContext]("chatkit.AppContext")
	SlotMessageContext      = inject.NewSlot[*MessageContext]("cmdctx.MessageContext")
	SlotSlashContext        = inject.NewSlot[*SlashContext]("cmdctx.SlashContext")
	SlotMenuContext         = inject.NewSlot[*MenuContext]("cmdctx.MenuContext")
	SlotAutocompleteContext = inject.NewSlot[*AutocompleteContext]("cmdctx.AutocompleteContext")
)

type Option func(*base)

// WithClock swaps the time source; tests freeze it to pin expiry logic.
func WithClock(now clock.Clock) Option {
	return func(b *base) { b.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *base) { b.logger = logger }
}

type base struct {
	rest      gateway.Rest
	injection *inject.Context
	logger    *zap.Logger
	now       clock.Clock

	triggeringName string

	channelMu sync.Mutex
	channel   *gateway.Channel
	roles     []gateway.Role
}

func newBase(rest gateway.Rest, injector *inject.Client, opts []Option) base {
	b := base{
		rest:      rest,
		injection: inject.NewContext(injector),
		logger:    zap.NewNop(),
		now:       clock.System(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Injection returns the per-request injection scope; the dispatcher adds
// special cases to it as command binding progresses.
func (b *base) Injection() *inject.Context { return b.injection }

func (b *base) TriggeringName() string { return b.triggeringName }

// SetTriggeringName records the name that matched this execution; the
// dispatcher calls it once a command is bound.
func (b *base) SetTriggeringName(name string) { b.triggeringName = name }

func (b *base) fetchChannel(ctx context.Context, channelID string) (*gateway.Channel, error) {
	b.channelMu.Lock()
	if b.channel != nil {
		channel := b.channel
		b.channelMu.Unlock()
		return channel, nil
	}
	b.channelMu.Unlock()

	channel, err := b.rest.FetchChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	b.channelMu.Lock()
	b.channel = channel
	b.channelMu.Unlock()
	return channel, nil
}

// memberRoles resolves the member's role objects, preferring roles the
// event already carried over a guild-wide REST fetch.
func (b *base) memberRoles(ctx context.Context, guildID string, member *gateway.Member) ([]gateway.Role, error) {
	if member == nil || guildID == "" {
		return nil, nil
	}
	if len(member.Roles) > 0 {
		return member.Roles, nil
	}

	b.channelMu.Lock()
	if b.roles != nil {
		roles := b.roles
		b.channelMu.Unlock()
		return roles, nil
	}
	b.channelMu.Unlock()

	all, err := b.rest.FetchGuildRoles(ctx, guildID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(member.RoleIDs))
	for _, id := range member.RoleIDs {
		wanted[id] = struct{}{}
	}
	var roles []gateway.Role
	for _, role := range all {
		if _, ok := wanted[role.ID]; ok {
			roles = append(roles, role)
		}
	}

	b.channelMu.Lock()
	b.roles = roles
	b.channelMu.Unlock()
	return roles, nil
}
