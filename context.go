package chatkit

import (
	"context"
	"time"

	"github.com/kapu/chatkit/gateway"
)

// CommandKind identifies which command surface triggered an execution
// context. It also feeds localisation IDs.
type CommandKind int8

const (
	KindMessage CommandKind = iota
	KindSlash
	KindUserMenu
	KindMessageMenu
	KindAutocomplete
)

func (k CommandKind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindSlash:
		return "slash"
	case KindUserMenu:
		return "user_menu"
	case KindMessageMenu:
		return "message_menu"
	case KindAutocomplete:
		return "autocomplete"
	default:
		return "unknown"
	}
}

// Context is the shared contract of all execution contexts: one inbound
// unit of work, its identity attributes and its response lifecycle state.
// Role-specific extensions (AppContext for interaction-based commands) add
// to this rather than forming a deep hierarchy.
type Context interface {
	AuthorID() string
	ChannelID() string
	// GuildID is empty for direct messages.
	GuildID() string
	// Member is nil outside guilds.
	Member() *gateway.Member
	CreatedAt() time.Time
	// TriggeringName is the full name that matched this execution, e.g.
	// "config set" for a nested slash command.
	TriggeringName() string
	Kind() CommandKind
	// Locale is the requester's locale tag, empty when unknown.
	Locale() string

	// Channel returns the triggering channel, trying any event-supplied
	// data before falling back to a REST fetch.
	Channel(ctx context.Context) (*gateway.Channel, error)
	// MemberRoles resolves the invoking member's role objects, trying the
	// member's cached roles before falling back to a REST fetch.
	MemberRoles(ctx context.Context) ([]gateway.Role, error)

	HasResponded() bool
	HasBeenDeferred() bool
	// Respond produces a response through whichever channel the concrete
	// context uses: an initial response, an edit of a deferral, or a
	// followup, as the lifecycle state requires.
	Respond(ctx context.Context, content string) error
}

// AppContext extends Context for interaction-triggered executions, which
// carry a platform-imposed lifetime and the full response state machine.
type AppContext interface {
	Context

	// ExpiresAt is CreatedAt plus the platform's fixed interaction
	// lifetime.
	ExpiresAt() time.Time

	// Defer acknowledges the interaction without content. Errors once the
	// context has responded; a second call from the auto-defer timer is a
	// silent no-op.
	Defer(ctx context.Context) error
	// StartDeferTimer schedules an automatic Defer after d. Errors if a
	// timer is already active. Any response path cancels it.
	StartDeferTimer(d time.Duration) error
	CancelDefer()

	CreateInitialResponse(ctx context.Context, r gateway.Response, opts ...ResponseOption) error
	CreateFollowup(ctx context.Context, r gateway.Response, opts ...ResponseOption) (*gateway.SentMessage, error)
	EditInitialResponse(ctx context.Context, r gateway.Response, opts ...ResponseOption) (*gateway.SentMessage, error)
	EditLastResponse(ctx context.Context, r gateway.Response, opts ...ResponseOption) (*gateway.SentMessage, error)
	DeleteInitialResponse(ctx context.Context) error
	DeleteLastResponse(ctx context.Context) error
	FetchInitialResponse(ctx context.Context) (*gateway.SentMessage, error)
	FetchLastResponse(ctx context.Context) (*gateway.SentMessage, error)
}

// ResponseConfig carries per-response behaviour that is framework logic
// rather than wire payload.
type ResponseConfig struct {
	// DeleteAfter schedules deletion of the response; zero disables it.
	DeleteAfter time.Duration
}

type ResponseOption func(*ResponseConfig)

func WithDeleteAfter(d time.Duration) ResponseOption {
	return func(cfg *ResponseConfig) { cfg.DeleteAfter = d }
}

func NewResponseConfig(opts []ResponseOption) ResponseConfig {
	var cfg ResponseConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
