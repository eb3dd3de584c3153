package gateway

import "context"

// Rest is the narrow surface of the chat platform's response and lookup
// endpoints consumed by the command core. The framework wraps these calls
// but never implements the wire protocol itself.
type Rest interface {
	// Channel messages (text command responses).
	CreateMessage(ctx context.Context, channelID string, r Response) (*SentMessage, error)
	EditMessage(ctx context.Context, channelID, messageID string, r Response) (*SentMessage, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// Interaction responses. The initial response and followups are
	// addressed through the interaction token.
	CreateInitialResponse(ctx context.Context, interactionID, token string, r Response) error
	CreateDeferredResponse(ctx context.Context, interactionID, token string, ephemeral bool) error
	CreateFollowup(ctx context.Context, token string, r Response) (*SentMessage, error)
	EditInitialResponse(ctx context.Context, token string, r Response) (*SentMessage, error)
	EditFollowup(ctx context.Context, token, messageID string, r Response) (*SentMessage, error)
	DeleteInitialResponse(ctx context.Context, token string) error
	DeleteFollowup(ctx context.Context, token, messageID string) error
	FetchInitialResponse(ctx context.Context, token string) (*SentMessage, error)
	FetchFollowup(ctx context.Context, token, messageID string) (*SentMessage, error)
	CreateAutocompleteResponse(ctx context.Context, interactionID, token string, choices []AutocompleteChoice) error

	// Lookups used by bucket-resource resolution.
	FetchChannel(ctx context.Context, channelID string) (*Channel, error)
	FetchGuildRoles(ctx context.Context, guildID string) ([]Role, error)
}
