package cmdctx

import (
	"context"
	"sync"
	"time"

	chatkit "github.com/kapu/chatkit"
	"github.com/kapu/chatkit/gateway"
	"github.com/kapu/chatkit/inject"
)

// MessageContext wraps one inbound chat message being dispatched as a
// prefix command. Message responses are ordinary channel messages with no
// lifetime, so the lifecycle here is just initial/last bookkeeping.
type MessageContext struct {
	base
	msg *gateway.Message

	// content is the remainder being matched against command names; the
	// dispatcher strips the prefix and then each matched name segment.
	content string

	mu        sync.Mutex
	initialID string
	lastID    string
}

var _ chatkit.Context = (*MessageContext)(nil)

func NewMessageContext(rest gateway.Rest, injector *inject.Client, msg *gateway.Message, opts ...Option) *MessageContext {
	c := &MessageContext{
		base:    newBase(rest, injector, opts),
		msg:     msg,
		content: msg.Content,
	}
	c.injection.SetSpecialCase(SlotContext, chatkit.Context(c))
	c.injection.SetSpecialCase(SlotMessageContext, c)
	return c
}

func (c *MessageContext) AuthorID() string { return c.msg.Author.ID }

func (c *MessageContext) ChannelID() string { return c.msg.ChannelID }

func (c *MessageContext) GuildID() string { return c.msg.GuildID }

func (c *MessageContext) Member() *gateway.Member { return c.msg.Member }

func (c *MessageContext) CreatedAt() time.Time { return c.msg.CreatedAt }

func (c *MessageContext) Kind() chatkit.CommandKind { return chatkit.KindMessage }

// Locale is unknown for plain messages.
func (c *MessageContext) Locale() string { return "" }

func (c *MessageContext) Message() *gateway.Message { return c.msg }

func (c *MessageContext) Content() string { return c.content }

// SetContent replaces the unmatched remainder as prefix and name segments
// are consumed during matching.
func (c *MessageContext) SetContent(content string) { c.content = content }

func (c *MessageContext) Channel(ctx context.Context) (*gateway.Channel, error) {
	return c.fetchChannel(ctx, c.msg.ChannelID)
}

func (c *MessageContext) MemberRoles(ctx context.Context) ([]gateway.Role, error) {
	return c.memberRoles(ctx, c.msg.GuildID, c.msg.Member)
}

func (c *MessageContext) HasResponded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialID != ""
}

// HasBeenDeferred is always false: message responses have no deferral.
func (c *MessageContext) HasBeenDeferred() bool { return false }

// Respond sends a message to the triggering channel, tracking the first
// and most recent response IDs for later edits.
func (c *MessageContext) Respond(ctx context.Context, content string) error {
	sent, err := c.rest.CreateMessage(ctx, c.msg.ChannelID, gateway.Response{Content: content})
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.initialID == "" {
		c.initialID = sent.ID
	}
	c.lastID = sent.ID
	c.mu.Unlock()
	return nil
}

func (c *MessageContext) EditInitialResponse(ctx context.Context, r gateway.Response) (*gateway.SentMessage, error) {
	c.mu.Lock()
	id := c.initialID
	c.mu.Unlock()
	if id == "" {
		return nil, chatkit.ErrNoResponse
	}
	return c.rest.EditMessage(ctx, c.msg.ChannelID, id, r)
}

func (c *MessageContext) EditLastResponse(ctx context.Context, r gateway.Response) (*gateway.SentMessage, error) {
	c.mu.Lock()
	id := c.lastID
	c.mu.Unlock()
	if id == "" {
		return nil, chatkit.ErrNoResponse
	}
	return c.rest.EditMessage(ctx, c.msg.ChannelID, id, r)
}

func (c *MessageContext) DeleteInitialResponse(ctx context.Context) error {
	c.mu.Lock()
	id := c.initialID
	c.mu.Unlock()
	if id == "" {
		return chatkit.ErrNoResponse
	}
	return c.rest.DeleteMessage(ctx, c.msg.ChannelID, id)
}

func (c *MessageContext) DeleteLastResponse(ctx context.Context) error {
	c.mu.Lock()
	id := c.lastID
	c.mu.Unlock()
	if id == "" {
		return chatkit.ErrNoResponse
	}
	return c.rest.DeleteMessage(ctx, c.msg.ChannelID, id)
}
