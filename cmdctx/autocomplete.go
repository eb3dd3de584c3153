package cmdctx

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kapu/chatkit/gateway"
	"github.com/kapu/chatkit/inject"
)

// ErrChoicesAlreadySet guards the single allowed autocomplete response.
var ErrChoicesAlreadySet = errors.New("cmdctx: autocomplete choices have already been sent")

// AutocompleteContext wraps an option-autocomplete interaction. It is not a
// command execution: no checks, hooks or limiters run, and the only output
// is one set of suggestion choices.
type AutocompleteContext struct {
	base
	itx     *gateway.Interaction
	options []gateway.CommandOption
	focused gateway.CommandOption

	mu        sync.Mutex
	responded bool
}

func NewAutocompleteContext(rest gateway.Rest, injector *inject.Client, itx *gateway.Interaction, fullName string, options []gateway.CommandOption, opts ...Option) *AutocompleteContext {
	c := &AutocompleteContext{
		base:    newBase(rest, injector, opts),
		itx:     itx,
		options: options,
	}
	c.triggeringName = fullName
	for _, opt := range options {
		if opt.Focused {
			c.focused = opt
			break
		}
	}
	c.injection.SetSpecialCase(SlotAutocompleteContext, c)
	return c
}

func (c *AutocompleteContext) AuthorID() string {
	if c.itx.Member != nil {
		return c.itx.Member.UserID
	}
	return c.itx.User.ID
}

func (c *AutocompleteContext) ChannelID() string { return c.itx.ChannelID }

func (c *AutocompleteContext) GuildID() string { return c.itx.GuildID }

func (c *AutocompleteContext) CreatedAt() time.Time { return c.itx.CreatedAt }

func (c *AutocompleteContext) Locale() string { return c.itx.Locale }

func (c *AutocompleteContext) Options() []gateway.CommandOption { return c.options }

// Focused is the option the user is currently typing into.
func (c *AutocompleteContext) Focused() gateway.CommandOption { return c.focused }

func (c *AutocompleteContext) HasResponded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responded
}

// SetChoices sends the suggestion list. Only one response is allowed per
// autocomplete interaction.
func (c *AutocompleteContext) SetChoices(ctx context.Context, choices []gateway.AutocompleteChoice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.responded {
		return ErrChoicesAlreadySet
	}
	if err := c.rest.CreateAutocompleteResponse(ctx, c.itx.ID, c.itx.Token, choices); err != nil {
		return err
	}
	c.responded = true
	return nil
}
