package cmdctx

import (
	chatkit "github.com/kapu/chatkit"
	"github.com/kapu/chatkit/gateway"
	"github.com/kapu/chatkit/inject"
)

// SlashContext wraps one slash-command interaction with the leaf options
// already flattened past any sub-command grouping.
type SlashContext struct {
	appBase
	options []gateway.CommandOption
	byName  map[string]gateway.CommandOption
}

var _ chatkit.AppContext = (*SlashContext)(nil)

// NewSlashContext builds a context for an already-routed slash execution:
// fullName is the space-joined path down to the leaf command and options
// are that leaf's options.
func NewSlashContext(rest gateway.Rest, injector *inject.Client, itx *gateway.Interaction, fullName string, options []gateway.CommandOption, opts ...Option) *SlashContext {
	byName := make(map[string]gateway.CommandOption, len(options))
	for _, opt := range options {
		byName[opt.Name] = opt
	}
	c := &SlashContext{
		appBase: appBase{
			base: newBase(rest, injector, opts),
			itx:  itx,
			kind: chatkit.KindSlash,
		},
		options: options,
		byName:  byName,
	}
	c.triggeringName = fullName
	c.injection.SetSpecialCase(SlotContext, chatkit.Context(c))
	c.injection.SetSpecialCase(SlotAppContext, chatkit.AppContext(c))
	c.injection.SetSpecialCase(SlotSlashContext, c)
	return c
}

// Options returns the leaf options in the order the platform sent them.
func (c *SlashContext) Options() []gateway.CommandOption { return c.options }

func (c *SlashContext) Option(name string) (gateway.CommandOption, bool) {
	opt, ok := c.byName[name]
	return opt, ok
}

func (c *SlashContext) StringOption(name string) (string, bool) {
	opt, ok := c.byName[name]
	if !ok {
		return "", false
	}
	s, ok := opt.Value.(string)
	return s, ok
}

func (c *SlashContext) IntOption(name string) (int64, bool) {
	opt, ok := c.byName[name]
	if !ok {
		return 0, false
	}
	switch v := opt.Value.(type) {
	case int64:
		return v, true
	case float64:
		// JSON numbers decode as float64.
		return int64(v), true
	default:
		return 0, false
	}
}

func (c *SlashContext) FloatOption(name string) (float64, bool) {
	opt, ok := c.byName[name]
	if !ok {
		return 0, false
	}
	f, ok := opt.Value.(float64)
	return f, ok
}

func (c *SlashContext) BoolOption(name string) (bool, bool) {
	opt, ok := c.byName[name]
	if !ok {
		return false, false
	}
	b, ok := opt.Value.(bool)
	return b, ok
}
