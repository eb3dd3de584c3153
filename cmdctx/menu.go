package cmdctx

import (
	chatkit "github.com/kapu/chatkit"
	"github.com/kapu/chatkit/gateway"
	"github.com/kapu/chatkit/inject"
)

// MenuContext wraps a context-menu interaction targeting a user or a
// message. The response state machine is identical to slash commands; only
// the payload differs.
type MenuContext struct {
	appBase
}

var _ chatkit.AppContext = (*MenuContext)(nil)

func NewMenuContext(rest gateway.Rest, injector *inject.Client, itx *gateway.Interaction, opts ...Option) *MenuContext {
	kind := chatkit.KindUserMenu
	if itx.Type == gateway.InteractionMessageMenu {
		kind = chatkit.KindMessageMenu
	}
	c := &MenuContext{
		appBase: appBase{
			base: newBase(rest, injector, opts),
			itx:  itx,
			kind: kind,
		},
	}
	c.triggeringName = itx.CommandName
	c.injection.SetSpecialCase(SlotContext, chatkit.Context(c))
	c.injection.SetSpecialCase(SlotAppContext, chatkit.AppContext(c))
	c.injection.SetSpecialCase(SlotMenuContext, c)
	return c
}

// TargetUser is the user the menu was invoked on; nil for message menus.
func (c *MenuContext) TargetUser() *gateway.User { return c.itx.TargetUser }

// TargetMessage is the message the menu was invoked on; nil for user menus.
func (c *MenuContext) TargetMessage() *gateway.Message { return c.itx.TargetMessage }
