// Package command implements commands, components and the dispatching
// client: routing inbound messages and interactions to command callbacks
// through checks, hooks and the injection engine.
package command

import (
	"context"
	"fmt"

	chatkit "github.com/kapu/chatkit"
	"github.com/kapu/chatkit/cmdctx"
	"github.com/kapu/chatkit/gateway"
	"github.com/kapu/chatkit/inject"
)

// runChecks evaluates checks in order. The first Block or Halt outcome, or
// the first unexpected error, wins.
func runChecks(ctx context.Context, c chatkit.Context, checks []chatkit.Check) (chatkit.CheckOutcome, error) {
	for _, check := range checks {
		outcome, err := check(ctx, c)
		if err != nil {
			return chatkit.CheckBlock, err
		}
		if outcome != chatkit.CheckPass {
			return outcome, nil
		}
	}
	return chatkit.CheckPass, nil
}

// MessageCommand is a prefix-triggered command with one or more names.
type MessageCommand struct {
	names    []string
	callback *inject.CallbackDescriptor
	checks   []chatkit.Check
	hooks    Hooks
}

// NewMessageCommand wires a callback descriptor to one or more names; the
// first name is the primary one.
func NewMessageCommand(callback *inject.CallbackDescriptor, names ...string) *MessageCommand {
	if len(names) == 0 {
		panic("command: message command needs at least one name")
	}
	return &MessageCommand{names: names, callback: callback}
}

// MessageHandler adapts a plain message handler function into a callback
// descriptor that receives its execution context through injection.
func MessageHandler(name string, fn func(ctx context.Context, c *cmdctx.MessageContext) error) *inject.CallbackDescriptor {
	return inject.NewCallback(name, func(ctx context.Context, args inject.Args) (any, error) {
		c := inject.MustArg[*cmdctx.MessageContext](args, "cmdContext")
		return nil, fn(ctx, c)
	}, inject.WithType[*cmdctx.MessageContext]("cmdContext", cmdctx.SlotMessageContext))
}

func (m *MessageCommand) Names() []string { return m.names }

func (m *MessageCommand) Name() string { return m.names[0] }

func (m *MessageCommand) AddCheck(check chatkit.Check) *MessageCommand {
	m.checks = append(m.checks, check)
	return m
}

func (m *MessageCommand) Hooks() *Hooks { return &m.hooks }

func (m *MessageCommand) execute(ctx context.Context, c *cmdctx.MessageContext) error {
	_, err := m.callback.Resolve(ctx, c.Injection(), nil)
	return err
}

// SlashCommand is a slash command or a sub-command group. Groups carry no
// callback of their own and route through their sub-commands.
type SlashCommand struct {
	name        string
	description string
	callback    *inject.CallbackDescriptor

	subcommands map[string]*SlashCommand
	subOrder    []string

	checks []chatkit.Check
	hooks  Hooks

	defaultToEphemeral bool
	autocompletes      map[string]*inject.CallbackDescriptor
}

func NewSlashCommand(name, description string, callback *inject.CallbackDescriptor) *SlashCommand {
	return &SlashCommand{name: name, description: description, callback: callback}
}

// NewSlashGroup declares a name that only exists to hold sub-commands.
func NewSlashGroup(name, description string) *SlashCommand {
	return &SlashCommand{name: name, description: description}
}

// SlashHandler adapts a plain slash handler function into a callback
// descriptor that receives its execution context through injection.
func SlashHandler(name string, fn func(ctx context.Context, c *cmdctx.SlashContext) error) *inject.CallbackDescriptor {
	return inject.NewCallback(name, func(ctx context.Context, args inject.Args) (any, error) {
		c := inject.MustArg[*cmdctx.SlashContext](args, "cmdContext")
		return nil, fn(ctx, c)
	}, inject.WithType[*cmdctx.SlashContext]("cmdContext", cmdctx.SlotSlashContext))
}

func (s *SlashCommand) Name() string { return s.name }

func (s *SlashCommand) Description() string { return s.description }

func (s *SlashCommand) AddCheck(check chatkit.Check) *SlashCommand {
	s.checks = append(s.checks, check)
	return s
}

func (s *SlashCommand) Hooks() *Hooks { return &s.hooks }

// SetDefaultToEphemeral makes responses from this command ephemeral unless
// a response overrides it.
func (s *SlashCommand) SetDefaultToEphemeral(v bool) *SlashCommand {
	s.defaultToEphemeral = v
	return s
}

func (s *SlashCommand) AddSubcommand(sub *SlashCommand) *SlashCommand {
	if s.subcommands == nil {
		s.subcommands = make(map[string]*SlashCommand)
	}
	if _, exists := s.subcommands[sub.name]; !exists {
		s.subOrder = append(s.subOrder, sub.name)
	}
	s.subcommands[sub.name] = sub
	return s
}

func (s *SlashCommand) Subcommands() []*SlashCommand {
	out := make([]*SlashCommand, 0, len(s.subOrder))
	for _, name := range s.subOrder {
		out = append(out, s.subcommands[name])
	}
	return out
}

// SetAutocomplete attaches an autocomplete callback for one option name.
func (s *SlashCommand) SetAutocomplete(option string, callback *inject.CallbackDescriptor) *SlashCommand {
	if s.autocompletes == nil {
		s.autocompletes = make(map[string]*inject.CallbackDescriptor)
	}
	s.autocompletes[option] = callback
	return s
}

// AutocompleteHandler adapts a plain autocomplete function into a callback
// descriptor that receives its execution context through injection.
func AutocompleteHandler(name string, fn func(ctx context.Context, c *cmdctx.AutocompleteContext) error) *inject.CallbackDescriptor {
	return inject.NewCallback(name, func(ctx context.Context, args inject.Args) (any, error) {
		c := inject.MustArg[*cmdctx.AutocompleteContext](args, "cmdContext")
		return nil, fn(ctx, c)
	}, inject.WithType[*cmdctx.AutocompleteContext]("cmdContext", cmdctx.SlotAutocompleteContext))
}

// resolveLeaf walks sub-command and group options down to the executable
// leaf, returning it with the space-joined full name and the leaf's own
// options.
func (s *SlashCommand) resolveLeaf(options []gateway.CommandOption) (*SlashCommand, string, []gateway.CommandOption, error) {
	current := s
	fullName := s.name
	for len(options) == 1 &&
		(options[0].Type == gateway.OptionSubCommand || options[0].Type == gateway.OptionSubCommandGroup) {
		sub, ok := current.subcommands[options[0].Name]
		if !ok {
			return nil, "", nil, fmt.Errorf("command: unknown sub-command %q under %q", options[0].Name, fullName)
		}
		current = sub
		fullName += " " + sub.name
		options = options[0].Options
	}
	if current.callback == nil {
		return nil, "", nil, fmt.Errorf("command: %q is a group with no executable leaf", fullName)
	}
	return current, fullName, options, nil
}

func (s *SlashCommand) execute(ctx context.Context, c *cmdctx.SlashContext) error {
	_, err := s.callback.Resolve(ctx, c.Injection(), nil)
	return err
}

// MenuCommand is a context-menu command on users or messages.
type MenuCommand struct {
	name     string
	kind     chatkit.CommandKind
	callback *inject.CallbackDescriptor
	checks   []chatkit.Check
	hooks    Hooks

	defaultToEphemeral bool
}

// NewMenuCommand builds a menu command; kind must be KindUserMenu or
// KindMessageMenu.
func NewMenuCommand(name string, kind chatkit.CommandKind, callback *inject.CallbackDescriptor) *MenuCommand {
	if kind != chatkit.KindUserMenu && kind != chatkit.KindMessageMenu {
		panic("command: menu command kind must be a user or message menu")
	}
	return &MenuCommand{name: name, kind: kind, callback: callback}
}

// MenuHandler adapts a plain menu handler function into a callback
// descriptor that receives its execution context through injection.
func MenuHandler(name string, fn func(ctx context.Context, c *cmdctx.MenuContext) error) *inject.CallbackDescriptor {
	return inject.NewCallback(name, func(ctx context.Context, args inject.Args) (any, error) {
		c := inject.MustArg[*cmdctx.MenuContext](args, "cmdContext")
		return nil, fn(ctx, c)
	}, inject.WithType[*cmdctx.MenuContext]("cmdContext", cmdctx.SlotMenuContext))
}

func (m *MenuCommand) Name() string { return m.name }

func (m *MenuCommand) Kind() chatkit.CommandKind { return m.kind }

func (m *MenuCommand) AddCheck(check chatkit.Check) *MenuCommand {
	m.checks = append(m.checks, check)
	return m
}

func (m *MenuCommand) Hooks() *Hooks { return &m.hooks }

func (m *MenuCommand) SetDefaultToEphemeral(v bool) *MenuCommand {
	m.defaultToEphemeral = v
	return m
}

func (m *MenuCommand) execute(ctx context.Context, c *cmdctx.MenuContext) error {
	_, err := m.callback.Resolve(ctx, c.Injection(), nil)
	return err
}
