package command

import (
	"sync"

	chatkit "github.com/kapu/chatkit"
)

type menuKey struct {
	name string
	kind chatkit.CommandKind
}

// Component groups related commands with shared checks and hooks. The
// client tries components in registration order and at most one executes
// per inbound unit of work.
type Component struct {
	name string

	mu              sync.RWMutex
	messageCommands []*MessageCommand
	slashCommands   map[string]*SlashCommand
	menuCommands    map[menuKey]*MenuCommand

	checks []chatkit.Check
	hooks  Hooks
}

func NewComponent(name string) *Component {
	return &Component{
		name:          name,
		slashCommands: make(map[string]*SlashCommand),
		menuCommands:  make(map[menuKey]*MenuCommand),
	}
}

func (c *Component) Name() string { return c.name }

func (c *Component) AddCheck(check chatkit.Check) *Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check)
	return c
}

func (c *Component) Hooks() *Hooks { return &c.hooks }

func (c *Component) AddMessageCommand(cmd *MessageCommand) *Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageCommands = append(c.messageCommands, cmd)
	return c
}

func (c *Component) AddSlashCommand(cmd *SlashCommand) *Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slashCommands[cmd.name] = cmd
	return c
}

func (c *Component) AddMenuCommand(cmd *MenuCommand) *Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.menuCommands[menuKey{cmd.name, cmd.kind}] = cmd
	return c
}

func (c *Component) checksSnapshot() []chatkit.Check {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.checks
}

// matchMessage finds the message command whose longest name matches the
// start of content.
func (c *Component) matchMessage(content string) (*MessageCommand, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var bestCmd *MessageCommand
	bestName := ""
	for _, cmd := range c.messageCommands {
		name, ok := MatchPrefixNames(content, cmd.names)
		if !ok {
			continue
		}
		if bestCmd == nil || len(name) > len(bestName) {
			bestCmd = cmd
			bestName = name
		}
	}
	return bestCmd, bestName, bestCmd != nil
}

func (c *Component) slashCommand(name string) (*SlashCommand, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cmd, ok := c.slashCommands[name]
	return cmd, ok
}

func (c *Component) menuCommand(name string, kind chatkit.CommandKind) (*MenuCommand, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cmd, ok := c.menuCommands[menuKey{name, kind}]
	return cmd, ok
}
