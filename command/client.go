package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	chatkit "github.com/kapu/chatkit"
	"github.com/kapu/chatkit/cmdctx"
	"github.com/kapu/chatkit/gateway"
	"github.com/kapu/chatkit/inject"
	"github.com/kapu/chatkit/internal/clock"
	"github.com/kapu/chatkit/locale"
)

const defaultNotFoundMessage = "Command not found"

// NotFoundCallback runs when a prefixed message matched no command.
type NotFoundCallback func(ctx context.Context, c *cmdctx.MessageContext) error

type ClientOption func(*Client)

func WithPrefixes(prefixes ...string) ClientOption {
	return func(c *Client) { c.prefixes = prefixes }
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func WithClock(now clock.Clock) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithLocaliser enables localisation of CommandError replies and the
// interaction not-found message.
func WithLocaliser(l *locale.Localiser) ClientOption {
	return func(c *Client) { c.localiser = l }
}

// WithDefaultLocale sets the locale used for contexts that carry none,
// such as message commands.
func WithDefaultLocale(loc string) ClientOption {
	return func(c *Client) { c.defaultLocale = loc }
}

// WithAutoDefer makes interaction executions defer automatically after d
// unless the command responded first.
func WithAutoDefer(d time.Duration) ClientOption {
	return func(c *Client) { c.autoDeferAfter = d }
}

// WithInteractionNotFound overrides the terminal reply sent when an
// interaction matched no command.
func WithInteractionNotFound(message string) ClientOption {
	return func(c *Client) { c.notFoundMessage = message }
}

func WithMessageNotFound(cb NotFoundCallback) ClientOption {
	return func(c *Client) { c.notFoundCallbacks = append(c.notFoundCallbacks, cb) }
}

// WithDispatchConcurrency caps concurrent dispatch goroutines; zero means
// unlimited.
func WithDispatchConcurrency(n int) ClientOption {
	return func(c *Client) { c.concurrency = n }
}

// Client routes inbound messages and interactions to registered
// components. Each unit of work gets a fresh execution context and its own
// injection scope; dispatch runs on a tracked pool drained by Close.
type Client struct {
	rest     gateway.Rest
	injector *inject.Client
	logger   *zap.Logger
	now      clock.Clock

	prefixes          []string
	localiser         *locale.Localiser
	defaultLocale     string
	autoDeferAfter    time.Duration
	notFoundMessage   string
	notFoundCallbacks []NotFoundCallback
	concurrency       int

	mu         sync.RWMutex
	components []*Component
	checks     []chatkit.Check
	hooks      Hooks

	lifecycleMu sync.Mutex
	opened      bool
	baseCtx     context.Context
	cancel      context.CancelFunc
	tasks       *pool.Pool
}

func NewClient(rest gateway.Rest, injector *inject.Client, opts ...ClientOption) *Client {
	c := &Client{
		rest:            rest,
		injector:        injector,
		logger:          zap.NewNop(),
		now:             clock.System(),
		notFoundMessage: defaultNotFoundMessage,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Injector() *inject.Client { return c.injector }

func (c *Client) AddComponent(component *Component) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, component)
	return c
}

func (c *Client) AddCheck(check chatkit.Check) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check)
	return c
}

func (c *Client) Hooks() *Hooks { return &c.hooks }

// Open opens the injector client and starts the dispatch pool. Double open
// is an error.
func (c *Client) Open(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.opened {
		return errors.New("command: client is already open")
	}
	if err := c.injector.Open(ctx); err != nil {
		return err
	}
	c.baseCtx, c.cancel = context.WithCancel(context.Background())
	p := pool.New()
	if c.concurrency > 0 {
		p = p.WithMaxGoroutines(c.concurrency)
	}
	c.tasks = p
	c.opened = true
	c.logger.Info("command client opened",
		zap.Int("components", len(c.components)),
		zap.Strings("prefixes", c.prefixes))
	return nil
}

// Close cancels in-flight dispatches, waits for the pool to drain and
// closes the injector client.
func (c *Client) Close() error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if !c.opened {
		return errors.New("command: client is not open")
	}
	c.cancel()
	c.tasks.Wait()
	c.opened = false
	c.logger.Info("command client closed")
	return c.injector.Close()
}

// DispatchMessage schedules message handling on the dispatch pool.
func (c *Client) DispatchMessage(msg *gateway.Message) {
	c.dispatch(func(ctx context.Context) {
		if err := c.HandleMessage(ctx, msg); err != nil {
			c.logger.Error("message dispatch failed",
				zap.String("channel_id", msg.ChannelID),
				zap.Error(err))
		}
	})
}

// DispatchInteraction schedules interaction handling on the dispatch pool.
func (c *Client) DispatchInteraction(itx *gateway.Interaction) {
	c.dispatch(func(ctx context.Context) {
		if err := c.HandleInteraction(ctx, itx); err != nil {
			c.logger.Error("interaction dispatch failed",
				zap.String("interaction_id", itx.ID),
				zap.String("command", itx.CommandName),
				zap.Error(err))
		}
	})
}

func (c *Client) dispatch(fn func(ctx context.Context)) {
	c.lifecycleMu.Lock()
	if !c.opened {
		c.lifecycleMu.Unlock()
		c.logger.Warn("dispatch on closed client dropped")
		return
	}
	ctx := c.baseCtx
	tasks := c.tasks
	c.lifecycleMu.Unlock()
	tasks.Go(func() { fn(ctx) })
}

func (c *Client) contextOptions() []cmdctx.Option {
	return []cmdctx.Option{cmdctx.WithClock(c.now), cmdctx.WithLogger(c.logger)}
}

func (c *Client) componentsSnapshot() []*Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.components
}

func (c *Client) checksSnapshot() []chatkit.Check {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.checks
}

// localise renders a CommandError through the localiser when it carries a
// localisation ID; otherwise its plain message.
func (c *Client) localise(cmdErr *chatkit.CommandError, loc string) string {
	if c.localiser != nil && cmdErr.LocaliseID != "" {
		return c.localiser.Localise(cmdErr.LocaliseID, loc, cmdErr.Message, cmdErr.Args...)
	}
	return cmdErr.Error()
}

// contextLocale falls back to the client default for contexts without one.
func (c *Client) contextLocale(ec chatkit.Context) string {
	if loc := ec.Locale(); loc != "" {
		return loc
	}
	return c.defaultLocale
}

// stripPrefix reports the content after the first matching prefix.
func (c *Client) stripPrefix(content string) (string, bool) {
	for _, prefix := range c.prefixes {
		if strings.HasPrefix(content, prefix) {
			return strings.TrimLeft(content[len(prefix):], " "), true
		}
	}
	return "", false
}

// HandleMessage runs the full message dispatch flow synchronously: prefix
// match, client checks, then components in order until one executes.
func (c *Client) HandleMessage(ctx context.Context, msg *gateway.Message) error {
	content, ok := c.stripPrefix(msg.Content)
	if !ok {
		return nil
	}

	ec := cmdctx.NewMessageContext(c.rest, c.injector, msg, c.contextOptions()...)
	ec.SetContent(content)

	outcome, err := runChecks(ctx, ec, c.checksSnapshot())
	if err != nil {
		c.reportCheckError(ctx, ec, err)
		return nil
	}
	if outcome != chatkit.CheckPass {
		return nil
	}

	for _, component := range c.componentsSnapshot() {
		cmd, name, found := component.matchMessage(content)
		if !found {
			continue
		}

		outcome, err := runChecks(ctx, ec, component.checksSnapshot())
		if err != nil {
			c.reportCheckError(ctx, ec, err)
			return nil
		}
		if outcome == chatkit.CheckHalt {
			return nil
		}
		if outcome == chatkit.CheckBlock {
			continue
		}

		outcome, err = runChecks(ctx, ec, cmd.checks)
		if err != nil {
			c.reportCheckError(ctx, ec, err)
			return nil
		}
		if outcome == chatkit.CheckHalt {
			return nil
		}
		if outcome == chatkit.CheckBlock {
			continue
		}

		ec.SetTriggeringName(name)
		ec.SetContent(stripName(content, name))
		chain := hookChain{&c.hooks, &component.hooks, &cmd.hooks}
		c.runExecution(ctx, ec, chain, fmt.Sprintf("message command %s", name), func() error {
			return cmd.execute(ctx, ec)
		})
		return nil
	}

	for _, cb := range c.notFoundCallbacks {
		if err := cb(ctx, ec); err != nil {
			c.logger.Error("message not-found callback failed", zap.Error(err))
		}
	}
	return nil
}

// HandleInteraction routes an interaction by type: commands get the full
// check/hook pipeline, autocompletes only resolve their callback.
func (c *Client) HandleInteraction(ctx context.Context, itx *gateway.Interaction) error {
	switch itx.Type {
	case gateway.InteractionSlash:
		return c.handleSlash(ctx, itx)
	case gateway.InteractionUserMenu, gateway.InteractionMessageMenu:
		return c.handleMenu(ctx, itx)
	case gateway.InteractionAutocomplete:
		return c.handleAutocomplete(ctx, itx)
	default:
		return fmt.Errorf("command: unhandled interaction type %d", itx.Type)
	}
}

func (c *Client) handleSlash(ctx context.Context, itx *gateway.Interaction) error {
	for _, component := range c.componentsSnapshot() {
		root, ok := component.slashCommand(itx.CommandName)
		if !ok {
			continue
		}
		leaf, fullName, leafOptions, err := root.resolveLeaf(itx.Options)
		if err != nil {
			c.logger.Warn("slash command routing failed",
				zap.String("command", itx.CommandName),
				zap.Error(err))
			return c.respondNotFoundSlash(ctx, itx)
		}

		ec := cmdctx.NewSlashContext(c.rest, c.injector, itx, fullName, leafOptions, c.contextOptions()...)
		ec.SetEphemeralDefault(leaf.defaultToEphemeral)

		switch c.prepareAppExecution(ctx, ec, component, leaf.checks) {
		case chatkit.CheckBlock:
			continue
		case chatkit.CheckHalt:
			return c.respondNotFound(ctx, ec)
		}

		chain := hookChain{&c.hooks, &component.hooks, &leaf.hooks}
		c.runExecution(ctx, ec, chain, fmt.Sprintf("slash command %s", fullName), func() error {
			return leaf.execute(ctx, ec)
		})
		return nil
	}
	return c.respondNotFoundSlash(ctx, itx)
}

func (c *Client) handleMenu(ctx context.Context, itx *gateway.Interaction) error {
	kind := chatkit.KindUserMenu
	if itx.Type == gateway.InteractionMessageMenu {
		kind = chatkit.KindMessageMenu
	}
	for _, component := range c.componentsSnapshot() {
		cmd, ok := component.menuCommand(itx.CommandName, kind)
		if !ok {
			continue
		}

		ec := cmdctx.NewMenuContext(c.rest, c.injector, itx, c.contextOptions()...)
		ec.SetEphemeralDefault(cmd.defaultToEphemeral)

		switch c.prepareAppExecution(ctx, ec, component, cmd.checks) {
		case chatkit.CheckBlock:
			continue
		case chatkit.CheckHalt:
			return c.respondNotFound(ctx, ec)
		}

		chain := hookChain{&c.hooks, &component.hooks, &cmd.hooks}
		c.runExecution(ctx, ec, chain, fmt.Sprintf("menu command %s", cmd.name), func() error {
			return cmd.execute(ctx, ec)
		})
		return nil
	}

	ec := cmdctx.NewMenuContext(c.rest, c.injector, itx, c.contextOptions()...)
	return c.respondNotFound(ctx, ec)
}

func (c *Client) handleAutocomplete(ctx context.Context, itx *gateway.Interaction) error {
	for _, component := range c.componentsSnapshot() {
		root, ok := component.slashCommand(itx.CommandName)
		if !ok {
			continue
		}
		leaf, fullName, leafOptions, err := root.resolveLeaf(itx.Options)
		if err != nil {
			c.logger.Warn("autocomplete routing failed",
				zap.String("command", itx.CommandName),
				zap.Error(err))
			return c.respondEmptyChoices(ctx, itx)
		}

		ec := cmdctx.NewAutocompleteContext(c.rest, c.injector, itx, fullName, leafOptions, c.contextOptions()...)
		callback, ok := leaf.autocompletes[ec.Focused().Name]
		if !ok {
			c.logger.Warn("no autocomplete callback registered",
				zap.String("command", fullName),
				zap.String("option", ec.Focused().Name))
			return ec.SetChoices(ctx, nil)
		}
		_, err = callback.Resolve(ctx, ec.Injection(), nil)
		return err
	}
	c.logger.Warn("autocomplete for unknown command",
		zap.String("command", itx.CommandName))
	return c.respondEmptyChoices(ctx, itx)
}

// respondEmptyChoices terminates an autocomplete interaction that matched
// no callback; an empty suggestion list is its terminal response.
func (c *Client) respondEmptyChoices(ctx context.Context, itx *gateway.Interaction) error {
	ec := cmdctx.NewAutocompleteContext(c.rest, c.injector, itx, itx.CommandName, itx.Options, c.contextOptions()...)
	return ec.SetChoices(ctx, nil)
}

// prepareAppExecution runs client, component and command checks and, on a
// full pass, starts the auto-defer timer. A check error is reported and
// treated as Block.
func (c *Client) prepareAppExecution(ctx context.Context, ec chatkit.AppContext, component *Component, cmdChecks []chatkit.Check) chatkit.CheckOutcome {
	for _, checks := range [][]chatkit.Check{c.checksSnapshot(), component.checksSnapshot(), cmdChecks} {
		outcome, err := runChecks(ctx, ec, checks)
		if err != nil {
			c.reportCheckError(ctx, ec, err)
			return chatkit.CheckBlock
		}
		if outcome != chatkit.CheckPass {
			return outcome
		}
	}

	if c.autoDeferAfter > 0 {
		if err := ec.StartDeferTimer(c.autoDeferAfter); err != nil {
			c.logger.Warn("auto-defer timer not started", zap.Error(err))
		}
	}
	return chatkit.CheckPass
}

func (c *Client) respondNotFoundSlash(ctx context.Context, itx *gateway.Interaction) error {
	ec := cmdctx.NewSlashContext(c.rest, c.injector, itx, itx.CommandName, nil, c.contextOptions()...)
	return c.respondNotFound(ctx, ec)
}

// respondNotFound guarantees the interaction a terminal response.
func (c *Client) respondNotFound(ctx context.Context, ec chatkit.AppContext) error {
	if ec.HasResponded() || ec.HasBeenDeferred() {
		return nil
	}
	message := c.notFoundMessage
	if c.localiser != nil {
		message = c.localiser.Localise(locale.IDNotFound, c.contextLocale(ec), message)
	}
	return ec.CreateInitialResponse(ctx, gateway.Response{Content: message, Ephemeral: true})
}

func (c *Client) reportCheckError(ctx context.Context, ec chatkit.Context, err error) {
	if c.hooks.runError(ctx, ec, err) {
		return
	}
	c.logger.Error("check failed unexpectedly",
		zap.String("kind", ec.Kind().String()),
		zap.Error(err))
}

// runExecution is the shared hook/error boundary around one command body.
// Intentional failures become user-facing replies; anything unexpected is
// routed to error hooks and otherwise logged and absorbed.
func (c *Client) runExecution(ctx context.Context, ec chatkit.Context, chain hookChain, identity string, execute func() error) {
	if err := chain.runPre(ctx, ec); err != nil {
		c.reportExecutionError(ctx, ec, chain, identity, err)
		return
	}

	err := execute()

	switch {
	case err == nil:
		chain.runSuccess(ctx, ec)
	default:
		c.reportExecutionError(ctx, ec, chain, identity, err)
	}

	if err := chain.runPost(ctx, ec); err != nil {
		c.logger.Error("post-execution hook failed",
			zap.String("command", identity),
			zap.Error(err))
	}
}

func (c *Client) reportExecutionError(ctx context.Context, ec chatkit.Context, chain hookChain, identity string, err error) {
	var cmdErr *chatkit.CommandError
	var parserErr *chatkit.ParserError
	switch {
	case errors.Is(err, chatkit.ErrHaltExecution):
		// Absorbed silently: halting is control flow, not a failure.
	case errors.As(err, &cmdErr):
		if respondErr := ec.Respond(ctx, c.localise(cmdErr, c.contextLocale(ec))); respondErr != nil {
			c.logger.Error("failed to deliver command error reply",
				zap.String("command", identity),
				zap.Error(respondErr))
		}
	case errors.As(err, &parserErr):
		if chain.runParserError(ctx, ec, parserErr) {
			return
		}
		if respondErr := ec.Respond(ctx, parserErr.Error()); respondErr != nil {
			c.logger.Error("failed to deliver parser error reply",
				zap.String("command", identity),
				zap.Error(respondErr))
		}
	default:
		if chain.runError(ctx, ec, err) {
			return
		}
		c.logger.Error("command execution failed",
			zap.String("command", identity),
			zap.Error(err))
	}
}
