package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	chatkit "github.com/kapu/chatkit"
	"github.com/kapu/chatkit/cmdctx"
	"github.com/kapu/chatkit/gateway"
	"github.com/kapu/chatkit/inject"
)

// recordingRest captures outbound responses so dispatch tests can assert
// on what reached the platform.
type recordingRest struct {
	mu    sync.Mutex
	calls []string
}

func (f *recordingRest) record(call string) *gateway.SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return &gateway.SentMessage{ID: fmt.Sprintf("msg-%d", len(f.calls))}
}

func (f *recordingRest) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *recordingRest) CreateMessage(_ context.Context, channelID string, r gateway.Response) (*gateway.SentMessage, error) {
	return f.record("create_message:" + r.Content), nil
}

func (f *recordingRest) EditMessage(_ context.Context, _, messageID string, r gateway.Response) (*gateway.SentMessage, error) {
	return f.record("edit_message:" + messageID), nil
}

func (f *recordingRest) DeleteMessage(_ context.Context, _, messageID string) error {
	f.record("delete_message:" + messageID)
	return nil
}

func (f *recordingRest) CreateInitialResponse(_ context.Context, _, _ string, r gateway.Response) error {
	f.record("create_initial:" + r.Content)
	return nil
}

func (f *recordingRest) CreateDeferredResponse(_ context.Context, _, _ string, _ bool) error {
	f.record("create_deferred")
	return nil
}

func (f *recordingRest) CreateFollowup(_ context.Context, _ string, r gateway.Response) (*gateway.SentMessage, error) {
	return f.record("create_followup:" + r.Content), nil
}

func (f *recordingRest) EditInitialResponse(_ context.Context, _ string, r gateway.Response) (*gateway.SentMessage, error) {
	return f.record("edit_initial:" + r.Content), nil
}

func (f *recordingRest) EditFollowup(_ context.Context, _, messageID string, _ gateway.Response) (*gateway.SentMessage, error) {
	return f.record("edit_followup:" + messageID), nil
}

func (f *recordingRest) DeleteInitialResponse(_ context.Context, _ string) error {
	f.record("delete_initial")
	return nil
}

func (f *recordingRest) DeleteFollowup(_ context.Context, _, messageID string) error {
	f.record("delete_followup:" + messageID)
	return nil
}

func (f *recordingRest) FetchInitialResponse(_ context.Context, _ string) (*gateway.SentMessage, error) {
	return f.record("fetch_initial"), nil
}

func (f *recordingRest) FetchFollowup(_ context.Context, _, messageID string) (*gateway.SentMessage, error) {
	return f.record("fetch_followup:" + messageID), nil
}

func (f *recordingRest) CreateAutocompleteResponse(_ context.Context, _, _ string, choices []gateway.AutocompleteChoice) error {
	names := make([]string, len(choices))
	for i, choice := range choices {
		names[i] = choice.Name
	}
	f.record("autocomplete:" + strings.Join(names, ","))
	return nil
}

func (f *recordingRest) FetchChannel(_ context.Context, channelID string) (*gateway.Channel, error) {
	return &gateway.Channel{ID: channelID}, nil
}

func (f *recordingRest) FetchGuildRoles(_ context.Context, _ string) ([]gateway.Role, error) {
	return nil, nil
}

var _ gateway.Rest = (*recordingRest)(nil)

func newTestMessage(content string) *gateway.Message {
	return &gateway.Message{
		ID:        "msg-1",
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		Content:   content,
		Author:    gateway.User{ID: "user-1"},
		CreatedAt: time.Now(),
	}
}

func newSlashInteraction(name string, options ...gateway.CommandOption) *gateway.Interaction {
	return &gateway.Interaction{
		ID:          "itx-1",
		Token:       "token-1",
		Type:        gateway.InteractionSlash,
		CommandName: name,
		Options:     options,
		User:        gateway.User{ID: "user-1"},
		ChannelID:   "chan-1",
		GuildID:     "guild-1",
		CreatedAt:   time.Now(),
	}
}

func passCheck(_ context.Context, _ chatkit.Context) (chatkit.CheckOutcome, error) {
	return chatkit.CheckPass, nil
}

func blockCheck(_ context.Context, _ chatkit.Context) (chatkit.CheckOutcome, error) {
	return chatkit.CheckBlock, nil
}

func haltCheck(_ context.Context, _ chatkit.Context) (chatkit.CheckOutcome, error) {
	return chatkit.CheckHalt, nil
}

func TestHandleMessageRoutesToCommand(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient(), WithPrefixes("!"))

	var gotContent, gotName string
	cmd := NewMessageCommand(
		MessageHandler("echo", func(ctx context.Context, c *cmdctx.MessageContext) error {
			gotContent = c.Content()
			gotName = c.TriggeringName()
			return c.Respond(ctx, c.Content())
		}),
		"echo")
	client.AddComponent(NewComponent("main").AddMessageCommand(cmd))

	if err := client.HandleMessage(context.Background(), newTestMessage("!echo hello world")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if gotName != "echo" {
		t.Errorf("triggering name = %q", gotName)
	}
	if gotContent != "hello world" {
		t.Errorf("remaining content = %q", gotContent)
	}
	log := rest.callLog()
	if len(log) != 1 || log[0] != "create_message:hello world" {
		t.Errorf("call log = %v", log)
	}
}

func TestHandleMessageIgnoresUnprefixed(t *testing.T) {
	rest := &recordingRest{}
	executed := false
	client := NewClient(rest, inject.NewClient(), WithPrefixes("!"))
	client.AddComponent(NewComponent("main").AddMessageCommand(NewMessageCommand(
		MessageHandler("echo", func(ctx context.Context, c *cmdctx.MessageContext) error {
			executed = true
			return nil
		}), "echo")))

	if err := client.HandleMessage(context.Background(), newTestMessage("echo hello")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if executed {
		t.Error("command ran without prefix")
	}
}

func TestHandleMessageLongestNameWins(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient(), WithPrefixes("!"))

	ran := ""
	makeCmd := func(names ...string) *MessageCommand {
		return NewMessageCommand(
			MessageHandler(names[0], func(ctx context.Context, c *cmdctx.MessageContext) error {
				ran = names[0]
				return nil
			}), names...)
	}
	client.AddComponent(NewComponent("main").
		AddMessageCommand(makeCmd("hi")).
		AddMessageCommand(makeCmd("hime")).
		AddMessageCommand(makeCmd("boomer")))

	if err := client.HandleMessage(context.Background(), newTestMessage("!hime")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if ran != "hime" {
		t.Errorf("ran %q, want hime", ran)
	}
}

func TestHaltStopsAllDispatch(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient(), WithPrefixes("!"))

	executed := false
	handler := func(name string) *MessageCommand {
		return NewMessageCommand(
			MessageHandler(name, func(ctx context.Context, c *cmdctx.MessageContext) error {
				executed = true
				return nil
			}), name)
	}

	first := NewComponent("first").AddMessageCommand(handler("go"))
	first.AddCheck(haltCheck)
	second := NewComponent("second").AddMessageCommand(handler("go"))
	client.AddComponent(first).AddComponent(second)

	notFound := false
	clientWithNotFound := NewClient(rest, inject.NewClient(), WithPrefixes("!"),
		WithMessageNotFound(func(ctx context.Context, c *cmdctx.MessageContext) error {
			notFound = true
			return nil
		}))
	clientWithNotFound.AddComponent(first).AddComponent(second)

	if err := clientWithNotFound.HandleMessage(context.Background(), newTestMessage("!go")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if executed {
		t.Error("halt must prevent every remaining candidate")
	}
	if notFound {
		t.Error("halt must not fire not-found callbacks")
	}
}

func TestBlockTriesNextComponent(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient(), WithPrefixes("!"))

	ran := ""
	handler := func(tag string) *MessageCommand {
		return NewMessageCommand(
			MessageHandler(tag, func(ctx context.Context, c *cmdctx.MessageContext) error {
				ran = tag
				return nil
			}), "go")
	}
	blocked := NewComponent("blocked").AddMessageCommand(handler("blocked"))
	blocked.AddCheck(blockCheck)
	open := NewComponent("open").AddMessageCommand(handler("open"))
	client.AddComponent(blocked).AddComponent(open)

	if err := client.HandleMessage(context.Background(), newTestMessage("!go")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if ran != "open" {
		t.Errorf("ran %q, want the unblocked component's command", ran)
	}
}

func TestMessageNotFoundCallbacks(t *testing.T) {
	rest := &recordingRest{}
	notFound := false
	client := NewClient(rest, inject.NewClient(), WithPrefixes("!"),
		WithMessageNotFound(func(ctx context.Context, c *cmdctx.MessageContext) error {
			notFound = true
			return c.Respond(ctx, "unknown command")
		}))
	client.AddComponent(NewComponent("main"))

	if err := client.HandleMessage(context.Background(), newTestMessage("!nope")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !notFound {
		t.Error("not-found callback did not run")
	}
}

func TestCommandErrorBecomesReply(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient(), WithPrefixes("!"))
	client.AddComponent(NewComponent("main").AddMessageCommand(NewMessageCommand(
		MessageHandler("fail", func(ctx context.Context, c *cmdctx.MessageContext) error {
			return chatkit.NewCommandError("you cannot do %s", "that")
		}), "fail")))

	if err := client.HandleMessage(context.Background(), newTestMessage("!fail")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	log := rest.callLog()
	if len(log) != 1 || log[0] != "create_message:you cannot do that" {
		t.Errorf("call log = %v", log)
	}
}

func TestUnexpectedErrorRoutedToErrorHooks(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient(), WithPrefixes("!"))

	boom := errors.New("boom")
	var hookErr error
	client.Hooks().AddOnError(func(_ context.Context, _ chatkit.Context, err error) bool {
		hookErr = err
		return true
	})
	client.AddComponent(NewComponent("main").AddMessageCommand(NewMessageCommand(
		MessageHandler("fail", func(ctx context.Context, c *cmdctx.MessageContext) error {
			return boom
		}), "fail")))

	if err := client.HandleMessage(context.Background(), newTestMessage("!fail")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !errors.Is(hookErr, boom) {
		t.Errorf("error hook saw %v, want boom", hookErr)
	}
	if log := rest.callLog(); len(log) != 0 {
		t.Errorf("unexpected outbound calls: %v", log)
	}
}

func TestHookOrderAcrossLevels(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient(), WithPrefixes("!"))

	var order []string
	appendHook := func(tag string) chatkit.PreExecutionHook {
		return func(_ context.Context, _ chatkit.Context) error {
			order = append(order, tag)
			return nil
		}
	}
	client.Hooks().AddPreExecution(appendHook("client"))

	cmd := NewMessageCommand(
		MessageHandler("go", func(ctx context.Context, c *cmdctx.MessageContext) error {
			order = append(order, "body")
			return nil
		}), "go")
	cmd.Hooks().AddPreExecution(appendHook("command"))
	cmd.Hooks().AddOnSuccess(func(_ context.Context, _ chatkit.Context) {
		order = append(order, "success")
	})
	cmd.Hooks().AddPostExecution(func(_ context.Context, _ chatkit.Context) error {
		order = append(order, "post")
		return nil
	})

	component := NewComponent("main").AddMessageCommand(cmd)
	component.Hooks().AddPreExecution(appendHook("component"))
	client.AddComponent(component)

	if err := client.HandleMessage(context.Background(), newTestMessage("!go")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	want := "client,component,command,body,success,post"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestSlashSubcommandRouting(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient())

	var fullName, value string
	leaf := NewSlashCommand("set", "set a value",
		SlashHandler("set", func(ctx context.Context, c *cmdctx.SlashContext) error {
			fullName = c.TriggeringName()
			value, _ = c.StringOption("key")
			return c.Respond(ctx, "ok")
		}))
	group := NewSlashGroup("config", "configuration").AddSubcommand(leaf)
	client.AddComponent(NewComponent("main").AddSlashCommand(group))

	itx := newSlashInteraction("config", gateway.CommandOption{
		Name: "set",
		Type: gateway.OptionSubCommand,
		Options: []gateway.CommandOption{
			{Name: "key", Type: gateway.OptionString, Value: "prefix"},
		},
	})
	if err := client.HandleInteraction(context.Background(), itx); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if fullName != "config set" {
		t.Errorf("full name = %q, want config set", fullName)
	}
	if value != "prefix" {
		t.Errorf("option value = %q, want prefix", value)
	}
	log := rest.callLog()
	if len(log) != 1 || log[0] != "create_initial:ok" {
		t.Errorf("call log = %v", log)
	}
}

func TestInteractionNotFoundAlwaysResponds(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient(), WithInteractionNotFound("nothing here"))
	client.AddComponent(NewComponent("main"))

	if err := client.HandleInteraction(context.Background(), newSlashInteraction("ghost")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	log := rest.callLog()
	if len(log) != 1 || log[0] != "create_initial:nothing here" {
		t.Errorf("call log = %v", log)
	}
}

func TestSlashUnknownSubcommandStillResponds(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient())

	executed := false
	leaf := NewSlashCommand("set", "set a value",
		SlashHandler("set", func(ctx context.Context, c *cmdctx.SlashContext) error {
			executed = true
			return nil
		}))
	group := NewSlashGroup("config", "configuration").AddSubcommand(leaf)
	client.AddComponent(NewComponent("main").AddSlashCommand(group))

	itx := newSlashInteraction("config", gateway.CommandOption{
		Name: "unset",
		Type: gateway.OptionSubCommand,
	})
	if err := client.HandleInteraction(context.Background(), itx); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if executed {
		t.Error("unknown sub-command must not run a sibling")
	}
	log := rest.callLog()
	if len(log) != 1 || log[0] != "create_initial:"+defaultNotFoundMessage {
		t.Errorf("call log = %v, want the not-found reply", log)
	}
}

func TestAutocompleteUnknownSubcommandRespondsEmpty(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient())

	leaf := NewSlashCommand("set", "set a value",
		SlashHandler("set", func(ctx context.Context, c *cmdctx.SlashContext) error { return nil }))
	leaf.SetAutocomplete("key",
		AutocompleteHandler("set-key", func(ctx context.Context, c *cmdctx.AutocompleteContext) error {
			return c.SetChoices(ctx, []gateway.AutocompleteChoice{{Name: "prefix", Value: "prefix"}})
		}))
	group := NewSlashGroup("config", "configuration").AddSubcommand(leaf)
	client.AddComponent(NewComponent("main").AddSlashCommand(group))

	itx := newSlashInteraction("config", gateway.CommandOption{
		Name: "unset",
		Type: gateway.OptionSubCommand,
		Options: []gateway.CommandOption{
			{Name: "key", Type: gateway.OptionString, Value: "pre", Focused: true},
		},
	})
	itx.Type = gateway.InteractionAutocomplete
	if err := client.HandleInteraction(context.Background(), itx); err != nil {
		t.Fatalf("handle: %v", err)
	}
	log := rest.callLog()
	if len(log) != 1 || log[0] != "autocomplete:" {
		t.Errorf("call log = %v, want an empty choices response", log)
	}
}

func TestInteractionBlockedChecksStillRespond(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient())

	executed := false
	cmd := NewSlashCommand("guarded", "guarded command",
		SlashHandler("guarded", func(ctx context.Context, c *cmdctx.SlashContext) error {
			executed = true
			return nil
		}))
	cmd.AddCheck(blockCheck)
	client.AddComponent(NewComponent("main").AddSlashCommand(cmd))

	if err := client.HandleInteraction(context.Background(), newSlashInteraction("guarded")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if executed {
		t.Error("blocked command ran")
	}
	log := rest.callLog()
	if len(log) != 1 || !strings.HasPrefix(log[0], "create_initial:") {
		t.Errorf("blocked interaction got no terminal response: %v", log)
	}
}

func TestAutocompleteDispatch(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient())

	cmd := NewSlashCommand("greet", "greet someone",
		SlashHandler("greet", func(ctx context.Context, c *cmdctx.SlashContext) error { return nil }))
	cmd.SetAutocomplete("name",
		AutocompleteHandler("greet-name", func(ctx context.Context, c *cmdctx.AutocompleteContext) error {
			return c.SetChoices(ctx, []gateway.AutocompleteChoice{{Name: "world", Value: "world"}})
		}))
	client.AddComponent(NewComponent("main").AddSlashCommand(cmd))

	itx := newSlashInteraction("greet",
		gateway.CommandOption{Name: "name", Type: gateway.OptionString, Value: "wo", Focused: true})
	itx.Type = gateway.InteractionAutocomplete
	if err := client.HandleInteraction(context.Background(), itx); err != nil {
		t.Fatalf("handle: %v", err)
	}
	log := rest.callLog()
	if len(log) != 1 || log[0] != "autocomplete:world" {
		t.Errorf("call log = %v", log)
	}
}

func newMenuInteraction(name string, itype gateway.InteractionType) *gateway.Interaction {
	return &gateway.Interaction{
		ID:          "itx-1",
		Token:       "token-1",
		Type:        itype,
		CommandName: name,
		User:        gateway.User{ID: "user-1"},
		ChannelID:   "chan-1",
		GuildID:     "guild-1",
		CreatedAt:   time.Now(),
	}
}

func TestUserMenuDispatch(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient())

	var targetID string
	whois := NewMenuCommand("Who is this?", chatkit.KindUserMenu,
		MenuHandler("whois", func(ctx context.Context, c *cmdctx.MenuContext) error {
			targetID = c.TargetUser().ID
			return c.Respond(ctx, "user "+targetID)
		}))
	client.AddComponent(NewComponent("main").AddMenuCommand(whois))

	itx := newMenuInteraction("Who is this?", gateway.InteractionUserMenu)
	itx.TargetUser = &gateway.User{ID: "target-1", Username: "target"}
	if err := client.HandleInteraction(context.Background(), itx); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if targetID != "target-1" {
		t.Errorf("target user = %q, want target-1", targetID)
	}
	log := rest.callLog()
	if len(log) != 1 || log[0] != "create_initial:user target-1" {
		t.Errorf("call log = %v", log)
	}
}

func TestMessageMenuDispatch(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient())

	quote := NewMenuCommand("Quote", chatkit.KindMessageMenu,
		MenuHandler("quote", func(ctx context.Context, c *cmdctx.MenuContext) error {
			if c.TargetUser() != nil {
				t.Error("message menu must carry no target user")
			}
			return c.Respond(ctx, "quote "+c.TargetMessage().Content)
		}))
	client.AddComponent(NewComponent("main").AddMenuCommand(quote))

	itx := newMenuInteraction("Quote", gateway.InteractionMessageMenu)
	itx.TargetMessage = &gateway.Message{ID: "msg-9", Content: "hello"}
	if err := client.HandleInteraction(context.Background(), itx); err != nil {
		t.Fatalf("handle: %v", err)
	}
	log := rest.callLog()
	if len(log) != 1 || log[0] != "create_initial:quote hello" {
		t.Errorf("call log = %v", log)
	}
}

func TestMenuKindMismatchStillResponds(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient(), WithInteractionNotFound("nothing here"))

	executed := false
	whois := NewMenuCommand("Who is this?", chatkit.KindUserMenu,
		MenuHandler("whois", func(ctx context.Context, c *cmdctx.MenuContext) error {
			executed = true
			return nil
		}))
	client.AddComponent(NewComponent("main").AddMenuCommand(whois))

	// Same name, wrong surface: a message menu must not match the user
	// menu command, and the interaction still gets a terminal response.
	itx := newMenuInteraction("Who is this?", gateway.InteractionMessageMenu)
	itx.TargetMessage = &gateway.Message{ID: "msg-9", Content: "hello"}
	if err := client.HandleInteraction(context.Background(), itx); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if executed {
		t.Error("user menu command ran for a message menu interaction")
	}
	log := rest.callLog()
	if len(log) != 1 || log[0] != "create_initial:nothing here" {
		t.Errorf("call log = %v, want the not-found reply", log)
	}
}

func TestClientLifecycle(t *testing.T) {
	rest := &recordingRest{}
	client := NewClient(rest, inject.NewClient())

	if err := client.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := client.Open(context.Background()); err == nil {
		t.Error("double open must error")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := client.Close(); err == nil {
		t.Error("double close must error")
	}
}
