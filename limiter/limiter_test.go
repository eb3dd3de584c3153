package limiter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	chatkit "github.com/kapu/chatkit"
	"github.com/kapu/chatkit/gateway"
	"github.com/kapu/chatkit/internal/clock"
)

// fakeContext is a minimal execution context for key-resolution and
// counting tests.
type fakeContext struct {
	authorID  string
	channelID string
	guildID   string
	member    *gateway.Member
	channel   *gateway.Channel
	roles     []gateway.Role
	responses []string
}

func (f *fakeContext) AuthorID() string          { return f.authorID }
func (f *fakeContext) ChannelID() string         { return f.channelID }
func (f *fakeContext) GuildID() string           { return f.guildID }
func (f *fakeContext) Member() *gateway.Member   { return f.member }
func (f *fakeContext) CreatedAt() time.Time      { return time.Time{} }
func (f *fakeContext) TriggeringName() string    { return "test" }
func (f *fakeContext) Kind() chatkit.CommandKind { return chatkit.KindMessage }
func (f *fakeContext) Locale() string            { return "" }
func (f *fakeContext) HasResponded() bool        { return len(f.responses) > 0 }
func (f *fakeContext) HasBeenDeferred() bool     { return false }

func (f *fakeContext) Channel(_ context.Context) (*gateway.Channel, error) {
	if f.channel != nil {
		return f.channel, nil
	}
	return &gateway.Channel{ID: f.channelID, GuildID: f.guildID}, nil
}

func (f *fakeContext) MemberRoles(_ context.Context) ([]gateway.Role, error) {
	return f.roles, nil
}

func (f *fakeContext) Respond(_ context.Context, content string) error {
	f.responses = append(f.responses, content)
	return nil
}

var _ chatkit.Context = (*fakeContext)(nil)

func guildContext(user string) *fakeContext {
	return &fakeContext{authorID: user, channelID: "chan-1", guildID: "guild-1"}
}

func TestCooldownWaitSequence(t *testing.T) {
	stub := clock.NewStub(time.Unix(1000, 0))
	manager := NewInMemoryCooldownManager(WithCooldownClock(stub.Clock())).
		SetBucket("cmd", ResourceUser, 2, time.Minute)
	c := guildContext("user-1")

	for i := 0; i < 2; i++ {
		wait, err := manager.Check(context.Background(), "cmd", c, true)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if wait != nil {
			t.Fatalf("check %d reported wait %v, want none", i, wait)
		}
	}

	wait, err := manager.Check(context.Background(), "cmd", c, true)
	if err != nil {
		t.Fatalf("third check: %v", err)
	}
	if wait == nil {
		t.Fatal("third use must report a wait")
	}
	if want := stub.Now().Add(time.Minute); !wait.Equal(want) {
		t.Errorf("wait until %v, want %v", wait, want)
	}

	stub.Advance(61 * time.Second)
	wait, err = manager.Check(context.Background(), "cmd", c, true)
	if err != nil {
		t.Fatalf("check after lapse: %v", err)
	}
	if wait != nil {
		t.Errorf("lapsed bucket still reports wait %v", wait)
	}
}

func TestCooldownScopesByResource(t *testing.T) {
	stub := clock.NewStub(time.Unix(1000, 0))
	manager := NewInMemoryCooldownManager(WithCooldownClock(stub.Clock())).
		SetBucket("cmd", ResourceUser, 1, time.Minute)

	if wait, _ := manager.Check(context.Background(), "cmd", guildContext("a"), true); wait != nil {
		t.Fatal("first user blocked")
	}
	if wait, _ := manager.Check(context.Background(), "cmd", guildContext("a"), true); wait == nil {
		t.Error("same user not blocked")
	}
	if wait, _ := manager.Check(context.Background(), "cmd", guildContext("b"), true); wait != nil {
		t.Error("different user blocked by another user's bucket")
	}
}

func TestCooldownUnlimited(t *testing.T) {
	manager := NewInMemoryCooldownManager().SetBucket("cmd", ResourceUser, UnlimitedUses, time.Minute)
	c := guildContext("user-1")
	for i := 0; i < 50; i++ {
		if wait, err := manager.Check(context.Background(), "cmd", c, true); err != nil || wait != nil {
			t.Fatalf("unlimited bucket blocked at use %d (wait %v, err %v)", i, wait, err)
		}
	}
}

func TestCooldownCheckWithoutIncrement(t *testing.T) {
	stub := clock.NewStub(time.Unix(1000, 0))
	manager := NewInMemoryCooldownManager(WithCooldownClock(stub.Clock())).
		SetBucket("cmd", ResourceUser, 1, time.Minute)
	c := guildContext("user-1")

	// Peeking never consumes a use.
	for i := 0; i < 3; i++ {
		if wait, _ := manager.Check(context.Background(), "cmd", c, false); wait != nil {
			t.Fatalf("peek %d reported wait", i)
		}
	}
	if wait, _ := manager.Check(context.Background(), "cmd", c, true); wait != nil {
		t.Fatal("first real use blocked")
	}
	if wait, _ := manager.Check(context.Background(), "cmd", c, false); wait == nil {
		t.Error("peek on exhausted bucket reported no wait")
	}
}

func TestCooldownLifecycle(t *testing.T) {
	manager := NewInMemoryCooldownManager()
	if err := manager.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := manager.Open(); err == nil {
		t.Error("double open must error")
	}
	if err := manager.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := manager.Close(); err == nil {
		t.Error("double close must error")
	}
}

func TestConcurrencyAcquireIdempotentPerContext(t *testing.T) {
	limiter := NewConcurrencyLimiter().SetBucket("cmd", ResourceChannel, 1)
	first := guildContext("user-1")
	second := guildContext("user-2")

	if ok, err := limiter.TryAcquire(context.Background(), "cmd", first); err != nil || !ok {
		t.Fatalf("first acquire: %v/%v", ok, err)
	}
	// Same context again holds the same single slot.
	if ok, _ := limiter.TryAcquire(context.Background(), "cmd", first); !ok {
		t.Error("re-acquire for the same context must succeed")
	}
	// A different context in the same channel is over the limit.
	if ok, _ := limiter.TryAcquire(context.Background(), "cmd", second); ok {
		t.Error("second context acquired past the limit")
	}

	if err := limiter.Release(context.Background(), "cmd", first); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := limiter.TryAcquire(context.Background(), "cmd", second); !ok {
		t.Error("slot not freed after release")
	}
}

func TestConcurrencyReleaseWithoutAcquire(t *testing.T) {
	limiter := NewConcurrencyLimiter().SetBucket("cmd", ResourceChannel, 1)
	if err := limiter.Release(context.Background(), "cmd", guildContext("user-1")); err == nil {
		t.Error("release without acquire must error")
	}
}

func TestResolveKeyFallbacks(t *testing.T) {
	dm := &fakeContext{authorID: "user-1", channelID: "dm-1"}
	guild := guildContext("user-1")

	tests := []struct {
		name     string
		resource BucketResource
		c        *fakeContext
		want     string
	}{
		{"user", ResourceUser, guild, "user-1"},
		{"member in guild", ResourceMember, guild, "guild-1:user-1"},
		{"member in dm falls back to channel", ResourceMember, dm, "dm-1"},
		{"guild", ResourceGuild, guild, "guild-1"},
		{"guild in dm falls back to channel", ResourceGuild, dm, "dm-1"},
		{"global", ResourceGlobal, dm, "global"},
		{"top role in dm falls back to channel", ResourceTopRole, dm, "dm-1"},
	}
	for _, tt := range tests {
		got, err := resolveKey(context.Background(), tt.c, tt.resource)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: key %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestResolveKeyTopRole(t *testing.T) {
	c := guildContext("user-1")
	c.roles = []gateway.Role{
		{ID: "role-low", Position: 1},
		{ID: "role-high", Position: 9},
		{ID: "role-mid", Position: 4},
	}
	got, err := resolveKey(context.Background(), c, ResourceTopRole)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "role-high" {
		t.Errorf("key %q, want the highest role", got)
	}

	// Role-less members scope to the guild.
	c.roles = nil
	if got, _ = resolveKey(context.Background(), c, ResourceTopRole); got != "guild-1" {
		t.Errorf("key %q, want guild fallback", got)
	}
}

func TestResolveKeyParentChannel(t *testing.T) {
	thread := guildContext("user-1")
	thread.channel = &gateway.Channel{ID: "chan-1", GuildID: "guild-1", ParentID: "parent-1"}
	if got, _ := resolveKey(context.Background(), thread, ResourceParentChannel); got != "parent-1" {
		t.Errorf("key %q, want parent-1", got)
	}

	topLevel := guildContext("user-1")
	topLevel.channel = &gateway.Channel{ID: "chan-1", GuildID: "guild-1"}
	if got, _ := resolveKey(context.Background(), topLevel, ResourceParentChannel); got != "guild-1" {
		t.Errorf("key %q, want guild fallback", got)
	}
}

func TestCooldownHookProducesCommandError(t *testing.T) {
	stub := clock.NewStub(time.Unix(1000, 0))
	manager := NewInMemoryCooldownManager(WithCooldownClock(stub.Clock())).
		SetBucket("cmd", ResourceUser, 1, time.Minute)
	hook := CooldownPreExecution(manager, "cmd", WithHookClock(stub.Clock()))
	c := guildContext("user-1")

	if err := hook(context.Background(), c); err != nil {
		t.Fatalf("first use: %v", err)
	}
	err := hook(context.Background(), c)
	if err == nil {
		t.Fatal("exhausted bucket produced no error")
	}
	var cmdErr *chatkit.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("got %T, want *chatkit.CommandError", err)
	}
	if cmdErr.LocaliseID != LocaliseIDCooldown {
		t.Errorf("localise ID %q", cmdErr.LocaliseID)
	}
	// The wait is measured on the same clock the manager counts with, so a
	// full bucket one stub-minute from reset renders exactly that.
	if !strings.Contains(cmdErr.Error(), "1m0s") {
		t.Errorf("rendered wait %q, want a 1m0s wait", cmdErr.Error())
	}

	stub.Advance(45 * time.Second)
	err = hook(context.Background(), c)
	var laterErr *chatkit.CommandError
	if !errors.As(err, &laterErr) {
		t.Fatalf("got %T, want *chatkit.CommandError", err)
	}
	if !strings.Contains(laterErr.Error(), "15s") {
		t.Errorf("rendered wait %q, want the 15s remainder", laterErr.Error())
	}
}
