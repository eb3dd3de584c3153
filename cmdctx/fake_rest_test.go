package cmdctx

import (
	"context"
	"fmt"
	"sync"

	"github.com/kapu/chatkit/gateway"
)

// fakeRest records every call against the Rest surface and hands out
// sequential message IDs.
type fakeRest struct {
	mu     sync.Mutex
	calls  []string
	nextID int

	channel *gateway.Channel
	roles   []gateway.Role
	err     error
}

func newFakeRest() *fakeRest {
	return &fakeRest{nextID: 100}
}

func (f *fakeRest) record(call string) *gateway.SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.nextID++
	return &gateway.SentMessage{ID: fmt.Sprintf("msg-%d", f.nextID)}
}

func (f *fakeRest) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeRest) CreateMessage(_ context.Context, channelID string, r gateway.Response) (*gateway.SentMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record("create_message:" + channelID + ":" + r.Content), nil
}

func (f *fakeRest) EditMessage(_ context.Context, channelID, messageID string, r gateway.Response) (*gateway.SentMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record("edit_message:" + messageID), nil
}

func (f *fakeRest) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.record("delete_message:" + messageID)
	return f.err
}

func (f *fakeRest) CreateInitialResponse(_ context.Context, interactionID, token string, r gateway.Response) error {
	f.record("create_initial:" + r.Content)
	return f.err
}

func (f *fakeRest) CreateDeferredResponse(_ context.Context, interactionID, token string, ephemeral bool) error {
	f.record("create_deferred")
	return f.err
}

func (f *fakeRest) CreateFollowup(_ context.Context, token string, r gateway.Response) (*gateway.SentMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record("create_followup:" + r.Content), nil
}

func (f *fakeRest) EditInitialResponse(_ context.Context, token string, r gateway.Response) (*gateway.SentMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record("edit_initial:" + r.Content), nil
}

func (f *fakeRest) EditFollowup(_ context.Context, token, messageID string, r gateway.Response) (*gateway.SentMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record("edit_followup:" + messageID), nil
}

func (f *fakeRest) DeleteInitialResponse(_ context.Context, token string) error {
	f.record("delete_initial")
	return f.err
}

func (f *fakeRest) DeleteFollowup(_ context.Context, token, messageID string) error {
	f.record("delete_followup:" + messageID)
	return f.err
}

func (f *fakeRest) FetchInitialResponse(_ context.Context, token string) (*gateway.SentMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record("fetch_initial"), nil
}

func (f *fakeRest) FetchFollowup(_ context.Context, token, messageID string) (*gateway.SentMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record("fetch_followup:" + messageID), nil
}

func (f *fakeRest) CreateAutocompleteResponse(_ context.Context, interactionID, token string, choices []gateway.AutocompleteChoice) error {
	f.record(fmt.Sprintf("autocomplete:%d", len(choices)))
	return f.err
}

func (f *fakeRest) FetchChannel(_ context.Context, channelID string) (*gateway.Channel, error) {
	f.record("fetch_channel:" + channelID)
	if f.channel != nil {
		return f.channel, nil
	}
	return &gateway.Channel{ID: channelID}, nil
}

func (f *fakeRest) FetchGuildRoles(_ context.Context, guildID string) ([]gateway.Role, error) {
	f.record("fetch_roles:" + guildID)
	return f.roles, nil
}

var _ gateway.Rest = (*fakeRest)(nil)
