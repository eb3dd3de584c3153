package gateway

import (
	"errors"
	"time"
)

// ErrNotFound is returned by Rest implementations when the targeted message
// or resource no longer exists.
var ErrNotFound = errors.New("gateway: not found")

// InteractionType identifies what kind of application command triggered an
// interaction.
type InteractionType int

const (
	InteractionUnknown InteractionType = iota
	InteractionSlash
	InteractionUserMenu
	InteractionMessageMenu
	InteractionAutocomplete
)

func (t InteractionType) String() string {
	switch t {
	case InteractionSlash:
		return "slash"
	case InteractionUserMenu:
		return "user_menu"
	case InteractionMessageMenu:
		return "message_menu"
	case InteractionAutocomplete:
		return "autocomplete"
	default:
		return "unknown"
	}
}

// OptionType identifies the payload of a single command option.
type OptionType int

const (
	OptionSubCommand OptionType = iota + 1
	OptionSubCommandGroup
	OptionString
	OptionInteger
	OptionBoolean
	OptionUser
	OptionChannel
	OptionRole
	OptionMentionable
	OptionFloat
	OptionAttachment
)

// CommandOption is one node of an interaction's option tree. Sub-command and
// sub-command-group options nest further options; leaf options carry a value.
type CommandOption struct {
	Name    string          `json:"name"`
	Type    OptionType      `json:"type"`
	Value   any             `json:"value,omitempty"`
	Options []CommandOption `json:"options,omitempty"`
	Focused bool            `json:"focused,omitempty"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsBot    bool   `json:"is_bot"`
}

// Member carries guild-scoped user state. Roles is optionally pre-populated
// by the event source; consumers fall back to a REST fetch when it is empty.
type Member struct {
	UserID   string   `json:"user_id"`
	Nickname string   `json:"nickname,omitempty"`
	RoleIDs  []string `json:"role_ids,omitempty"`
	Roles    []Role   `json:"-"`
}

type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type Channel struct {
	ID       string `json:"id"`
	GuildID  string `json:"guild_id,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Message is an inbound chat message, the trigger for text commands.
type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	GuildID   string    `json:"guild_id,omitempty"`
	Content   string    `json:"content"`
	Author    User      `json:"author"`
	Member    *Member   `json:"member,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Interaction is an inbound application-command invocation. The platform
// expects exactly one terminal response within its lifetime.
type Interaction struct {
	ID            string          `json:"id"`
	Token         string          `json:"token"`
	Type          InteractionType `json:"type"`
	CommandName   string          `json:"command_name"`
	Options       []CommandOption `json:"options,omitempty"`
	User          User            `json:"user"`
	Member        *Member         `json:"member,omitempty"`
	ChannelID     string          `json:"channel_id"`
	GuildID       string          `json:"guild_id,omitempty"`
	Locale        string          `json:"locale,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	TargetUser    *User           `json:"target_user,omitempty"`
	TargetMessage *Message        `json:"target_message,omitempty"`
}

// Response is the outbound payload for any of the response endpoints.
type Response struct {
	Content   string `json:"content"`
	Ephemeral bool   `json:"ephemeral,omitempty"`
	TTS       bool   `json:"tts,omitempty"`
}

// SentMessage identifies a message created through a response endpoint so
// that it can later be edited or deleted.
type SentMessage struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type AutocompleteChoice struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
