// Package limiter implements per-bucket cooldowns and concurrency limits
// for command execution, keyed by configurable scope resources, with
// in-memory and Redis-backed cooldown managers.
package limiter

import (
	"context"
	"fmt"

	chatkit "github.com/kapu/chatkit"
)

// BucketResource selects the scope a bucket counts against.
type BucketResource int8

const (
	// ResourceUser scopes per invoking user across all guilds.
	ResourceUser BucketResource = iota
	// ResourceMember scopes per (guild, user) pair; DMs fall back to the
	// channel.
	ResourceMember
	// ResourceChannel scopes per channel.
	ResourceChannel
	// ResourceParentChannel scopes per thread parent, falling back to the
	// guild for top-level channels and to the channel itself in DMs.
	ResourceParentChannel
	// ResourceTopRole scopes per the member's highest role; DMs fall back
	// to the channel, role-less members to the guild.
	ResourceTopRole
	// ResourceGuild scopes per guild; DMs fall back to the channel.
	ResourceGuild
	// ResourceGlobal is one shared scope for everything.
	ResourceGlobal
)

func (r BucketResource) String() string {
	switch r {
	case ResourceUser:
		return "user"
	case ResourceMember:
		return "member"
	case ResourceChannel:
		return "channel"
	case ResourceParentChannel:
		return "parent_channel"
	case ResourceTopRole:
		return "top_role"
	case ResourceGuild:
		return "guild"
	case ResourceGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// resolveKey maps an execution context onto the bucket key for a resource,
// applying the documented DM and missing-data fallbacks. TopRole and
// ParentChannel may hit REST when the event did not carry the data.
func resolveKey(ctx context.Context, c chatkit.Context, resource BucketResource) (string, error) {
	switch resource {
	case ResourceUser:
		return c.AuthorID(), nil

	case ResourceMember:
		if c.GuildID() == "" {
			return c.ChannelID(), nil
		}
		return c.GuildID() + ":" + c.AuthorID(), nil

	case ResourceChannel:
		return c.ChannelID(), nil

	case ResourceParentChannel:
		if c.GuildID() == "" {
			return c.ChannelID(), nil
		}
		channel, err := c.Channel(ctx)
		if err != nil {
			return "", fmt.Errorf("limiter: resolving parent channel: %w", err)
		}
		if channel.ParentID != "" {
			return channel.ParentID, nil
		}
		return c.GuildID(), nil

	case ResourceTopRole:
		if c.GuildID() == "" {
			return c.ChannelID(), nil
		}
		roles, err := c.MemberRoles(ctx)
		if err != nil {
			return "", fmt.Errorf("limiter: resolving top role: %w", err)
		}
		top := ""
		best := -1
		for _, role := range roles {
			if role.Position > best {
				best = role.Position
				top = role.ID
			}
		}
		if top == "" {
			return c.GuildID(), nil
		}
		return top, nil

	case ResourceGuild:
		if c.GuildID() == "" {
			return c.ChannelID(), nil
		}
		return c.GuildID(), nil

	case ResourceGlobal:
		return "global", nil

	default:
		return "", fmt.Errorf("limiter: unknown bucket resource %d", resource)
	}
}
