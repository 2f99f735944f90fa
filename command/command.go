// Package command holds the command model: static command definitions, the
// per-channel custom command records, the registry that resolves both, the
// message parser, and the permission check. It is transport-agnostic; the
// Twitch and Discord connectors only ever hand it an Invocation.
package command

import (
	"context"
	"errors"
	"time"
)

// Permission is the minimum privilege required to run a command.
type Permission int

const (
	PermEveryone Permission = iota
	PermModerator
	PermOwner
)

// String returns a human-readable name for the permission level.
func (p Permission) String() string {
	switch p {
	case PermEveryone:
		return "everyone"
	case PermModerator:
		return "moderator"
	case PermOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// Platform names used in Invocation.Platform and metric labels.
const (
	PlatformTwitch  = "twitch"
	PlatformDiscord = "discord"
)

// Invocation is one parsed, in-flight command request derived from a single
// chat message. It is built per message and discarded after dispatch.
type Invocation struct {
	Platform    string
	ChannelID   string
	UserID      string
	Username    string
	IsModerator bool
	IsOwner     bool
	Command     string
	Args        []string
	Raw         string
}

// Reply is the zero-or-one response a dispatch produces for the transport.
type Reply struct {
	Text string
}

// HandlerFunc executes a static command. A nil reply means the command
// completed without chat output.
type HandlerFunc func(ctx context.Context, inv *Invocation) (*Reply, error)

// Command is a statically registered command. Definitions are immutable
// after registration; the name is unique and lowercase within a process.
type Command struct {
	Name        string
	Description string
	Cooldown    time.Duration
	Permission  Permission
	Handler     HandlerFunc
}

// CustomCommand is a moderator-defined name → response template mapping,
// scoped to one channel and persisted through the store.
type CustomCommand struct {
	ChannelID string
	Name      string
	Template  string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	Cooldown  time.Duration
}

var (
	// ErrDuplicateCommand is returned when a static command name is
	// registered twice. Registration order must not decide which wins.
	ErrDuplicateCommand = errors.New("duplicate command name")

	// ErrReservedName is returned when a custom command would shadow a
	// static command. Enforced at creation time, not at dispatch time.
	ErrReservedName = errors.New("name is reserved by a built-in command")
)

// Authorize reports whether the invoking identity may run a command that
// requires the given permission. Connectors populate IsModerator/IsOwner;
// nothing here inspects platform-specific role representations.
func Authorize(inv *Invocation, required Permission) bool {
	switch required {
	case PermEveryone:
		return true
	case PermModerator:
		return inv.IsModerator || inv.IsOwner
	case PermOwner:
		return inv.IsOwner
	default:
		return false
	}
}
