// Package builtin registers the stock command set: ping, help, the points
// economy (points, give, top, bonus, take), custom command management
// (addcom, delcom), polls, and uptime. Handlers close over the persistence
// gateway they need; nothing here touches a transport.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/botkit/command"
	"github.com/onnwee/botkit/store"
)

// Options tunes the registered commands.
type Options struct {
	// Prefix is echoed in usage messages.
	Prefix string
	// Started is the process start time reported by uptime.
	Started time.Time
}

// Register adds every built-in command to the registry. Returns the first
// registration error; a duplicate here is a programming error worth
// failing startup over.
func Register(reg *command.Registry, gw store.Gateway, opts Options) error {
	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	cmds := []*command.Command{
		{
			Name:        "ping",
			Description: "Check that the bot is alive",
			Handler: func(ctx context.Context, inv *command.Invocation) (*command.Reply, error) {
				return &command.Reply{Text: "Pong!"}, nil
			},
		},
		{
			Name:        "help",
			Description: "List available commands",
			Cooldown:    10 * time.Second,
			Handler:     helpHandler(reg, opts.Prefix),
		},
		{
			Name:        "commands",
			Description: "List this channel's custom commands",
			Cooldown:    10 * time.Second,
			Handler:     customListHandler(reg, opts.Prefix),
		},
		{
			Name:        "points",
			Description: "Show your point balance",
			Cooldown:    5 * time.Second,
			Handler:     pointsHandler(gw),
		},
		{
			Name:        "give",
			Description: "Give some of your points to another user",
			Cooldown:    5 * time.Second,
			Handler:     giveHandler(gw, opts.Prefix),
		},
		{
			Name:        "top",
			Description: "Show the channel leaderboard",
			Cooldown:    15 * time.Second,
			Handler:     topHandler(gw),
		},
		{
			Name:        "bonus",
			Description: "Grant points to a user",
			Permission:  command.PermModerator,
			Handler:     bonusHandler(gw, opts.Prefix),
		},
		{
			Name:        "take",
			Description: "Remove points from a user",
			Permission:  command.PermModerator,
			Handler:     takeHandler(gw, opts.Prefix),
		},
		{
			Name:        "addcom",
			Description: "Create or update a custom command",
			Permission:  command.PermModerator,
			Handler:     addcomHandler(reg, opts.Prefix),
		},
		{
			Name:        "delcom",
			Description: "Delete a custom command",
			Permission:  command.PermModerator,
			Handler:     delcomHandler(reg, opts.Prefix),
		},
		{
			Name:        "sondage",
			Description: "Start a poll: !sondage \"question\" \"option\" \"option\"",
			Permission:  command.PermModerator,
			Cooldown:    30 * time.Second,
			Handler:     pollHandler(opts.Prefix),
		},
		{
			Name:        "uptime",
			Description: "Show how long the bot has been running",
			Cooldown:    10 * time.Second,
			Handler:     uptimeHandler(opts.Started),
		},
	}
	for _, c := range cmds {
		if err := reg.RegisterStatic(c); err != nil {
			return err
		}
	}
	return nil
}

func helpHandler(reg *command.Registry, prefix string) command.HandlerFunc {
	return func(ctx context.Context, inv *command.Invocation) (*command.Reply, error) {
		cmds := reg.StaticCommands()
		names := make([]string, 0, len(cmds))
		for _, c := range cmds {
			if command.Authorize(inv, c.Permission) {
				names = append(names, prefix+c.Name)
			}
		}
		sort.Strings(names)
		return &command.Reply{Text: "Commands: " + strings.Join(names, " ")}, nil
	}
}

func customListHandler(reg *command.Registry, prefix string) command.HandlerFunc {
	return func(ctx context.Context, inv *command.Invocation) (*command.Reply, error) {
		customs, err := reg.CustomCommands(ctx, inv.ChannelID)
		if err != nil {
			return nil, err
		}
		if len(customs) == 0 {
			return &command.Reply{Text: "No custom commands in this channel yet."}, nil
		}
		names := make([]string, 0, len(customs))
		for name := range customs {
			names = append(names, prefix+name)
		}
		sort.Strings(names)
		return &command.Reply{Text: "Custom commands: " + strings.Join(names, " ")}, nil
	}
}

func pointsHandler(gw store.Gateway) command.HandlerFunc {
	return func(ctx context.Context, inv *command.Invocation) (*command.Reply, error) {
		balance, err := gw.GetBalance(ctx, inv.ChannelID, inv.UserID)
		if err != nil {
			return nil, err
		}
		return &command.Reply{Text: fmt.Sprintf("@%s you have %d points.", inv.Username, balance)}, nil
	}
}

func giveHandler(gw store.Gateway, prefix string) command.HandlerFunc {
	usage := &command.Reply{Text: "Usage: " + prefix + "give <user> <amount>"}
	return func(ctx context.Context, inv *command.Invocation) (*command.Reply, error) {
		if len(inv.Args) < 2 {
			return usage, nil
		}
		amount, err := strconv.ParseInt(inv.Args[1], 10, 64)
		if err != nil {
			return usage, nil
		}
		target, display, _, err := resolveTarget(ctx, gw, inv, inv.Args[0])
		if err != nil {
			return nil, err
		}
		if target == "" {
			return unknownTargetReply(inv.Username, inv.Args[0]), nil
		}
		switch err := gw.Transfer(ctx, inv.ChannelID, inv.UserID, target, amount); {
		case errors.Is(err, store.ErrInvalidAmount):
			return &command.Reply{Text: fmt.Sprintf("@%s the amount must be a positive number.", inv.Username)}, nil
		case errors.Is(err, store.ErrSameUser):
			return &command.Reply{Text: fmt.Sprintf("@%s you cannot give points to yourself.", inv.Username)}, nil
		case errors.Is(err, store.ErrInsufficientFunds):
			return &command.Reply{Text: fmt.Sprintf("@%s you do not have %d points.", inv.Username, amount)}, nil
		case err != nil:
			return nil, err
		}
		return &command.Reply{Text: fmt.Sprintf("@%s gave %d points to %s.", inv.Username, amount, display)}, nil
	}
}

func topHandler(gw store.Gateway) command.HandlerFunc {
	return func(ctx context.Context, inv *command.Invocation) (*command.Reply, error) {
		limit := 5
		if len(inv.Args) > 0 {
			if n, err := strconv.Atoi(inv.Args[0]); err == nil && n > 0 && n <= 10 {
				limit = n
			}
		}
		entries, err := gw.Leaderboard(ctx, inv.ChannelID, limit)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return &command.Reply{Text: "Nobody has any points yet."}, nil
		}
		parts := make([]string, len(entries))
		for i, e := range entries {
			parts[i] = fmt.Sprintf("%d. %s (%d)", i+1, e.Username, e.Balance)
		}
		return &command.Reply{Text: "Top: " + strings.Join(parts, " | ")}, nil
	}
}

func bonusHandler(gw store.Gateway, prefix string) command.HandlerFunc {
	usage := &command.Reply{Text: "Usage: " + prefix + "bonus <user> <amount>"}
	return func(ctx context.Context, inv *command.Invocation) (*command.Reply, error) {
		if len(inv.Args) < 2 {
			return usage, nil
		}
		amount, err := strconv.ParseInt(inv.Args[1], 10, 64)
		if err != nil || amount <= 0 {
			return usage, nil
		}
		target, display, hint, err := resolveTarget(ctx, gw, inv, inv.Args[0])
		if err != nil {
			return nil, err
		}
		if target == "" {
			return unknownTargetReply(inv.Username, inv.Args[0]), nil
		}
		balance, err := gw.AddPoints(ctx, inv.ChannelID, target, hint, amount)
		if err != nil {
			return nil, err
		}
		return &command.Reply{Text: fmt.Sprintf("%s received %d points (now %d).", display, amount, balance)}, nil
	}
}

func takeHandler(gw store.Gateway, prefix string) command.HandlerFunc {
	usage := &command.Reply{Text: "Usage: " + prefix + "take <user> <amount>"}
	return func(ctx context.Context, inv *command.Invocation) (*command.Reply, error) {
		if len(inv.Args) < 2 {
			return usage, nil
		}
		amount, err := strconv.ParseInt(inv.Args[1], 10, 64)
		if err != nil || amount <= 0 {
			return usage, nil
		}
		target, display, _, err := resolveTarget(ctx, gw, inv, inv.Args[0])
		if err != nil {
			return nil, err
		}
		if target == "" {
			return unknownTargetReply(inv.Username, inv.Args[0]), nil
		}
		removed, err := gw.RemovePoints(ctx, inv.ChannelID, target, amount)
		if err != nil {
			return nil, err
		}
		return &command.Reply{Text: fmt.Sprintf("Removed %d points from %s.", removed, display)}, nil
	}
}

func addcomHandler(reg *command.Registry, prefix string) command.HandlerFunc {
	usage := &command.Reply{Text: "Usage: " + prefix + "addcom <name> <response template>"}
	return func(ctx context.Context, inv *command.Invocation) (*command.Reply, error) {
		if len(inv.Args) < 2 {
			return usage, nil
		}
		name := strings.TrimPrefix(strings.ToLower(inv.Args[0]), prefix)
		template := strings.Join(inv.Args[1:], " ")
		err := reg.UpsertCustom(ctx, inv.ChannelID, name, template, inv.UserID, 0)
		if errors.Is(err, command.ErrReservedName) {
			return &command.Reply{Text: fmt.Sprintf("@%s %q is a built-in command and cannot be overridden.", inv.Username, prefix+name)}, nil
		}
		if err != nil {
			return nil, err
		}
		return &command.Reply{Text: fmt.Sprintf("Command %s%s saved.", prefix, name)}, nil
	}
}

func delcomHandler(reg *command.Registry, prefix string) command.HandlerFunc {
	usage := &command.Reply{Text: "Usage: " + prefix + "delcom <name>"}
	return func(ctx context.Context, inv *command.Invocation) (*command.Reply, error) {
		if len(inv.Args) < 1 {
			return usage, nil
		}
		name := strings.TrimPrefix(strings.ToLower(inv.Args[0]), prefix)
		deleted, err := reg.RemoveCustom(ctx, inv.ChannelID, name)
		if err != nil {
			return nil, err
		}
		if !deleted {
			return &command.Reply{Text: fmt.Sprintf("No custom command named %s%s.", prefix, name)}, nil
		}
		return &command.Reply{Text: fmt.Sprintf("Command %s%s deleted.", prefix, name)}, nil
	}
}

// pollHandler parses quoted segments from the raw message: the first is the
// question, the rest are options. Malformed input is a usage reply, never a
// handler error.
func pollHandler(prefix string) command.HandlerFunc {
	usage := &command.Reply{Text: "Usage: " + prefix + `sondage "question" "option 1" "option 2" ...`}
	return func(ctx context.Context, inv *command.Invocation) (*command.Reply, error) {
		segments := command.ExtractQuoted(inv.Raw)
		if len(segments) < 3 {
			return usage, nil
		}
		question, options := segments[0], segments[1:]
		parts := make([]string, len(options))
		for i, opt := range options {
			parts[i] = fmt.Sprintf("%d) %s", i+1, opt)
		}
		return &command.Reply{Text: fmt.Sprintf("📊 %s | %s", question, strings.Join(parts, " "))}, nil
	}
}

func uptimeHandler(started time.Time) command.HandlerFunc {
	return func(ctx context.Context, inv *command.Invocation) (*command.Reply, error) {
		up := time.Since(started).Round(time.Second)
		return &command.Reply{Text: "Up for " + up.String() + "."}, nil
	}
}

// resolveTarget maps a typed target to the id the ledger is keyed by, so
// points granted to a user land on the same row their own lookups read.
// Mention wrappers (<@123>, <@!123>) carry the platform id directly. On
// Twitch the login name IS the ledger key, so a plain or @-prefixed name
// resolves to itself; elsewhere it is looked up against usernames the
// ledger has seen, and id == "" means the name is unknown. display is what
// replies should call the target; usernameHint is what may be written to
// the target's username column ("" leaves it alone).
func resolveTarget(ctx context.Context, gw store.Gateway, inv *command.Invocation, arg string) (id, display, usernameHint string, err error) {
	trimmed := strings.TrimPrefix(arg, "@")
	if strings.HasPrefix(trimmed, "<@") && strings.HasSuffix(trimmed, ">") {
		id = strings.TrimPrefix(strings.TrimSuffix(strings.TrimPrefix(trimmed, "<@"), ">"), "!")
		return id, arg, "", nil
	}
	name := strings.ToLower(trimmed)
	if inv.Platform == command.PlatformTwitch {
		return name, name, name, nil
	}
	id, err = gw.FindUserID(ctx, inv.ChannelID, name)
	if err != nil {
		return "", "", "", err
	}
	return id, name, name, nil
}

func unknownTargetReply(username, target string) *command.Reply {
	return &command.Reply{Text: fmt.Sprintf("@%s I don't know a user named %s.", username, target)}
}
