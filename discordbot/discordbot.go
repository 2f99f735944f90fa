// Package discordbot connects the dispatch engine to a Discord gateway
// session. Role and permission bits are folded into the two Invocation
// booleans here; the core never sees Discord-specific representations.
package discordbot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/onnwee/botkit/command"
	"github.com/onnwee/botkit/dispatch"
	"github.com/onnwee/botkit/telemetry"
)

// Discord tolerates roughly 5 messages per 5s per channel; one shared
// limiter keeps the bot comfortably under it.
const (
	sendRate  = rate.Limit(1)
	sendBurst = 5
)

// Bot is the Discord connector.
type Bot struct {
	session    *discordgo.Session
	dispatcher *dispatch.Dispatcher
	limiter    *rate.Limiter
}

// New creates a connector from a bot token.
func New(token string, d *dispatch.Dispatcher) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	return &Bot{
		session:    session,
		dispatcher: d,
		limiter:    rate.NewLimiter(sendRate, sendBurst),
	}, nil
}

// Run opens the gateway session and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handle(ctx, s, m)
	})
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("discord connected", slog.String("component", "discordbot"), slog.String("user", r.User.Username))
	})
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	defer b.session.Close()
	<-ctx.Done()
	return nil
}

func (b *Bot) handle(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	// Per-guild scope: one point ledger and custom command set per server.
	scopeID := m.GuildID
	if scopeID == "" {
		scopeID = m.ChannelID
	}

	ev := dispatch.Event{
		Platform:    command.PlatformDiscord,
		ChannelID:   scopeID,
		UserID:      m.Author.ID,
		Username:    m.Author.Username,
		IsModerator: b.isModerator(s, m),
		IsOwner:     b.isOwner(s, m),
		Text:        m.Content,
	}
	res := b.dispatcher.Dispatch(ctx, ev)
	if res.Reply == nil {
		return
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, res.Reply.Text); err != nil {
		slog.Warn("discord send failed",
			slog.String("component", "discordbot"),
			slog.String("channel", m.ChannelID),
			slog.Any("err", err))
		return
	}
	telemetry.RecordReply(command.PlatformDiscord)
}

// isModerator maps Discord's permission bits onto the core's moderator
// notion: anyone who may manage messages or administer the guild.
func (b *Bot) isModerator(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if m.GuildID == "" {
		return false
	}
	perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		slog.Debug("permission lookup failed",
			slog.String("component", "discordbot"),
			slog.String("user", m.Author.ID),
			slog.Any("err", err))
		return false
	}
	return perms&(discordgo.PermissionManageMessages|discordgo.PermissionAdministrator) != 0
}

// isOwner treats the guild owner and administrators as channel owners.
func (b *Bot) isOwner(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if m.GuildID == "" {
		return false
	}
	if guild, err := s.State.Guild(m.GuildID); err == nil && guild.OwnerID == m.Author.ID {
		return true
	}
	perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}
