// Package twitchbot connects the dispatch engine to Twitch IRC. It
// normalizes each PRIVMSG into a dispatch.Event, sends the zero-or-one
// reply back with Say, and throttles outbound messages under Twitch's
// per-channel rate limit.
package twitchbot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"golang.org/x/time/rate"

	"github.com/onnwee/botkit/command"
	"github.com/onnwee/botkit/dispatch"
	"github.com/onnwee/botkit/telemetry"
)

// Twitch allows ~20 messages per 30s for a regular bot account.
const (
	sendRate  = rate.Limit(20.0 / 30.0)
	sendBurst = 5
)

// Bot is the Twitch connector for one channel.
type Bot struct {
	channel    string
	client     *twitch.Client
	dispatcher *dispatch.Dispatcher
	limiter    *rate.Limiter
}

// New creates a connector. The OAuth token is the chat token
// ("oauth:..."), not a Helix app token.
func New(channel, username, oauthToken string, d *dispatch.Dispatcher) *Bot {
	return &Bot{
		channel:    strings.ToLower(channel),
		client:     twitch.NewClient(username, oauthToken),
		dispatcher: d,
		limiter:    rate.NewLimiter(sendRate, sendBurst),
	}
}

// Run joins the channel and blocks until ctx is cancelled or the
// connection fails. A disconnect triggered by ctx is a clean shutdown,
// not an error.
func (b *Bot) Run(ctx context.Context) error {
	b.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		b.handle(ctx, msg)
	})
	b.client.OnConnect(func() {
		slog.Info("twitch connected", slog.String("component", "twitchbot"), slog.String("channel", b.channel))
	})

	go func() {
		<-ctx.Done()
		_ = b.client.Disconnect()
	}()

	b.client.Join(b.channel)
	if err := b.client.Connect(); err != nil && !errors.Is(err, twitch.ErrClientDisconnected) {
		return err
	}
	return nil
}

func (b *Bot) handle(ctx context.Context, msg twitch.PrivateMessage) {
	ev := dispatch.Event{
		Platform:    command.PlatformTwitch,
		ChannelID:   msg.Channel,
		UserID:      userID(msg.User),
		Username:    msg.User.Name,
		IsModerator: isModerator(msg.User),
		IsOwner:     strings.EqualFold(msg.User.Name, b.channel),
		Text:        msg.Message,
	}
	res := b.dispatcher.Dispatch(ctx, ev)
	if res.Reply == nil {
		return
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	b.client.Say(b.channel, res.Reply.Text)
	telemetry.RecordReply(command.PlatformTwitch)
}

// userID keys the ledger by lowercase login name. Chat commands target
// other users by typing that name, so using it as the key means a granted
// or transferred balance is the same row the recipient's own lookups read.
func userID(u twitch.User) string {
	return strings.ToLower(u.Name)
}

func isModerator(u twitch.User) bool {
	return u.Badges["moderator"] > 0 || u.Badges["broadcaster"] > 0
}
