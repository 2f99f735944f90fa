// Package dispatch orchestrates one chat message through parse, permission
// check, cooldown check, and handler execution, containing every failure
// inside that single invocation. Connectors call Dispatch for each inbound
// message and send the zero-or-one reply it returns.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/botkit/command"
	"github.com/onnwee/botkit/cooldown"
	"github.com/onnwee/botkit/telemetry"
)

// Event is one inbound chat message, already normalized by a connector.
// Platform-specific role representations (Discord permission bits, Twitch
// badges) never get past the connector: only the two booleans do. Platform
// identifies the connector for handlers whose argument conventions differ
// per platform (mentions vs. login names).
type Event struct {
	Platform    string
	ChannelID   string
	UserID      string
	Username    string
	IsModerator bool
	IsOwner     bool
	Text        string
}

// Outcome is the terminal state of a dispatch.
type Outcome int

const (
	// OutcomeNoCommand: the message did not carry the prefix; no reply.
	OutcomeNoCommand Outcome = iota
	// OutcomeUnknown: prefix matched but no such command; silently ignored.
	OutcomeUnknown
	// OutcomeDenied: the permission check failed; one short denial reply.
	OutcomeDenied
	// OutcomeOnCooldown: a cooldown scope was active; reply per config.
	OutcomeOnCooldown
	// OutcomeCompleted: the handler ran; at most one reply.
	OutcomeCompleted
	// OutcomeFailed: the handler errored, panicked, or timed out; one
	// generic error reply.
	OutcomeFailed
)

// String returns the metrics label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoCommand:
		return "no_command"
	case OutcomeUnknown:
		return "unknown"
	case OutcomeDenied:
		return "denied"
	case OutcomeOnCooldown:
		return "on_cooldown"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result pairs the terminal outcome with the reply to send, if any.
type Result struct {
	Outcome Outcome
	Reply   *command.Reply
}

// Options is the deployment configuration the dispatcher consumes. The
// source material is inconsistent about cooldown replies and mod
// exemptions, so both stay configurable instead of hard-coded.
type Options struct {
	Prefix                 string
	GlobalUserCooldown     time.Duration
	DefaultCommandCooldown time.Duration
	ModsExemptFromCooldown bool
	VerboseCooldownReply   bool
	HandlerTimeout         time.Duration
}

// Dispatcher wires the registry and limiter together. Handlers receive
// their persistence gateway at registration time; the dispatcher itself
// holds no per-invocation state, so many dispatches run concurrently
// against one Dispatcher.
type Dispatcher struct {
	registry *command.Registry
	limiter  *cooldown.Limiter
	opts     Options
}

// New builds a dispatcher. All dependencies are injected; there is no
// ambient global state.
func New(registry *command.Registry, limiter *cooldown.Limiter, opts Options) *Dispatcher {
	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 10 * time.Second
	}
	telemetry.Init()
	return &Dispatcher{registry: registry, limiter: limiter, opts: opts}
}

// Dispatch runs one event to a terminal state. It never panics and never
// returns an error: every failure is contained here, logged with the full
// invocation context, and reduced to at most one reply.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) Result {
	name, args, ok := command.Parse(ev.Text, d.opts.Prefix)
	if !ok {
		telemetry.RecordOutcome(OutcomeNoCommand.String())
		return Result{Outcome: OutcomeNoCommand}
	}

	corr := uuid.New().String()
	ctx = telemetry.WithCorrelation(ctx, corr)
	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "dispatch"),
		slog.String("command", name),
		slog.String("channel", ev.ChannelID),
		slog.String("user", ev.Username),
	)

	ctx, span := telemetry.StartSpan(ctx, "dispatch", "dispatch.command",
		attribute.String("command", name),
		attribute.String("channel", ev.ChannelID),
	)
	defer span.End()

	res := d.run(ctx, log, ev, name, args)
	telemetry.RecordOutcome(res.Outcome.String())
	span.SetAttributes(attribute.String("outcome", res.Outcome.String()))
	switch res.Outcome {
	case OutcomeCompleted:
		telemetry.SetSpanSuccess(span)
	case OutcomeFailed:
		telemetry.RecordError(span, errDispatchFailed)
	}
	return res
}

var errDispatchFailed = errors.New("dispatch failed")

func (d *Dispatcher) run(ctx context.Context, log *slog.Logger, ev Event, name string, args []string) Result {
	inv := &command.Invocation{
		Platform:    ev.Platform,
		ChannelID:   ev.ChannelID,
		UserID:      ev.UserID,
		Username:    ev.Username,
		IsModerator: ev.IsModerator,
		IsOwner:     ev.IsOwner,
		Command:     name,
		Args:        args,
		Raw:         ev.Text,
	}

	resolution, err := d.registry.Resolve(ctx, ev.ChannelID, name)
	if err != nil {
		// Store unavailable on a cache miss: operationally a store error,
		// to the user the same generic failure as a broken handler.
		telemetry.StoreErrors.Inc()
		log.Error("command resolution failed", slog.Any("err", err))
		return Result{Outcome: OutcomeFailed, Reply: genericErrorReply()}
	}

	var (
		required  command.Permission
		cmdWindow time.Duration
	)
	switch {
	case resolution.Static != nil:
		required = resolution.Static.Permission
		cmdWindow = resolution.Static.Cooldown
	case resolution.Custom != nil:
		// Custom commands are invokable by everyone; only managing them
		// (addcom/delcom) is privileged.
		required = command.PermEveryone
		cmdWindow = resolution.Custom.Cooldown
	default:
		return Result{Outcome: OutcomeUnknown}
	}
	if cmdWindow <= 0 {
		cmdWindow = d.opts.DefaultCommandCooldown
	}

	if !command.Authorize(inv, required) {
		telemetry.PermissionDenials.Inc()
		log.Info("permission denied", slog.String("required", required.String()))
		return Result{
			Outcome: OutcomeDenied,
			Reply:   &command.Reply{Text: fmt.Sprintf("@%s this command requires %s privileges.", inv.Username, required)},
		}
	}

	privileged := inv.IsModerator || inv.IsOwner
	if !(privileged && d.opts.ModsExemptFromCooldown) {
		res := d.limiter.CheckAndConsume(
			cooldown.Scope{Key: "user:" + inv.UserID, Window: d.opts.GlobalUserCooldown},
			cooldown.Scope{Key: "cmd:" + name + ":user:" + inv.UserID, Window: cmdWindow},
		)
		if !res.OK {
			telemetry.CooldownRejections.Inc()
			log.Debug("on cooldown",
				slog.String("scope", res.Scope),
				slog.Duration("remaining", res.Remaining))
			var reply *command.Reply
			if d.opts.VerboseCooldownReply {
				secs := int(res.Remaining.Seconds()) + 1
				reply = &command.Reply{Text: fmt.Sprintf("@%s try again in %ds.", inv.Username, secs)}
			}
			return Result{Outcome: OutcomeOnCooldown, Reply: reply}
		}
	}
	telemetry.SetCooldownEntries(d.limiter.Len())

	if resolution.Custom != nil {
		return Result{
			Outcome: OutcomeCompleted,
			Reply:   &command.Reply{Text: command.ExpandTemplate(resolution.Custom.Template, inv)},
		}
	}
	return d.execute(ctx, log, resolution.Static, inv)
}

// execute runs a static handler with a bounded timeout and panic recovery.
// On timeout the goroutine is abandoned: its context is cancelled so I/O
// unwinds, but the dispatcher does not wait for it.
func (d *Dispatcher) execute(ctx context.Context, log *slog.Logger, cmd *command.Command, inv *command.Invocation) Result {
	ctx, cancel := context.WithTimeout(ctx, d.opts.HandlerTimeout)
	defer cancel()

	type handlerResult struct {
		reply *command.Reply
		err   error
	}
	done := make(chan handlerResult, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				telemetry.HandlerPanics.Inc()
				done <- handlerResult{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		reply, err := cmd.Handler(ctx, inv)
		done <- handlerResult{reply: reply, err: err}
	}()

	select {
	case res := <-done:
		telemetry.HandlerDuration.Observe(time.Since(start).Seconds())
		if res.err != nil {
			log.Error("handler failed",
				slog.String("user_id", inv.UserID),
				slog.Any("err", res.err))
			return Result{Outcome: OutcomeFailed, Reply: genericErrorReply()}
		}
		return Result{Outcome: OutcomeCompleted, Reply: res.reply}
	case <-ctx.Done():
		log.Error("handler timed out",
			slog.String("user_id", inv.UserID),
			slog.Duration("timeout", d.opts.HandlerTimeout))
		return Result{Outcome: OutcomeFailed, Reply: genericErrorReply()}
	}
}

func genericErrorReply() *command.Reply {
	return &command.Reply{Text: "An error occurred running this command."}
}
