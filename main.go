// Command botkit is the chat bot entrypoint. It:
//   - Loads configuration and initializes structured logging.
//   - Opens the configured store (Postgres, SQLite, or in-memory) and runs
//     idempotent migrations.
//   - Builds the command registry, cooldown limiter, and dispatcher.
//   - Starts whichever connectors have credentials (Twitch IRC, Discord).
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and
//     /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/botkit/builtin"
	"github.com/onnwee/botkit/command"
	"github.com/onnwee/botkit/config"
	"github.com/onnwee/botkit/cooldown"
	"github.com/onnwee/botkit/db"
	"github.com/onnwee/botkit/discordbot"
	"github.com/onnwee/botkit/dispatch"
	"github.com/onnwee/botkit/server"
	"github.com/onnwee/botkit/store"
	"github.com/onnwee/botkit/telemetry"
	"github.com/onnwee/botkit/twitchbot"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	initLogging(cfg)

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("botkit", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway, database := openStore(ctx, cfg)
	if database != nil {
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
	}

	registry := command.NewRegistry(gateway, cfg.CustomCacheTTL())
	if err := builtin.Register(registry, gateway, builtin.Options{Prefix: cfg.Prefix, Started: time.Now()}); err != nil {
		slog.Error("command registration failed", slog.Any("err", err))
		os.Exit(1)
	}

	limiter := cooldown.NewLimiter()
	limiter.StartSweeper(ctx, time.Minute)

	dispatcher := dispatch.New(registry, limiter, dispatch.Options{
		Prefix:                 cfg.Prefix,
		GlobalUserCooldown:     cfg.GlobalUserCooldown(),
		DefaultCommandCooldown: cfg.DefaultCommandCooldown(),
		ModsExemptFromCooldown: cfg.ModsExemptFromCooldown,
		VerboseCooldownReply:   cfg.VerboseCooldownReply,
		HandlerTimeout:         cfg.HandlerTimeout(),
	})

	if cfg.TwitchReady() {
		bot := twitchbot.New(cfg.TwitchChannel, cfg.TwitchBotUsername, cfg.TwitchOAuthToken, dispatcher)
		go func() {
			if err := bot.Run(ctx); err != nil {
				slog.Error("twitch connector stopped", slog.Any("err", err))
			}
		}()
	} else {
		slog.Info("twitch creds not set; connector disabled")
	}

	if cfg.DiscordReady() {
		bot, err := discordbot.New(cfg.DiscordToken, dispatcher)
		if err != nil {
			slog.Error("discord connector init failed", slog.Any("err", err))
			os.Exit(1)
		}
		go func() {
			if err := bot.Run(ctx); err != nil {
				slog.Error("discord connector stopped", slog.Any("err", err))
			}
		}()
	} else {
		slog.Info("discord token not set; connector disabled")
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewMux(server.NewHandlers(database, registry, cfg.Prefix)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", slog.Any("err", err))
	}
}

// initLogging configures the default slog logger (level + format).
// Defaults: level=info, format=text.
func initLogging(cfg *config.Config) {
	lvl := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", cfg.LogLevel))
	}
	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
}

// openStore picks the persistence backend from the DSN shape. No DSN means
// the in-memory store: fine for trying the bot out, nothing survives a
// restart.
func openStore(ctx context.Context, cfg *config.Config) (store.Gateway, *sql.DB) {
	if cfg.DBDsn == "" {
		slog.Warn("BOT_DB_DSN not set; using in-memory store (state is lost on restart)")
		return store.NewMemory(), nil
	}
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.Migrate(migrateCtx, database, cfg.DBDsn); err != nil {
		slog.Error("migrations failed", slog.Any("err", err))
		os.Exit(1)
	}
	if db.IsPostgres(cfg.DBDsn) {
		slog.Info("store ready", slog.String("backend", "postgres"))
		return store.NewPostgres(database), database
	}
	slog.Info("store ready", slog.String("backend", "sqlite"), slog.String("path", cfg.DBDsn))
	return store.NewSQLite(database), database
}
