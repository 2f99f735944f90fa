// Package config loads environment variables into a typed Config used
// across the bot. Defaults let the binary run locally with no setup beyond
// platform credentials; connectors without credentials are simply not
// started.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Dispatch
	Prefix                 string `env:"BOT_PREFIX" envDefault:"!"`
	GlobalUserCooldownSec  int    `env:"BOT_GLOBAL_USER_COOLDOWN_SECONDS" envDefault:"2"`
	DefaultCmdCooldownSec  int    `env:"BOT_DEFAULT_COMMAND_COOLDOWN_SECONDS" envDefault:"5"`
	ModsExemptFromCooldown bool   `env:"BOT_MODS_EXEMPT_FROM_COOLDOWN" envDefault:"true"`
	VerboseCooldownReply   bool   `env:"BOT_VERBOSE_COOLDOWN_REPLY" envDefault:"false"`
	HandlerTimeoutSec      int    `env:"BOT_HANDLER_TIMEOUT_SECONDS" envDefault:"10"`
	CustomCacheTTLSec      int    `env:"BOT_CUSTOM_CACHE_TTL_SECONDS" envDefault:"60"`

	// Storage. postgres://… selects Postgres, anything else a SQLite file;
	// empty keeps everything in memory (nothing survives a restart).
	DBDsn string `env:"BOT_DB_DSN"`

	// Twitch connector
	TwitchChannel     string `env:"TWITCH_CHANNEL"`
	TwitchBotUsername string `env:"TWITCH_BOT_USERNAME"`
	TwitchOAuthToken  string `env:"TWITCH_OAUTH_TOKEN"`

	// Discord connector
	DiscordToken string `env:"DISCORD_TOKEN"`

	// Ops HTTP server
	HTTPAddr string `env:"BOT_HTTP_ADDR" envDefault:":8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment. It does not require any platform
// credentials; use TwitchReady/DiscordReady to decide which connectors to
// start.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TwitchReady reports whether the Twitch connector has what it needs.
func (c *Config) TwitchReady() bool {
	return c.TwitchChannel != "" && c.TwitchBotUsername != "" && c.TwitchOAuthToken != ""
}

// DiscordReady reports whether the Discord connector has what it needs.
func (c *Config) DiscordReady() bool { return c.DiscordToken != "" }

// GlobalUserCooldown returns the per-user global cooldown window.
func (c *Config) GlobalUserCooldown() time.Duration {
	return time.Duration(c.GlobalUserCooldownSec) * time.Second
}

// DefaultCommandCooldown returns the fallback per-command cooldown window.
func (c *Config) DefaultCommandCooldown() time.Duration {
	return time.Duration(c.DefaultCmdCooldownSec) * time.Second
}

// HandlerTimeout bounds a single handler execution.
func (c *Config) HandlerTimeout() time.Duration {
	return time.Duration(c.HandlerTimeoutSec) * time.Second
}

// CustomCacheTTL bounds staleness of the per-channel custom command cache.
func (c *Config) CustomCacheTTL() time.Duration {
	return time.Duration(c.CustomCacheTTLSec) * time.Second
}
