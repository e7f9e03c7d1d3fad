package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DiscordConfig holds Discord gateway settings.
type DiscordConfig struct {
	Token string `yaml:"token" envconfig:"DISCORD_TOKEN"`
	// Enabled defaults to true when a token is present.
	Enabled *bool `yaml:"enabled"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"TELEGRAM_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// SetMenu publishes visible commands via setMyCommands on start.
	SetMenu bool `yaml:"set_menu" envconfig:"TELEGRAM_SET_MENU"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// CommandsConfig carries defaults applied to guilds without stored settings.
type CommandsConfig struct {
	DefaultPrefix      string `yaml:"default_prefix" envconfig:"COMMANDS_DEFAULT_PREFIX"`
	DefaultLocale      string `yaml:"default_locale" envconfig:"COMMANDS_DEFAULT_LOCALE"`
	ErrorColour        int    `yaml:"error_colour" envconfig:"COMMANDS_ERROR_COLOUR"`
	SuccessColour      int    `yaml:"success_colour" envconfig:"COMMANDS_SUCCESS_COLOUR"`
	ExecTimeoutSeconds int    `yaml:"exec_timeout_seconds" envconfig:"COMMANDS_EXEC_TIMEOUT_SECONDS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// SenderConfig tunes the outbound message queue.
type SenderConfig struct {
	Workers        int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	QueueSize      int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	MaxRetries     int `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
	RetryBackoffMS int `yaml:"retry_backoff_ms" envconfig:"SENDER_RETRY_BACKOFF_MS"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateMessage identifies chat messages for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateCommand identifies messages that resolved to a command.
	UpdateCommand = "command"
)

const (
	DefaultPrefix        = "-"
	DefaultLocale        = "en-GB"
	DefaultErrorColour   = 0xE74C3C
	DefaultSuccessColour = 0x2ECC71
	DefaultExecTimeout   = 30
)

// RateLimitConfig holds settings for per-user rate limiting.
// ExcludeUpdates accepts update kinds to bypass limiting:
// - "message": plain messages that are not commands
// - "command": messages addressed to the bot
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Burst          int      `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Discord   DiscordConfig   `yaml:"discord"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Commands  CommandsConfig  `yaml:"commands"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Sender    SenderConfig    `yaml:"sender"`
}

// Load reads configuration from a YAML file, a sibling .env file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadInto decodes YAML at path into dst and applies environment overrides.
// dst may be any struct embedding the core Config so applications can extend it.
func LoadInto(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// DiscordEnabled reports whether the Discord transport should start.
func (c *Config) DiscordEnabled() bool {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return false
	}
	return c.Discord.Enabled == nil || *c.Discord.Enabled
}

// TelegramEnabled reports whether the Telegram transport should start.
func (c *Config) TelegramEnabled() bool {
	return strings.TrimSpace(c.Telegram.Token) != ""
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if !cfg.DiscordEnabled() && !cfg.TelegramEnabled() {
		return fmt.Errorf("at least one of discord.token or telegram.token is required")
	}

	if err := normalizeTelegram(cfg); err != nil {
		return err
	}
	if err := normalizeCommands(&cfg.Commands); err != nil {
		return err
	}

	allowed := map[string]struct{}{
		UpdateMessage: {},
		UpdateCommand: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: message, command", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 1
	}
	if cfg.Sender.MaxRetries < 0 {
		return fmt.Errorf("sender.max_retries must be >= 0")
	}
	return nil
}

func normalizeTelegram(cfg *Config) error {
	if !cfg.TelegramEnabled() {
		return nil
	}
	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm
	return nil
}

func normalizeCommands(c *CommandsConfig) error {
	if strings.TrimSpace(c.DefaultPrefix) == "" {
		c.DefaultPrefix = DefaultPrefix
	}
	if strings.ContainsFunc(c.DefaultPrefix, isSpace) {
		return fmt.Errorf("commands.default_prefix must not contain whitespace")
	}

	if strings.TrimSpace(c.DefaultLocale) == "" {
		c.DefaultLocale = DefaultLocale
	}
	tag, err := language.Parse(c.DefaultLocale)
	if err != nil {
		return fmt.Errorf("invalid commands.default_locale %q: %w", c.DefaultLocale, err)
	}
	c.DefaultLocale = tag.String()

	if c.ErrorColour == 0 {
		c.ErrorColour = DefaultErrorColour
	}
	if c.SuccessColour == 0 {
		c.SuccessColour = DefaultSuccessColour
	}
	for name, v := range map[string]int{"error_colour": c.ErrorColour, "success_colour": c.SuccessColour} {
		if v < 0 || v > 0xFFFFFF {
			return fmt.Errorf("commands.%s must be within 0x000000..0xFFFFFF", name)
		}
	}

	if c.ExecTimeoutSeconds < 0 {
		return fmt.Errorf("commands.exec_timeout_seconds must be >= 0")
	}
	if c.ExecTimeoutSeconds == 0 {
		c.ExecTimeoutSeconds = DefaultExecTimeout
	}
	return nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
