package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "SAHAYAK_CONFIG"
	envFileEnv        = "SAHAYAK_ENV_FILE"
	tokenEnv          = "SAHAYAK_TOKEN"
	apiURLEnv         = "SAHAYAK_API_URL"
	contentAPIURLEnv  = "SAHAYAK_CONTENT_API_URL"
	ledgerDSNEnv      = "SAHAYAK_LEDGER_DSN"
	logLevelEnv       = "SAHAYAK_LOG_LEVEL"
	logFormatEnv      = "SAHAYAK_LOG_FORMAT"
	sandboxSecretEnv  = "SAHAYAK_SANDBOX_SECRET"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"

	defaultEnvFile = ".env"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig       `yaml:"logging"`
	Session       SessionConfig       `yaml:"session"`
	Backends      BackendsConfig      `yaml:"backends"`
	Polling       PollingConfig       `yaml:"polling"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Watch         WatchConfig         `yaml:"watch"`
	Notifications NotificationConfig  `yaml:"notifications"`
	Roster        map[string][]string `yaml:"roster"`
	Sandbox       SandboxConfig       `yaml:"sandbox"`
}

// LoggingConfig selects the slog level and handler. Format is "text" or
// "json".
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"addSource"`
}

// SessionConfig carries the bearer token issued by the platform's sign-in.
type SessionConfig struct {
	Token string `yaml:"token"`
}

// BackendsConfig lists the remote APIs the client talks to.
type BackendsConfig struct {
	Assignments BackendConfig `yaml:"assignments"`
	Content     BackendConfig `yaml:"content"`
}

// BackendConfig is one named backend.
type BackendConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

// PollingConfig tunes the job status poller.
type PollingConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"maxAttempts"`
}

// LedgerConfig points at the job history database. A postgres:// DSN uses
// Postgres, anything else is a SQLite file path.
type LedgerConfig struct {
	DSN string `yaml:"dsn"`
}

// WatchConfig controls the periodic resume of unfinished jobs.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SandboxConfig configures the local stand-in backend.
type SandboxConfig struct {
	Addr            string `yaml:"addr"`
	Secret          string `yaml:"secret"`
	ProcessingPolls int    `yaml:"processingPolls"`
	Immediate       bool   `yaml:"immediate"`
	Questions       int    `yaml:"questions"`
}

// Load reads .env and YAML configuration (if present) and applies
// environment overrides.
func Load() Config {
	loadDotEnv()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg
}

func loadDotEnv() {
	path := os.Getenv(envFileEnv)
	if path == "" {
		path = defaultEnvFile
	}
	// Variables already in the environment win over the file.
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: cannot load %s: %v", path, err)
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(tokenEnv); v != "" {
		c.Session.Token = v
	}

	if v := os.Getenv(apiURLEnv); v != "" {
		c.Backends.Assignments.BaseURL = v
	}

	if v := os.Getenv(contentAPIURLEnv); v != "" {
		c.Backends.Content.BaseURL = v
	}

	if v := os.Getenv(ledgerDSNEnv); v != "" {
		c.Ledger.DSN = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv(sandboxSecretEnv); v != "" {
		c.Sandbox.Secret = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	base.Logging.AddSource = base.Logging.AddSource || override.Logging.AddSource

	if override.Session.Token != "" {
		base.Session.Token = override.Session.Token
	}

	base.Backends.Assignments = mergeBackend(base.Backends.Assignments, override.Backends.Assignments)
	base.Backends.Content = mergeBackend(base.Backends.Content, override.Backends.Content)

	if override.Polling.Interval > 0 {
		base.Polling.Interval = override.Polling.Interval
	}
	if override.Polling.MaxAttempts > 0 {
		base.Polling.MaxAttempts = override.Polling.MaxAttempts
	}

	if override.Ledger.DSN != "" {
		base.Ledger = override.Ledger
	}

	if override.Watch.Interval > 0 {
		base.Watch.Interval = override.Watch.Interval
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if len(override.Roster) > 0 {
		base.Roster = override.Roster
	}

	if override.Sandbox.Addr != "" {
		base.Sandbox.Addr = override.Sandbox.Addr
	}
	if override.Sandbox.Secret != "" {
		base.Sandbox.Secret = override.Sandbox.Secret
	}
	if override.Sandbox.ProcessingPolls > 0 {
		base.Sandbox.ProcessingPolls = override.Sandbox.ProcessingPolls
	}
	if override.Sandbox.Questions > 0 {
		base.Sandbox.Questions = override.Sandbox.Questions
	}
	base.Sandbox.Immediate = base.Sandbox.Immediate || override.Sandbox.Immediate

	return base
}

func mergeBackend(base, override BackendConfig) BackendConfig {
	if override.BaseURL != "" {
		base.BaseURL = override.BaseURL
	}
	if override.Timeout > 0 {
		base.Timeout = override.Timeout
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Backends: BackendsConfig{
			Assignments: BackendConfig{BaseURL: "http://localhost:3001/api", Timeout: 120 * time.Second},
			Content:     BackendConfig{BaseURL: "https://4x4vw766tf.execute-api.us-east-1.amazonaws.com/prod", Timeout: 120 * time.Second},
		},
		Polling: PollingConfig{Interval: 5 * time.Second, MaxAttempts: 20},
		Ledger:  LedgerConfig{DSN: "sahayak.db"},
		Watch:   WatchConfig{Interval: 15 * time.Minute},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
		Roster: map[string][]string{},
		Sandbox: SandboxConfig{
			Addr:            "127.0.0.1:3001",
			Secret:          "sahayak-sandbox-secret",
			ProcessingPolls: 3,
			Questions:       5,
		},
	}
}
