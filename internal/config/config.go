// Package config loads and validates the YAML configuration file. String
// values may reference environment variables as ${VAR} or ${VAR:-default};
// expansion happens before parsing so secrets stay out of the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Assistant AssistantConfig `yaml:"assistant"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Workspace string          `yaml:"workspace"`
	Database  string          `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type AssistantConfig struct {
	Name          string  `yaml:"name"`
	Instructions  string  `yaml:"instructions"`
	MaxIterations int     `yaml:"max_iterations"`
	MaxTurns      int     `yaml:"max_turns"`
	Concurrency   int     `yaml:"concurrency"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`
	TurnTimeout   string  `yaml:"turn_timeout"` // Go duration, e.g. "2m"
}

type OracleConfig struct {
	// Chain lists provider names in failover order; the first entry is the
	// primary.
	Chain     []string                  `yaml:"chain"`
	Providers map[string]ProviderConfig `yaml:"providers"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	APIBase string `yaml:"api_base"`
	Model   string `yaml:"model"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Slack    SlackConfig    `yaml:"slack"`
}

type TelegramConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Token     string   `yaml:"token"`
	AllowFrom []string `yaml:"allow_from"`
}

type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"` // Socket Mode
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// DefaultDir returns the default config directory (~/.factotum).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".factotum"
	}
	return filepath.Join(home, ".factotum")
}

func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Workspace = ExpandPath(cfg.Workspace)
	cfg.Database = ExpandPath(cfg.Database)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment value. ${VAR:-default}
// falls back to the default when VAR is unset or empty; a plain ${VAR} with
// no value is left untouched so validation can report it.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		name := groups[1]
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(name)
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

// Save writes the config back out, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks values and cross-references before anything starts.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Assistant.MaxIterations < 1 || cfg.Assistant.MaxIterations > 100 {
		errs = append(errs, "assistant.max_iterations must be between 1 and 100")
	}
	if cfg.Assistant.MaxTurns < 1 {
		errs = append(errs, "assistant.max_turns must be >= 1")
	}
	if cfg.Assistant.Concurrency < 1 || cfg.Assistant.Concurrency > 100 {
		errs = append(errs, "assistant.concurrency must be between 1 and 100")
	}

	if len(cfg.Oracle.Chain) == 0 {
		errs = append(errs, "oracle.chain must name at least one provider")
	}
	for _, name := range cfg.Oracle.Chain {
		if _, ok := cfg.Oracle.Providers[name]; !ok {
			errs = append(errs, fmt.Sprintf("oracle.chain references unknown provider: %s", name))
		}
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required when telegram is enabled")
	}
	if cfg.Channels.Slack.Enabled && (cfg.Channels.Slack.BotToken == "" || cfg.Channels.Slack.AppToken == "") {
		errs = append(errs, "channels.slack needs both bot_token and app_token when enabled")
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	switch cfg.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, "logging.format must be text or json")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
