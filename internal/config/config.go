// Package config loads liftlog runtime configuration from a TOML file
// and environment variables, exposing typed structs and accessors for
// all sections.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the runtime configuration loaded from defaults, config.toml,
// and env vars.
type Config struct {
	// HomeDir is runtime-resolved from LIFTLOG_HOME and not read from config.
	HomeDir  string                       `mapstructure:"-"`
	Channels map[string]ChannelConfig     `mapstructure:"channels"`
	LLM      map[string]LLMProviderConfig `mapstructure:"llm"`
	Store    StoreConfig                  `mapstructure:"store"`
	Recap    RecapConfig                  `mapstructure:"recap"`
}

// ChannelConfig configures one inbound/outbound channel.
type ChannelConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

// LLMProviderConfig configures one LLM provider profile.
type LLMProviderConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Provider       string        `mapstructure:"provider"`
	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// StoreConfig configures record persistence.
type StoreConfig struct {
	// Path overrides the default database location under the data dir.
	Path string `mapstructure:"path"`
}

// RecapConfig controls the scheduled weekly recap.
type RecapConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

var defaultConfig = Config{
	Channels: map[string]ChannelConfig{
		"telegram": {
			Enabled: true,
			Token:   "",
		},
	},
	LLM: map[string]LLMProviderConfig{
		"default": {
			APIKey:         "",
			Provider:       "anthropic",
			Model:          "claude-sonnet-4-6",
			MaxTokens:      2048,
			RequestTimeout: 30 * time.Second,
		},
	},
	Store: StoreConfig{
		Path: "",
	},
	Recap: RecapConfig{
		Enabled:  false,
		Schedule: "0 9 * * 1",
	},
}

// homeDir returns the liftlog home directory.
// Uses LIFTLOG_HOME env var if set, otherwise defaults to ~/.liftlog.
func homeDir() (string, error) {
	if dir := os.Getenv("LIFTLOG_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return defaultHomePath(home), nil
}

// Load merges hardcoded defaults and config file values in that order.
// Config is always at $LIFTLOG_HOME/config.toml.
func Load() (*Config, error) {
	homeDir, err := homeDir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(homeConfigPath(homeDir))
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		expandEnvStringHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) {
		c.DecodeHook = decodeHook
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.HomeDir = homeDir
	if cfg.Store.Path == "" {
		cfg.Store.Path = cfg.DatabasePath()
	}

	return &cfg, nil
}

// Write writes the merged configuration (defaults overlaid by user
// config) to w in TOML format.
func Write(w io.Writer) error {
	if w == nil {
		return errors.New("writer is required")
	}

	homeDir, err := homeDir()
	if err != nil {
		return err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(homeConfigPath(homeDir))
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	// Keep duration fields human-readable in generated TOML.
	v.Set("llm.default.request_timeout", v.GetDuration("llm.default.request_timeout").String())

	if err := v.WriteConfigTo(w); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultUserConfigTOML renders the minimal bootstrap user config as TOML.
func DefaultUserConfigTOML() (string, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.Set("llm.default.api_key", "$ANTHROPIC_API_KEY")
	v.Set("llm.default.provider", defaultConfig.LLM["default"].Provider)
	v.Set("llm.default.model", defaultConfig.LLM["default"].Model)
	v.Set("llm.default.request_timeout", defaultConfig.LLM["default"].RequestTimeout.String())
	v.Set("channels.telegram.enabled", defaultConfig.Channels["telegram"].Enabled)
	v.Set("channels.telegram.token", "$TELEGRAM_BOT_TOKEN")
	v.Set("recap.enabled", defaultConfig.Recap.Enabled)
	v.Set("recap.schedule", defaultConfig.Recap.Schedule)

	var out bytes.Buffer
	if err := v.WriteConfigTo(&out); err != nil {
		return "", fmt.Errorf("write default user config: %w", err)
	}
	return out.String(), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("channels.telegram.enabled", defaultConfig.Channels["telegram"].Enabled)
	v.SetDefault("channels.telegram.token", defaultConfig.Channels["telegram"].Token)

	v.SetDefault("llm.default.api_key", defaultConfig.LLM["default"].APIKey)
	v.SetDefault("llm.default.provider", defaultConfig.LLM["default"].Provider)
	v.SetDefault("llm.default.model", defaultConfig.LLM["default"].Model)
	v.SetDefault("llm.default.max_tokens", defaultConfig.LLM["default"].MaxTokens)
	v.SetDefault("llm.default.request_timeout", defaultConfig.LLM["default"].RequestTimeout)

	v.SetDefault("store.path", defaultConfig.Store.Path)

	v.SetDefault("recap.enabled", defaultConfig.Recap.Enabled)
	v.SetDefault("recap.schedule", defaultConfig.Recap.Schedule)
}

// DefaultLLM returns the default LLM profile with fallback defaults.
func (c *Config) DefaultLLM() LLMProviderConfig {
	if llm, ok := c.LLM["default"]; ok {
		return llm
	}
	return defaultConfig.LLM["default"]
}

// TelegramChannel returns the telegram channel section.
func (c *Config) TelegramChannel() ChannelConfig {
	return c.Channels["telegram"]
}

func expandEnvStringHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.String {
			return data, nil
		}
		value, ok := data.(string)
		if !ok {
			return data, nil
		}
		return os.ExpandEnv(value), nil
	}
}
