package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validatable is implemented by config sections that can self-validate.
type Validatable interface {
	Validate() error
}

func (c LLMProviderConfig) Validate() error {
	if c.Provider == "" {
		return errors.New("provider is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}

	switch c.Provider {
	case "anthropic", "openrouter":
		if c.APIKey == "" {
			return errors.New("api_key is required")
		}
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	if c.RequestTimeout < 0 {
		return errors.New("request_timeout must not be negative")
	}
	return nil
}

func (c ChannelConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Token == "" {
		return errors.New("token is required when enabled=true")
	}
	return nil
}

func (c RecapConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Schedule == "" {
		return errors.New("schedule is required when enabled=true")
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
	}
	return nil
}

// ValidateStartup validates the configuration needed to start the server.
func ValidateStartup(cfg *Config) error {
	var errs []error

	if len(cfg.LLM) == 0 {
		errs = append(errs, errors.New("at least one llm.* profile is required"))
	}
	if len(cfg.Channels) == 0 {
		errs = append(errs, errors.New("at least one channels.* entry is required"))
	}

	for name, llmCfg := range cfg.LLM {
		if err := llmCfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("llm.%s: %w", name, err))
		}
	}
	for name, chCfg := range cfg.Channels {
		if err := chCfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("channels.%s: %w", name, err))
		}
	}
	if err := cfg.Recap.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("recap: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
