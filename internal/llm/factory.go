package llm

import (
	"fmt"
	"strings"

	"github.com/liftlog-ai/liftlog/internal/config"
)

const defaultMaxTokens = 2048

func normalizeMaxTokens(v int) int {
	if v <= 0 {
		return defaultMaxTokens
	}
	return v
}

// NewCompleterFromConfig builds a Completer from the selected LLM profile.
func NewCompleterFromConfig(cfg config.LLMProviderConfig) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "anthropic":
		return newAnthropicCompleter(cfg)
	case "openrouter":
		return newOpenRouterCompleter(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}
