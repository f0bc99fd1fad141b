package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/liftlog-ai/liftlog/internal/config"
)

type anthropicCompleter struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int
	timeout   time.Duration
}

func newAnthropicCompleter(cfg config.LLMProviderConfig) (Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &anthropicCompleter{
		client:    client,
		model:     anthropic.Model(cfg.Model),
		maxTokens: normalizeMaxTokens(cfg.MaxTokens),
		timeout:   cfg.RequestTimeout,
	}, nil
}

func newAnthropicCompleterForTest(apiKey, model, baseURL string, httpClient *http.Client) (Completer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	}

	client := anthropic.NewClient(opts...)
	return &anthropicCompleter{
		client:    client,
		model:     anthropic.Model(model),
		maxTokens: normalizeMaxTokens(0),
	}, nil
}

// Complete sends one stateless completion request to Anthropic and
// returns the concatenated text blocks of the response.
func (p *anthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	body := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: int64(p.maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(user))},
	}
	if system != "" {
		body.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := p.client.Messages.New(ctx, body)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(anthropic.TextBlock); ok && v.Text != "" {
			parts = append(parts, v.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}
