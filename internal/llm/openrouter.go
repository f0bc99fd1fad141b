package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/liftlog-ai/liftlog/internal/config"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"

type openRouterCompleter struct {
	apiKey     string
	model      string
	endpoint   string
	maxTokens  int
	timeout    time.Duration
	httpClient *http.Client
}

func newOpenRouterCompleter(cfg config.LLMProviderConfig) (Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("openrouter model is required")
	}
	return &openRouterCompleter{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		endpoint:   defaultOpenRouterURL,
		maxTokens:  normalizeMaxTokens(cfg.MaxTokens),
		timeout:    cfg.RequestTimeout,
		httpClient: http.DefaultClient,
	}, nil
}

func newOpenRouterCompleterForTest(apiKey, model, endpoint string, httpClient *http.Client) (Completer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("openrouter model is required")
	}
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("openrouter endpoint is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &openRouterCompleter{
		apiKey:     apiKey,
		model:      model,
		endpoint:   endpoint,
		maxTokens:  normalizeMaxTokens(0),
		httpClient: httpClient,
	}, nil
}

func (p *openRouterCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	messages := make([]openRouterMessage, 0, 2)
	if system != "" {
		messages = append(messages, openRouterMessage{Role: "system", Content: system})
	}
	messages = append(messages, openRouterMessage{Role: "user", Content: user})

	body, err := json.Marshal(openRouterRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal openrouter request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build openrouter request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openrouter request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("read openrouter response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", fmt.Errorf("openrouter API returned %s: %s", httpResp.Status, strings.TrimSpace(string(respBody)))
	}

	var parsed openRouterResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode openrouter response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openrouter response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

type openRouterRequest struct {
	Model     string              `json:"model"`
	Messages  []openRouterMessage `json:"messages"`
	MaxTokens int                 `json:"max_tokens,omitempty"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
