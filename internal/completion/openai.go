// internal/completion/openai.go
package completion

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"dealerdesk/internal/common/config"
	"dealerdesk/internal/common/logger"
)

// OpenAIClient talks to an OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     logger.Logger
}

func NewOpenAIClient(cfg config.AIConfig, log logger.Logger) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.CompletionTimeout(),
		log:     log,
	}
}

// Complete sends the prompt and returns the reply text. Every failure
// comes back as a *ProviderError so callers can branch on Kind.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", c.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Kind: FailureMalformed, Err: errors.New("no choices in response")}
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", &ProviderError{Kind: FailureMalformed, Err: errors.New("empty completion text")}
	}

	c.log.Debug("completion generated", map[string]interface{}{
		"model":       c.model,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return reply, nil
}

func (c *OpenAIClient) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ProviderError{Kind: FailureTimeout, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return &ProviderError{Kind: FailureRateLimited, Err: err}
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return &ProviderError{Kind: FailureMalformed, Err: err}
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &ProviderError{Kind: FailureRateLimited, Err: err}
	}

	// Network-level failures surface as timeouts: the caller's fallback
	// is the same either way.
	return &ProviderError{Kind: FailureTimeout, Err: err}
}
