package completion

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chatrelay/pkg/circuitbreaker"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

type Config struct {
	APIKey         string
	OrganizationID string
	// BaseURL overrides the API root, e.g. for a compatible gateway.
	BaseURL    string
	HTTPClient *http.Client

	// Consecutive server-side failures before calls are short-circuited. Zero disables the breaker.
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// OpenAIClient implements Client on top of the OpenAI chat completions API.
type OpenAIClient struct {
	client  *openai.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *logrus.Logger
}

func NewOpenAIClient(cfg Config, logger *logrus.Logger) *OpenAIClient {
	if logger == nil {
		logger = logrus.New()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.OrgID = cfg.OrganizationID
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	c := &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		logger: logger,
	}

	if cfg.BreakerMaxFailures > 0 {
		c.breaker = circuitbreaker.NewWithLogger("completion", cfg.BreakerMaxFailures, cfg.BreakerTimeout, logger)
		c.breaker.IsFailure = isServerFailure
	}
	return c
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserText},
		},
		MaxTokens: req.MaxTokens,
	}

	var resp openai.ChatCompletionResponse
	call := func(ctx context.Context) error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return toStatusError(err)
		}
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
		if circuitbreaker.IsCircuitBreakerError(err) {
			err = &StatusError{
				StatusCode: http.StatusServiceUnavailable,
				Message:    err.Error(),
				Err:        err,
			}
		}
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := &Response{
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) > 0 {
		out.Text = resp.Choices[0].Message.Content
		out.FinishReason = string(resp.Choices[0].FinishReason)
	}

	c.logger.WithFields(logrus.Fields{
		"model":             out.Model,
		"finish_reason":     out.FinishReason,
		"prompt_tokens":     out.PromptTokens,
		"completion_tokens": out.CompletionTokens,
	}).Debug("Completion received")

	return out, nil
}

// toStatusError maps go-openai errors onto StatusError.
func toStatusError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return &StatusError{Message: err.Error(), Err: err}
}

// isServerFailure counts transport errors and 5xx answers against the breaker.
// 4xx answers mean the upstream is alive.
func isServerFailure(err error) bool {
	code := StatusCode(err)
	return code == 0 || code >= http.StatusInternalServerError
}
