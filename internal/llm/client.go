package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nyayachat/internal/config"
	"nyayachat/internal/models"

	openai "github.com/sashabaranov/go-openai"
)

// Client talks to the OpenAI-compatible upstream gateway. Synchronous
// completions go through go-openai; the streaming path issues a raw HTTP
// request so the SSE body can be relayed to the caller byte-for-byte.
type Client struct {
	cfg        config.UpstreamConfig
	api        *openai.Client
	httpClient *http.Client
}

// NewClient builds an upstream client from gateway configuration.
func NewClient(cfg config.UpstreamConfig) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return &Client{
		cfg:        cfg,
		api:        openai.NewClientWithConfig(apiCfg),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Complete performs a synchronous chat completion and returns the answer text.
func (c *Client) Complete(ctx context.Context, turns []Turn) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: Compose(turns),
	}
	if c.cfg.Temperature > 0 {
		req.Temperature = float32(c.cfg.Temperature)
	}
	if c.cfg.MaxTokens > 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", c.translateAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Message: "assistant returned no answer, please retry", Retry: true, Status: http.StatusBadGateway}
	}
	return resp.Choices[0].Message.Content, nil
}

type streamRequest struct {
	Model       string               `json:"model"`
	Messages    []streamRequestEntry `json:"messages"`
	Stream      bool                 `json:"stream"`
	Temperature float64              `json:"temperature,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
}

type streamRequestEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenStream opens a streaming completion and returns the raw response
// body. The caller owns the reader and must close it; the bytes are the
// upstream SSE wire format, untouched.
func (c *Client) OpenStream(ctx context.Context, turns []Turn) (io.ReadCloser, error) {
	composed := Compose(turns)
	entries := make([]streamRequestEntry, 0, len(composed))
	for _, m := range composed {
		entries = append(entries, streamRequestEntry{Role: m.Role, Content: m.Content})
	}
	payload := streamRequest{
		Model:       c.cfg.Model,
		Messages:    entries,
		Stream:      true,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode upstream request: %w", err)
	}
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UpstreamError{Message: "assistant request failed, please retry", Retry: true, Status: http.StatusBadGateway}
	}
	if resp.StatusCode != http.StatusOK {
		// Drain a bounded amount so the connection can be reused; the
		// body itself is never surfaced to the caller.
		io.CopyN(io.Discard, resp.Body, 4096)
		resp.Body.Close()
		return nil, classifyStatus(resp.StatusCode)
	}
	return resp.Body, nil
}

// GenerateTitle asks the model for a short conversation title based on the
// opening exchange.
func (c *Client) GenerateTitle(ctx context.Context, messages []*models.Message) (string, error) {
	if len(messages) == 0 {
		return "New Conversation", nil
	}
	var conversationText strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser:
			fmt.Fprintf(&conversationText, "User: %s\n", msg.Content)
		case models.RoleAssistant:
			fmt.Fprintf(&conversationText, "Assistant: %s\n", msg.Content)
		}
	}
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are a conversation title generator. " +
					"Generate a concise title, at most ten words, summarizing the legal matter discussed. " +
					"Output only the title.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Generate a title for this conversation:\n\n" + conversationText.String(),
			},
		},
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate title failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "New Conversation", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) translateAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &UpstreamError{Message: "assistant request failed, please retry", Retry: true, Status: http.StatusBadGateway}
}
