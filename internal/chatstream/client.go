package chatstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nyayachat/internal/models"
)

// Client talks to the chat relay endpoint and exposes the raw event
// stream for decoding.
type Client struct {
	baseURL    string
	userID     int64
	authToken  string
	csrfToken  string
	httpClient *http.Client
}

func NewClient(baseURL string, userID int64, authToken, csrfToken string) *Client {
	return &Client{
		baseURL:    baseURL,
		userID:     userID,
		authToken:  authToken,
		csrfToken:  csrfToken,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

type wireTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamRequest struct {
	Messages       []wireTurn `json:"messages"`
	ConversationID int64      `json:"conversationId,omitempty"`
	Stream         bool       `json:"stream"`
}

type errorResponse struct {
	Error string `json:"error"`
	Retry bool   `json:"retry"`
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/api/users/%d%s", c.baseURL, c.userID, path)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	if c.csrfToken != "" {
		req.Header.Set("X-CSRF-Token", c.csrfToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Stream opens a streaming chat request. The caller owns the returned
// body. Non-2xx responses are converted to a StreamError carrying the
// server's retry judgment; bodies that fail to decode yield a generic
// retryable error so transient proxies do not end the conversation.
func (c *Client) Stream(ctx context.Context, history []ChatMessage, conversationID int64) (io.ReadCloser, error) {
	payload := streamRequest{
		ConversationID: conversationID,
		Stream:         true,
	}
	for _, m := range history {
		if m.Role == models.RoleSystem {
			continue // local notices never go upstream
		}
		payload.Messages = append(payload.Messages, wireTurn{Role: string(m.Role), Content: m.Content})
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/chat", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &StreamError{Message: "could not reach the assistant, please retry", Retry: true}
	}
	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}
	defer resp.Body.Close()
	limited := io.LimitReader(resp.Body, 4096)
	var errResp errorResponse
	if decodeErr := json.NewDecoder(limited).Decode(&errResp); decodeErr != nil || errResp.Error == "" {
		return nil, &StreamError{Message: "assistant request failed, please retry", Retry: true, Status: resp.StatusCode}
	}
	return nil, &StreamError{Message: errResp.Error, Retry: errResp.Retry, Status: resp.StatusCode}
}

// CreateConversation provisions a server-side conversation and returns
// its ID.
func (c *Client) CreateConversation(ctx context.Context, title string) (int64, error) {
	data, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return 0, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/conversations", bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("create conversation failed with status %d", resp.StatusCode)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

// AppendMessage stores one durable message in the conversation.
func (c *Client) AppendMessage(ctx context.Context, conversationID int64, role models.Role, content, agentName string, confidence models.Confidence) error {
	data, err := json.Marshal(map[string]string{
		"role":       string(role),
		"content":    content,
		"agent_name": agentName,
		"confidence": string(confidence),
	})
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/conversations/%d/messages", conversationID)
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("append message failed with status %d", resp.StatusCode)
	}
	return nil
}
