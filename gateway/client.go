package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is an HTTP implementation of Rest against a platform bridge
// exposing JSON endpoints. Outbound calls share a token-bucket rate limit so
// bursts of command responses cannot trip the platform's limits.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type ClientConfig struct {
	BaseURL string
	// RequestsPerSecond caps outbound REST calls. Zero means 10/s.
	RequestsPerSecond float64
	Timeout           time.Duration
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)),
		logger:     logger,
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Gateway request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("Gateway request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("gateway: %s %s returned %d: %s", method, path, resp.StatusCode, data)
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) CreateMessage(ctx context.Context, channelID string, r Response) (*SentMessage, error) {
	var msg SentMessage
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	if err := c.doRequest(ctx, http.MethodPost, path, r, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, r Response) (*SentMessage, error) {
	var msg SentMessage
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	if err := c.doRequest(ctx, http.MethodPatch, path, r, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
}

type initialResponsePayload struct {
	Deferred  bool   `json:"deferred,omitempty"`
	Content   string `json:"content,omitempty"`
	Ephemeral bool   `json:"ephemeral,omitempty"`
	TTS       bool   `json:"tts,omitempty"`
}

func (c *Client) CreateInitialResponse(ctx context.Context, interactionID, token string, r Response) error {
	path := fmt.Sprintf("/interactions/%s/%s/callback", interactionID, token)
	payload := initialResponsePayload{Content: r.Content, Ephemeral: r.Ephemeral, TTS: r.TTS}
	return c.doRequest(ctx, http.MethodPost, path, payload, nil)
}

func (c *Client) CreateDeferredResponse(ctx context.Context, interactionID, token string, ephemeral bool) error {
	path := fmt.Sprintf("/interactions/%s/%s/callback", interactionID, token)
	payload := initialResponsePayload{Deferred: true, Ephemeral: ephemeral}
	return c.doRequest(ctx, http.MethodPost, path, payload, nil)
}

func (c *Client) CreateFollowup(ctx context.Context, token string, r Response) (*SentMessage, error) {
	var msg SentMessage
	path := fmt.Sprintf("/webhooks/%s/messages", token)
	if err := c.doRequest(ctx, http.MethodPost, path, r, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) EditInitialResponse(ctx context.Context, token string, r Response) (*SentMessage, error) {
	var msg SentMessage
	path := fmt.Sprintf("/webhooks/%s/messages/@original", token)
	if err := c.doRequest(ctx, http.MethodPatch, path, r, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) EditFollowup(ctx context.Context, token, messageID string, r Response) (*SentMessage, error) {
	var msg SentMessage
	path := fmt.Sprintf("/webhooks/%s/messages/%s", token, messageID)
	if err := c.doRequest(ctx, http.MethodPatch, path, r, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DeleteInitialResponse(ctx context.Context, token string) error {
	path := fmt.Sprintf("/webhooks/%s/messages/@original", token)
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) DeleteFollowup(ctx context.Context, token, messageID string) error {
	path := fmt.Sprintf("/webhooks/%s/messages/%s", token, messageID)
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) FetchInitialResponse(ctx context.Context, token string) (*SentMessage, error) {
	var msg SentMessage
	path := fmt.Sprintf("/webhooks/%s/messages/@original", token)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) FetchFollowup(ctx context.Context, token, messageID string) (*SentMessage, error) {
	var msg SentMessage
	path := fmt.Sprintf("/webhooks/%s/messages/%s", token, messageID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

type autocompletePayload struct {
	Choices []AutocompleteChoice `json:"choices"`
}

func (c *Client) CreateAutocompleteResponse(ctx context.Context, interactionID, token string, choices []AutocompleteChoice) error {
	path := fmt.Sprintf("/interactions/%s/%s/autocomplete", interactionID, token)
	return c.doRequest(ctx, http.MethodPost, path, autocompletePayload{Choices: choices}, nil)
}

func (c *Client) FetchChannel(ctx context.Context, channelID string) (*Channel, error) {
	var channel Channel
	path := fmt.Sprintf("/channels/%s", channelID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

func (c *Client) FetchGuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	var roles []Role
	path := fmt.Sprintf("/guilds/%s/roles", guildID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

var _ Rest = (*Client)(nil)
