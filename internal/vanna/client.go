// Package vanna is a client for the Vanna chat server's SSE endpoint.
package vanna

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/glide-the/RAGFlowMCP/internal/model"
)

const (
	chatSSEPath  = "/api/v0/chat_sse"
	apiKeyHeader = "VANNA-API-KEY"

	// maxErrorBody bounds how much of a failed response is kept for the error.
	maxErrorBody = 4 << 10
)

// Client posts chat requests and reads the streamed response.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	logger     *slog.Logger
}

// chatPayload is the wire body. The server reads the conversation id from
// "id" on the SSE route and from "conversation_id" elsewhere, so both are
// sent.
type chatPayload struct {
	ChatRequest
	ID string `json:"id,omitempty"`
}

// NewClient returns a Client. Streams are bounded by the caller's context,
// not by a client timeout.
func NewClient(baseURL, apiKey string, lg *slog.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("vanna: %w", model.ErrMissingEndpoint)
	}
	if lg == nil {
		lg = slog.Default()
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     strings.TrimSpace(apiKey),
		HTTPClient: &http.Client{},
		logger:     lg,
	}, nil
}

// StreamChat starts a chat and returns the decoded chunk stream. A request
// id is generated when req has none. The caller must Close the stream.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (*Stream, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	body, err := c.open(ctx, req)
	if err != nil {
		return nil, err
	}
	return newStream(body), nil
}

// StreamRaw forwards each undecoded SSE payload to fn until the server ends
// the stream, fn returns an error or ctx is done.
func (c *Client) StreamRaw(ctx context.Context, req ChatRequest, fn func(json.RawMessage) error) error {
	body, err := c.open(ctx, req)
	if err != nil {
		return err
	}
	r := newSSEReader(body)
	defer func() { _ = r.Close() }()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := r.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &model.ProviderError{Code: "VANNA_FAILED", Message: "failed reading chat stream", Retryable: true, Cause: err}
		}
		if !json.Valid(payload) {
			return &model.ProviderError{Code: "VANNA_FAILED", Message: "chat stream sent malformed JSON"}
		}
		if err := fn(json.RawMessage(payload)); err != nil {
			return err
		}
	}
}

func (c *Client) open(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, &model.ProviderError{Code: "VANNA_FAILED", Message: "message is required"}
	}
	if c.APIKey == "" {
		return nil, &model.ProviderError{Code: "VANNA_AUTH", Message: "missing Vanna API key"}
	}

	payload, err := json.Marshal(chatPayload{ChatRequest: req, ID: req.ConversationID})
	if err != nil {
		return nil, &model.ProviderError{Code: "VANNA_FAILED", Message: "failed to marshal chat request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+chatSSEPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &model.ProviderError{Code: "VANNA_FAILED", Message: "failed to build chat request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set(apiKeyHeader, c.APIKey)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c.logger.DebugContext(ctx, "vanna: chat request", "conversation_id", req.ConversationID, "request_id", req.RequestID)
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, &model.ProviderError{Code: "VANNA_FAILED", Message: "chat request failed", Retryable: true, Cause: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer func() {
			_ = resp.Body.Close()
		}()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		message := strings.TrimSpace(string(data))
		if message == "" {
			message = fmt.Sprintf("vanna chat returned status %d", resp.StatusCode)
		}
		return nil, model.MapHTTPStatus("VANNA", resp.StatusCode, message)
	}
	return resp.Body, nil
}
