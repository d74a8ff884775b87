// Package ragflow is a client for Ragflow's chunk retrieval API.
package ragflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/glide-the/RAGFlowMCP/internal/model"
)

const (
	retrievalPath  = "/api/v1/retrieval"
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4 << 10
)

// ErrNoScope is returned when a retrieval names neither datasets nor
// documents.
var ErrNoScope = errors.New("dataset_ids or document_ids must be provided")

var validate = validator.New(validator.WithRequiredStructEnabled())

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, apiKey string, lg *slog.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ragflow: %w", model.ErrMissingEndpoint)
	}
	if lg == nil {
		lg = slog.Default()
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     strings.TrimSpace(apiKey),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		logger:     lg,
	}, nil
}

// Validate checks a request after defaults have been applied.
func (r RetrievalRequest) Validate() error {
	if len(r.DatasetIDs) == 0 && len(r.DocumentIDs) == 0 {
		return ErrNoScope
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid retrieval request: %w", err)
	}
	return nil
}

// Retrieve runs a retrieval query. A response with a non-zero code is
// reported as an error carrying the server's message.
func (c *Client) Retrieve(ctx context.Context, req RetrievalRequest) (*RetrievalResponse, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if c.APIKey == "" {
		return nil, &model.ProviderError{Code: "RAGFLOW_AUTH", Message: "missing Ragflow API key"}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &model.ProviderError{Code: "RAGFLOW_FAILED", Message: "failed to marshal retrieval request", Cause: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+retrievalPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &model.ProviderError{Code: "RAGFLOW_FAILED", Message: "failed to build retrieval request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	c.logger.DebugContext(ctx, "ragflow: retrieval request", "datasets", len(req.DatasetIDs), "documents", len(req.DocumentIDs))
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, &model.ProviderError{Code: "RAGFLOW_FAILED", Message: "retrieval request failed", Retryable: true, Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		message := strings.TrimSpace(string(data))
		if message == "" {
			message = fmt.Sprintf("ragflow retrieval returned status %d", resp.StatusCode)
		}
		return nil, model.MapHTTPStatus("RAGFLOW", resp.StatusCode, message)
	}

	var out RetrievalResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &model.ProviderError{Code: "RAGFLOW_FAILED", Message: "failed to decode retrieval response", Cause: err}
	}
	if out.Code != 0 {
		return &out, &model.ProviderError{
			Code:       "RAGFLOW_FAILED",
			Message:    "Ragflow retrieval failed: " + out.Message,
			StatusCode: resp.StatusCode,
		}
	}
	return &out, nil
}

// Summarize trims a successful response down to the fields MCP clients
// consume. A response without data yields an empty summary.
func Summarize(resp *RetrievalResponse) Summary {
	out := Summary{Chunks: []ChunkSummary{}, DocAggs: []DocAgg{}}
	if resp == nil || resp.Data == nil {
		return out
	}
	out.Total = resp.Data.Total
	for _, ch := range resp.Data.Chunks {
		out.Chunks = append(out.Chunks, ChunkSummary{
			Content:    ch.Content,
			Highlight:  optional(ch.Highlight),
			DocumentID: optional(ch.DocumentID),
			DocKeyword: optional(ch.DocumentKeyword),
			Similarity: ch.Similarity,
		})
	}
	out.DocAggs = append(out.DocAggs, resp.Data.DocAggs...)
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
