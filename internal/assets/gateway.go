// Package assets talks to the rich asset service that exports dataframes as
// downloadable files and renders charts to preview images.
package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/glide-the/RAGFlowMCP/internal/model"
	"github.com/glide-the/RAGFlowMCP/internal/vanna"
)

const (
	DefaultTimeout = 8 * time.Second

	exportPath = "/api/v0/rich_assets/dataframe/export"
	renderPath = "/api/v0/rich_assets/chart/render"

	defaultExportFilename = "dataframe_export.csv"
)

// Asset is the subset of the service's asset record the adapter reads.
type Asset struct {
	ID          string `json:"id,omitempty"`
	URL         string `json:"url,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

type richBlock struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Lifecycle   string         `json:"lifecycle"`
	Timestamp   any            `json:"timestamp"`
	Visible     bool           `json:"visible"`
	Interactive bool           `json:"interactive"`
	Data        map[string]any `json:"data"`
}

type exportSpec struct {
	Format       string `json:"format"`
	Filename     string `json:"filename"`
	IncludeIndex bool   `json:"include_index"`
	Encoding     string `json:"encoding"`
}

type renderSpec struct {
	Format     string `json:"format"`
	Scale      int    `json:"scale"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
}

type assetRequest struct {
	ConversationID string      `json:"conversation_id"`
	RequestID      string      `json:"request_id"`
	Rich           richBlock   `json:"rich"`
	Export         *exportSpec `json:"export,omitempty"`
	Render         *renderSpec `json:"render,omitempty"`
}

type assetResponse struct {
	Asset *Asset `json:"asset"`
}

// Gateway is the HTTP client for the asset service. Calls are best effort:
// failures are logged at warn level and reported as a nil asset.
type Gateway struct {
	BaseURL    string
	HTTPClient *http.Client
	logger     *slog.Logger
	failures   atomic.Int64
}

// NewGateway returns a Gateway for baseURL. A non-positive timeout selects
// DefaultTimeout.
func NewGateway(baseURL string, timeout time.Duration, lg *slog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if lg == nil {
		lg = slog.Default()
	}
	return &Gateway{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		logger:     lg,
	}
}

// Failures returns the number of enrichment calls that failed so far.
func (g *Gateway) Failures() int64 {
	return g.failures.Load()
}

// ExportDataFrame asks the service for a CSV export of the chunk's
// dataframe. It returns nil without a request when data.exportable is
// present and falsy.
func (g *Gateway) ExportDataFrame(ctx context.Context, chunk vanna.ChatStreamChunk) *Asset {
	data := richData(chunk)
	if v, ok := data["exportable"]; ok && isFalsy(v) {
		return nil
	}
	filename := defaultExportFilename
	if v, ok := data["title"]; ok && v != nil {
		filename = fmt.Sprint(v)
	}
	req := assetRequest{
		ConversationID: chunk.ConversationID,
		RequestID:      chunk.RequestID,
		Rich:           newRichBlock(chunk, "dataframe"),
		Export: &exportSpec{
			Format:       "csv",
			Filename:     filename,
			IncludeIndex: false,
			Encoding:     "utf-8",
		},
	}
	asset, err := g.post(ctx, exportPath, req)
	if err != nil {
		g.failures.Add(1)
		g.logger.WarnContext(ctx, "export dataframe asset failed", "error", err, "request_id", chunk.RequestID)
		return nil
	}
	return asset
}

// RenderChart asks the service for a PNG preview of the chunk's chart.
func (g *Gateway) RenderChart(ctx context.Context, chunk vanna.ChatStreamChunk) *Asset {
	req := assetRequest{
		ConversationID: chunk.ConversationID,
		RequestID:      chunk.RequestID,
		Rich:           newRichBlock(chunk, "chart"),
		Render: &renderSpec{
			Format:     "png",
			Scale:      2,
			Width:      1200,
			Height:     600,
			Background: "white",
		},
	}
	asset, err := g.post(ctx, renderPath, req)
	if err != nil {
		g.failures.Add(1)
		g.logger.WarnContext(ctx, "render chart asset failed", "error", err, "request_id", chunk.RequestID)
		return nil
	}
	return asset
}

func newRichBlock(chunk vanna.ChatStreamChunk, kind string) richBlock {
	rb := richBlock{
		Type:      kind,
		Lifecycle: "create",
		Timestamp: chunk.Timestamp,
		Visible:   true,
		Data:      richData(chunk),
	}
	if rc := chunk.Rich; rc != nil {
		rb.ID = rc.ID
		if rc.Lifecycle != "" {
			rb.Lifecycle = rc.Lifecycle
		}
		if rc.Timestamp != nil {
			rb.Timestamp = rc.Timestamp
		}
		if rc.Visible != nil {
			rb.Visible = *rc.Visible
		}
		if rc.Interactive != nil {
			rb.Interactive = *rc.Interactive
		}
	}
	return rb
}

func (g *Gateway) post(ctx context.Context, path string, body assetRequest) (*Asset, error) {
	if g.BaseURL == "" {
		return nil, &model.ProviderError{Code: "RICH_ASSET_FAILED", Message: "rich asset base url is not configured"}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &model.ProviderError{Code: "RICH_ASSET_FAILED", Message: "failed to marshal asset request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &model.ProviderError{Code: "RICH_ASSET_FAILED", Message: "failed to build asset request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpClient := g.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Code: "RICH_ASSET_FAILED", Message: "asset request failed", Retryable: true, Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.ProviderError{Code: "RICH_ASSET_FAILED", Message: "failed to read asset response", StatusCode: resp.StatusCode, Cause: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := strings.TrimSpace(string(respBody))
		if message == "" {
			message = fmt.Sprintf("rich asset service returned status %d", resp.StatusCode)
		}
		return nil, model.MapHTTPStatus("RICH_ASSET", resp.StatusCode, message)
	}

	var parsed assetResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &model.ProviderError{Code: "RICH_ASSET_FAILED", Message: "failed to decode asset response", StatusCode: resp.StatusCode, Cause: err}
	}
	return parsed.Asset, nil
}

func richData(chunk vanna.ChatStreamChunk) map[string]any {
	if chunk.Rich == nil || chunk.Rich.Data == nil {
		return map[string]any{}
	}
	return chunk.Rich.Data
}

func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == "" || strings.EqualFold(t, "false")
	case float64:
		return t == 0
	}
	return false
}
