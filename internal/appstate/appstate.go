// Package appstate holds the per-process application context shared by the
// MCP server and CLI commands.
package appstate

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/glide-the/RAGFlowMCP/internal/assets"
	"github.com/glide-the/RAGFlowMCP/internal/config"
	"github.com/glide-the/RAGFlowMCP/internal/ragflow"
	"github.com/glide-the/RAGFlowMCP/internal/richchunk"
	"github.com/glide-the/RAGFlowMCP/internal/vanna"
)

// AppState is built once at startup and passed to handlers explicitly.
type AppState struct {
	Config  *config.Config
	Ragflow *ragflow.Client
	Vanna   *vanna.Client
	// Assets is nil when enrichment is disabled.
	Assets *assets.Gateway
	Driver *richchunk.Driver
	Logger *slog.Logger
	Stats  *Counters
}

// New wires clients from cfg.
func New(cfg *config.Config, lg *slog.Logger) (*AppState, error) {
	if lg == nil {
		lg = slog.Default()
	}
	rf, err := ragflow.NewClient(cfg.RagflowBase(), cfg.Ragflow.APIKey, lg)
	if err != nil {
		return nil, err
	}
	vn, err := vanna.NewClient(cfg.VannaBase(), cfg.Vanna.APIKey, lg)
	if err != nil {
		return nil, err
	}

	st := &AppState{
		Config:  cfg,
		Ragflow: rf,
		Vanna:   vn,
		Logger:  lg,
		Stats:   &Counters{},
	}

	var gw richchunk.AssetGateway
	if !cfg.Assets.Disabled {
		st.Assets = assets.NewGateway(cfg.AssetBase(), cfg.AssetTimeout(), lg)
		gw = st.Assets
	}
	st.Driver = richchunk.NewDriver(richchunk.NewTranslator(gw, lg))
	return st, nil
}

// LogEndpoints reports the resolved upstreams with keys masked.
func (s *AppState) LogEndpoints(ctx context.Context) {
	s.Logger.InfoContext(ctx, "ragflow endpoint", "base_url", s.Ragflow.BaseURL, "api_key", config.MaskKey(s.Ragflow.APIKey))
	s.Logger.InfoContext(ctx, "vanna endpoint", "base_url", s.Vanna.BaseURL, "api_key", config.MaskKey(s.Vanna.APIKey))
	if s.Assets != nil {
		s.Logger.InfoContext(ctx, "rich asset endpoint", "base_url", s.Assets.BaseURL, "timeout", s.Config.AssetTimeout())
	} else {
		s.Logger.InfoContext(ctx, "rich asset enrichment disabled")
	}
}

// Counters track tool traffic. All counters use atomic operations.
type Counters struct {
	requests         atomic.Int64
	streamedEvents   atomic.Int64
	upstreamFailures atomic.Int64
}

func (c *Counters) AddRequests(delta int64)         { c.requests.Add(delta) }
func (c *Counters) AddStreamedEvents(delta int64)   { c.streamedEvents.Add(delta) }
func (c *Counters) AddUpstreamFailures(delta int64) { c.upstreamFailures.Add(delta) }

func (c *Counters) GetRequests() int64         { return c.requests.Load() }
func (c *Counters) GetStreamedEvents() int64   { return c.streamedEvents.Load() }
func (c *Counters) GetUpstreamFailures() int64 { return c.upstreamFailures.Load() }

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Requests           int64 `json:"requests"`
	StreamedEvents     int64 `json:"streamed_events"`
	UpstreamFailures   int64 `json:"upstream_failures"`
	EnrichmentFailures int64 `json:"enrichment_failures"`
}

func (s *AppState) Snapshot() Snapshot {
	snap := Snapshot{
		Requests:         s.Stats.GetRequests(),
		StreamedEvents:   s.Stats.GetStreamedEvents(),
		UpstreamFailures: s.Stats.GetUpstreamFailures(),
	}
	if s.Assets != nil {
		snap.EnrichmentFailures = s.Assets.Failures()
	}
	return snap
}
