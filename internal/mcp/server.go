package mcp

// In this file: MCP server construction and transport management.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/glide-the/RAGFlowMCP/internal/appstate"
	"github.com/glide-the/RAGFlowMCP/internal/config"
	"github.com/glide-the/RAGFlowMCP/internal/protocol"
	"github.com/glide-the/RAGFlowMCP/internal/ragflow"
	"github.com/glide-the/RAGFlowMCP/internal/richchunk"
	"github.com/glide-the/RAGFlowMCP/internal/vanna"
)

const (
	messagePath       = "/message"
	shutdownTimeout   = 5 * time.Second
	limiterSweepEvery = time.Minute
	limiterMaxIdle    = 10 * time.Minute
)

// retriever is the Ragflow surface the tools need.
type retriever interface {
	Retrieve(ctx context.Context, req ragflow.RetrievalRequest) (*ragflow.RetrievalResponse, error)
}

// chatClient is the Vanna surface the tools need.
type chatClient interface {
	StreamChat(ctx context.Context, req vanna.ChatRequest) (*vanna.Stream, error)
	StreamRaw(ctx context.Context, req vanna.ChatRequest, fn func(json.RawMessage) error) error
}

// Server wraps an MCP server and the application context its tools use.
type Server struct {
	mcp     *mcpsrv.MCPServer
	app     *appstate.AppState
	rag     retriever
	chat    chatClient
	driver  *richchunk.Driver
	limiter *ipRateLimiter
	logger  *slog.Logger
}

// New creates a server with all tools registered. It does not start
// listening until one of the Serve methods is called.
func New(app *appstate.AppState) *Server {
	lg := app.Logger
	if lg == nil {
		lg = slog.Default()
	}
	s := &Server{
		app:    app,
		rag:    app.Ragflow,
		chat:   app.Vanna,
		driver: app.Driver,
		logger: lg,
	}
	if cfg := app.Config; cfg != nil {
		s.limiter = newIPRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, cfg.Server.TrustedProxies)
	}

	s.mcp = mcpsrv.NewMCPServer(
		protocol.ServerName,
		protocol.ServerVersion,
		mcpsrv.WithInstructions(instructions),
		mcpsrv.WithToolCapabilities(false),
		mcpsrv.WithLogging(),
		mcpsrv.WithRecovery(),
	)
	for _, t := range s.tools() {
		s.mcp.AddTool(t.Tool, t.Handler)
	}
	return s
}

const instructions = `You are connected to a Ragflow and Vanna MCP server.

- ragflow_retrieval searches Ragflow datasets or documents for relevant chunks.
- vanna_chat_stream asks the Vanna data analyst agent a question and returns
  the canonical events (text, image, link, buttons, dataframe, plotly, sql,
  error, end). Events are also sent as log notifications while streaming.
- vanna_chat_once asks the same question and returns one aggregated answer.
- vanna_chat_sse returns the raw upstream chat payloads.

Pass conversation_id from a previous answer to continue a conversation.`

// ServeStdio runs the MCP server over stdin/stdout until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := mcpsrv.NewStdioServer(s.mcp)
	s.logger.InfoContext(ctx, "mcp server listening on stdio")
	if err := srv.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("mcp stdio server error: %w", err)
	}
	return nil
}

// Handler returns the HTTP router for transport, which must be http or sse.
// The returned shutdown func releases transport resources.
func (s *Server) Handler(transport string) (http.Handler, func(context.Context) error, error) {
	cfg := s.serverConfig()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(recoverJSONRPC(s.logger))
	r.Get(protocol.HealthPath, s.handleHealth)

	switch transport {
	case config.TransportHTTP:
		stream := mcpsrv.NewStreamableHTTPServer(s.mcp, mcpsrv.WithStateLess(true))
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.middleware)
			r.Handle(cfg.MCPPath, stream)
		})
		return r, func(context.Context) error { return nil }, nil
	case config.TransportSSE:
		sse := mcpsrv.NewSSEServer(s.mcp,
			mcpsrv.WithSSEEndpoint(cfg.SSEPath),
			mcpsrv.WithMessageEndpoint(messagePath),
		)
		r.Get(cfg.SSEPath, sse.SSEHandler().ServeHTTP)
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.middleware)
			r.Post(messagePath, sse.MessageHandler().ServeHTTP)
		})
		return r, sse.Shutdown, nil
	default:
		return nil, nil, fmt.Errorf("unsupported http transport %q", transport)
	}
}

// Serve handles HTTP on listener until ctx is cancelled. In-flight requests
// are allowed to drain.
func (s *Server) Serve(ctx context.Context, listener net.Listener, transport string) error {
	handler, closeTransport, err := s.Handler(transport)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.InfoContext(ctx, "mcp server listening", "transport", transport, "addr", listener.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mcp http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.InfoContext(ctx, "mcp server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := closeTransport(shutdownCtx); err != nil {
			s.logger.WarnContext(ctx, "mcp transport shutdown", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("mcp http server shutdown error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(limiterSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.limiter.cleanup(limiterMaxIdle)
			}
		}
	})
	return g.Wait()
}

func (s *Server) serverConfig() config.Server {
	if s.app.Config != nil {
		return s.app.Config.Server
	}
	return config.Default().Server
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"name":    protocol.ServerName,
		"version": protocol.ServerVersion,
		"stats":   s.app.Snapshot(),
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
