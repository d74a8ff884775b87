package cli

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/glide-the/RAGFlowMCP/internal/appstate"
	"github.com/glide-the/RAGFlowMCP/internal/config"
	"github.com/glide-the/RAGFlowMCP/internal/mcp"
)

type serveFlags struct {
	transport      string
	listen         string
	mcpPath        string
	ragflowHost    string
	ragflowPort    int
	ragflowBaseURL string
	ragflowAPIKey  string
	vannaBaseURL   string
	vannaAPIKey    string
	assetBaseURL   string
	noAssets       bool
}

func newServeCmd(g *GlobalFlags) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, g, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.transport, "transport", config.TransportStdio, "transport: stdio|http|sse")
	fl.StringVar(&f.listen, "listen", "", "host:port for the http and sse transports")
	fl.StringVar(&f.mcpPath, "mcp-path", "", "HTTP path for the streamable MCP endpoint")
	fl.StringVar(&f.ragflowHost, "ragflow-host", "", "Ragflow host")
	fl.IntVar(&f.ragflowPort, "ragflow-port", 0, "Ragflow port")
	fl.StringVar(&f.ragflowBaseURL, "ragflow-base-url", "", "Ragflow base URL (overrides host and port)")
	fl.StringVar(&f.ragflowAPIKey, "ragflow-api-key", "", "Ragflow API key")
	fl.StringVar(&f.vannaBaseURL, "vanna-base-url", "", "Vanna base URL")
	fl.StringVar(&f.vannaAPIKey, "vanna-api-key", "", "Vanna API key")
	fl.StringVar(&f.assetBaseURL, "asset-base-url", "", "rich asset service base URL")
	fl.BoolVar(&f.noAssets, "no-assets", false, "disable dataframe export and chart preview enrichment")
	return cmd
}

// overrides keeps only the flags the user actually set so env and file
// values survive.
func (f *serveFlags) overrides(changed func(name string) bool) *config.Overrides {
	o := &config.Overrides{}
	str := func(name string, v *string) *string {
		if changed(name) {
			return v
		}
		return nil
	}
	o.Transport = str("transport", &f.transport)
	o.Listen = str("listen", &f.listen)
	o.MCPPath = str("mcp-path", &f.mcpPath)
	o.RagflowHost = str("ragflow-host", &f.ragflowHost)
	o.RagflowBaseURL = str("ragflow-base-url", &f.ragflowBaseURL)
	o.RagflowAPIKey = str("ragflow-api-key", &f.ragflowAPIKey)
	o.VannaBaseURL = str("vanna-base-url", &f.vannaBaseURL)
	o.VannaAPIKey = str("vanna-api-key", &f.vannaAPIKey)
	o.AssetBaseURL = str("asset-base-url", &f.assetBaseURL)
	if changed("ragflow-port") {
		o.RagflowPort = &f.ragflowPort
	}
	if changed("no-assets") {
		o.AssetsDisabled = &f.noAssets
	}
	return o
}

func runServe(cmd *cobra.Command, g *GlobalFlags, f *serveFlags) error {
	cfg, err := loadConfig(g, f.overrides(cmd.Flags().Changed), false)
	if err != nil {
		return err
	}
	lg := newLogger(cfg, cmd.ErrOrStderr())

	// Missing keys fail each tool call instead of the whole server.
	for _, check := range []func(*config.Config) error{config.RequireRagflowKey, config.RequireVannaKey} {
		if err := check(cfg); err != nil {
			lg.Warn("api key not configured", "detail", err.Error())
		}
	}

	app, err := appstate.New(cfg, lg)
	if err != nil {
		return withExit(ExitConfigInvalid, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	app.LogEndpoints(ctx)

	srv := mcp.New(app)
	if cfg.Server.Transport == config.TransportStdio {
		return srv.ServeStdio(ctx)
	}

	listener, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return withExit(ExitBindFailure, fmt.Errorf("server bind failure: %w", err))
	}
	announce(cmd, g, cfg, listener.Addr().String())
	return srv.Serve(ctx, listener, cfg.Server.Transport)
}

// announce prints the endpoint clients should connect to. It goes to
// stderr unless --json is set.
func announce(cmd *cobra.Command, g *GlobalFlags, cfg *config.Config, addr string) {
	path := cfg.Server.MCPPath
	if cfg.Server.Transport == config.TransportSSE {
		path = cfg.Server.SSEPath
	}
	url := "http://" + addr + path

	if g.JSON {
		emitNDJSON(cmd.OutOrStdout(), "server_started", map[string]any{
			"transport": cfg.Server.Transport,
			"url":       url,
		})
		return
	}
	if g.Quiet {
		return
	}
	w := cmd.ErrOrStderr()
	s := newStyles(w, false)
	fmt.Fprintln(w, s.banner())
	fmt.Fprintln(w, s.kv("Transport", cfg.Server.Transport))
	fmt.Fprintln(w, s.kv("URL", s.URL.Render(url)))
	fmt.Fprintln(w, s.kv("Ragflow", cfg.RagflowBase()))
	fmt.Fprintln(w, s.kv("Vanna", cfg.VannaBase()))
	fmt.Fprintln(w)
}
