// Package cli implements the ragflowmcp command line.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/glide-the/RAGFlowMCP/internal/config"
)

// Exit codes.
const (
	ExitSuccess       = 0
	ExitGenericError  = 1
	ExitConfigInvalid = 2
	ExitBindFailure   = 4
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	NonInteractive bool
	Quiet          bool
	LogLevel       string
}

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitGenericError
}

// NewRootCmd builds the command tree. Each call returns independent flag
// state.
func NewRootCmd() *cobra.Command {
	g := &GlobalFlags{}
	root := &cobra.Command{
		Use:           "ragflowmcp",
		Short:         "MCP server for Ragflow retrieval and the Vanna data agent",
		Long:          "ragflowmcp exposes Ragflow retrieval and Vanna chat as MCP tools, translating the agent's rich components into plain chat events.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.ConfigPath, "config", config.DefaultConfigFile, "config file path (.yaml or .toml)")
	pf.BoolVar(&g.JSON, "json", false, "emit NDJSON for automation/logging")
	pf.BoolVar(&g.NonInteractive, "non-interactive", false, "disable prompts; fail fast with actionable instructions when config is missing")
	pf.BoolVar(&g.Quiet, "quiet", false, "reduce output")
	pf.StringVar(&g.LogLevel, "log-level", "", "log level: debug|info|warn|error")

	root.AddCommand(
		newServeCmd(g),
		newChatCmd(g),
		newRetrieveCmd(g),
		newConfigCmd(g),
		newVersionCmd(g),
	)
	return root
}

// Execute runs the command line and reports a failure on stderr. Use
// ExitCode on the result.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		printErr(os.Stderr, newStyles(os.Stderr, false), err)
	}
	return err
}

// loadConfig applies the global flags on top of o and loads config.
func loadConfig(g *GlobalFlags, o *config.Overrides, skipValidate bool) (*config.Config, error) {
	if o == nil {
		o = &config.Overrides{}
	}
	if g.LogLevel != "" {
		level := g.LogLevel
		o.LogLevel = &level
	}
	if g.JSON {
		format := "json"
		o.LogFormat = &format
	}
	cfg, err := config.Load(config.Options{
		ConfigPath:   g.ConfigPath,
		SkipValidate: skipValidate,
		Overrides:    o,
	})
	if err != nil {
		return nil, withExit(ExitConfigInvalid, err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs never go to stdout, which
// carries stdio MCP traffic.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// emitNDJSON writes one {ts, level, event, data} object per line.
func emitNDJSON(w io.Writer, event string, data any) {
	out := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "info",
		"event": event,
		"data":  data,
	}
	_ = json.NewEncoder(w).Encode(out)
}

func printErr(w io.Writer, s styles, err error) {
	fmt.Fprintln(w, s.errPrefix(), err.Error())
}
