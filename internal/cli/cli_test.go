package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glide-the/RAGFlowMCP/internal/config"
)

var configEnv = []string{
	"RAGFLOW_API_HOST", "RAGFLOW_API_PORT", "RAGFLOW_API_KEY", "RAGFLOW_API_BASE",
	"VANNA_API_HOST", "VANNA_API_PORT", "VANNA_API_KEY", "VANNA_API_BASE",
	"RICH_ASSET_BASE_URL", "RICH_ASSET_TIMEOUT",
	"RAGFLOWMCP_TRANSPORT", "RAGFLOWMCP_LISTEN", "RAGFLOWMCP_LOG_LEVEL",
}

// isolate clears config env vars and runs the test from an empty directory
// so no stray config or dotenv file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	for _, name := range configEnv {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != ExitSuccess {
		t.Fatalf("nil error: got %d", got)
	}
	if got := ExitCode(errors.New("x")); got != ExitGenericError {
		t.Fatalf("plain error: got %d", got)
	}
	wrapped := errors.Join(errors.New("ctx"), withExit(ExitBindFailure, errors.New("bind")))
	if got := ExitCode(wrapped); got != ExitBindFailure {
		t.Fatalf("wrapped exit error: got %d", got)
	}
	if withExit(ExitConfigInvalid, nil) != nil {
		t.Fatal("withExit(nil) must stay nil")
	}
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "ragflowmcp 0.1.0\n" {
		t.Fatalf("unexpected output %q", out)
	}

	out, _, err = run(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	var line struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &line); err != nil {
		t.Fatalf("decode ndjson: %v", err)
	}
	if line.Event != "version" || line.Data["version"] != "0.1.0" {
		t.Fatalf("unexpected ndjson line %+v", line)
	}
}

func TestConfigInitAndPrint(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "conf", "ragflowmcp.yaml")

	if _, _, err := run(t, "config", "init", "--non-interactive", "--config", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	_, _, err := run(t, "config", "init", "--non-interactive", "--config", path)
	if ExitCode(err) != ExitConfigInvalid {
		t.Fatalf("expected config invalid on existing file, got %v", err)
	}
	if _, _, err := run(t, "config", "init", "--non-interactive", "--force", "--config", path); err != nil {
		t.Fatalf("config init --force: %v", err)
	}

	t.Setenv("RAGFLOW_API_KEY", "rf-secret-1234")
	out, _, err := run(t, "config", "print", "--config", path)
	if err != nil {
		t.Fatalf("config print: %v", err)
	}
	if strings.Contains(out, "rf-secret-1234") {
		t.Fatalf("secret leaked in config print:\n%s", out)
	}
	if !strings.Contains(out, "<from env RAGFLOW_API_KEY>") {
		t.Fatalf("expected redacted key in:\n%s", out)
	}
}

func TestConfigInvalidExitCode(t *testing.T) {
	isolate(t)
	t.Setenv("RAGFLOW_API_PORT", "not-a-port")
	_, _, err := run(t, "retrieve", "q", "--dataset", "ds")
	if ExitCode(err) != ExitConfigInvalid {
		t.Fatalf("expected exit %d, got %d (%v)", ExitConfigInvalid, ExitCode(err), err)
	}
}

const chatStream = `data: {"conversation_id":"c7","request_id":"r1","simple":{"type":"text","text":"Hel"}}

data: {"conversation_id":"c7","request_id":"r1","simple":{"type":"text","text":"lo"}}

data: {"conversation_id":"c7","request_id":"r1","rich":{"type":"sql","data":{"query":"SELECT 1"}}}

data: [DONE]
`

func vannaServer(t *testing.T, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("VANNA-API-KEY") != "vk" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		_, _ = io.WriteString(w, chatStream)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatCommandStreams(t *testing.T) {
	isolate(t)
	var body map[string]any
	srv := vannaServer(t, &body)
	t.Setenv("VANNA_API_BASE", srv.URL)
	t.Setenv("VANNA_API_KEY", "vk")

	out, stderr, err := run(t, "chat", "show totals", "--conversation-id", "c7")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out != "Hello\n[sql] SELECT 1\n" {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(stderr, "conversation_id=c7") {
		t.Fatalf("expected conversation id on stderr, got %q", stderr)
	}
	if body["message"] != "show totals" || body["conversation_id"] != "c7" {
		t.Fatalf("unexpected upstream body %v", body)
	}
}

func TestChatCommandAcceptFilter(t *testing.T) {
	isolate(t)
	srv := vannaServer(t, nil)
	t.Setenv("VANNA_API_BASE", srv.URL)
	t.Setenv("VANNA_API_KEY", "vk")

	out, _, err := run(t, "chat", "q", "--accept", "sql", "--json")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected sql and end events, got %d lines:\n%s", len(lines), out)
	}
	var last struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &last); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last.Event != "chat_event" || last.Data["type"] != "end" || last.Data["conversation_id"] != "c7" {
		t.Fatalf("unexpected last line %+v", last)
	}
}

func TestChatCommandOnce(t *testing.T) {
	isolate(t)
	srv := vannaServer(t, nil)
	t.Setenv("VANNA_API_BASE", srv.URL)
	t.Setenv("VANNA_API_KEY", "vk")

	out, _, err := run(t, "chat", "q", "--once")
	if err != nil {
		t.Fatalf("chat --once: %v", err)
	}
	var agg struct {
		ConversationID string   `json:"conversation_id"`
		Text           string   `json:"text"`
		SQL            []string `json:"sql"`
		RawEvents      []any    `json:"raw_events"`
	}
	if err := json.Unmarshal([]byte(out), &agg); err != nil {
		t.Fatalf("decode aggregate: %v\n%s", err, out)
	}
	if agg.ConversationID != "c7" || agg.Text != "Hello" || len(agg.SQL) != 1 || len(agg.RawEvents) != 4 {
		t.Fatalf("unexpected aggregate %+v", agg)
	}
}

func TestChatCommandErrors(t *testing.T) {
	isolate(t)
	if _, _, err := run(t, "chat"); ExitCode(err) != ExitGenericError {
		t.Fatalf("expected generic error without message, got %v", err)
	}
	_, _, err := run(t, "chat", "q")
	if ExitCode(err) != ExitConfigInvalid || !strings.Contains(err.Error(), "Missing VANNA_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}

	srv := vannaServer(t, nil)
	t.Setenv("VANNA_API_BASE", srv.URL)
	t.Setenv("VANNA_API_KEY", "wrong")
	_, _, err = run(t, "chat", "q")
	if err == nil || !strings.Contains(err.Error(), "VANNA_AUTH") {
		t.Fatalf("expected upstream auth failure, got %v", err)
	}
}

func TestRetrieveCommand(t *testing.T) {
	isolate(t)
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer rk" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"code":0,"data":{"total":1,"chunks":[{"content":"alpha","document_keyword":"a.pdf","similarity":0.5}],"doc_aggs":[{"doc_id":"d","doc_name":"a.pdf","count":1}]}}`)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("RAGFLOW_API_BASE", srv.URL)
	t.Setenv("RAGFLOW_API_KEY", "rk")

	out, _, err := run(t, "retrieve", "what is alpha", "--dataset", "ds1,ds2", "--page-size", "5")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	for _, want := range []string{"1 chunks", "similarity=0.500", "doc=a.pdf", "alpha", "a.pdf:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if ids, _ := body["dataset_ids"].([]any); len(ids) != 2 {
		t.Fatalf("unexpected dataset_ids %v", body["dataset_ids"])
	}
	if body["page_size"] != float64(5) {
		t.Fatalf("unexpected page_size %v", body["page_size"])
	}

	out, _, err = run(t, "retrieve", "q", "--document", "doc1", "--json")
	if err != nil {
		t.Fatalf("retrieve --json: %v", err)
	}
	if !strings.Contains(out, `"doc_keyword":"a.pdf"`) {
		t.Fatalf("unexpected json output %s", out)
	}
}

func TestRetrieveRequiresScope(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "retrieve", "q")
	if ExitCode(err) != ExitGenericError || !strings.Contains(err.Error(), "dataset_ids or document_ids must be provided") {
		t.Fatalf("expected scope error, got %v", err)
	}
}

func TestServeBindFailure(t *testing.T) {
	isolate(t)
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	_, _, err = run(t, "serve", "--transport", "http", "--listen", busy.Addr().String())
	if ExitCode(err) != ExitBindFailure {
		t.Fatalf("expected exit %d, got %d (%v)", ExitBindFailure, ExitCode(err), err)
	}
}

func TestServeRejectsUnknownTransport(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "serve", "--transport", "grpc")
	if ExitCode(err) != ExitConfigInvalid || !strings.Contains(err.Error(), "server.transport") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestServeOverridesOnlyChangedFlags(t *testing.T) {
	f := &serveFlags{listen: "0.0.0.0:1", noAssets: true}
	changed := map[string]bool{"listen": true, "no-assets": true}
	o := f.overrides(func(name string) bool { return changed[name] })
	if o.Listen == nil || *o.Listen != "0.0.0.0:1" {
		t.Fatalf("expected listen override, got %v", o.Listen)
	}
	if o.AssetsDisabled == nil || !*o.AssetsDisabled {
		t.Fatal("expected assets disabled override")
	}
	if o.Transport != nil || o.RagflowPort != nil || o.VannaBaseURL != nil {
		t.Fatal("unchanged flags must not override config")
	}
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"
	var buf bytes.Buffer
	lg := newLogger(&cfg, &buf)
	lg.Info("hidden")
	lg.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("expected json record, got %s", out)
	}

	for in, want := range map[string]slog.Level{"DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo} {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
