package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glide-the/RAGFlowMCP/internal/appstate"
	"github.com/glide-the/RAGFlowMCP/internal/config"
)

const chatSSE = `data: {"conversation_id":"c1","request_id":"r1","simple":{"type":"text","text":"Hi"}}

data: {"conversation_id":"c1","request_id":"r1","rich":{"id":"q1","type":"sql","data":{"query":"SELECT 1"}}}

data: {"conversation_id":"c1","request_id":"r1","rich":{"id":"df1","type":"dataframe","data":{"title":"Sales","rows":[{"a":1}]}}}

data: [DONE]
`

type fixture struct {
	ragflow *httptest.Server
	vanna   *httptest.Server
	assets  *httptest.Server

	ragflowBody  map[string]any
	vannaBody    map[string]any
	vannaStatus  int
	vannaPayload string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{vannaStatus: http.StatusOK, vannaPayload: chatSSE}

	f.ragflow = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&f.ragflowBody)
		if q, _ := f.ragflowBody["question"].(string); q == "fail" {
			_, _ = io.WriteString(w, `{"code":100,"message":"index missing"}`)
			return
		}
		_, _ = io.WriteString(w, `{"code":0,"data":{"total":1,"chunks":[{"content":"c","document_id":"d1","document_keyword":"k","similarity":0.7}],"doc_aggs":[{"doc_id":"d1","doc_name":"doc","count":1}]}}`)
	}))
	f.vanna = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&f.vannaBody)
		w.WriteHeader(f.vannaStatus)
		_, _ = io.WriteString(w, f.vannaPayload)
	}))
	f.assets = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"asset":{"url":"https://files.example.com/sales.csv","filename":"sales.csv"}}`)
	}))
	t.Cleanup(func() {
		f.ragflow.Close()
		f.vanna.Close()
		f.assets.Close()
	})
	return f
}

func (f *fixture) server(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Ragflow.BaseURL = f.ragflow.URL
	cfg.Ragflow.APIKey = "rf"
	cfg.Vanna.BaseURL = f.vanna.URL
	cfg.Vanna.APIKey = "vn"
	cfg.Assets.BaseURL = f.assets.URL

	app, err := appstate.New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return New(app)
}

func callRequest(args map[string]any) mcplib.CallToolRequest {
	req := mcplib.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// isErrorResult returns true when the result carries IsError=true.
func isErrorResult(r *mcplib.CallToolResult) bool {
	return r != nil && r.IsError
}

// firstText returns the text of the first TextContent in the result.
func firstText(t *testing.T, r *mcplib.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, r.Content, "result has no content")
	txt, ok := r.Content[0].(mcplib.TextContent)
	require.True(t, ok, "first content item is not TextContent")
	return txt.Text
}

func decodeResult(t *testing.T, r *mcplib.CallToolResult) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(firstText(t, r)), &out))
	return out
}

// ─── ragflow_retrieval ────────────────────────────────────────────────────────

func TestHandleRagflowRetrieval(t *testing.T) {
	f := newFixture(t)
	s := f.server(t)

	res, err := s.handleRagflowRetrieval(context.Background(), callRequest(map[string]any{
		"question":    "revenue",
		"dataset_ids": []any{"ds1"},
		"page_size":   float64(5),
		"highlight":   true,
	}))
	require.NoError(t, err)
	assert.False(t, isErrorResult(res))

	out := decodeResult(t, res)
	assert.Equal(t, "success", out["status"])
	resp := out["response"].(map[string]any)
	assert.Equal(t, float64(1), resp["total"])
	chunk := resp["chunks"].([]any)[0].(map[string]any)
	assert.Equal(t, "k", chunk["doc_keyword"])
	assert.Nil(t, chunk["highlight"])
	assert.Len(t, resp["doc_aggs"], 1)

	assert.Equal(t, float64(5), f.ragflowBody["page_size"])
	assert.Equal(t, true, f.ragflowBody["highlight"])
	assert.Equal(t, float64(1024), f.ragflowBody["top_k"])
	assert.Equal(t, int64(1), s.app.Stats.GetRequests())
}

func TestHandleRagflowRetrieval_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		wantErr string
	}{
		{"no scope", map[string]any{"question": "q"}, "dataset_ids or document_ids must be provided"},
		{"missing question", map[string]any{"dataset_ids": []any{"ds"}}, "question is required"},
		{"bad page", map[string]any{"question": "q", "dataset_ids": []any{"ds"}, "page": 1.5}, "page must be an integer"},
		{"unknown arg", map[string]any{"question": "q", "dataset_ids": []any{"ds"}, "limit": 3}, "unknown argument: limit"},
		{"upstream code", map[string]any{"question": "fail", "document_ids": []any{"doc"}}, "Ragflow retrieval failed: index missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFixture(t).server(t)
			res, err := s.handleRagflowRetrieval(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, isErrorResult(res))
			out := decodeResult(t, res)
			assert.Equal(t, "error", out["status"])
			assert.Equal(t, tt.wantErr, out["error"])
		})
	}
}

// ─── vanna_chat_stream ────────────────────────────────────────────────────────

func TestHandleVannaChatStream(t *testing.T) {
	f := newFixture(t)
	s := f.server(t)

	res, err := s.handleVannaChatStream(context.Background(), callRequest(map[string]any{
		"message":         "show sales",
		"conversation_id": "c1",
	}))
	require.NoError(t, err)
	require.False(t, isErrorResult(res), firstText(t, res))

	var out struct {
		Events []map[string]any `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(firstText(t, res)), &out))

	var types []string
	for _, e := range out.Events {
		types = append(types, e["type"].(string))
		assert.Equal(t, "c1", e["conversation_id"])
	}
	assert.Equal(t, []string{"text", "sql", "dataframe", "link", "end"}, types)
	assert.Equal(t, "Sales", out.Events[3]["title"])
	assert.Equal(t, "https://files.example.com/sales.csv", out.Events[3]["url"])
	assert.Equal(t, "r1", out.Events[4]["request_id"])

	assert.Equal(t, "show sales", f.vannaBody["message"])
	assert.Equal(t, "c1", f.vannaBody["id"])
	assert.Equal(t, int64(5), s.app.Stats.GetStreamedEvents())
}

func TestHandleVannaChatStream_FilterKeepsEnd(t *testing.T) {
	s := newFixture(t).server(t)

	res, err := s.handleVannaChatStream(context.Background(), callRequest(map[string]any{
		"message":              "q",
		"acceptable_responses": []any{"SQL"},
	}))
	require.NoError(t, err)
	text := firstText(t, res)
	assert.Contains(t, text, `"type":"sql"`)
	assert.Contains(t, text, `"type":"end"`)
	assert.NotContains(t, text, `"type":"text"`)
	assert.NotContains(t, text, `"type":"dataframe"`)
}

func TestHandleVannaChatStream_UpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.vannaStatus = http.StatusUnauthorized
	f.vannaPayload = "bad key"
	s := f.server(t)

	res, err := s.handleVannaChatStream(context.Background(), callRequest(map[string]any{"message": "q"}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(res))
	assert.Equal(t, "bad key", firstText(t, res))
	assert.Equal(t, int64(1), s.app.Stats.GetUpstreamFailures())
}

func TestHandleVannaChatStream_MissingMessage(t *testing.T) {
	s := newFixture(t).server(t)
	res, err := s.handleVannaChatStream(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(res))
	assert.Contains(t, firstText(t, res), "message is required")
}

// ─── vanna_chat_once ──────────────────────────────────────────────────────────

func TestHandleVannaChatOnce(t *testing.T) {
	s := newFixture(t).server(t)

	res, err := s.handleVannaChatOnce(context.Background(), callRequest(map[string]any{"message": "q"}))
	require.NoError(t, err)
	require.False(t, isErrorResult(res))

	out := decodeResult(t, res)
	assert.Equal(t, "c1", out["conversation_id"])
	assert.Equal(t, "Hi", out["text"])
	assert.Equal(t, []any{"SELECT 1"}, out["sql"])
	assert.Len(t, out["dataframes"], 1)
	assert.Len(t, out["links"], 1)
	assert.Len(t, out["raw_events"], 5)
}

func TestHandleVannaChatOnce_MidStreamFailure(t *testing.T) {
	f := newFixture(t)
	f.vannaPayload = "data: {\"simple\":{\"type\":\"text\",\"text\":\"partial\"}}\n\ndata: {broken\n"
	s := f.server(t)

	res, err := s.handleVannaChatOnce(context.Background(), callRequest(map[string]any{"message": "q"}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(res))
	assert.NotContains(t, firstText(t, res), "partial")
}

// ─── vanna_chat_sse ───────────────────────────────────────────────────────────

func TestHandleVannaChatSSE(t *testing.T) {
	f := newFixture(t)
	s := f.server(t)

	res, err := s.handleVannaChatSSE(context.Background(), callRequest(map[string]any{
		"message":    "q",
		"user_email": "a@example.com",
	}))
	require.NoError(t, err)
	require.False(t, isErrorResult(res))

	var out struct {
		Events []json.RawMessage `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(firstText(t, res)), &out))
	require.Len(t, out.Events, 3)
	assert.True(t, strings.Contains(string(out.Events[1]), `"SELECT 1"`))
	assert.Equal(t, "a@example.com", f.vannaBody["user_email"])
}

func TestHandleVannaChatStream_RejectsUserEmail(t *testing.T) {
	s := newFixture(t).server(t)
	res, err := s.handleVannaChatStream(context.Background(), callRequest(map[string]any{"message": "q", "user_email": "x"}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(res))
	assert.Contains(t, firstText(t, res), "unknown argument: user_email")
}

func TestTools_Registered(t *testing.T) {
	s := newFixture(t).server(t)
	var names []string
	for _, tool := range s.tools() {
		names = append(names, tool.Tool.Name)
	}
	assert.Equal(t, []string{"ragflow_retrieval", "vanna_chat_stream", "vanna_chat_once", "vanna_chat_sse"}, names)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
