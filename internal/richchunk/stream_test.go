package richchunk

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glide-the/RAGFlowMCP/internal/assets"
	"github.com/glide-the/RAGFlowMCP/internal/events"
	"github.com/glide-the/RAGFlowMCP/internal/vanna"
)

type fakeGateway struct {
	export  *assets.Asset
	render  *assets.Asset
	exports int
	renders int
}

func (g *fakeGateway) ExportDataFrame(context.Context, vanna.ChatStreamChunk) *assets.Asset {
	g.exports++
	return g.export
}

func (g *fakeGateway) RenderChart(context.Context, vanna.ChatStreamChunk) *assets.Asset {
	g.renders++
	return g.render
}

type sliceSource struct {
	chunks []vanna.ChatStreamChunk
	err    error // returned after the chunks instead of io.EOF
	closed bool
}

func (s *sliceSource) Next(context.Context) (vanna.ChatStreamChunk, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return vanna.ChatStreamChunk{}, s.err
		}
		return vanna.ChatStreamChunk{}, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

func chunkOf(conv, req string, rc *vanna.RichComponent) vanna.ChatStreamChunk {
	return vanna.ChatStreamChunk{ConversationID: conv, RequestID: req, Rich: rc, Timestamp: 1234567890}
}

func types(evts []events.Event) []events.Type {
	out := make([]events.Type, len(evts))
	for i, e := range evts {
		out[i] = e.Type
	}
	return out
}

func TestTranslate_DataFrameWithExportLink(t *testing.T) {
	gw := &fakeGateway{export: &assets.Asset{URL: "https://files.example.com/export.csv"}}
	tr := NewTranslator(gw, nil)

	got := tr.Translate(context.Background(), chunkOf("conv-1", "req-1", rich("dataframe", map[string]any{
		"title": "Results",
		"rows":  []any{map[string]any{"a": 1.0}},
	})))

	require.Equal(t, []events.Type{events.TypeDataFrame, events.TypeLink}, types(got))
	assert.Equal(t, "https://files.example.com/export.csv", got[1].URL)
	assert.Equal(t, "Results", got[1].Title)
	assert.Equal(t, "Download result data as file", got[1].Description)
	for _, e := range got {
		assert.Equal(t, "conv-1", e.ConversationID)
		assert.Equal(t, "req-1", e.RequestID)
	}
}

func TestTranslate_DataFrameEnrichmentUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		asset *assets.Asset
	}{
		{"transport failure", nil},
		{"asset without url", &assets.Asset{Filename: "x.csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTranslator(&fakeGateway{export: tt.asset}, nil)
			got := tr.Translate(context.Background(), chunkOf("conv-3", "req-3", rich("dataframe", map[string]any{"rows": []any{}})))
			assert.Equal(t, []events.Type{events.TypeDataFrame}, types(got))
		})
	}
}

func TestTranslate_LinkTitleFallsBackToFilename(t *testing.T) {
	tr := NewTranslator(&fakeGateway{export: &assets.Asset{URL: "u", Filename: "out.csv"}}, nil)
	got := tr.Translate(context.Background(), chunkOf("", "", rich("dataframe", map[string]any{})))
	require.Len(t, got, 2)
	assert.Equal(t, "out.csv", got[1].Title)
}

func TestTranslate_ChartPlotlyThenImage(t *testing.T) {
	gw := &fakeGateway{render: &assets.Asset{PreviewURL: "https://files.example.com/chart.png"}}
	tr := NewTranslator(gw, nil)

	got := tr.Translate(context.Background(), chunkOf("conv-2", "req-2", rich("chart", map[string]any{
		"data":   []any{map[string]any{"x": []any{1.0}, "y": []any{2.0}}},
		"layout": map[string]any{"title": "Chart Title"},
	})))

	require.Equal(t, []events.Type{events.TypePlotly, events.TypeImage}, types(got))
	assert.Equal(t, "https://files.example.com/chart.png", got[1].ImageURL)
	assert.Equal(t, "Chart Preview", got[1].Caption)
	assert.Equal(t, 1, gw.renders)
	assert.Zero(t, gw.exports)
}

func TestTranslate_OtherKindsSkipGateway(t *testing.T) {
	gw := &fakeGateway{}
	tr := NewTranslator(gw, nil)
	got := tr.Translate(context.Background(), chunkOf("c", "r", rich("sql", map[string]any{"query": "SELECT 1"})))
	assert.Equal(t, []events.Type{events.TypeSQL}, types(got))
	assert.Zero(t, gw.exports+gw.renders)
}

func TestTranslate_StampingIsIdempotent(t *testing.T) {
	tr := NewTranslator(&fakeGateway{export: &assets.Asset{URL: "u"}}, nil)
	chunk := chunkOf("conv", "req", rich("dataframe", map[string]any{"rows": []any{}}))

	first := tr.Translate(context.Background(), chunk)
	second := tr.Translate(context.Background(), chunk)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ConversationID, second[i].ConversationID)
		assert.Equal(t, first[i].RequestID, second[i].RequestID)
	}
}

func TestTranslate_SimpleTextChunk(t *testing.T) {
	tr := NewTranslator(nil, nil)
	got := tr.Translate(context.Background(), vanna.ChatStreamChunk{
		ConversationID: "c",
		Simple:         &vanna.SimpleComponent{Type: "text", Text: "Hello"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "Hello", got[0].Text)
	assert.Equal(t, "c", got[0].ConversationID)
	assert.Empty(t, got[0].RequestID)

	assert.Empty(t, tr.Translate(context.Background(), vanna.ChatStreamChunk{}))
}

func TestDriver_EndToEnd(t *testing.T) {
	src := &sliceSource{chunks: []vanna.ChatStreamChunk{
		{ConversationID: "conv-x", RequestID: "r1", Simple: &vanna.SimpleComponent{Type: "text", Text: "Hello"}},
		chunkOf("conv-x", "r2", rich("sql", map[string]any{"query": "SELECT 1"})),
		chunkOf("conv-x", "r3", rich("dataframe", map[string]any{"rows": []any{map[string]any{"a": 1.0}}})),
	}}
	d := NewDriver(NewTranslator(&fakeGateway{}, nil))

	got, err := d.Collect(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, src.closed)

	require.Equal(t, []events.Type{events.TypeText, events.TypeSQL, events.TypeDataFrame, events.TypeEnd}, types(got))
	assert.Equal(t, "Hello", got[0].Text)
	assert.Equal(t, "SELECT 1", got[1].Query)
	assert.Equal(t, map[string]any{"rows": []any{map[string]any{"a": 1.0}}}, got[2].JSONTable)
	assert.Equal(t, events.End("conv-x", "r3"), got[3])

	res := events.Aggregate(got)
	assert.Equal(t, "conv-x", res.ConversationID)
	assert.Equal(t, "Hello", res.Text)
	assert.Equal(t, []string{"SELECT 1"}, res.SQL)
	assert.Len(t, res.DataFrames, 1)
	assert.Empty(t, res.Images)
	assert.Empty(t, res.Links)
	assert.Len(t, res.RawEvents, 4)
}

func TestDriver_EndWithoutConversation(t *testing.T) {
	d := NewDriver(NewTranslator(nil, nil))

	got, err := d.Collect(context.Background(), &sliceSource{})
	require.NoError(t, err)
	assert.Equal(t, []events.Event{events.End("", "")}, got)

	got, err = d.Collect(context.Background(), &sliceSource{chunks: []vanna.ChatStreamChunk{
		chunkOf("early", "r1", rich("text", map[string]any{"content": "a"})),
		chunkOf("", "r2", rich("text", map[string]any{"content": "b"})),
	}})
	require.NoError(t, err)
	assert.Equal(t, events.End("", ""), got[len(got)-1])
}

func TestDriver_UpstreamErrorPropagates(t *testing.T) {
	boom := errors.New("agent crashed")
	src := &sliceSource{
		chunks: []vanna.ChatStreamChunk{chunkOf("c", "r", rich("text", map[string]any{"content": "partial"}))},
		err:    boom,
	}
	var emitted []events.Event
	err := NewDriver(NewTranslator(nil, nil)).Run(context.Background(), src, func(e events.Event) error {
		emitted = append(emitted, e)
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.True(t, src.closed)
	require.Len(t, emitted, 1)
	assert.Equal(t, events.TypeText, emitted[0].Type)

	_, err = NewDriver(NewTranslator(nil, nil)).Collect(context.Background(), &sliceSource{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestDriver_EmitErrorStops(t *testing.T) {
	stop := errors.New("client gone")
	src := &sliceSource{chunks: []vanna.ChatStreamChunk{
		chunkOf("c", "r", rich("text", map[string]any{"content": "a"})),
		chunkOf("c", "r", rich("text", map[string]any{"content": "b"})),
	}}
	calls := 0
	err := NewDriver(NewTranslator(nil, nil)).Run(context.Background(), src, func(events.Event) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
