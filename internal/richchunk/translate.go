package richchunk

import (
	"context"
	"log/slog"

	"github.com/glide-the/RAGFlowMCP/internal/assets"
	"github.com/glide-the/RAGFlowMCP/internal/events"
	"github.com/glide-the/RAGFlowMCP/internal/vanna"
)

// AssetGateway produces downloadable or previewable side assets for
// dataframe and chart components. Implementations report failure as a nil
// asset; they never return an error.
type AssetGateway interface {
	ExportDataFrame(ctx context.Context, chunk vanna.ChatStreamChunk) *assets.Asset
	RenderChart(ctx context.Context, chunk vanna.ChatStreamChunk) *assets.Asset
}

// Translator converts one chunk into its events.
type Translator struct {
	gateway AssetGateway
	logger  *slog.Logger
}

// NewTranslator returns a Translator. A nil gateway disables enrichment.
func NewTranslator(gw AssetGateway, lg *slog.Logger) *Translator {
	if lg == nil {
		lg = slog.Default()
	}
	return &Translator{gateway: gw, logger: lg}
}

// Translate returns the events for chunk in emission order, with the chunk's
// conversation and request ids stamped onto events that lack them.
// Enrichment calls block the caller.
func (t *Translator) Translate(ctx context.Context, chunk vanna.ChatStreamChunk) []events.Event {
	var out []events.Event

	if chunk.Rich == nil {
		if chunk.Simple != nil && chunk.Simple.Text != "" {
			out = append(out, events.Text(chunk.Simple.Text))
		}
		return events.StampAll(out, chunk.ConversationID, chunk.RequestID)
	}

	switch c := Parse(chunk.Rich).(type) {
	case DataFrame:
		out = append(out, dataFrameEvent(c))
		if t.gateway != nil {
			asset := t.gateway.ExportDataFrame(ctx, chunk)
			if e, ok := assets.LinkFromExport(c.Data, asset); ok {
				out = append(out, e)
			}
		}
	case Chart:
		out = append(out, plotlyEvent(c))
		if t.gateway != nil {
			asset := t.gateway.RenderChart(ctx, chunk)
			if e, ok := assets.ImageFromRender(chunk.Rich.Data, asset); ok {
				out = append(out, e)
			}
		}
	case Unknown:
		t.logger.DebugContext(ctx, "richchunk: unknown component kind", "kind", c.Type)
	default:
		out = Classify(c)
	}
	return events.StampAll(out, chunk.ConversationID, chunk.RequestID)
}
