package assets

import (
	"fmt"

	"github.com/glide-the/RAGFlowMCP/internal/events"
)

// LinkFromExport builds the download link for an exported dataframe. data is
// the dataframe component's data. It reports false when the asset has no url.
func LinkFromExport(data map[string]any, asset *Asset) (events.Event, bool) {
	if asset == nil || asset.URL == "" {
		return events.Event{}, false
	}
	title := textField(data, "title")
	if title == "" {
		title = asset.Filename
	}
	if title == "" {
		title = "Download DataFrame"
	}
	description := textField(data, "description")
	if description == "" {
		description = "Download result data as file"
	}
	return events.Link(title, asset.URL, description), true
}

// ImageFromRender builds the preview image for a rendered chart. It reports
// false when the asset has no preview url.
func ImageFromRender(data map[string]any, asset *Asset) (events.Event, bool) {
	if asset == nil || asset.PreviewURL == "" {
		return events.Event{}, false
	}
	caption := textField(data, "title")
	if caption == "" {
		caption = "Chart Preview"
	}
	return events.Image(asset.PreviewURL, caption), true
}

func textField(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
