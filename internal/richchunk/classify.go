package richchunk

import (
	"fmt"
	"strings"

	"github.com/glide-the/RAGFlowMCP/internal/events"
)

var imageArtifactTypes = map[string]struct{}{
	"image": {}, "svg": {}, "png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "webp": {},
}

// Classify maps a parsed component onto canonical events. It has no side
// effects and never fails; missing fields yield fewer events.
func Classify(c Component) []events.Event {
	var out []events.Event
	emitText := func(s string) {
		if s != "" {
			out = append(out, events.Text(s))
		}
	}
	emitError := func(s string) {
		if s != "" {
			out = append(out, events.Error(s))
		}
	}
	emitButtons := func(raw []map[string]any, text string) {
		if e, ok := buttonsEvent(raw, text); ok {
			out = append(out, e)
		}
	}

	switch v := c.(type) {
	case Text:
		emitText(v.Content)

	case Card:
		text := joinNonEmpty("\n\n", v.Title, v.Subtitle, v.Content)
		if v.Status != "" {
			tag := "[" + strings.ToUpper(v.Status) + "]"
			if text != "" {
				text = tag + " " + text
			} else {
				text = tag
			}
		}
		emitText(text)
		emitButtons(v.Actions, v.Title)

	case StatusCard:
		if v.Status == "error" || v.Status == "failed" {
			detail := v.Description
			if detail == "" {
				detail = v.Status
			}
			if v.Title != "" {
				emitError(v.Title + ": " + detail)
			} else {
				emitError(detail)
			}
		} else {
			text := v.Title + ": " + v.Description
			if v.Status != "" {
				text = "[" + strings.ToUpper(v.Status) + "] " + text
			}
			out = append(out, events.Text(strings.TrimSpace(text)))
		}
		emitButtons(v.Actions, v.Title)

	case Progress:
		text := progressText(v.Label, v.Value, v.Description)
		emitText(text)
		if v.Status == "error" {
			emitError(text)
		}

	case Notification:
		text := v.Message
		if v.Title != "" {
			text = v.Title + ": " + text
		}
		text = strings.TrimSpace(text)
		if v.Level == "error" {
			emitError(text)
		} else {
			emitText(text)
		}

	case StatusIndicator:
		text := strings.TrimSpace("[" + strings.ToUpper(v.Status) + "] " + v.Message)
		if v.Status == "error" {
			emitError(text)
		} else {
			emitText(text)
		}

	case Badge:
		text := v.Text
		if v.Variant != "" && v.Variant != "default" {
			text = "[" + v.Variant + "] " + text
		}
		emitText(text)

	case IconText:
		text := v.Text
		if v.Icon != "" {
			text = strings.TrimSpace(v.Icon + " " + text)
		}
		emitText(text)

	case LogViewer:
		lines := make([]string, 0, len(v.Entries))
		for _, e := range v.Entries {
			prefix := "[" + strings.ToUpper(e.Level) + "] "
			if e.Timestamp != "" {
				prefix = "[" + e.Timestamp + "] " + prefix
			}
			lines = append(lines, prefix+e.Message)
		}
		emitText(strings.Join(lines, "\n"))

	case TaskList:
		var lines []string
		if v.Title != "" {
			lines = append(lines, "## "+v.Title)
		}
		for _, t := range v.Tasks {
			line := "- [" + t.Status + "] " + t.Title
			if t.Progress != nil {
				line += " (" + taskPercent(t.Progress) + "%)"
			}
			lines = append(lines, line)
		}
		emitText(strings.Join(lines, "\n"))

	case Button:
		emitButtons([]map[string]any{v.Raw}, v.Label)

	case ButtonGroup:
		emitButtons(v.Buttons, "")

	case DataFrame:
		out = append(out, dataFrameEvent(v))

	case Chart:
		out = append(out, plotlyEvent(v))

	case Artifact:
		if e, ok := artifactEvent(v); ok {
			out = append(out, e)
		}

	case SQL:
		if v.Query != "" {
			out = append(out, events.SQL(v.Query))
		}

	case StatusBarUpdate:
		emitText(strings.TrimSpace(joinNonEmpty(" ", v.Status, v.Message, v.Detail)))

	case Unknown:
	}
	return out
}

// progressText renders "label: pct%". Fractions up to 1 are scaled to a
// percentage, larger numbers are taken as one already. A nil value yields "".
func progressText(label string, value any, description string) string {
	if value == nil {
		return ""
	}
	if label == "" {
		label = "Progress"
	}
	var text string
	if n, ok := number(value); ok {
		pct := int(n)
		if n <= 1 {
			pct = int(n * 100)
		}
		text = fmt.Sprintf("%s: %d%%", label, pct)
	} else {
		text = label + ": " + str(value)
	}
	if description != "" {
		text += " - " + description
	}
	return text
}

// taskPercent always scales numeric progress by 100.
func taskPercent(progress any) string {
	if n, ok := number(progress); ok {
		return fmt.Sprintf("%d", int(n*100))
	}
	return str(progress)
}

func dataFrameEvent(df DataFrame) events.Event {
	return events.DataFrame(df.Data)
}

// plotlyEvent copies the layout before injecting the title so the caller's
// component data is not mutated.
func plotlyEvent(c Chart) events.Event {
	var layout map[string]any
	if c.Layout != nil || c.HasTitle {
		layout = make(map[string]any, len(c.Layout)+1)
		for k, v := range c.Layout {
			layout[k] = v
		}
		if _, ok := layout["title"]; !ok && c.HasTitle {
			layout["title"] = c.Title
		}
	}
	figure := map[string]any{
		"data":   c.Data,
		"layout": nil,
		"config": c.Config,
	}
	if layout != nil {
		figure["layout"] = layout
	}
	return events.Plotly(figure)
}

func artifactEvent(a Artifact) (events.Event, bool) {
	title := a.Title
	if title == "" {
		title = a.Name
	}
	if title == "" {
		title = a.ArtifactID
	}
	url := artifactURL(a)

	if _, isImage := imageArtifactTypes[a.ArtifactType]; isImage {
		if url == "" {
			return events.Event{}, false
		}
		caption := title
		if caption == "" {
			caption = a.Description
		}
		return events.Image(url, caption), true
	}
	if url != "" {
		linkTitle := title
		if linkTitle == "" {
			linkTitle = "Artifact"
		}
		return events.Link(linkTitle, url, a.Description), true
	}
	if title != "" {
		return events.Text(title), true
	}
	return events.Event{}, false
}

// artifactURL resolves, in order: an http(s) content string, url, path and
// finally an artifact:// reference built from the id.
func artifactURL(a Artifact) string {
	if s, ok := a.Content.(string); ok && (strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")) {
		return s
	}
	if a.URL != "" {
		return a.URL
	}
	if a.Path != "" {
		return a.Path
	}
	if a.ArtifactID != "" {
		return "artifact://" + a.ArtifactID
	}
	return ""
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
