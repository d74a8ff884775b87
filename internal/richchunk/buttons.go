package richchunk

import "github.com/glide-the/RAGFlowMCP/internal/events"

// normalizeButton maps one raw button entry onto events.Button. Entries with
// neither a label nor an action are dropped.
func normalizeButton(raw map[string]any) (events.Button, bool) {
	label := firstOf(raw, "label", "title", "text")
	action := firstOf(raw, "action", "value", "payload")
	if label == "" && action == "" {
		return events.Button{}, false
	}
	b := events.Button{
		Label:   label,
		Action:  action,
		Variant: field(raw, "variant"),
		Size:    field(raw, "size"),
		Icon:    field(raw, "icon"),
	}
	if v, ok := raw["disabled"]; ok {
		b.Disabled = truthy(v)
	}
	return b, true
}

// buttonsEvent returns a buttons event for the entries that survive
// normalization, or false when none do.
func buttonsEvent(raw []map[string]any, text string) (events.Event, bool) {
	var buttons []events.Button
	for _, r := range raw {
		if b, ok := normalizeButton(r); ok {
			buttons = append(buttons, b)
		}
	}
	if len(buttons) == 0 {
		return events.Event{}, false
	}
	return events.Buttons(text, buttons), true
}
