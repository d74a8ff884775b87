// Package events defines the canonical chat events streamed to MCP clients
// and the reducer that folds an event stream into a single response.
package events

// Type names a canonical event kind.
type Type string

const (
	TypeText      Type = "text"
	TypeImage     Type = "image"
	TypeLink      Type = "link"
	TypeButtons   Type = "buttons"
	TypeDataFrame Type = "dataframe"
	TypePlotly    Type = "plotly"
	TypeSQL       Type = "sql"
	TypeError     Type = "error"
	TypeEnd       Type = "end"
)

// Button is one normalized entry of a buttons event.
type Button struct {
	Label    string `json:"label,omitempty"`
	Action   string `json:"action,omitempty"`
	Variant  string `json:"variant,omitempty"`
	Size     string `json:"size,omitempty"`
	Icon     string `json:"icon,omitempty"`
	Disabled bool   `json:"disabled"`
}

// Event is a flat tagged record. Only the fields belonging to Type are set;
// ConversationID and RequestID may be stamped on any kind.
type Event struct {
	Type Type `json:"type"`

	Text string `json:"text,omitempty"`

	ImageURL string `json:"image_url,omitempty"`
	Caption  string `json:"caption,omitempty"`

	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`

	Buttons []Button `json:"buttons,omitempty"`

	JSONTable  map[string]any `json:"json_table,omitempty"`
	JSONPlotly map[string]any `json:"json_plotly,omitempty"`

	Query string `json:"query,omitempty"`
	Error string `json:"error,omitempty"`

	ConversationID string `json:"conversation_id,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

func Text(text string) Event { return Event{Type: TypeText, Text: text} }

func Image(url, caption string) Event {
	return Event{Type: TypeImage, ImageURL: url, Caption: caption}
}

func Link(title, url, description string) Event {
	return Event{Type: TypeLink, Title: title, URL: url, Description: description}
}

func Buttons(text string, buttons []Button) Event {
	return Event{Type: TypeButtons, Text: text, Buttons: buttons}
}

func DataFrame(table map[string]any) Event {
	return Event{Type: TypeDataFrame, JSONTable: table}
}

func Plotly(figure map[string]any) Event {
	return Event{Type: TypePlotly, JSONPlotly: figure}
}

func SQL(query string) Event { return Event{Type: TypeSQL, Query: query} }

func Error(message string) Event { return Event{Type: TypeError, Error: message} }

// End builds the terminal event. Both ids may be empty.
func End(conversationID, requestID string) Event {
	return Event{Type: TypeEnd, ConversationID: conversationID, RequestID: requestID}
}

// Stamp fills ConversationID and RequestID from the given values. Fields
// that are already set are left untouched, and empty values are never written.
func (e *Event) Stamp(conversationID, requestID string) {
	if e.ConversationID == "" && conversationID != "" {
		e.ConversationID = conversationID
	}
	if e.RequestID == "" && requestID != "" {
		e.RequestID = requestID
	}
}

// StampAll applies Stamp to every event in evts in place and returns evts.
func StampAll(evts []Event, conversationID, requestID string) []Event {
	for i := range evts {
		evts[i].Stamp(conversationID, requestID)
	}
	return evts
}
