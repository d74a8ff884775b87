package events

import "strings"

// ImageRef is the aggregated form of an image event.
type ImageRef struct {
	ImageURL string `json:"image_url"`
	Caption  string `json:"caption,omitempty"`
}

// LinkRef is the aggregated form of a link event.
type LinkRef struct {
	Title       string `json:"title,omitempty"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// ButtonSet is the aggregated form of a buttons event.
type ButtonSet struct {
	Text    string   `json:"text,omitempty"`
	Buttons []Button `json:"buttons"`
}

// Result is the consolidated view of one event stream. Empty fields are
// omitted when encoded.
type Result struct {
	ConversationID string           `json:"conversation_id,omitempty"`
	Text           string           `json:"text,omitempty"`
	Images         []ImageRef       `json:"images,omitempty"`
	Links          []LinkRef        `json:"links,omitempty"`
	Buttons        []ButtonSet      `json:"buttons,omitempty"`
	DataFrames     []map[string]any `json:"dataframes,omitempty"`
	Plotly         []map[string]any `json:"plotly,omitempty"`
	SQL            []string         `json:"sql,omitempty"`
	Errors         []string         `json:"errors,omitempty"`
	RawEvents      []Event          `json:"raw_events,omitempty"`
}

// Aggregate folds evts into a Result in a single pass. Text bodies are
// concatenated without a separator, the last non-empty conversation id wins
// and end events contribute nothing else.
func Aggregate(evts []Event) Result {
	var (
		res  Result
		text strings.Builder
	)
	for _, e := range evts {
		if e.ConversationID != "" {
			res.ConversationID = e.ConversationID
		}
		switch e.Type {
		case TypeText:
			text.WriteString(e.Text)
		case TypeImage:
			res.Images = append(res.Images, ImageRef{ImageURL: e.ImageURL, Caption: e.Caption})
		case TypeLink:
			res.Links = append(res.Links, LinkRef{Title: e.Title, URL: e.URL, Description: e.Description})
		case TypeButtons:
			res.Buttons = append(res.Buttons, ButtonSet{Text: e.Text, Buttons: e.Buttons})
		case TypeDataFrame:
			res.DataFrames = append(res.DataFrames, e.JSONTable)
		case TypePlotly:
			res.Plotly = append(res.Plotly, e.JSONPlotly)
		case TypeSQL:
			res.SQL = append(res.SQL, e.Query)
		case TypeError:
			res.Errors = append(res.Errors, e.Error)
		case TypeEnd:
		}
	}
	res.Text = text.String()
	if len(evts) > 0 {
		res.RawEvents = append([]Event(nil), evts...)
	}
	return res
}
