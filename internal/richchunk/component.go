// Package richchunk turns Vanna chat stream chunks into canonical events.
//
// A rich component is parsed once into one of a closed set of variant types
// and classified with an exhaustive switch. Dataframe and chart components are
// additionally enriched through an AssetGateway before identifiers from the
// chunk are stamped onto every event.
package richchunk

import (
	"strings"

	"github.com/glide-the/RAGFlowMCP/internal/vanna"
)

// Component kinds understood by the classifier.
const (
	KindText            = "text"
	KindCard            = "card"
	KindStatusCard      = "status_card"
	KindProgressDisplay = "progress_display"
	KindProgressBar     = "progress_bar"
	KindNotification    = "notification"
	KindStatusIndicator = "status_indicator"
	KindBadge           = "badge"
	KindIconText        = "icon_text"
	KindLogViewer       = "log_viewer"
	KindTaskList        = "task_list"
	KindButton          = "button"
	KindButtonGroup     = "button_group"
	KindDataFrame       = "dataframe"
	KindChart           = "chart"
	KindArtifact        = "artifact"
	KindSQL             = "sql"
	KindStatusBarUpdate = "status_bar_update"
)

// Component is a parsed rich component. The set of implementations is closed
// to this package.
type Component interface {
	Kind() string
	component()
}

type (
	Text struct {
		Content string
	}

	Card struct {
		Title    string
		Subtitle string
		Content  string
		Status   string
		Actions  []map[string]any
	}

	StatusCard struct {
		Title       string
		Description string
		Status      string // lowercased
		Actions     []map[string]any
	}

	Progress struct {
		Label       string
		Value       any // nil when absent
		Description string
		Status      string // lowercased
	}

	Notification struct {
		Title   string
		Message string
		Level   string // lowercased
	}

	StatusIndicator struct {
		Status  string // lowercased
		Message string
	}

	Badge struct {
		Text    string
		Variant string
	}

	IconText struct {
		Icon string
		Text string
	}

	LogEntry struct {
		Timestamp string
		Level     string
		Message   string
	}

	LogViewer struct {
		Entries []LogEntry
	}

	Task struct {
		Status   string
		Title    string
		Progress any // nil when absent
	}

	TaskList struct {
		Title string // "" suppresses the header
		Tasks []Task
	}

	// Button holds the raw data of a single button component.
	Button struct {
		Label string
		Raw   map[string]any
	}

	ButtonGroup struct {
		Buttons []map[string]any
	}

	DataFrame struct {
		Data map[string]any
	}

	Chart struct {
		Data     any
		Layout   map[string]any
		Config   any
		Title    any
		HasTitle bool
	}

	Artifact struct {
		ArtifactID   string
		ArtifactType string // lowercased
		Title        string
		Name         string
		Description  string
		Content      any
		URL          string
		Path         string
	}

	SQL struct {
		Query string
	}

	StatusBarUpdate struct {
		Status  string
		Message string
		Detail  string
	}

	// Unknown keeps components of an unrecognized kind. They classify to
	// nothing.
	Unknown struct {
		Type string
		Data map[string]any
	}
)

func (Text) Kind() string            { return KindText }
func (Card) Kind() string            { return KindCard }
func (StatusCard) Kind() string      { return KindStatusCard }
func (Progress) Kind() string        { return KindProgressDisplay }
func (Notification) Kind() string    { return KindNotification }
func (StatusIndicator) Kind() string { return KindStatusIndicator }
func (Badge) Kind() string           { return KindBadge }
func (IconText) Kind() string        { return KindIconText }
func (LogViewer) Kind() string       { return KindLogViewer }
func (TaskList) Kind() string        { return KindTaskList }
func (Button) Kind() string          { return KindButton }
func (ButtonGroup) Kind() string     { return KindButtonGroup }
func (DataFrame) Kind() string       { return KindDataFrame }
func (Chart) Kind() string           { return KindChart }
func (Artifact) Kind() string        { return KindArtifact }
func (SQL) Kind() string             { return KindSQL }
func (StatusBarUpdate) Kind() string { return KindStatusBarUpdate }
func (u Unknown) Kind() string       { return u.Type }

func (Text) component()            {}
func (Card) component()            {}
func (StatusCard) component()      {}
func (Progress) component()        {}
func (Notification) component()    {}
func (StatusIndicator) component() {}
func (Badge) component()           {}
func (IconText) component()        {}
func (LogViewer) component()       {}
func (TaskList) component()        {}
func (Button) component()          {}
func (ButtonGroup) component()     {}
func (DataFrame) component()       {}
func (Chart) component()           {}
func (Artifact) component()        {}
func (SQL) component()             {}
func (StatusBarUpdate) component() {}
func (Unknown) component()         {}

// Parse converts a wire rich component into its variant. A nil input parses
// as Unknown with an empty type.
func Parse(rc *vanna.RichComponent) Component {
	if rc == nil {
		return Unknown{}
	}
	data := rc.Data
	if data == nil {
		data = map[string]any{}
	}

	switch kind := strings.ToLower(rc.Type); kind {
	case KindText:
		return Text{Content: field(data, "content")}
	case KindCard:
		return Card{
			Title:    field(data, "title"),
			Subtitle: field(data, "subtitle"),
			Content:  field(data, "content"),
			Status:   field(data, "status"),
			Actions:  buttonMaps(data["actions"]),
		}
	case KindStatusCard:
		return StatusCard{
			Title:       field(data, "title"),
			Description: field(data, "description"),
			Status:      strings.ToLower(field(data, "status")),
			Actions:     buttonMaps(data["actions"]),
		}
	case KindProgressDisplay, KindProgressBar:
		return Progress{
			Label:       field(data, "label"),
			Value:       data["value"],
			Description: field(data, "description"),
			Status:      strings.ToLower(field(data, "status")),
		}
	case KindNotification:
		return Notification{
			Title:   field(data, "title"),
			Message: field(data, "message"),
			Level:   strings.ToLower(field(data, "level")),
		}
	case KindStatusIndicator:
		return StatusIndicator{
			Status:  strings.ToLower(field(data, "status")),
			Message: field(data, "message"),
		}
	case KindBadge:
		return Badge{Text: field(data, "text"), Variant: field(data, "variant")}
	case KindIconText:
		return IconText{Icon: field(data, "icon"), Text: field(data, "text")}
	case KindLogViewer:
		return parseLogViewer(data)
	case KindTaskList:
		return parseTaskList(data)
	case KindButton:
		return Button{Label: field(data, "label"), Raw: data}
	case KindButtonGroup:
		return ButtonGroup{Buttons: buttonMaps(data["buttons"])}
	case KindDataFrame:
		return DataFrame{Data: data}
	case KindChart:
		title, hasTitle := data["title"]
		return Chart{
			Data:     data["data"],
			Layout:   asMap(data["layout"]),
			Config:   data["config"],
			Title:    title,
			HasTitle: hasTitle,
		}
	case KindArtifact:
		artifactID := field(data, "artifact_id")
		if artifactID == "" {
			artifactID = rc.ID
		}
		return Artifact{
			ArtifactID:   artifactID,
			ArtifactType: strings.ToLower(field(data, "artifact_type")),
			Title:        field(data, "title"),
			Name:         field(data, "name"),
			Description:  field(data, "description"),
			Content:      data["content"],
			URL:          field(data, "url"),
			Path:         field(data, "path"),
		}
	case KindSQL:
		return SQL{Query: firstOf(data, "query", "sql")}
	case KindStatusBarUpdate:
		return StatusBarUpdate{
			Status:  field(data, "status"),
			Message: field(data, "message"),
			Detail:  field(data, "detail"),
		}
	default:
		return Unknown{Type: kind, Data: data}
	}
}

func parseLogViewer(data map[string]any) LogViewer {
	var lv LogViewer
	for _, raw := range asList(data["entries"]) {
		entry := asMap(raw)
		if entry == nil {
			continue
		}
		level := field(entry, "level")
		if level == "" {
			level = "info"
		}
		lv.Entries = append(lv.Entries, LogEntry{
			Timestamp: field(entry, "timestamp"),
			Level:     level,
			Message:   field(entry, "message"),
		})
	}
	return lv
}

func parseTaskList(data map[string]any) TaskList {
	tl := TaskList{Title: "Tasks"}
	if v, ok := data["title"]; ok {
		tl.Title = str(v)
	}
	for _, raw := range asList(data["tasks"]) {
		task := asMap(raw)
		if task == nil {
			continue
		}
		status := "pending"
		if v, ok := task["status"]; ok {
			status = str(v)
		}
		tl.Tasks = append(tl.Tasks, Task{
			Status:   status,
			Title:    field(task, "title"),
			Progress: task["progress"],
		})
	}
	return tl
}

func buttonMaps(v any) []map[string]any {
	list := asList(v)
	out := make([]map[string]any, 0, len(list))
	for _, raw := range list {
		if m := asMap(raw); m != nil {
			out = append(out, m)
		}
	}
	return out
}
