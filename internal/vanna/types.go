package vanna

// RichComponent is the structured payload attached to a chat chunk. Data is
// kind specific and decoded loosely, so numbers arrive as float64.
type RichComponent struct {
	ID          string         `json:"id,omitempty"`
	Type        string         `json:"type"`
	Lifecycle   string         `json:"lifecycle,omitempty"`
	Timestamp   any            `json:"timestamp,omitempty"`
	Visible     *bool          `json:"visible,omitempty"`
	Interactive *bool          `json:"interactive,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// SimpleComponent is the plain fallback rendering a chunk may carry next to,
// or instead of, a rich component.
type SimpleComponent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ChatStreamChunk is one decoded server-sent event of a chat response.
type ChatStreamChunk struct {
	Rich           *RichComponent   `json:"rich,omitempty"`
	Simple         *SimpleComponent `json:"simple,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
	RequestID      string           `json:"request_id,omitempty"`
	Timestamp      any              `json:"timestamp,omitempty"`
}

// ChatRequest is the body posted to the chat SSE endpoint. Empty fields are
// left out of the payload.
type ChatRequest struct {
	Message             string         `json:"message"`
	ConversationID      string         `json:"conversation_id,omitempty"`
	RequestID           string         `json:"request_id,omitempty"`
	UserEmail           string         `json:"user_email,omitempty"`
	AgentID             string         `json:"agent_id,omitempty"`
	AcceptableResponses []string       `json:"acceptable_responses,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}
