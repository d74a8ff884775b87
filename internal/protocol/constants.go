// Package protocol holds the names and wire constants shared by the server
// and the CLI.
package protocol

const (
	ToolNameRagflowRetrieval = "ragflow_retrieval"
	ToolNameVannaChatStream  = "vanna_chat_stream"
	ToolNameVannaChatOnce    = "vanna_chat_once"
	ToolNameVannaChatSSE     = "vanna_chat_sse"
)

// ErrorCodeRateLimited is set in the data of rate limit errors.
const ErrorCodeRateLimited = "RATE_LIMITED"

// JSON-RPC error codes used by transport middleware.
const (
	JSONRPCInternalError = -32603
	JSONRPCRateLimited   = -32029
)

const (
	ServerName    = "ragflowmcp"
	ServerVersion = "0.1.0"

	DefaultListenAddr = "127.0.0.1:8087"
	DefaultMCPPath    = "/mcp"
	DefaultSSEPath    = "/sse"
	HealthPath        = "/healthz"

	// LogNotificationMethod carries streamed chat events to the client.
	LogNotificationMethod = "notifications/message"
)
