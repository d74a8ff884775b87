package mcp

import (
	"errors"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/glide-the/RAGFlowMCP/internal/model"
)

// responder is implemented by tool payloads that are wrapped in the
// {status, response} envelope.
type responder interface {
	Response() any
}

type envelope struct {
	Status   string `json:"status"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

func formatResponse(r responder) envelope {
	return envelope{Status: "success", Response: r.Response()}
}

func formatError(err error) envelope {
	return envelope{Status: "error", Error: toolErrorMessage(err)}
}

// resultEnvelope renders env as a JSON tool result. Error envelopes also set
// IsError.
func resultEnvelope(env envelope) (*mcplib.CallToolResult, error) {
	res, err := mcplib.NewToolResultJSON(env)
	if err != nil {
		return nil, err
	}
	res.IsError = env.Status == "error"
	return res, nil
}

// resultErr wraps an error in a CallToolResult with IsError=true.
func resultErr(err error) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(toolErrorMessage(err))},
		IsError: true,
	}
}

// resultJSON serialises v to JSON and returns a CallToolResult.
func resultJSON(v any) (*mcplib.CallToolResult, error) {
	return mcplib.NewToolResultJSON(v)
}

// toolErrorMessage prefers the upstream message of a ProviderError.
func toolErrorMessage(err error) string {
	var pe *model.ProviderError
	if errors.As(err, &pe) {
		if msg := strings.TrimSpace(pe.Message); msg != "" {
			return msg
		}
	}
	return err.Error()
}
