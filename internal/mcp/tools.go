package mcp

// In this file: MCP tool definitions and handler implementations.

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"

	"github.com/glide-the/RAGFlowMCP/internal/events"
	"github.com/glide-the/RAGFlowMCP/internal/protocol"
	"github.com/glide-the/RAGFlowMCP/internal/ragflow"
	"github.com/glide-the/RAGFlowMCP/internal/vanna"
)

const acceptableResponsesHelp = "Only return these event types: text, image, link, buttons, dataframe, plotly, sql, error. The end event is always returned."

// tools returns all MCP tools that this server exposes.
func (s *Server) tools() []mcpsrv.ServerTool {
	return []mcpsrv.ServerTool{
		s.toolRagflowRetrieval(),
		s.toolVannaChatStream(),
		s.toolVannaChatOnce(),
		s.toolVannaChatSSE(),
	}
}

// ─── ragflow_retrieval ────────────────────────────────────────────────────────

func (s *Server) toolRagflowRetrieval() mcpsrv.ServerTool {
	tool := mcplib.NewTool(protocol.ToolNameRagflowRetrieval,
		mcplib.WithDescription("Execute retrieval query through Ragflow /api/v1/retrieval"),
		mcplib.WithString("question",
			mcplib.Description("Query text for retrieval"),
			mcplib.Required(),
		),
		mcplib.WithArray("dataset_ids",
			mcplib.Description("List of dataset IDs to search within"),
			mcplib.WithStringItems(),
		),
		mcplib.WithArray("document_ids",
			mcplib.Description("Specific document IDs to constrain search"),
			mcplib.WithStringItems(),
		),
		mcplib.WithNumber("page", mcplib.Description("Page number for paginated results"), mcplib.DefaultNumber(ragflow.DefaultPage)),
		mcplib.WithNumber("page_size", mcplib.Description("Page size for paginated results"), mcplib.DefaultNumber(ragflow.DefaultPageSize)),
		mcplib.WithNumber("similarity_threshold", mcplib.Description("Similarity threshold for vector retrieval"), mcplib.DefaultNumber(ragflow.DefaultSimilarityThreshold)),
		mcplib.WithNumber("vector_similarity_weight", mcplib.Description("Weight for vector similarity in ranking"), mcplib.DefaultNumber(ragflow.DefaultVectorSimilarityWeight)),
		mcplib.WithNumber("top_k", mcplib.Description("Maximum chunks to consider"), mcplib.DefaultNumber(ragflow.DefaultTopK)),
		mcplib.WithBoolean("keyword", mcplib.Description("Enable keyword retrieval"), mcplib.DefaultBool(false)),
		mcplib.WithBoolean("highlight", mcplib.Description("Include highlight snippets"), mcplib.DefaultBool(false)),
		mcplib.WithBoolean("use_kg", mcplib.Description("Use knowledge graph retrieval"), mcplib.DefaultBool(false)),
		mcplib.WithString("rerank_id", mcplib.Description("Optional rerank model id")),
		mcplib.WithArray("cross_languages",
			mcplib.Description("Languages the question is translated into before retrieval"),
			mcplib.WithStringItems(),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleRagflowRetrieval}
}

// retrievalResult is the normalized retrieval payload.
type retrievalResult ragflow.Summary

func (r retrievalResult) Response() any { return ragflow.Summary(r) }

func (s *Server) handleRagflowRetrieval(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	s.app.Stats.AddRequests(1)

	rreq, err := parseRetrievalArgs(req.GetArguments())
	if err != nil {
		return resultEnvelope(formatError(err))
	}

	s.logger.InfoContext(ctx, "mcp: ragflow_retrieval", "question", truncate(rreq.Question, 50),
		"datasets", len(rreq.DatasetIDs), "documents", len(rreq.DocumentIDs))

	resp, err := s.rag.Retrieve(ctx, rreq)
	if err != nil {
		s.app.Stats.AddUpstreamFailures(1)
		s.logger.ErrorContext(ctx, "mcp: ragflow_retrieval failed", "error", err)
		return resultEnvelope(formatError(err))
	}
	return resultEnvelope(formatResponse(retrievalResult(ragflow.Summarize(resp))))
}

func parseRetrievalArgs(args map[string]any) (ragflow.RetrievalRequest, error) {
	var (
		out ragflow.RetrievalRequest
		err error
	)
	if err = assertNoUnknownArguments(args,
		"question", "dataset_ids", "document_ids", "page", "page_size",
		"similarity_threshold", "vector_similarity_weight", "top_k",
		"keyword", "highlight", "use_kg", "rerank_id", "cross_languages",
	); err != nil {
		return out, err
	}
	if out.Question, err = parseRequiredString(args, "question"); err != nil {
		return out, err
	}
	if out.DatasetIDs, err = parseOptionalStringSlice(args, "dataset_ids"); err != nil {
		return out, err
	}
	if out.DocumentIDs, err = parseOptionalStringSlice(args, "document_ids"); err != nil {
		return out, err
	}
	if len(out.DatasetIDs) == 0 && len(out.DocumentIDs) == 0 {
		return out, ragflow.ErrNoScope
	}
	if out.Page, err = parseOptionalInteger(args, "page", ragflow.DefaultPage); err != nil {
		return out, err
	}
	if out.PageSize, err = parseOptionalInteger(args, "page_size", ragflow.DefaultPageSize); err != nil {
		return out, err
	}
	if out.SimilarityThreshold, err = parseOptionalNumber(args, "similarity_threshold", ragflow.DefaultSimilarityThreshold); err != nil {
		return out, err
	}
	if out.VectorSimilarityWeight, err = parseOptionalNumber(args, "vector_similarity_weight", ragflow.DefaultVectorSimilarityWeight); err != nil {
		return out, err
	}
	if out.TopK, err = parseOptionalInteger(args, "top_k", ragflow.DefaultTopK); err != nil {
		return out, err
	}
	if out.Keyword, err = parseOptionalBool(args, "keyword", false); err != nil {
		return out, err
	}
	if out.Highlight, err = parseOptionalBool(args, "highlight", false); err != nil {
		return out, err
	}
	if out.UseKG, err = parseOptionalBool(args, "use_kg", false); err != nil {
		return out, err
	}
	if out.RerankID, err = parseOptionalString(args, "rerank_id"); err != nil {
		return out, err
	}
	if out.CrossLanguages, err = parseOptionalStringSlice(args, "cross_languages"); err != nil {
		return out, err
	}
	return out, nil
}

// ─── vanna_chat_stream ────────────────────────────────────────────────────────

func chatToolOptions(description string) []mcplib.ToolOption {
	return []mcplib.ToolOption{
		mcplib.WithDescription(description),
		mcplib.WithString("message",
			mcplib.Description("User message to send to Vanna"),
			mcplib.Required(),
		),
		mcplib.WithString("conversation_id",
			mcplib.Description("Existing conversation id to continue; if omitted a new conversation is started"),
		),
		mcplib.WithString("agent_id", mcplib.Description("Optional Vanna agent id")),
		mcplib.WithArray("acceptable_responses",
			mcplib.Description(acceptableResponsesHelp),
			mcplib.WithStringItems(),
		),
	}
}

func (s *Server) toolVannaChatStream() mcpsrv.ServerTool {
	opts := chatToolOptions("Stream responses from the Vanna agent as canonical chat events. Each event is also sent as a log notification while streaming.")
	tool := mcplib.NewTool(protocol.ToolNameVannaChatStream, opts...)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleVannaChatStream}
}

type chatArgs struct {
	request vanna.ChatRequest
	filter  events.Filter
}

func parseChatArgs(args map[string]any, extra ...string) (chatArgs, error) {
	var (
		out chatArgs
		err error
	)
	allowed := append([]string{"message", "conversation_id", "agent_id", "acceptable_responses"}, extra...)
	if err = assertNoUnknownArguments(args, allowed...); err != nil {
		return out, err
	}
	if out.request.Message, err = parseRequiredString(args, "message"); err != nil {
		return out, err
	}
	if out.request.ConversationID, err = parseOptionalString(args, "conversation_id"); err != nil {
		return out, err
	}
	if out.request.AgentID, err = parseOptionalString(args, "agent_id"); err != nil {
		return out, err
	}
	if out.request.UserEmail, err = parseOptionalString(args, "user_email"); err != nil {
		return out, err
	}
	if out.request.AcceptableResponses, err = parseOptionalStringSlice(args, "acceptable_responses"); err != nil {
		return out, err
	}
	out.filter = events.NewFilter(out.request.AcceptableResponses)
	return out, nil
}

// eventList is the {events: [...]} payload of the streaming tools.
type eventList struct {
	Events []events.Event `json:"events"`
}

func (s *Server) handleVannaChatStream(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	s.app.Stats.AddRequests(1)

	args, err := parseChatArgs(req.GetArguments())
	if err != nil {
		return resultErr(err), nil
	}
	s.logger.InfoContext(ctx, "mcp: vanna_chat_stream", "message", truncate(args.request.Message, 50),
		"conversation_id", args.request.ConversationID)

	out := eventList{Events: []events.Event{}}
	err = s.runChat(ctx, args, func(e events.Event) error {
		out.Events = append(out.Events, e)
		s.notify(ctx, protocol.ToolNameVannaChatStream, e)
		return nil
	})
	if err != nil {
		return resultErr(err), nil
	}
	return resultJSON(out)
}

// runChat streams one chat turn through the driver and hands every event the
// filter allows to emit. Events already emitted stay emitted when the
// upstream fails part way.
func (s *Server) runChat(ctx context.Context, args chatArgs, emit func(events.Event) error) error {
	stream, err := s.chat.StreamChat(ctx, args.request)
	if err != nil {
		s.app.Stats.AddUpstreamFailures(1)
		s.logger.ErrorContext(ctx, "mcp: vanna chat request failed", "error", err)
		return err
	}
	err = s.driver.Run(ctx, stream, func(e events.Event) error {
		if !args.filter.Allows(e) {
			return nil
		}
		s.app.Stats.AddStreamedEvents(1)
		return emit(e)
	})
	if err != nil {
		s.app.Stats.AddUpstreamFailures(1)
		s.logger.ErrorContext(ctx, "mcp: vanna chat stream failed", "error", err)
		return err
	}
	return nil
}

// notify forwards e to the client as a log message notification. Clients
// without a session, such as stateless HTTP callers, only get the final
// result.
func (s *Server) notify(ctx context.Context, logger string, payload any) {
	srv := mcpsrv.ServerFromContext(ctx)
	if srv == nil {
		return
	}
	err := srv.SendNotificationToClient(ctx, protocol.LogNotificationMethod, map[string]any{
		"level":  "info",
		"logger": logger,
		"data":   payload,
	})
	if err != nil {
		s.logger.DebugContext(ctx, "mcp: notification not delivered", "error", err)
	}
}

// ─── vanna_chat_once ──────────────────────────────────────────────────────────

func (s *Server) toolVannaChatOnce() mcpsrv.ServerTool {
	opts := chatToolOptions("Return aggregated chat output for a single message.")
	tool := mcplib.NewTool(protocol.ToolNameVannaChatOnce, opts...)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleVannaChatOnce}
}

func (s *Server) handleVannaChatOnce(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	s.app.Stats.AddRequests(1)

	args, err := parseChatArgs(req.GetArguments())
	if err != nil {
		return resultErr(err), nil
	}
	s.logger.InfoContext(ctx, "mcp: vanna_chat_once", "message", truncate(args.request.Message, 50),
		"conversation_id", args.request.ConversationID)

	var collected []events.Event
	if err := s.runChat(ctx, args, func(e events.Event) error {
		collected = append(collected, e)
		return nil
	}); err != nil {
		return resultErr(err), nil
	}
	return resultJSON(events.Aggregate(collected))
}

// ─── vanna_chat_sse ───────────────────────────────────────────────────────────

func (s *Server) toolVannaChatSSE() mcpsrv.ServerTool {
	opts := chatToolOptions("Call Vanna /api/v0/chat_sse and return the raw upstream payloads.")
	opts = append(opts, mcplib.WithString("user_email", mcplib.Description("User email")))
	tool := mcplib.NewTool(protocol.ToolNameVannaChatSSE, opts...)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleVannaChatSSE}
}

type rawEventList struct {
	Events []json.RawMessage `json:"events"`
}

func (s *Server) handleVannaChatSSE(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	s.app.Stats.AddRequests(1)

	args, err := parseChatArgs(req.GetArguments(), "user_email")
	if err != nil {
		return resultErr(err), nil
	}
	s.logger.DebugContext(ctx, "mcp: vanna_chat_sse", "message", truncate(args.request.Message, 50))

	out := rawEventList{Events: []json.RawMessage{}}
	err = s.chat.StreamRaw(ctx, args.request, func(raw json.RawMessage) error {
		if !rawAllowed(args.filter, raw) {
			return nil
		}
		s.app.Stats.AddStreamedEvents(1)
		out.Events = append(out.Events, raw)
		s.notify(ctx, protocol.ToolNameVannaChatSSE, raw)
		return nil
	})
	if err != nil {
		s.app.Stats.AddUpstreamFailures(1)
		s.logger.ErrorContext(ctx, "mcp: vanna_chat_sse failed", "error", err)
		return resultErr(fmt.Errorf("vanna chat_sse: %w", err)), nil
	}
	return resultJSON(out)
}

// rawAllowed applies the type filter to an undecoded payload. Payloads
// without a top-level type are kept.
func rawAllowed(f events.Filter, raw json.RawMessage) bool {
	var head struct {
		Type events.Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.Type == "" {
		return true
	}
	return f.Allows(events.Event{Type: head.Type})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
