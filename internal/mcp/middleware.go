package mcp

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/glide-the/RAGFlowMCP/internal/protocol"
)

// recoverJSONRPC turns a panic in the transport, such as a message that
// arrives for a session that was never initialized, into a JSON-RPC error
// response. The process keeps serving.
func recoverJSONRPC(lg *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				lg.ErrorContext(r.Context(), "mcp transport panic",
					"panic", fmt.Sprint(rec),
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()),
				)
				writeJSONRPCError(w, http.StatusInternalServerError, protocol.JSONRPCInternalError, "internal error", "")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
