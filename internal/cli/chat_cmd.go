package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/glide-the/RAGFlowMCP/internal/appstate"
	"github.com/glide-the/RAGFlowMCP/internal/cli/chatui"
	"github.com/glide-the/RAGFlowMCP/internal/config"
	"github.com/glide-the/RAGFlowMCP/internal/events"
)

type chatFlags struct {
	conversationID string
	agentID        string
	accept         []string
	once           bool
	interactive    bool
}

func newChatCmd(g *GlobalFlags) *cobra.Command {
	f := &chatFlags{}
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the Vanna agent without going through MCP",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, g, f, args)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.conversationID, "conversation-id", "", "continue an existing conversation")
	fl.StringVar(&f.agentID, "agent-id", "", "Vanna agent id")
	fl.StringSliceVar(&f.accept, "accept", nil, "only show these event types (text,image,link,buttons,dataframe,plotly,sql,error)")
	fl.BoolVar(&f.once, "once", false, "print one aggregated JSON result instead of streaming")
	fl.BoolVarP(&f.interactive, "interactive", "i", false, "open the interactive chat")
	return cmd
}

func runChat(cmd *cobra.Command, g *GlobalFlags, f *chatFlags, args []string) error {
	message := ""
	if len(args) == 1 {
		message = strings.TrimSpace(args[0])
	}
	if !f.interactive && message == "" {
		return withExit(ExitGenericError, errors.New("a message is required unless --interactive is set"))
	}

	cfg, err := loadConfig(g, nil, false)
	if err != nil {
		return err
	}
	if err := config.RequireVannaKey(cfg); err != nil {
		return withExit(ExitConfigInvalid, err)
	}
	app, err := appstate.New(cfg, newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return withExit(ExitConfigInvalid, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := chatui.Options{
		Endpoint:       app.Vanna.BaseURL,
		ConversationID: f.conversationID,
		AgentID:        f.agentID,
		Accept:         f.accept,
	}
	turn := chatui.NewTurn(app.Vanna, app.Driver, opts)

	if f.interactive {
		if g.NonInteractive || !IsTTY() {
			return withExit(ExitGenericError, errors.New("interactive chat needs a terminal"))
		}
		return chatui.Run(ctx, turn, opts)
	}

	evts, err := turn(ctx, message, f.conversationID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case f.once:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(events.Aggregate(evts))
	case g.JSON:
		for _, e := range evts {
			emitNDJSON(out, "chat_event", e)
		}
	default:
		writeEvents(cmd, newStyles(out, false), evts)
	}
	return nil
}

// writeEvents prints a finished turn. Consecutive text events are joined and
// the conversation id is shown last so it can be passed back in.
func writeEvents(cmd *cobra.Command, s styles, evts []events.Event) {
	out := cmd.OutOrStdout()
	p := s.palette()
	textOpen := false
	conversationID := ""
	for _, e := range evts {
		if e.ConversationID != "" {
			conversationID = e.ConversationID
		}
		if e.Type == events.TypeText {
			fmt.Fprint(out, e.Text)
			textOpen = true
			continue
		}
		if textOpen {
			fmt.Fprintln(out)
			textOpen = false
		}
		if line := chatui.FormatEvent(p, e); line != "" {
			fmt.Fprintln(out, line)
		}
	}
	if textOpen {
		fmt.Fprintln(out)
	}
	if conversationID != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), s.dim("conversation_id="+conversationID))
	}
}
