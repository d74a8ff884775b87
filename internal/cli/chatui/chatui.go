// Package chatui is the interactive terminal chat with the Vanna agent. Each
// turn is streamed through the rich chunk driver and rendered as it
// arrives.
package chatui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glide-the/RAGFlowMCP/internal/events"
	"github.com/glide-the/RAGFlowMCP/internal/richchunk"
	"github.com/glide-the/RAGFlowMCP/internal/vanna"
)

// ChatStarter opens one chat turn.
type ChatStarter interface {
	StreamChat(ctx context.Context, req vanna.ChatRequest) (*vanna.Stream, error)
}

// Options configures an interactive session.
type Options struct {
	// Endpoint is shown in the banner.
	Endpoint       string
	ConversationID string
	AgentID        string
	Accept         []string
}

// Turn runs a single chat turn and returns the filtered events, end
// included.
type Turn func(ctx context.Context, message, conversationID string) ([]events.Event, error)

// NewTurn binds a Turn to a chat client and driver.
func NewTurn(chat ChatStarter, driver *richchunk.Driver, opts Options) Turn {
	filter := events.NewFilter(opts.Accept)
	return func(ctx context.Context, message, conversationID string) ([]events.Event, error) {
		stream, err := chat.StreamChat(ctx, vanna.ChatRequest{
			Message:             message,
			ConversationID:      conversationID,
			AgentID:             opts.AgentID,
			AcceptableResponses: opts.Accept,
		})
		if err != nil {
			return nil, err
		}
		var out []events.Event
		err = driver.Run(ctx, stream, func(e events.Event) error {
			if filter.Allows(e) {
				out = append(out, e)
			}
			return nil
		})
		return out, err
	}
}

// Run starts the full screen chat and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, turn Turn, opts Options) error {
	p := tea.NewProgram(newModel(ctx, turn, opts, DefaultPalette()), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat ui: %w", err)
	}
	return nil
}
