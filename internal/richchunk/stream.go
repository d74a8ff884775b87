package richchunk

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/glide-the/RAGFlowMCP/internal/events"
	"github.com/glide-the/RAGFlowMCP/internal/vanna"
)

// ChunkSource yields chat chunks in arrival order. Next returns io.EOF once
// the stream is exhausted.
type ChunkSource interface {
	Next(ctx context.Context) (vanna.ChatStreamChunk, error)
	Close() error
}

// EmitFunc receives events as they are produced. Returning an error stops
// the drive.
type EmitFunc func(events.Event) error

// Driver drains a ChunkSource through a Translator.
type Driver struct {
	translator *Translator
}

func NewDriver(t *Translator) *Driver {
	return &Driver{translator: t}
}

// Run emits every translated event in order, then a single end event that
// carries the last chunk's ids when it had a conversation id. Upstream
// errors are returned and no end event follows them. src is closed on
// return.
func (d *Driver) Run(ctx context.Context, src ChunkSource, emit EmitFunc) error {
	defer func() { _ = src.Close() }()

	var (
		last vanna.ChatStreamChunk
		seen bool
	)
	for {
		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("chat stream: %w", err)
		}
		last, seen = chunk, true

		for _, e := range d.translator.Translate(ctx, chunk) {
			if err := emit(e); err != nil {
				return err
			}
		}
	}

	end := events.End("", "")
	if seen && last.ConversationID != "" {
		end = events.End(last.ConversationID, last.RequestID)
	}
	return emit(end)
}

// Collect runs the driver and returns all events, end included. On failure
// the partial sequence is discarded.
func (d *Driver) Collect(ctx context.Context, src ChunkSource) ([]events.Event, error) {
	var out []events.Event
	err := d.Run(ctx, src, func(e events.Event) error {
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
