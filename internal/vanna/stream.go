package vanna

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/glide-the/RAGFlowMCP/internal/model"
)

const maxEventSize = 4 << 20

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// sseReader yields the payload of each "data:" line. Other SSE fields are
// ignored. An empty payload or [DONE] ends the stream.
type sseReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newSSEReader(body io.ReadCloser) *sseReader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64<<10), maxEventSize)
	return &sseReader{body: body, scanner: sc}
}

func (r *sseReader) next() ([]byte, error) {
	if r.done {
		return nil, io.EOF
	}
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := bytes.TrimSpace(line[len(dataPrefix):])
		if len(payload) == 0 || bytes.Equal(payload, doneMarker) {
			r.done = true
			return nil, io.EOF
		}
		return append([]byte(nil), payload...), nil
	}
	r.done = true
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *sseReader) Close() error {
	r.done = true
	return r.body.Close()
}

// Stream decodes chat chunks from a chat SSE response.
type Stream struct {
	r *sseReader
}

func newStream(body io.ReadCloser) *Stream {
	return &Stream{r: newSSEReader(body)}
}

// Next returns the next chunk, or io.EOF once the server ends the stream.
func (s *Stream) Next(ctx context.Context) (ChatStreamChunk, error) {
	if err := ctx.Err(); err != nil {
		return ChatStreamChunk{}, err
	}
	payload, err := s.r.next()
	if err == io.EOF {
		return ChatStreamChunk{}, io.EOF
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ChatStreamChunk{}, ctxErr
		}
		return ChatStreamChunk{}, &model.ProviderError{Code: "VANNA_FAILED", Message: "failed reading chat stream", Retryable: true, Cause: err}
	}
	var chunk ChatStreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return ChatStreamChunk{}, &model.ProviderError{Code: "VANNA_FAILED", Message: "failed to decode chat chunk", Cause: err}
	}
	return chunk, nil
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.r.Close()
}
