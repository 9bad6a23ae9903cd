package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const doneSentinel = "[DONE]"

// ChatStream reads chunks from a server-sent event stream.
type ChatStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

// StreamChatCompletion opens a streamed completion. The caller must Close the stream.
func (c *Client) StreamChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatStream, error) {
	req.Stream = true
	httpResp, err := c.do(ctx, http.MethodPost, "/chat/completions", req)
	if err != nil {
		return nil, err
	}
	return &ChatStream{body: httpResp.Body, reader: bufio.NewReader(httpResp.Body)}, nil
}

// Recv returns the next chunk, or io.EOF once the server sent [DONE] or closed
// the stream.
func (s *ChatStream) Recv() (*ChatCompletionChunk, error) {
	if s.done {
		return nil, io.EOF
	}
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				s.done = true
			}
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, "data:") {
			// blank separators, comments and other SSE fields
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == doneSentinel {
			s.done = true
			return nil, io.EOF
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return nil, fmt.Errorf("decode stream chunk: %w", err)
		}
		return &chunk, nil
	}
}

// Close releases the underlying connection.
func (s *ChatStream) Close() error {
	s.done = true
	return s.body.Close()
}

// Collect drains the stream and concatenates every content delta.
func (s *ChatStream) Collect() (string, error) {
	var sb strings.Builder
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		for _, ch := range chunk.Choices {
			sb.WriteString(ch.Delta.Content)
		}
	}
}
