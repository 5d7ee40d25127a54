package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/markis/gh-scriptai/internal/stream"
	"github.com/sirupsen/logrus"
)

// ChatResponse represents the structure of the response from the chat API.
type ChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage map[string]any `json:"usage"`
}

// sseSource reads OpenAI style server-sent events.
type sseSource struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	final   map[string]any
	log     *logrus.Entry
}

func newSSESource(body io.ReadCloser, log *logrus.Entry) *sseSource {
	reader := bufio.NewReaderSize(body, 4096)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(bufio.ScanLines)
	return &sseSource{body: body, scanner: scanner, final: map[string]any{}, log: log}
}

func (s *sseSource) Next(ctx context.Context) (stream.Delta, error) {
	for {
		if err := ctx.Err(); err != nil {
			return stream.Delta{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return stream.Delta{}, fmt.Errorf("error reading response stream: %w", err)
			}
			return stream.Delta{}, io.EOF
		}

		line := s.scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return stream.Delta{Done: true, Final: s.final}, nil
		}

		var chunk ChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			s.log.WithError(err).Warn("skipping malformed event")
			continue
		}
		if chunk.Model != "" {
			s.final["model"] = chunk.Model
		}
		if chunk.Usage != nil {
			s.final["usage"] = chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != nil {
			s.final["finish_reason"] = *choice.FinishReason
		}
		content := choice.Delta.Content
		if content == "" {
			content = choice.Message.Content
		}
		if content != "" {
			return stream.Delta{Text: content}, nil
		}
	}
}

func (s *sseSource) Close() error {
	return s.body.Close()
}
