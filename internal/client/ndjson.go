package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/markis/gh-scriptai/internal/stream"
	"github.com/sirupsen/logrus"
)

// ndjsonChunk is one line of an Ollama style chat stream.
type ndjsonChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// ndjsonSource reads newline delimited JSON chat chunks.
type ndjsonSource struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	log     *logrus.Entry
}

func newNDJSONSource(body io.ReadCloser, log *logrus.Entry) *ndjsonSource {
	scanner := bufio.NewScanner(bufio.NewReaderSize(body, 4096))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &ndjsonSource{body: body, scanner: scanner, log: log}
}

func (s *ndjsonSource) Next(ctx context.Context) (stream.Delta, error) {
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

		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ndjsonChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			s.log.WithError(err).Warn("skipping malformed stream line")
			continue
		}
		if chunk.Error != "" {
			return stream.Delta{}, errors.New(chunk.Error)
		}
		if chunk.Done {
			var final map[string]any
			if err := json.Unmarshal(line, &final); err != nil {
				return stream.Delta{}, fmt.Errorf("failed to decode final chunk: %w", err)
			}
			return stream.Delta{Done: true, Final: final}, nil
		}
		return stream.Delta{Text: chunk.Message.Content}, nil
	}
}

func (s *ndjsonSource) Close() error {
	return s.body.Close()
}
