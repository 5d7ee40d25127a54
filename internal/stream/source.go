package stream

import (
	"context"
	"errors"
	"io"
)

// Delta is one step of a transport stream.
type Delta struct {
	Text  string
	Done  bool
	Final map[string]any
}

// Source yields deltas in source order. Next blocks until the next delta is
// available, the stream ends or ctx is done.
type Source interface {
	Next(ctx context.Context) (Delta, error)
	Close() error
}

// Opener starts the transport request and returns its delta stream.
type Opener func(ctx context.Context) (Source, error)

// StaticSource replays a fixed list of deltas, then reports Done.
type StaticSource struct {
	chunks []string
	final  map[string]any
}

// NewStaticSource returns a Source delivering chunks one by one.
func NewStaticSource(chunks ...string) *StaticSource {
	return &StaticSource{chunks: chunks}
}

// WithFinal sets the object attached to the Done delta.
func (s *StaticSource) WithFinal(final map[string]any) *StaticSource {
	s.final = final
	return s
}

func (s *StaticSource) Next(ctx context.Context) (Delta, error) {
	if err := ctx.Err(); err != nil {
		return Delta{}, err
	}
	if len(s.chunks) == 0 {
		return Delta{Done: true, Final: s.final}, nil
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return Delta{Text: chunk}, nil
}

func (s *StaticSource) Close() error { return nil }

// ReaderSource reads raw text from r in pieces of at most size bytes.
type ReaderSource struct {
	r    io.Reader
	buf  []byte
	done bool
}

// NewReaderSource returns a Source over r. A size below one means 4096.
func NewReaderSource(r io.Reader, size int) *ReaderSource {
	if size < 1 {
		size = 4096
	}
	return &ReaderSource{r: r, buf: make([]byte, size)}
}

func (s *ReaderSource) Next(ctx context.Context) (Delta, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Delta{}, err
		}
		if s.done {
			return Delta{Done: true}, nil
		}
		n, err := s.r.Read(s.buf)
		if errors.Is(err, io.EOF) {
			s.done = true
		} else if err != nil {
			return Delta{}, err
		}
		if n > 0 {
			return Delta{Text: string(s.buf[:n])}, nil
		}
	}
}

func (s *ReaderSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
