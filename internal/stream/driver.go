package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNilSource is returned when an Opener yields neither a source nor an error.
var ErrNilSource = errors.New("opener returned no source")

const (
	stopReason  = "request cancelled"
	errorReason = "communication with the model failed"
)

// Recorder receives per-session measurements.
type Recorder interface {
	ObserveChunk()
	ObserveSegment(kind string)
	ObserveThink(d time.Duration)
	ObserveSession(outcome string)
}

// Session drives one parse from transport to final result. A Session holds no
// state shared with other sessions; each Run builds a fresh accumulator.
type Session struct {
	ID       string
	now      Clock
	listener Listener
	complete func(EndResult)
	log      *logrus.Entry
	recorder Recorder
}

// Option configures a Session.
type Option func(*Session)

// WithListener sets the event callback.
func WithListener(l Listener) Option {
	return func(s *Session) { s.listener = l }
}

// WithCompletion sets the callback invoked with the final result on END or STOP.
func WithCompletion(fn func(EndResult)) Option {
	return func(s *Session) { s.complete = fn }
}

// WithLogger sets the base log entry; the session adds its own fields.
func WithLogger(entry *logrus.Entry) Option {
	return func(s *Session) { s.log = entry }
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithClock overrides time.Now for think timing.
func WithClock(now Clock) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates a session with a fresh ID.
func NewSession(opts ...Option) *Session {
	s := &Session{
		ID:  uuid.NewString(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		s.log = logrus.NewEntry(logger)
	}
	s.log = s.log.WithField("session_id", s.ID)
	return s
}

// Run opens the transport and folds every delta into a new accumulator.
// Cancellation of ctx finalizes the partial result and is not an error.
// Transport failures emit ERROR and are returned.
func (s *Session) Run(ctx context.Context, open Opener) (EndResult, error) {
	s.emit(StartEvent{})
	s.log.Debug("session started")
	acc := NewAccumulator(s.now, s.emit)

	src, err := open(ctx)
	if err != nil {
		if cancelled(ctx, err) {
			return s.finish(ctx, acc, nil, true), nil
		}
		return EndResult{}, s.fail(err)
	}
	if src == nil {
		return EndResult{}, s.fail(ErrNilSource)
	}
	defer func() {
		if err := src.Close(); err != nil {
			s.log.WithError(err).Warn("failed to close stream")
		}
	}()

	for {
		if ctx.Err() != nil {
			return s.finish(ctx, acc, nil, true), nil
		}
		delta, err := src.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return s.finish(ctx, acc, nil, false), nil
		case cancelled(ctx, err):
			return s.finish(ctx, acc, nil, true), nil
		default:
			return EndResult{}, s.fail(err)
		}
		if delta.Done {
			return s.finish(ctx, acc, delta.Final, false), nil
		}
		if s.recorder != nil {
			s.recorder.ObserveChunk()
		}
		acc.Process(delta.Text)
	}
}

func (s *Session) finish(ctx context.Context, acc *Accumulator, final map[string]any, stopped bool) EndResult {
	res := acc.Finish()
	res.Final = final

	outcome := "end"
	if stopped {
		outcome = "stop"
		reason := stopReason
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			reason = fmt.Sprintf("%s: %v", stopReason, cause)
		}
		s.log.WithField("reason", reason).Info("session stopped")
		s.emit(StopEvent{Reason: reason})
	} else {
		s.emit(EndEvent{})
	}

	if s.recorder != nil {
		for _, seg := range res.Contents {
			s.recorder.ObserveSegment(seg.Kind.String())
		}
		s.recorder.ObserveSession(outcome)
	}
	s.log.WithFields(logrus.Fields{
		"outcome":  outcome,
		"segments": len(res.Contents),
		"bytes":    len(res.FullText),
	}).Debug("session finished")

	if s.complete != nil {
		s.complete(res)
	}
	return res
}

func (s *Session) fail(err error) error {
	code := 0
	var coded interface{ HTTPStatus() int }
	if errors.As(err, &coded) {
		code = coded.HTTPStatus()
	}
	s.log.WithError(err).WithField("code", code).Error("stream failed")
	s.emit(ErrorEvent{Reason: errorReason, Code: code, Err: err})
	if s.recorder != nil {
		s.recorder.ObserveSession("error")
	}
	return fmt.Errorf("stream failed: %w", err)
}

func (s *Session) emit(ev Event) {
	switch e := ev.(type) {
	case ThinkEndEvent:
		if s.recorder != nil {
			s.recorder.ObserveThink(e.ThinkTimeSpent)
		}
		s.log.WithField("spent", e.ThinkTimeSpent).Debug(ev.Kind())
	case OutputEvent, EmojiEvent:
		s.log.Trace(ev.Kind())
	case StartEvent, EndEvent, StopEvent, ErrorEvent:
	default:
		s.log.Debug(ev.Kind())
	}
	if s.listener != nil {
		s.listener(ev)
	}
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
