package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return "bad status" }
func (e statusErr) HTTPStatus() int { return e.code }

// funcSource adapts a function to Source.
type funcSource struct {
	next   func(ctx context.Context) (Delta, error)
	closed bool
}

func (s *funcSource) Next(ctx context.Context) (Delta, error) { return s.next(ctx) }
func (s *funcSource) Close() error                            { s.closed = true; return nil }

func staticOpener(src Source) Opener {
	return func(context.Context) (Source, error) { return src, nil }
}

type countingRecorder struct {
	chunks   int
	segments map[string]int
	thinks   []time.Duration
	sessions []string
}

func (r *countingRecorder) ObserveChunk() { r.chunks++ }
func (r *countingRecorder) ObserveSegment(kind string) {
	if r.segments == nil {
		r.segments = map[string]int{}
	}
	r.segments[kind]++
}
func (r *countingRecorder) ObserveThink(d time.Duration)  { r.thinks = append(r.thinks, d) }
func (r *countingRecorder) ObserveSession(outcome string) { r.sessions = append(r.sessions, outcome) }

func TestSession_Run(t *testing.T) {
	rec := &recorder{}
	metrics := &countingRecorder{}
	var completions []EndResult

	session := NewSession(
		WithListener(rec.listen),
		WithCompletion(func(res EndResult) { completions = append(completions, res) }),
		WithRecorder(metrics),
		WithClock(newFakeClock(time.Millisecond).Now),
	)
	src := NewStaticSource("<think>ab", "c</think>done").WithFinal(map[string]any{"eval_count": 12})

	res, err := session.Run(context.Background(), staticOpener(src))
	require.NoError(t, err)

	assert.Equal(t, []EventKind{
		EventStart,
		EventThinkStart,
		EventOutput,
		EventThinkEnd,
		EventContentStart,
		EventOutput,
		EventContentEnd,
		EventEnd,
	}, rec.kinds())
	assert.Equal(t, []Segment{
		{Kind: SegmentThink, Text: "abc"},
		{Kind: SegmentContent, Text: "done"},
	}, res.Contents)
	assert.Equal(t, map[string]any{"eval_count": 12}, res.Final)

	require.Len(t, completions, 1)
	assert.Equal(t, res, completions[0])

	assert.Equal(t, 2, metrics.chunks)
	assert.Equal(t, map[string]int{"think": 1, "content": 1}, metrics.segments)
	assert.Len(t, metrics.thinks, 1)
	assert.Equal(t, []string{"end"}, metrics.sessions)
}

func TestSession_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	delivered := false
	src := &funcSource{next: func(ctx context.Context) (Delta, error) {
		if !delivered {
			delivered = true
			return Delta{Text: "<think>partial"}, nil
		}
		cancel()
		<-ctx.Done()
		return Delta{}, ctx.Err()
	}}

	rec := &recorder{}
	completions := 0
	var final EndResult
	session := NewSession(
		WithListener(rec.listen),
		WithCompletion(func(res EndResult) { completions++; final = res }),
	)

	res, err := session.Run(ctx, staticOpener(src))
	require.NoError(t, err, "cancellation is not a failure")
	assert.True(t, src.closed)

	assert.Equal(t, 1, completions)
	assert.Equal(t, res, final)
	assert.Contains(t, res.Think, "partial")
	assert.Empty(t, res.Contents)

	last := rec.events[len(rec.events)-1]
	require.Equal(t, EventStop, last.Kind())
	assert.Equal(t, stopReason, last.(StopEvent).Reason)
	assert.NotContains(t, rec.kinds(), EventEnd)
	assert.NotContains(t, rec.kinds(), EventThinkEnd)
}

func TestSession_CancelledWithCause(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(errors.New("user pressed ctrl-c"))

	rec := &recorder{}
	session := NewSession(WithListener(rec.listen))
	_, err := session.Run(ctx, staticOpener(NewStaticSource("never")))
	require.NoError(t, err)

	stop, ok := rec.events[len(rec.events)-1].(StopEvent)
	require.True(t, ok)
	assert.Contains(t, stop.Reason, "user pressed ctrl-c")
}

func TestSession_CancelledWhileOpening(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	completions := 0
	session := NewSession(WithCompletion(func(EndResult) { completions++ }))

	_, err := session.Run(ctx, func(ctx context.Context) (Source, error) {
		cancel()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, 1, completions)
}

func TestSession_TransportFailure(t *testing.T) {
	rec := &recorder{}
	metrics := &countingRecorder{}
	completions := 0
	session := NewSession(
		WithListener(rec.listen),
		WithRecorder(metrics),
		WithCompletion(func(EndResult) { completions++ }),
	)

	_, err := session.Run(context.Background(), func(context.Context) (Source, error) {
		return nil, statusErr{code: 401}
	})
	require.Error(t, err)

	var se statusErr
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 401, se.code)

	assert.Equal(t, []EventKind{EventStart, EventError}, rec.kinds())
	evt := rec.events[1].(ErrorEvent)
	assert.Equal(t, 401, evt.Code)
	assert.Equal(t, errorReason, evt.Reason)
	assert.Zero(t, completions)
	assert.Equal(t, []string{"error"}, metrics.sessions)
}

func TestSession_MidStreamFailure(t *testing.T) {
	boom := errors.New("connection reset")
	calls := 0
	src := &funcSource{next: func(context.Context) (Delta, error) {
		calls++
		if calls == 1 {
			return Delta{Text: "hello"}, nil
		}
		return Delta{}, boom
	}}

	rec := &recorder{}
	session := NewSession(WithListener(rec.listen))
	_, err := session.Run(context.Background(), staticOpener(src))
	require.ErrorIs(t, err, boom)

	last := rec.events[len(rec.events)-1].(ErrorEvent)
	assert.Equal(t, 0, last.Code)
	assert.ErrorIs(t, last.Err, boom)
}

func TestSession_NilSource(t *testing.T) {
	session := NewSession()
	_, err := session.Run(context.Background(), func(context.Context) (Source, error) { return nil, nil })
	require.ErrorIs(t, err, ErrNilSource)
}

func TestSession_EOFEndsStream(t *testing.T) {
	calls := 0
	src := &funcSource{next: func(context.Context) (Delta, error) {
		calls++
		if calls == 1 {
			return Delta{Text: "x ♦y"}, nil
		}
		return Delta{}, io.EOF
	}}

	rec := &recorder{}
	session := NewSession(WithListener(rec.listen))
	res, err := session.Run(context.Background(), staticOpener(src))
	require.NoError(t, err)

	assert.Equal(t, []Segment{
		{Kind: SegmentContent, Text: "x"},
		{Kind: SegmentMeme, Text: "y"},
	}, res.Contents)
	kinds := rec.kinds()
	assert.Equal(t, []EventKind{EventMemeEnd, EventEnd}, kinds[len(kinds)-2:])
}

func TestSession_ReaderSource(t *testing.T) {
	input := "<think>plan</think>\n\nAnswer ¶ more ♦haha♦"
	session := NewSession()
	res, err := session.Run(context.Background(), staticOpener(NewReaderSource(strings.NewReader(input), 3)))
	require.NoError(t, err)

	assert.Equal(t, input, res.FullText)
	assert.Equal(t, []Segment{
		{Kind: SegmentThink, Text: "plan"},
		{Kind: SegmentContent, Text: "Answer"},
		{Kind: SegmentContent, Text: "more"},
		{Kind: SegmentMeme, Text: "haha"},
	}, res.Contents)
}

func TestSession_ConcurrentSessionsAreIsolated(t *testing.T) {
	inputs := []string{"<think>one</think>first", "second ♦two♦"}
	results := make([]EndResult, len(inputs))
	done := make(chan int)

	for i, input := range inputs {
		go func() {
			session := NewSession()
			res, err := session.Run(context.Background(), staticOpener(NewReaderSource(strings.NewReader(input), 1)))
			assert.NoError(t, err)
			results[i] = res
			done <- i
		}()
	}
	for range inputs {
		<-done
	}

	assert.Equal(t, inputs[0], results[0].FullText)
	assert.Equal(t, "first", results[0].Content)
	assert.Equal(t, inputs[1], results[1].FullText)
	assert.Equal(t, []Segment{
		{Kind: SegmentContent, Text: "second"},
		{Kind: SegmentMeme, Text: "two"},
	}, results[1].Contents)
}

func TestSession_LogsWithSessionID(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})

	session := NewSession(WithLogger(logrus.NewEntry(logger)))
	_, err := session.Run(context.Background(), staticOpener(NewStaticSource("hi")))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), session.ID)
	assert.Contains(t, buf.String(), "session finished")
}
