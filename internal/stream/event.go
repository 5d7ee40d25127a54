package stream

import "time"

// EventKind enumerates the lifecycle events of a session.
type EventKind int

const (
	EventStart EventKind = iota
	EventThinkStart
	EventThinkEnd
	EventContentStart
	EventContentEnd
	EventMemeStart
	EventMemeEnd
	EventCut
	EventEmoji
	EventOutput
	EventEnd
	EventStop
	EventError
)

// String returns the tag of the EventKind
func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "START"
	case EventThinkStart:
		return "THINK_START"
	case EventThinkEnd:
		return "THINK_END"
	case EventContentStart:
		return "CONTENT_START"
	case EventContentEnd:
		return "CONTENT_END"
	case EventMemeStart:
		return "MEME_START"
	case EventMemeEnd:
		return "MEME_END"
	case EventCut:
		return "CUT"
	case EventEmoji:
		return "EMOJI"
	case EventOutput:
		return "OUTPUT"
	case EventEnd:
		return "END"
	case EventStop:
		return "STOP"
	case EventError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is implemented by every payload type below and by nothing else.
type Event interface {
	Kind() EventKind
	isEvent()
}

// Listener receives events in emission order.
type Listener func(Event)

type StartEvent struct{}

type ThinkStartEvent struct {
	ThinkStartTime time.Time
}

type ThinkEndEvent struct {
	Think          string
	ThinkEndTime   time.Time
	ThinkTimeSpent time.Duration
}

type ContentStartEvent struct{}

type ContentEndEvent struct {
	Content string
}

type MemeStartEvent struct {
	Meme string
}

type MemeEndEvent struct {
	Meme string
}

type CutEvent struct{}

type EmojiEvent struct {
	Emoji string
}

// OutputEvent is the live snapshot emitted once per processed chunk.
type OutputEvent struct {
	Think            string
	Content          string
	Contents         []Segment
	CurrentSlice     string
	ThinkTimeSpent   time.Duration
	CurrentSliceType SegmentKind
	Chunk            string
}

type EndEvent struct{}

type StopEvent struct {
	Reason string
}

type ErrorEvent struct {
	Reason string
	Code   int
	Err    error
}

func (StartEvent) Kind() EventKind        { return EventStart }
func (ThinkStartEvent) Kind() EventKind   { return EventThinkStart }
func (ThinkEndEvent) Kind() EventKind     { return EventThinkEnd }
func (ContentStartEvent) Kind() EventKind { return EventContentStart }
func (ContentEndEvent) Kind() EventKind   { return EventContentEnd }
func (MemeStartEvent) Kind() EventKind    { return EventMemeStart }
func (MemeEndEvent) Kind() EventKind      { return EventMemeEnd }
func (CutEvent) Kind() EventKind          { return EventCut }
func (EmojiEvent) Kind() EventKind        { return EventEmoji }
func (OutputEvent) Kind() EventKind       { return EventOutput }
func (EndEvent) Kind() EventKind          { return EventEnd }
func (StopEvent) Kind() EventKind         { return EventStop }
func (ErrorEvent) Kind() EventKind        { return EventError }

func (StartEvent) isEvent()        {}
func (ThinkStartEvent) isEvent()   {}
func (ThinkEndEvent) isEvent()     {}
func (ContentStartEvent) isEvent() {}
func (ContentEndEvent) isEvent()   {}
func (MemeStartEvent) isEvent()    {}
func (MemeEndEvent) isEvent()      {}
func (CutEvent) isEvent()          {}
func (EmojiEvent) isEvent()        {}
func (OutputEvent) isEvent()       {}
func (EndEvent) isEvent()          {}
func (StopEvent) isEvent()         {}
func (ErrorEvent) isEvent()        {}
