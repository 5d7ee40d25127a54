package stream

import (
	"time"
)

// Mode is the interpretation context of the accumulator.
type Mode int

const (
	ModeNormal Mode = iota
	ModeInThink
	ModeInMeme
)

// String returns the string representation of the Mode
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeInThink:
		return "think"
	case ModeInMeme:
		return "meme"
	default:
		return "unknown"
	}
}

// SegmentKind is the channel a piece of output text belongs to.
type SegmentKind int

const (
	// SegmentNone marks the absence of an open slice.
	SegmentNone SegmentKind = iota
	SegmentThink
	SegmentContent
	SegmentMeme
)

// String returns the string representation of the SegmentKind
func (k SegmentKind) String() string {
	switch k {
	case SegmentThink:
		return "think"
	case SegmentContent:
		return "content"
	case SegmentMeme:
		return "meme"
	default:
		return ""
	}
}

// Segment is a finalized, typed slice of output text.
type Segment struct {
	Kind SegmentKind `json:"type"`
	Text string      `json:"content"`
}

// EndResult is assembled once per session, when the stream ends or is stopped.
type EndResult struct {
	Content  string         `json:"content"`
	FullText string         `json:"fullText"`
	Think    string         `json:"think"`
	Contents []Segment      `json:"contents"`
	Final    map[string]any `json:"final,omitempty"`
}

// Clock returns the current time. Sessions default to time.Now.
type Clock func() time.Time
