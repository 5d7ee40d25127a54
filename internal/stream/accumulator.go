package stream

import (
	"slices"
	"strings"
	"unicode"
)

// Accumulator is the per-session state machine that classifies text into
// think, content and meme segments. It is not safe for concurrent use.
type Accumulator struct {
	mode   Mode
	lexer  Lexer
	timing *Timing
	emit   Listener

	fullText strings.Builder
	think    strings.Builder
	content  strings.Builder

	// slice holds the text of the open think block, content slice or meme.
	slice     strings.Builder
	sliceKind SegmentKind

	contents []Segment
}

// NewAccumulator creates an accumulator that reports events to emit.
func NewAccumulator(now Clock, emit Listener) *Accumulator {
	if emit == nil {
		emit = func(Event) {}
	}
	return &Accumulator{
		timing: NewTiming(now),
		emit:   emit,
	}
}

// Mode returns the current interpretation context.
func (a *Accumulator) Mode() Mode { return a.mode }

// Timing exposes the think timing tracker.
func (a *Accumulator) Timing() *Timing { return a.timing }

// Process folds one delta into the state and emits an OUTPUT snapshot.
func (a *Accumulator) Process(chunk string) {
	if emoji := FindEmoji(chunk); emoji != "" {
		a.emit(EmojiEvent{Emoji: emoji})
	}
	a.fullText.WriteString(chunk)
	a.lexer.Feed(chunk)
	for {
		tok, ok := a.lexer.Next(a.mode)
		if !ok {
			break
		}
		a.apply(tok)
	}
	a.emit(a.snapshot(chunk))
}

// Finish releases the pending tail and closes whatever slice is still open.
// An unterminated think block is left without a segment.
func (a *Accumulator) Finish() EndResult {
	if rest := a.lexer.Flush(); rest != "" {
		a.appendText(rest)
	}
	switch a.mode {
	case ModeNormal:
		a.closeContent()
	case ModeInMeme:
		a.closeMeme()
	}
	return a.Result()
}

// Result builds an EndResult from the current buffers.
func (a *Accumulator) Result() EndResult {
	return EndResult{
		Content:  a.content.String(),
		FullText: a.fullText.String(),
		Think:    a.think.String(),
		Contents: slices.Clone(a.contents),
	}
}

func (a *Accumulator) apply(tok Token) {
	switch tok.Marker {
	case MarkerThinkOpen:
		a.openThink()
	case MarkerThinkClose:
		a.closeThink()
	case MarkerCut:
		if a.mode == ModeInMeme {
			a.appendText(CutMarker)
			return
		}
		a.closeContent()
		a.emit(CutEvent{})
	case MarkerMeme:
		if a.mode == ModeInMeme {
			a.closeMeme()
			return
		}
		a.closeContent()
		a.mode = ModeInMeme
		a.sliceKind = SegmentMeme
		a.slice.Reset()
		a.emit(MemeStartEvent{})
	default:
		a.appendText(tok.Text)
	}
}

func (a *Accumulator) appendText(text string) {
	switch a.mode {
	case ModeInThink:
		a.think.WriteString(text)
		a.slice.WriteString(text)
	case ModeInMeme:
		a.slice.WriteString(text)
	default:
		for _, r := range text {
			if a.sliceKind == SegmentNone {
				// whitespace between slices only lives in fullText
				if unicode.IsSpace(r) {
					continue
				}
				a.sliceKind = SegmentContent
				a.emit(ContentStartEvent{})
			}
			a.content.WriteRune(r)
			a.slice.WriteRune(r)
		}
	}
}

func (a *Accumulator) openThink() {
	if a.mode == ModeInMeme {
		a.closeMeme()
	}
	a.closeContent()
	a.mode = ModeInThink
	a.sliceKind = SegmentThink
	a.slice.Reset()
	a.emit(ThinkStartEvent{ThinkStartTime: a.timing.Open()})
}

func (a *Accumulator) closeThink() {
	text := a.slice.String()
	a.slice.Reset()
	a.mode = ModeNormal
	a.sliceKind = SegmentNone
	end := a.timing.Close()
	a.contents = append(a.contents, Segment{Kind: SegmentThink, Text: text})
	a.emit(ThinkEndEvent{Think: text, ThinkEndTime: end, ThinkTimeSpent: a.timing.Spent()})
}

func (a *Accumulator) closeContent() {
	if a.sliceKind != SegmentContent {
		return
	}
	text := strings.TrimRightFunc(a.slice.String(), unicode.IsSpace)
	a.slice.Reset()
	a.sliceKind = SegmentNone
	if text == "" {
		return
	}
	a.contents = append(a.contents, Segment{Kind: SegmentContent, Text: text})
	a.emit(ContentEndEvent{Content: text})
}

func (a *Accumulator) closeMeme() {
	text := a.slice.String()
	a.slice.Reset()
	a.mode = ModeNormal
	a.sliceKind = SegmentNone
	a.contents = append(a.contents, Segment{Kind: SegmentMeme, Text: text})
	a.emit(MemeEndEvent{Meme: text})
}

func (a *Accumulator) snapshot(chunk string) OutputEvent {
	return OutputEvent{
		Think:            a.think.String(),
		Content:          a.content.String(),
		Contents:         slices.Clone(a.contents),
		CurrentSlice:     a.slice.String(),
		ThinkTimeSpent:   a.timing.Spent(),
		CurrentSliceType: a.sliceKind,
		Chunk:            chunk,
	}
}
