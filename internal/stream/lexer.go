package stream

import (
	"strings"
	"unicode/utf8"
)

// Marker literals recognized in the model output.
const (
	ThinkOpen  = "<think>"
	ThinkClose = "</think>"
	CutMarker  = "¶"
	MemeMarker = "♦"
)

// Marker identifies a recognized delimiter.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerThinkOpen
	MarkerThinkClose
	MarkerCut
	MarkerMeme
)

// String returns the literal of the Marker
func (m Marker) String() string {
	switch m {
	case MarkerThinkOpen:
		return ThinkOpen
	case MarkerThinkClose:
		return ThinkClose
	case MarkerCut:
		return CutMarker
	case MarkerMeme:
		return MemeMarker
	default:
		return ""
	}
}

// Token is either a recognized marker or a run of literal text.
type Token struct {
	Marker Marker
	Text   string
}

type markerPattern struct {
	literal string
	marker  Marker
}

var (
	thinkMarkers  = []markerPattern{{ThinkClose, MarkerThinkClose}}
	normalMarkers = []markerPattern{
		{ThinkOpen, MarkerThinkOpen},
		{CutMarker, MarkerCut},
		{MemeMarker, MarkerMeme},
	}
)

// Lexer scans a rolling buffer for markers. Text that may still turn into a
// marker once more data arrives is held back as the pending tail.
type Lexer struct {
	buf string
}

// Feed appends newly delivered text to the working buffer.
func (l *Lexer) Feed(chunk string) {
	l.buf += chunk
}

// Pending returns the unconsumed part of the buffer.
func (l *Lexer) Pending() string {
	return l.buf
}

// Next returns the next token for the given mode. It returns false when the
// buffer is exhausted or only a possible marker prefix remains.
func (l *Lexer) Next(mode Mode) (Token, bool) {
	if l.buf == "" {
		return Token{}, false
	}
	if mode == ModeInThink {
		return l.scan(thinkMarkers)
	}
	return l.scan(normalMarkers)
}

// Flush releases the pending tail as literal text. Used at end of stream.
func (l *Lexer) Flush() string {
	rest := l.buf
	l.buf = ""
	return rest
}

func (l *Lexer) scan(patterns []markerPattern) (Token, bool) {
	pos := -1
	var hit markerPattern
	for _, pat := range patterns {
		if i := strings.Index(l.buf, pat.literal); i >= 0 && (pos < 0 || i < pos) {
			pos, hit = i, pat
		}
	}

	switch {
	case pos == 0:
		l.buf = l.buf[len(hit.literal):]
		return Token{Marker: hit.marker}, true
	case pos > 0:
		text := l.buf[:pos]
		l.buf = l.buf[pos:]
		return Token{Text: text}, true
	}

	text := l.buf[:len(l.buf)-heldTail(l.buf, patterns)]
	if text == "" {
		return Token{}, false
	}
	l.buf = l.buf[len(text):]
	return Token{Text: text}, true
}

// heldTail returns how many trailing bytes of s must wait for more data:
// an incomplete UTF-8 sequence or the longest proper prefix of a marker.
func heldTail(s string, patterns []markerPattern) int {
	if n := partialRune(s); n > 0 {
		return n
	}
	longest := 0
	for _, pat := range patterns {
		for k := min(len(pat.literal)-1, len(s)); k > longest; k-- {
			if strings.HasSuffix(s, pat.literal[:k]) {
				longest = k
				break
			}
		}
	}
	return longest
}

// partialRune reports the length of an incomplete UTF-8 sequence ending s.
func partialRune(s string) int {
	for i := 1; i < utf8.UTFMax && i <= len(s); i++ {
		if utf8.RuneStart(s[len(s)-i]) {
			if utf8.FullRuneInString(s[len(s)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}
