package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lexAll feeds chunks and drains the lexer, switching modes on markers the
// way the accumulator does.
func lexAll(chunks ...string) ([]Token, string) {
	var (
		lx   Lexer
		mode Mode
		toks []Token
	)
	for _, chunk := range chunks {
		lx.Feed(chunk)
		for {
			tok, ok := lx.Next(mode)
			if !ok {
				break
			}
			toks = append(toks, tok)
			switch tok.Marker {
			case MarkerThinkOpen:
				mode = ModeInThink
			case MarkerThinkClose:
				mode = ModeNormal
			case MarkerMeme:
				if mode == ModeInMeme {
					mode = ModeNormal
				} else {
					mode = ModeInMeme
				}
			}
		}
	}
	return toks, lx.Pending()
}

func text(s string) Token { return Token{Text: s} }
func mark(m Marker) Token { return Token{Marker: m} }

func TestLexer(t *testing.T) {
	tests := []struct {
		name        string
		chunks      []string
		want        []Token
		wantPending string
	}{
		{
			name:   "plain text",
			chunks: []string{"hello world"},
			want:   []Token{text("hello world")},
		},
		{
			name:   "think block in one chunk",
			chunks: []string{"a<think>b</think>c"},
			want:   []Token{text("a"), mark(MarkerThinkOpen), text("b"), mark(MarkerThinkClose), text("c")},
		},
		{
			name:        "open marker prefix is held back",
			chunks:      []string{"abc<thi"},
			want:        []Token{text("abc")},
			wantPending: "<thi",
		},
		{
			name:   "held prefix resolves into marker",
			chunks: []string{"abc<thi", "nk>x"},
			want:   []Token{text("abc"), mark(MarkerThinkOpen), text("x")},
		},
		{
			name:   "held prefix released when next byte disagrees",
			chunks: []string{"<th", "e end"},
			want:   []Token{text("<the end")},
		},
		{
			name:        "close marker split inside think",
			chunks:      []string{"<think>x</thi"},
			want:        []Token{mark(MarkerThinkOpen), text("x")},
			wantPending: "</thi",
		},
		{
			name:   "close marker completed",
			chunks: []string{"<think>x</thi", "nk>"},
			want:   []Token{mark(MarkerThinkOpen), text("x"), mark(MarkerThinkClose)},
		},
		{
			name:   "only close marker is searched inside think",
			chunks: []string{"<think>a¶♦<think>b"},
			want:   []Token{mark(MarkerThinkOpen), text("a¶♦<think>b")},
		},
		{
			name:   "stray close marker is literal in normal mode",
			chunks: []string{"</think>x"},
			want:   []Token{text("</think>x")},
		},
		{
			name:   "cut and meme markers",
			chunks: []string{"a¶b♦c♦"},
			want:   []Token{text("a"), mark(MarkerCut), text("b"), mark(MarkerMeme), text("c"), mark(MarkerMeme)},
		},
		{
			name:        "meme marker split mid rune",
			chunks:      []string{"ab\xe2\x99"},
			want:        []Token{text("ab")},
			wantPending: "\xe2\x99",
		},
		{
			name:   "meme marker completed across chunks",
			chunks: []string{"ab\xe2\x99", "\xa6c"},
			want:   []Token{text("ab"), mark(MarkerMeme), text("c")},
		},
		{
			name:   "earliest marker wins",
			chunks: []string{"x♦y<think>"},
			want:   []Token{text("x"), mark(MarkerMeme), text("y"), mark(MarkerThinkOpen)},
		},
		{
			name:   "less-than that is not a marker",
			chunks: []string{"1 < 2"},
			want:   []Token{text("1 < 2")},
		},
		{
			name:        "longest matching prefix is held",
			chunks:      []string{"<<thin"},
			want:        []Token{text("<")},
			wantPending: "<thin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, pending := lexAll(tt.chunks...)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantPending, pending)
		})
	}
}

func TestLexer_PendingTailIsBounded(t *testing.T) {
	input := "a <thin <think> b </thin </think> ♦¶ \xe2\x99\xa6 <th"
	var lx Lexer
	mode := ModeNormal
	for i := 0; i < len(input); i++ {
		lx.Feed(input[i : i+1])
		for {
			tok, ok := lx.Next(mode)
			if !ok {
				break
			}
			switch tok.Marker {
			case MarkerThinkOpen:
				mode = ModeInThink
			case MarkerThinkClose:
				mode = ModeNormal
			}
		}
		require.Less(t, len(lx.Pending()), len(ThinkClose), "pending %q after byte %d", lx.Pending(), i)
	}
}

func TestLexer_Flush(t *testing.T) {
	var lx Lexer
	lx.Feed("end <thi")
	tok, ok := lx.Next(ModeNormal)
	require.True(t, ok)
	assert.Equal(t, "end ", tok.Text)

	assert.Equal(t, "<thi", lx.Flush())
	assert.Empty(t, lx.Pending())
	_, ok = lx.Next(ModeNormal)
	assert.False(t, ok)
}
