package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/cli/go-gh/v2/pkg/markdown"
	"github.com/markis/gh-scriptai/internal/stream"
)

// Options configures a TerminalRenderer.
type Options struct {
	Plain     bool
	Wrap      int
	Theme     string
	ShowThink bool
}

// TerminalRenderer writes session events to a terminal. Content is rendered
// as markdown at paragraph breaks; think and meme text stream as styled text.
type TerminalRenderer struct {
	out      io.Writer
	markdown *glamour.TermRenderer
	opts     Options

	faint lipgloss.Style
	meme  lipgloss.Style

	kind    stream.SegmentKind
	written int
	err     error
}

func NewTerminalRenderer(w io.Writer, opts Options) (*TerminalRenderer, error) {
	t := &TerminalRenderer{out: w, opts: opts}

	if !opts.Plain {
		wrap := opts.Wrap
		if wrap <= 0 {
			wrap = 120
		}
		style := glamour.WithAutoStyle()
		if opts.Theme != "" && opts.Theme != "auto" {
			style = markdown.WithTheme(opts.Theme)
		}

		md, err := glamour.NewTermRenderer(markdown.WithWrap(wrap), style)
		if err != nil {
			return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
		}
		t.markdown = md

		r := lipgloss.NewRenderer(w)
		t.faint = r.NewStyle().Faint(true)
		t.meme = r.NewStyle().Italic(true).Foreground(lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#AD8CFF"})
	}

	return t, nil
}

// Err returns the first write or render error seen by Handle.
func (t *TerminalRenderer) Err() error { return t.err }

// Handle is a stream.Listener.
func (t *TerminalRenderer) Handle(ev stream.Event) {
	switch ev := ev.(type) {
	case stream.ThinkStartEvent:
		t.begin(stream.SegmentThink)
		if t.opts.ShowThink {
			t.write(t.paint(t.faint, "Thinking...\n"))
		}
	case stream.ThinkEndEvent:
		if t.opts.ShowThink {
			t.streamSlice(ev.Think)
			t.write(t.paint(t.faint, fmt.Sprintf("\nThought for %.1fs\n\n", ev.ThinkTimeSpent.Seconds())))
		}
		t.begin(stream.SegmentNone)
	case stream.ContentStartEvent:
		t.begin(stream.SegmentContent)
	case stream.ContentEndEvent:
		t.flushContent(ev.Content)
		t.begin(stream.SegmentNone)
	case stream.MemeStartEvent:
		t.begin(stream.SegmentMeme)
	case stream.MemeEndEvent:
		t.streamSlice(ev.Meme)
		t.write("\n")
		t.begin(stream.SegmentNone)
	case stream.CutEvent:
		t.write(t.paint(t.faint, "───") + "\n")
	case stream.OutputEvent:
		if ev.CurrentSliceType != t.kind {
			return
		}
		switch t.kind {
		case stream.SegmentContent:
			t.streamContent(ev.CurrentSlice)
		case stream.SegmentThink:
			if t.opts.ShowThink {
				t.streamSlice(ev.CurrentSlice)
			}
		case stream.SegmentMeme:
			t.streamSlice(ev.CurrentSlice)
		}
	case stream.StopEvent:
		t.write("\n" + t.paint(t.faint, "(stopped)") + "\n")
	}
}

func (t *TerminalRenderer) begin(kind stream.SegmentKind) {
	t.kind = kind
	t.written = 0
}

// streamSlice writes the unseen tail of a growing slice.
func (t *TerminalRenderer) streamSlice(text string) {
	if len(text) <= t.written {
		return
	}
	style := t.faint
	if t.kind == stream.SegmentMeme {
		style = t.meme
	}
	t.write(t.paint(style, text[t.written:]))
	t.written = len(text)
}

// streamContent renders content up to the last paragraph break.
func (t *TerminalRenderer) streamContent(text string) {
	if t.opts.Plain {
		t.streamSlice(text)
		return
	}
	if len(text) <= t.written {
		return
	}
	pending := text[t.written:]
	if idx := findMarkdownBreakPoint(pending); idx > 0 {
		t.renderContent(pending[:idx])
		t.written += idx
	}
}

func (t *TerminalRenderer) flushContent(content string) {
	if t.opts.Plain {
		t.streamSlice(content)
		t.write("\n")
		return
	}
	if len(content) > t.written {
		t.renderContent(content[t.written:])
	}
}

func (t *TerminalRenderer) renderContent(content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	if strings.HasPrefix(content, "#") {
		t.write("\n")
	}

	md, err := t.markdown.Render(content)
	if err != nil {
		t.write(content + "\n")
		t.setErr(fmt.Errorf("failed to render markdown: %w", err))
		return
	}
	t.write(strings.TrimSpace(md) + "\n")
}

// paint styles each line separately so lipgloss does not pad a partial
// line to the width of its neighbours.
func (t *TerminalRenderer) paint(style lipgloss.Style, s string) string {
	if t.opts.Plain {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func (t *TerminalRenderer) write(s string) {
	if s == "" || t.err != nil {
		return
	}
	if _, err := io.WriteString(t.out, s); err != nil {
		t.setErr(err)
	}
}

func (t *TerminalRenderer) setErr(err error) {
	if t.err == nil {
		t.err = err
	}
}

func findMarkdownBreakPoint(content string) int {
	const marker string = "\n\n"
	idx := strings.LastIndex(content, marker)
	if idx < 0 {
		return -1
	}
	return idx + len(marker)
}
