package console

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"pkt.systems/replwin/schema"
)

const (
	ansiReset   = "\x1b[0m"
	ansiDim     = "\x1b[2m"
	ansiReverse = "\x1b[7m"
	ansiRed     = "\x1b[31m"
	statusStyle = "\x1b[7;1m"
	tabWidth    = 4
)

// frame is the session text laid out in screen rows. Caret coordinates are
// zero based.
type frame struct {
	lines    []string
	caretRow int
	caretCol int
}

type rowBuilder struct {
	width    int
	lines    []string
	b        strings.Builder
	col      int
	style    string
	caretRow int
	caretCol int
	caretSet bool
}

func (r *rowBuilder) setStyle(style string) {
	if style == r.style {
		return
	}
	if r.style != "" {
		r.b.WriteString(ansiReset)
	}
	r.b.WriteString(style)
	r.style = style
}

func (r *rowBuilder) flush() {
	if r.style != "" {
		r.b.WriteString(ansiReset)
	}
	r.lines = append(r.lines, r.b.String())
	r.b.Reset()
	r.col = 0
	style := r.style
	r.style = ""
	if style != "" {
		r.setStyle(style)
	}
}

func (r *rowBuilder) markCaret() {
	if r.caretSet {
		return
	}
	if r.col >= r.width {
		r.flush()
	}
	r.caretRow = len(r.lines)
	r.caretCol = r.col
	r.caretSet = true
}

func (r *rowBuilder) put(ch rune, w int, style string) {
	if r.col+w > r.width && r.col > 0 {
		r.flush()
	}
	r.setStyle(style)
	r.b.WriteRune(ch)
	r.col += w
}

// layout wraps the view to width columns, marks the selection in reverse
// video and styles prompts and error output. Control characters other than
// line breaks and tabs are dropped.
func layout(view schema.ViewSnapshot, width int) frame {
	if width <= 0 {
		width = 80
	}
	r := &rowBuilder{width: width}
	selStart, selEnd := view.SelectionStart, view.SelectionEnd
	for _, span := range view.Spans {
		base := spanStyle(span)
		text := span.Text
		for i := 0; i < len(text); {
			offset := span.Start + i
			if offset == view.Caret {
				r.markCaret()
			}
			if text[i] == 0x1b {
				i = skipEscape(text, i+1)
				continue
			}
			ch, size := utf8.DecodeRuneInString(text[i:])
			i += size
			style := base
			if offset >= selStart && offset < selEnd {
				style = ansiReverse
			}
			switch {
			case ch == '\n':
				r.flush()
			case ch == '\r':
			case ch == '\t':
				for n := tabWidth - r.col%tabWidth; n > 0; n-- {
					r.put(' ', 1, style)
				}
			case ch == utf8.RuneError && size == 1, ch < 0x20, ch == 0x7f:
			default:
				w := runewidth.RuneWidth(ch)
				if w == 0 {
					r.setStyle(style)
					r.b.WriteRune(ch)
					continue
				}
				r.put(ch, w, style)
			}
		}
	}
	if view.Caret >= len(view.Text) {
		r.markCaret()
	}
	r.flush()
	return frame{lines: r.lines, caretRow: r.caretRow, caretCol: r.caretCol}
}

func spanStyle(span schema.Span) string {
	switch {
	case span.Kind == schema.SpanPrompt:
		return ansiDim
	case span.Error:
		return ansiRed
	}
	return ""
}

// statusLine renders the one line header: the session state on the left
// and the scroll position on the right.
func statusLine(title string, state schema.State, view viewportView, width int) string {
	left := " " + title + "  " + state.String()
	right := ""
	if !view.AtBottom {
		right = "scrolled " + strconv.Itoa(view.ScrollOffset) + " "
	}
	pad := width - visibleWidth(left) - visibleWidth(right)
	if pad < 1 {
		left = trimANSIToWidth(left, width-visibleWidth(right)-1)
		pad = width - visibleWidth(left) - visibleWidth(right)
	}
	if pad < 0 {
		pad = 0
	}
	return statusStyle + left + strings.Repeat(" ", pad) + right + ansiReset
}

func skipEscape(text string, i int) int {
	if i >= len(text) {
		return i
	}
	switch text[i] {
	case '[':
		return skipCSI(text, i+1)
	case ']':
		return skipOSC(text, i+1)
	default:
		return i + 1
	}
}

func skipCSI(text string, i int) int {
	for i < len(text) {
		b := text[i]
		if b >= 0x40 && b <= 0x7e {
			return i + 1
		}
		i++
	}
	return i
}

func skipOSC(text string, i int) int {
	for i < len(text) {
		switch text[i] {
		case 0x07:
			return i + 1
		case 0x1b:
			if i+1 < len(text) && text[i+1] == '\\' {
				return i + 2
			}
		}
		i++
	}
	return i
}

// visibleWidth returns the display width of text, ignoring escape
// sequences.
func visibleWidth(text string) int {
	width := 0
	for i := 0; i < len(text); {
		if text[i] == 0x1b {
			i = skipEscape(text, i+1)
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		if size == 0 {
			break
		}
		i += size
		width += runewidth.RuneWidth(r)
	}
	return width
}

func trimANSIToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}
	var b strings.Builder
	visible := 0
	for i := 0; i < len(text); {
		if text[i] == 0x1b {
			start := i
			i = skipEscape(text, i+1)
			b.WriteString(text[start:i])
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		if size == 0 {
			break
		}
		w := runewidth.RuneWidth(r)
		if visible+w > width {
			break
		}
		b.WriteRune(r)
		i += size
		visible += w
	}
	return b.String()
}
