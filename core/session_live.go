package core

import (
	"strings"
	"unicode/utf8"

	"pkt.systems/replwin/schema"
)

// noLive marks the absence of a live region.
const noLive schema.SpanKind = -1

// liveKind returns the kind of text the live region accepts.
func (s *Session) liveKind() schema.SpanKind {
	switch {
	case !s.spans.hasLive():
		return noLive
	case s.stdin != nil:
		return schema.SpanStandardInput
	default:
		return schema.SpanInput
	}
}

// canEdit reports whether the live region accepts edits.
func (s *Session) canEdit() bool {
	switch s.liveKind() {
	case schema.SpanInput:
		return s.state == schema.StateWaitingForInput
	case schema.SpanStandardInput:
		return true
	}
	return false
}

// replaceSpans replaces spans and keeps caret and selection on the same text.
func (s *Session) replaceSpans(index, count int, spans ...schema.Span) {
	oldStart := s.spans.offsetOf(index)
	oldEnd := s.spans.offsetOf(index + count)
	newLen := 0
	for _, span := range spans {
		newLen += len(span.Text)
	}
	s.spans.replaceRange(index, count, spans...)
	delta := newLen - (oldEnd - oldStart)
	adjust := func(p int) int {
		switch {
		case p >= oldEnd:
			return p + delta
		case p > oldStart:
			return oldStart + min(p-oldStart, newLen)
		}
		return p
	}
	s.caret = adjust(s.caret)
	s.anchor = adjust(s.anchor)
	s.active = adjust(s.active)
	s.textDirty = true
}

// renderLive recomposes the live region from the input text.
func (s *Session) renderLive(kind schema.SpanKind) {
	var spans []schema.Span
	if kind == schema.SpanStandardInput {
		spans = []schema.Span{{Kind: kind, Text: s.input}}
	} else {
		spans = s.promptedLines(s.input, kind, true)
	}
	live := s.spans.live
	s.replaceSpans(live, s.spans.len()-live, spans...)
	s.spans.openLive(live)
}

// removeLive drops the live region.
func (s *Session) removeLive() {
	live := s.spans.live
	s.replaceSpans(live, s.spans.len()-live)
	s.spans.commit()
	s.input = ""
	s.clearSelection()
}

// promptedLines splits text into lines, each preceded by the prompt. With
// keepTrailing an empty line after a final terminator gets its own prompt.
func (s *Session) promptedLines(text string, kind schema.SpanKind, keepTrailing bool) []schema.Span {
	prompt := s.evaluator.Prompt()
	lines := splitLines(text)
	if !keepTrailing && len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	spans := make([]schema.Span, 0, 2*len(lines))
	for _, line := range lines {
		spans = append(spans, schema.Span{Kind: schema.SpanPrompt, Text: prompt}, schema.Span{Kind: kind, Text: line})
	}
	return spans
}

// splitLines splits text after each \r\n, \n or \r. The final element is
// the text after the last terminator, possibly empty.
func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
		case '\n':
		default:
			continue
		}
		lines = append(lines, text[start:i+1])
		start = i + 1
	}
	return append(lines, text[start:])
}

// ensureLineBreak inserts a line break span at index when the preceding
// output does not end a line. It returns the number of spans inserted.
func (s *Session) ensureLineBreak(index int) int {
	if index <= 0 || index > s.spans.len() {
		return 0
	}
	prev := s.spans.at(index - 1)
	if prev.Kind != schema.SpanOutput || endsWithLineBreak(prev.Text) || prev.Text == "" {
		return 0
	}
	s.replaceSpans(index, 0, schema.Span{Kind: schema.SpanLineBreak, Text: s.cfg.NewLine})
	return 1
}

// setInput replaces the live input without recording an undo step.
func (s *Session) setInput(text string) {
	s.input = text
	s.renderLive(s.liveKind())
	s.setCaret(s.spans.fromInput(len(s.input)))
}

func (s *Session) setCaret(offset int) {
	offset = max(0, min(offset, len(s.spans.text)))
	s.caret = offset
	s.anchor = offset
	s.active = offset
}

func (s *Session) hasSelection() bool {
	return s.anchor != s.active
}

func (s *Session) clearSelection() {
	s.anchor = s.caret
	s.active = s.caret
}

func (s *Session) selectionRange() (int, int) {
	return min(s.anchor, s.active), max(s.anchor, s.active)
}

// selectionInput maps the selection to input positions. It fails when the
// selection reaches into committed text.
func (s *Session) selectionInput() (int, int, bool) {
	a, b := s.selectionRange()
	live := s.spans.liveStart()
	if live < 0 || a < live {
		return 0, 0, false
	}
	start, ok := s.spans.snapToInput(a)
	if !ok {
		return 0, 0, false
	}
	end, ok := s.spans.snapToInput(b)
	if !ok {
		return 0, 0, false
	}
	return start, max(start, end), true
}

// caretInput maps the caret to an input position, moving forward off a
// live prompt. It fails when the caret is on committed text.
func (s *Session) caretInput() (int, bool) {
	return s.spans.snapToInput(s.caret)
}

// inputGroupAt returns the input range of the committed submission at
// offset, excluding its leading prompt.
func (s *Session) inputGroupAt(offset int) (int, int, bool) {
	i := s.spans.spanAt(offset)
	if i < 0 || i >= s.spans.live || !isInputKind(s.spans.at(i).Kind) {
		return 0, 0, false
	}
	first, last := i, i
	for first > 0 && isInputKind(s.spans.at(first-1).Kind) {
		first--
	}
	for last+1 < s.spans.live && isInputKind(s.spans.at(last+1).Kind) {
		last++
	}
	start := s.spans.at(first).Start
	if s.spans.at(first).Kind == schema.SpanPrompt && first < last {
		start = s.spans.at(first + 1).Start
	}
	return start, s.spans.at(last).End(), true
}

// outputGroupAt returns the range of the output run at offset. Output that
// does not follow a submission has no group.
func (s *Session) outputGroupAt(offset int) (int, int, bool) {
	i := s.spans.spanAt(offset)
	if i < 0 || i >= s.spans.live || !isOutputKind(s.spans.at(i).Kind) {
		return 0, 0, false
	}
	first, last := i, i
	for first > 0 && isOutputKind(s.spans.at(first-1).Kind) {
		first--
	}
	for last+1 < s.spans.live && isOutputKind(s.spans.at(last+1).Kind) {
		last++
	}
	if first == 0 || !isInputKind(s.spans.at(first-1).Kind) {
		return 0, 0, false
	}
	return s.spans.at(first).Start, s.spans.at(last).End(), true
}

// regionAt returns the submission-sized region containing offset.
func (s *Session) regionAt(offset int) (int, int, bool) {
	if live := s.spans.liveStart(); live >= 0 && offset >= live {
		return s.spans.editableExtent()
	}
	if start, end, ok := s.inputGroupAt(offset); ok {
		return start, end, true
	}
	return s.outputGroupAt(offset)
}

// codeIn concatenates the input text in [start, end).
func (s *Session) codeIn(start, end int) string {
	var b strings.Builder
	for i := 0; i < s.spans.len(); i++ {
		span := s.spans.at(i)
		if span.Kind != schema.SpanInput && span.Kind != schema.SpanStandardInput {
			continue
		}
		from := max(start, span.Start)
		to := min(end, span.End())
		if from < to {
			b.WriteString(s.spans.text[from:to])
		}
	}
	return b.String()
}

// blocksIn returns the spans clipped to [start, end) as blocks.
func (s *Session) blocksIn(start, end int) []schema.Block {
	var blocks []schema.Block
	for i := 0; i < s.spans.len(); i++ {
		span := s.spans.at(i)
		from := max(start, span.Start)
		to := min(end, span.End())
		if from < to {
			blocks = append(blocks, schema.Block{Kind: span.Kind, Content: s.spans.text[from:to], Error: span.Error})
		}
	}
	return blocks
}

func isInputKind(kind schema.SpanKind) bool {
	return kind == schema.SpanPrompt || kind == schema.SpanInput
}

func isOutputKind(kind schema.SpanKind) bool {
	return kind == schema.SpanOutput || kind == schema.SpanLineBreak
}

// lineStart returns the offset of the first character on the line at offset.
func (s *Session) lineStart(offset int) int {
	return strings.LastIndexAny(s.spans.text[:offset], "\r\n") + 1
}

// lineEnd returns the offset of the terminator ending the line at offset.
func (s *Session) lineEnd(offset int) int {
	if i := strings.IndexAny(s.spans.text[offset:], "\r\n"); i >= 0 {
		return offset + i
	}
	return len(s.spans.text)
}

// breakBefore returns the length of the line terminator ending at offset.
func breakBefore(text string, offset int) int {
	switch {
	case offset >= 2 && text[offset-2:offset] == "\r\n":
		return 2
	case offset >= 1 && (text[offset-1] == '\n' || text[offset-1] == '\r'):
		return 1
	}
	return 0
}

// breakAt returns the length of the line terminator starting at offset.
func breakAt(text string, offset int) int {
	switch {
	case offset+2 <= len(text) && text[offset:offset+2] == "\r\n":
		return 2
	case offset < len(text) && (text[offset] == '\n' || text[offset] == '\r'):
		return 1
	}
	return 0
}

// prevPosition steps back one caret position.
func prevPosition(text string, offset int) int {
	if offset <= 0 {
		return 0
	}
	if n := breakBefore(text, offset); n > 0 {
		return offset - n
	}
	_, size := utf8.DecodeLastRuneInString(text[:offset])
	return offset - size
}

// nextPosition steps forward one caret position.
func nextPosition(text string, offset int) int {
	if offset >= len(text) {
		return len(text)
	}
	if n := breakAt(text, offset); n > 0 {
		return offset + n
	}
	_, size := utf8.DecodeRuneInString(text[offset:])
	return offset + size
}
