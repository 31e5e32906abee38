package core

import (
	"sort"
	"strings"

	"pkt.systems/replwin/schema"
)

// spanList is the ordered span sequence backing the session view.
// Spans at index live and later form the live region; earlier spans are
// committed and read-only.
type spanList struct {
	spans []schema.Span
	text  string
	live  int
}

func newSpanList() *spanList {
	return &spanList{}
}

func (l *spanList) len() int {
	return len(l.spans)
}

func (l *spanList) at(index int) schema.Span {
	return l.spans[index]
}

func (l *spanList) all() []schema.Span {
	return append([]schema.Span(nil), l.spans...)
}

// offsetOf returns the start offset of the span at index, or the text
// length when index is past the end.
func (l *spanList) offsetOf(index int) int {
	if index >= len(l.spans) {
		return len(l.text)
	}
	return l.spans[index].Start
}

// insert adds spans before index.
func (l *spanList) insert(index int, spans ...schema.Span) {
	l.replaceRange(index, 0, spans...)
}

// replaceRange replaces count spans starting at index. It is the only
// mutator: start offsets of every following span are recomputed and the
// live boundary follows replacements made before it.
func (l *spanList) replaceRange(index, count int, spans ...schema.Span) {
	if index < 0 {
		index = 0
	}
	if index > len(l.spans) {
		index = len(l.spans)
	}
	if index+count > len(l.spans) {
		count = len(l.spans) - index
	}
	oldStart := l.offsetOf(index)
	oldEnd := l.offsetOf(index + count)

	var b strings.Builder
	for _, span := range spans {
		b.WriteString(span.Text)
	}
	l.text = l.text[:oldStart] + b.String() + l.text[oldEnd:]

	tail := append([]schema.Span(nil), l.spans[index+count:]...)
	l.spans = append(l.spans[:index], spans...)
	l.spans = append(l.spans, tail...)

	switch {
	case index+count <= l.live:
		l.live += len(spans) - count
	case index < l.live:
		l.live = index
	}
	l.reindex(index)
}

func (l *spanList) reindex(from int) {
	start := 0
	if from > 0 {
		start = l.spans[from-1].End()
	}
	for i := from; i < len(l.spans); i++ {
		l.spans[i].Start = start
		start += len(l.spans[i].Text)
	}
}

// spanAt maps a text offset to the index of the last span starting at or
// before it. It returns -1 for an empty list.
func (l *spanList) spanAt(offset int) int {
	if len(l.spans) == 0 {
		return -1
	}
	i := sort.Search(len(l.spans), func(i int) bool {
		return l.spans[i].Start > offset
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// commit marks every span as committed history.
func (l *spanList) commit() {
	l.live = len(l.spans)
}

// openLive marks index as the start of the live region.
func (l *spanList) openLive(index int) {
	l.live = index
}

func (l *spanList) hasLive() bool {
	return l.live < len(l.spans)
}

// liveStart returns the offset where the live region begins, or -1.
func (l *spanList) liveStart() int {
	if !l.hasLive() {
		return -1
	}
	return l.spans[l.live].Start
}

// editableSpans returns the indexes of the editable spans in the live region.
func (l *spanList) editableSpans() []int {
	var out []int
	for i := l.live; i < len(l.spans); i++ {
		kind := l.spans[i].Kind
		if kind == schema.SpanInput || kind == schema.SpanStandardInput {
			out = append(out, i)
		}
	}
	return out
}

// editableExtent returns the offset range covered by the current input or
// standard input. The range may contain read-only continuation prompts.
func (l *spanList) editableExtent() (int, int, bool) {
	idx := l.editableSpans()
	if len(idx) == 0 {
		return 0, 0, false
	}
	return l.spans[idx[0]].Start, l.spans[idx[len(idx)-1]].End(), true
}

// isEditable reports whether offset may receive an edit. Offsets inside the
// extent but on a continuation prompt are not editable.
func (l *spanList) isEditable(offset int) bool {
	_, ok := l.toInput(offset)
	return ok
}

// toInput maps a view offset to a position in the live input text.
func (l *spanList) toInput(offset int) (int, bool) {
	idx := l.editableSpans()
	pos := 0
	for n, i := range idx {
		span := l.spans[i]
		last := n == len(idx)-1
		if offset >= span.Start && (offset < span.End() || (offset == span.End() && (last || !endsWithLineBreak(span.Text)))) {
			return pos + offset - span.Start, true
		}
		pos += len(span.Text)
	}
	return 0, false
}

// fromInput maps a position in the live input text to a view offset.
func (l *spanList) fromInput(pos int) int {
	idx := l.editableSpans()
	if len(idx) == 0 {
		return len(l.text)
	}
	acc := 0
	for n, i := range idx {
		span := l.spans[i]
		if pos < acc+len(span.Text) || n == len(idx)-1 {
			rel := pos - acc
			if rel < 0 {
				rel = 0
			}
			if rel > len(span.Text) {
				rel = len(span.Text)
			}
			return span.Start + rel
		}
		acc += len(span.Text)
	}
	return len(l.text)
}

// snapToInput maps an offset in the live region to the input, moving
// forward past continuation prompts.
func (l *spanList) snapToInput(offset int) (int, bool) {
	if pos, ok := l.toInput(offset); ok {
		return pos, true
	}
	start := l.liveStart()
	if start < 0 || offset < start {
		return 0, false
	}
	pos := 0
	for _, i := range l.editableSpans() {
		span := l.spans[i]
		if span.Start >= offset {
			return pos, true
		}
		pos += len(span.Text)
	}
	return pos, true
}

func endsWithLineBreak(text string) bool {
	return strings.HasSuffix(text, "\n") || strings.HasSuffix(text, "\r")
}
