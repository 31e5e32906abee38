package core

import (
	"strings"
	"unicode"

	"pkt.systems/replwin/schema"
)

func (s *Session) beginTx(kind txKind, dirs mergeDirections) *transaction {
	pos, _ := s.caretInput()
	return &transaction{kind: kind, dirs: dirs, caretBefore: pos}
}

func (s *Session) commitTx(tx *transaction) {
	tx.caretAfter, _ = s.caretInput()
	s.undo.push(tx)
}

// replaceInput edits the live input and records the edit on tx.
func (s *Session) replaceInput(tx *transaction, start, end int, text string) {
	p := editPrimitive{pos: start, removed: s.input[start:end], inserted: text}
	s.input = applyPrimitive(s.input, p)
	if tx != nil {
		tx.prims = append(tx.prims, p)
	}
	s.renderLive(s.liveKind())
	s.setCaret(s.spans.fromInput(start + len(text)))
}

// deleteSelection removes the input covered by the selection. It returns
// false, changing nothing, when the selection reaches into committed text.
func (s *Session) deleteSelection(tx *transaction) bool {
	start, end, ok := s.selectionInput()
	if !ok {
		return false
	}
	if start < end {
		s.replaceInput(tx, start, end, "")
	}
	s.setCaret(s.spans.fromInput(start))
	return true
}

// TypeChar inserts r at the caret, replacing any selection.
func (s *Session) TypeChar(r rune) error {
	return s.do(func() {
		if !s.canEdit() {
			return
		}
		tx := s.beginTx(txTyping, mergeBoth)
		if s.hasSelection() {
			if !s.deleteSelection(tx) {
				return
			}
			tx.dirs = mergeForward
		}
		pos, ok := s.caretInput()
		if !ok {
			return
		}
		s.search = nil
		s.replaceInput(tx, pos, pos, string(r))
		s.commitTx(tx)
	})
}

// InsertCode inserts text at the caret, replacing a selection inside the
// input. With the caret on committed text it appends to the input.
func (s *Session) InsertCode(text string) error {
	return s.do(func() {
		if !s.canEdit() || text == "" {
			return
		}
		tx := s.beginTx(txEdit, mergeNone)
		if s.hasSelection() && !s.deleteSelection(tx) {
			s.clearSelection()
		}
		pos, ok := s.caretInput()
		if !ok {
			pos = len(s.input)
		}
		s.search = nil
		s.replaceInput(tx, pos, pos, text)
		s.commitTx(tx)
	})
}

// Return submits the input when the caret is at its end and the evaluator
// accepts it as complete. Otherwise it breaks the line at the caret. While
// standard input is read, Return submits the read.
func (s *Session) Return() error {
	return s.do(func() {
		if !s.canEdit() {
			return
		}
		tx := s.beginTx(txEdit, mergeNone)
		if s.hasSelection() && !s.deleteSelection(tx) {
			return
		}
		pos, ok := s.caretInput()
		if !ok {
			return
		}
		if s.liveKind() == schema.SpanStandardInput {
			s.submitStandardInput()
			return
		}
		if strings.TrimRightFunc(s.input[pos:], unicode.IsSpace) == "" && s.evaluator.CanExecuteCode(s.input) {
			s.clearSelection()
			s.submitLive(nil)
			return
		}
		s.search = nil
		s.replaceInput(tx, pos, pos, s.cfg.NewLine)
		s.commitTx(tx)
	})
}

// BreakLine inserts a line break at the caret without submitting.
func (s *Session) BreakLine() error {
	return s.do(func() {
		if s.liveKind() != schema.SpanInput || !s.canEdit() {
			return
		}
		tx := s.beginTx(txEdit, mergeNone)
		if s.hasSelection() && !s.deleteSelection(tx) {
			return
		}
		pos, ok := s.caretInput()
		if !ok {
			return
		}
		s.search = nil
		s.replaceInput(tx, pos, pos, s.cfg.NewLine)
		s.commitTx(tx)
	})
}

// Backspace removes the selection, or the character before the caret.
func (s *Session) Backspace() error {
	return s.do(func() {
		s.deleteBackOrForward(false)
	})
}

// Delete removes the selection, or the character after the caret.
func (s *Session) Delete() error {
	return s.do(func() {
		s.deleteBackOrForward(true)
	})
}

func (s *Session) deleteBackOrForward(forward bool) {
	if !s.canEdit() {
		return
	}
	tx := s.beginTx(txDelete, mergeBoth)
	s.search = nil
	if s.hasSelection() {
		if s.deleteSelection(tx) {
			tx.dirs = mergeNone
			s.commitTx(tx)
		}
		return
	}
	pos, ok := s.caretInput()
	if !ok {
		return
	}
	if forward {
		if pos >= len(s.input) {
			s.setCaret(s.spans.fromInput(pos))
			return
		}
		s.replaceInput(tx, pos, nextPosition(s.input, pos), "")
	} else {
		if pos == 0 {
			s.setCaret(s.spans.fromInput(pos))
			return
		}
		s.replaceInput(tx, prevPosition(s.input, pos), pos, "")
	}
	s.commitTx(tx)
}

// DeleteLine removes the input lines touched by the caret or selection.
func (s *Session) DeleteLine() error {
	return s.do(func() {
		s.deleteLines(false)
	})
}

// CutLine copies the input lines touched by the caret or selection to the
// clipboard and removes them.
func (s *Session) CutLine() error {
	return s.doErr(func() error {
		return s.deleteLines(true)
	})
}

func (s *Session) deleteLines(cut bool) error {
	if !s.canEdit() {
		return nil
	}
	var start, end int
	if s.hasSelection() {
		var ok bool
		if start, end, ok = s.selectionInput(); !ok {
			return nil
		}
	} else {
		pos, ok := s.caretInput()
		if !ok {
			return nil
		}
		start, end = pos, pos
	}
	if end > start && breakBefore(s.input, end) > 0 {
		end -= breakBefore(s.input, end)
	}
	from := inputLineStart(s.input, start)
	to := inputLineEnd(s.input, end)
	to += breakAt(s.input, to)
	if to == len(s.input) && from > 0 && breakAt(s.input, to-1) == 0 {
		from -= breakBefore(s.input, from)
	}
	if cut && from < to {
		text := s.input[from:to]
		data := schema.DataObject{schema.ClipboardTextFormat: text}
		if blocks, err := schema.MarshalBlocks([]schema.Block{{Kind: schema.SpanInput, Content: text}}); err == nil {
			data[schema.ClipboardBlocksFormat] = blocks
		}
		if err := s.setClipboard(data); err != nil {
			return err
		}
	}
	tx := s.beginTx(txDelete, mergeNone)
	s.search = nil
	s.replaceInput(tx, from, to, "")
	s.commitTx(tx)
	return nil
}

func inputLineStart(text string, pos int) int {
	return strings.LastIndexAny(text[:pos], "\r\n") + 1
}

func inputLineEnd(text string, pos int) int {
	if i := strings.IndexAny(text[pos:], "\r\n"); i >= 0 {
		return pos + i
	}
	return len(text)
}

// Cancel clears the current input, or the text typed for a standard input
// read, and ends history navigation.
func (s *Session) Cancel() error {
	return s.do(func() {
		if !s.canEdit() {
			return
		}
		s.history.endNavigation()
		s.search = nil
		s.undo.reset()
		s.clearSelection()
		s.setInput("")
	})
}

// Undo reverts up to count input edits.
func (s *Session) Undo(count int) error {
	return s.do(func() {
		if !s.canEdit() {
			return
		}
		for i := 0; i < count; i++ {
			tx, ok := s.undo.popUndo()
			if !ok {
				return
			}
			for j := len(tx.prims) - 1; j >= 0; j-- {
				s.input = revertPrimitive(s.input, tx.prims[j])
			}
			s.renderLive(s.liveKind())
			s.setCaret(s.spans.fromInput(min(tx.caretBefore, len(s.input))))
		}
	})
}

// Redo reapplies up to count undone input edits.
func (s *Session) Redo(count int) error {
	return s.do(func() {
		if !s.canEdit() {
			return
		}
		for i := 0; i < count; i++ {
			tx, ok := s.undo.popRedo()
			if !ok {
				return
			}
			for _, p := range tx.prims {
				s.input = applyPrimitive(s.input, p)
			}
			s.renderLive(s.liveKind())
			s.setCaret(s.spans.fromInput(min(tx.caretAfter, len(s.input))))
		}
	})
}

// SelectAll selects the submission containing the caret, or the start of
// the current selection. When there is none, or it is already selected,
// everything is selected.
func (s *Session) SelectAll() error {
	return s.do(func() {
		at := s.caret
		cur, curEnd := s.selectionRange()
		if s.hasSelection() {
			at = cur
		}
		start, end, ok := s.regionAt(at)
		if !ok || (s.hasSelection() && cur == start && curEnd == end) {
			start, end = 0, len(s.spans.text)
		}
		s.anchor = start
		s.active = end
		s.caret = end
	})
}

// Select sets the selection from anchor to active and moves the caret to
// active.
func (s *Session) Select(anchor, active int) error {
	return s.do(func() {
		size := len(s.spans.text)
		s.anchor = max(0, min(anchor, size))
		s.active = max(0, min(active, size))
		s.caret = s.active
	})
}

// ClearSelection collapses the selection onto the caret.
func (s *Session) ClearSelection() error {
	return s.do(s.clearSelection)
}

// MoveCaret places the caret at offset. With extend the selection grows
// to follow it.
func (s *Session) MoveCaret(offset int, extend bool) error {
	return s.do(func() {
		s.moveCaret(offset, extend)
	})
}

func (s *Session) moveCaret(offset int, extend bool) {
	offset = max(0, min(offset, len(s.spans.text)))
	if !extend {
		s.setCaret(offset)
		return
	}
	if !s.hasSelection() {
		s.anchor = s.caret
	}
	s.caret = offset
	s.active = offset
}

// CaretLeft moves the caret one position back. A line break counts as one.
func (s *Session) CaretLeft(extend bool) error {
	return s.do(func() {
		s.moveCaret(prevPosition(s.spans.text, s.caret), extend)
	})
}

// CaretRight moves the caret one position forward.
func (s *Session) CaretRight(extend bool) error {
	return s.do(func() {
		s.moveCaret(nextPosition(s.spans.text, s.caret), extend)
	})
}

// CaretUp moves the caret to the same column on the previous line.
func (s *Session) CaretUp(extend bool) error {
	return s.do(func() {
		s.caretVertical(-1, extend)
	})
}

// CaretDown moves the caret to the same column on the next line.
func (s *Session) CaretDown(extend bool) error {
	return s.do(func() {
		s.caretVertical(1, extend)
	})
}

func (s *Session) caretVertical(dir int, extend bool) {
	text := s.spans.text
	ls := s.lineStart(s.caret)
	col := s.caret - ls
	var target int
	if dir < 0 {
		if ls == 0 {
			return
		}
		target = s.lineStart(ls - breakBefore(text, ls))
	} else {
		le := s.lineEnd(s.caret)
		if le == len(text) {
			return
		}
		target = le + breakAt(text, le)
	}
	end := s.lineEnd(target)
	offset := min(target+col, end)
	for offset > target && offset < len(text) && !isRuneStart(text[offset]) {
		offset--
	}
	s.moveCaret(offset, extend)
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// Home moves the caret to the start of the input on a prompted line, or to
// column 0 when it is already there.
func (s *Session) Home(extend bool) error {
	return s.do(func() {
		ls := s.lineStart(s.caret)
		target := ls
		if i := s.spans.spanAt(ls); i >= 0 {
			span := s.spans.at(i)
			if span.Kind == schema.SpanPrompt && span.Start == ls && s.caret != span.End() {
				target = span.End()
			}
		}
		s.moveCaret(target, extend)
	})
}

// End moves the caret to the end of the line.
func (s *Session) End(extend bool) error {
	return s.do(func() {
		s.moveCaret(s.lineEnd(s.caret), extend)
	})
}

// Caret returns the caret offset.
func (s *Session) Caret() int {
	caret := 0
	_ = s.do(func() { caret = s.caret })
	return caret
}

// Selection returns the selected range; start equals end when nothing is
// selected.
func (s *Session) Selection() (int, int) {
	var start, end int
	_ = s.do(func() { start, end = s.selectionRange() })
	return start, end
}

// Text returns the composed view text.
func (s *Session) Text() string {
	var text string
	_ = s.do(func() { text = s.spans.text })
	return text
}

// View returns the spans, caret, selection and state in one snapshot.
func (s *Session) View() schema.ViewSnapshot {
	var view schema.ViewSnapshot
	_ = s.do(func() {
		start, end := s.selectionRange()
		view = schema.ViewSnapshot{
			Spans:          s.spans.all(),
			Text:           s.spans.text,
			Caret:          s.caret,
			SelectionStart: start,
			SelectionEnd:   end,
			State:          s.state,
		}
	})
	return view
}

// Spans returns a copy of the composed view.
func (s *Session) Spans() []schema.Span {
	var spans []schema.Span
	_ = s.do(func() { spans = s.spans.all() })
	return spans
}

// CurrentInput returns the live input text.
func (s *Session) CurrentInput() string {
	var input string
	_ = s.do(func() { input = s.input })
	return input
}

// EditableExtent returns the offsets covered by the live input.
func (s *Session) EditableExtent() (int, int, bool) {
	var start, end int
	var ok bool
	_ = s.do(func() { start, end, ok = s.spans.editableExtent() })
	return start, end, ok
}

// IsEditable reports whether an edit at offset would change the input.
func (s *Session) IsEditable(offset int) bool {
	var ok bool
	_ = s.do(func() { ok = s.spans.isEditable(offset) })
	return ok
}

// LineColumn converts an offset to a zero based line and rune column.
func (s *Session) LineColumn(offset int) (int, int) {
	var line, col int
	_ = s.do(func() { line, col = lineColumn(s.spans.text, offset) })
	return line, col
}

// Offset converts a zero based line and rune column to an offset.
func (s *Session) Offset(line, col int) int {
	var offset int
	_ = s.do(func() { offset = offsetOf(s.spans.text, line, col) })
	return offset
}

func lineColumn(text string, offset int) (int, int) {
	offset = max(0, min(offset, len(text)))
	line := 0
	start := 0
	for i := 0; i < offset; i++ {
		if n := breakAt(text, i); n > 0 && i+n <= offset {
			line++
			i += n - 1
			start = i + 1
		}
	}
	return line, len([]rune(text[start:offset]))
}

func offsetOf(text string, line, col int) int {
	start := 0
	for line > 0 {
		i := strings.IndexAny(text[start:], "\r\n")
		if i < 0 {
			return len(text)
		}
		start += i + breakAt(text, start+i)
		line--
	}
	offset := start
	for col > 0 && offset < len(text) && breakAt(text, offset) == 0 {
		offset = nextPosition(text, offset)
		col--
	}
	return offset
}
