package core

import (
	"errors"
	"strings"

	"pkt.systems/replwin/schema"
)

// ErrNoClipboard is returned by clipboard operations on a session built
// without a Clipboard.
var ErrNoClipboard = errors.New("no clipboard configured")

func (s *Session) setClipboard(data schema.DataObject) error {
	if s.clipboard == nil {
		return ErrNoClipboard
	}
	return s.clipboard.SetData(data)
}

// copyRange returns the clipboard content for [start, end): the plain text
// plus the spans it covers.
func (s *Session) copyRange(start, end int) schema.DataObject {
	data := schema.DataObject{schema.ClipboardTextFormat: s.spans.text[start:end]}
	if blocks, err := schema.MarshalBlocks(s.blocksIn(start, end)); err == nil {
		data[schema.ClipboardBlocksFormat] = blocks
	}
	return data
}

// copyBounds returns the selection, or the caret line when nothing is
// selected.
func (s *Session) copyBounds() (int, int) {
	if s.hasSelection() {
		return s.selectionRange()
	}
	start := s.lineStart(s.caret)
	end := s.lineEnd(s.caret)
	return start, end + breakAt(s.spans.text, end)
}

// Copy places the selection, or the caret line, on the clipboard.
func (s *Session) Copy() error {
	return s.doErr(func() error {
		start, end := s.copyBounds()
		if start == end {
			return nil
		}
		return s.setClipboard(s.copyRange(start, end))
	})
}

// CopyCode places only the input text of the selection, or of the caret
// line, on the clipboard.
func (s *Session) CopyCode() error {
	return s.doErr(func() error {
		start, end := s.copyBounds()
		code := s.codeIn(start, end)
		if code == "" {
			return nil
		}
		data := schema.DataObject{schema.ClipboardTextFormat: code}
		if blocks, err := schema.MarshalBlocks([]schema.Block{{Kind: schema.SpanInput, Content: code}}); err == nil {
			data[schema.ClipboardBlocksFormat] = blocks
		}
		return s.setClipboard(data)
	})
}

// Cut copies the selection and removes its input part. Without a
// selection it cuts the caret line.
func (s *Session) Cut() error {
	return s.doErr(func() error {
		if !s.hasSelection() {
			return s.deleteLines(true)
		}
		start, end := s.selectionRange()
		if err := s.setClipboard(s.copyRange(start, end)); err != nil {
			return err
		}
		if !s.canEdit() {
			return nil
		}
		tx := s.beginTx(txDelete, mergeNone)
		if s.deleteSelection(tx) {
			s.commitTx(tx)
		}
		return nil
	})
}

// Paste inserts clipboard content at the caret. Evaluator formatted
// content wins, then copied input blocks, then plain text.
func (s *Session) Paste() error {
	return s.doErr(func() error {
		if !s.canEdit() {
			return nil
		}
		text, ok := s.evaluator.FormatClipboard()
		if !ok {
			if s.clipboard == nil {
				return ErrNoClipboard
			}
			data, err := s.clipboard.GetData()
			if err != nil {
				return err
			}
			if text, ok = pasteText(data); !ok {
				return nil
			}
		}
		if text == "" {
			return nil
		}
		tx := s.beginTx(txPaste, mergeNone)
		if s.hasSelection() && !s.deleteSelection(tx) {
			return nil
		}
		pos, ok := s.caretInput()
		if !ok {
			return nil
		}
		s.search = nil
		s.replaceInput(tx, pos, pos, text)
		s.commitTx(tx)
		return nil
	})
}

// pasteText extracts the text to paste: the input blocks when present,
// otherwise the plain text.
func pasteText(data schema.DataObject) (string, bool) {
	if raw, ok := data[schema.ClipboardBlocksFormat]; ok {
		if blocks, err := schema.UnmarshalBlocks(raw); err == nil {
			var b strings.Builder
			for _, block := range blocks {
				if block.Kind == schema.SpanInput || block.Kind == schema.SpanStandardInput {
					b.WriteString(block.Content)
				}
			}
			if b.Len() > 0 {
				return b.String(), true
			}
		}
	}
	return data.Text()
}

// AppendSelection appends the input text of the selection, or of the
// submission at the caret, to the live input and optionally submits it.
func (s *Session) AppendSelection(execute bool) error {
	return s.do(func() {
		if s.liveKind() != schema.SpanInput || !s.canEdit() {
			return
		}
		var code string
		if s.hasSelection() {
			code = s.codeIn(s.selectionRange())
		} else if start, end, ok := s.inputGroupAt(s.caret); ok {
			code = s.codeIn(start, end)
		}
		if code == "" {
			return
		}
		s.appendToInput(code, execute)
	})
}

// appendToInput adds code on a new line at the end of the live input.
func (s *Session) appendToInput(code string, execute bool) {
	code = trimLineBreak(code)
	if s.input != "" && !endsWithLineBreak(s.input) {
		code = s.cfg.NewLine + code
	}
	tx := s.beginTx(txPaste, mergeNone)
	s.search = nil
	s.replaceInput(tx, len(s.input), len(s.input), code)
	s.commitTx(tx)
	if execute {
		s.submitLive(nil)
	}
}
