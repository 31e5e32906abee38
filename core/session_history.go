package core

import "pkt.systems/replwin/schema"

// HistoryPrevious replaces the input with the previous history entry.
func (s *Session) HistoryPrevious() error {
	return s.do(func() {
		if !s.canNavigateHistory() {
			return
		}
		s.search = nil
		if entry, ok := s.history.Previous(s.input); ok {
			s.recallHistory(entry)
		}
	})
}

// HistoryNext replaces the input with the next history entry, or with the
// input typed before navigation started.
func (s *Session) HistoryNext() error {
	return s.do(func() {
		if !s.canNavigateHistory() {
			return
		}
		s.search = nil
		if entry, ok := s.history.Next(); ok {
			s.recallHistory(entry)
		}
	})
}

// HistorySearchPrevious recalls the previous entry starting with the text
// that was typed when the search began.
func (s *Session) HistorySearchPrevious() error {
	return s.do(func() {
		if !s.canNavigateHistory() {
			return
		}
		prefix := s.searchPrefix()
		if entry, ok := s.history.SearchPrevious(s.input, prefix); ok {
			s.recallHistory(entry)
		}
	})
}

// HistorySearchNext recalls the next entry starting with the search prefix.
func (s *Session) HistorySearchNext() error {
	return s.do(func() {
		if !s.canNavigateHistory() {
			return
		}
		prefix := s.searchPrefix()
		if entry, ok := s.history.SearchNext(prefix); ok {
			s.recallHistory(entry)
		}
	})
}

// SmartUp recalls history when the caret is at the end of the input and
// moves the caret up a line otherwise.
func (s *Session) SmartUp() error {
	return s.do(func() {
		if s.smartHistory() {
			s.search = nil
			if entry, ok := s.history.Previous(s.input); ok {
				s.recallHistory(entry)
			}
			return
		}
		s.caretVertical(-1, false)
	})
}

// SmartDown is the downward counterpart of SmartUp.
func (s *Session) SmartDown() error {
	return s.do(func() {
		if s.smartHistory() {
			s.search = nil
			if entry, ok := s.history.Next(); ok {
				s.recallHistory(entry)
			}
			return
		}
		s.caretVertical(1, false)
	})
}

func (s *Session) smartHistory() bool {
	if !s.cfg.SmartUpDown || !s.canNavigateHistory() || s.hasSelection() {
		return false
	}
	pos, ok := s.spans.toInput(s.caret)
	return ok && pos == len(s.input)
}

func (s *Session) canNavigateHistory() bool {
	return s.liveKind() == schema.SpanInput && s.canEdit()
}

func (s *Session) searchPrefix() string {
	if s.search == nil {
		prefix := s.input
		s.search = &prefix
	}
	return *s.search
}

// recallHistory swaps the input for entry as one undoable step.
func (s *Session) recallHistory(entry string) {
	tx := s.beginTx(txHistory, mergeNone)
	s.replaceInput(tx, 0, len(s.input), entry)
	s.commitTx(tx)
}
