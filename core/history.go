package core

import "strings"

const defaultHistoryMax = 200

// historyBuffer is a bounded ring of past submissions with a navigation
// cursor. While navigating, the input typed before the first step is held
// in uncommitted and restored when stepping past the newest entry.
type historyBuffer struct {
	entries     []string
	max         int
	pos         int
	uncommitted string
}

func newHistory(max int) *historyBuffer {
	if max <= 0 {
		max = defaultHistoryMax
	}
	return &historyBuffer{max: max, pos: -1}
}

func newHistoryFromPersisted(max int, entries []string) *historyBuffer {
	h := newHistory(max)
	for _, entry := range entries {
		h.Append(entry)
	}
	return h
}

// Append records entry. Blank entries and repeats of the newest entry are
// skipped. Navigation ends either way.
func (h *historyBuffer) Append(entry string) bool {
	if h == nil {
		return false
	}
	h.endNavigation()
	if strings.TrimSpace(entry) == "" {
		return false
	}
	if len(h.entries) > 0 && h.entries[len(h.entries)-1] == entry {
		return false
	}
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
	return true
}

func (h *historyBuffer) Entries() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.entries...)
}

func (h *historyBuffer) Clear() {
	h.entries = nil
	h.endNavigation()
}

func (h *historyBuffer) navigating() bool {
	return h.pos >= 0
}

func (h *historyBuffer) endNavigation() {
	h.pos = -1
	h.uncommitted = ""
}

// Previous steps to the next older entry. current is remembered on the
// first step.
func (h *historyBuffer) Previous(current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.pos < 0:
		h.uncommitted = current
		h.pos = len(h.entries) - 1
	case h.pos == 0:
		return "", false
	default:
		h.pos--
	}
	return h.entries[h.pos], true
}

// Next steps to the next newer entry, returning the remembered input when
// leaving the newest one.
func (h *historyBuffer) Next() (string, bool) {
	if h.pos < 0 {
		return "", false
	}
	if h.pos >= len(h.entries)-1 {
		text := h.uncommitted
		h.endNavigation()
		return text, true
	}
	h.pos++
	return h.entries[h.pos], true
}

// SearchPrevious finds the next older entry starting with prefix. The
// position is unchanged when nothing matches.
func (h *historyBuffer) SearchPrevious(current, prefix string) (string, bool) {
	start := h.pos - 1
	if h.pos < 0 {
		start = len(h.entries) - 1
	}
	for i := start; i >= 0; i-- {
		if !strings.HasPrefix(h.entries[i], prefix) {
			continue
		}
		if h.pos < 0 {
			h.uncommitted = current
		}
		h.pos = i
		return h.entries[i], true
	}
	return "", false
}

// SearchNext finds the next newer entry starting with prefix. The position
// is unchanged when nothing matches.
func (h *historyBuffer) SearchNext(prefix string) (string, bool) {
	if h.pos < 0 {
		return "", false
	}
	for i := h.pos + 1; i < len(h.entries); i++ {
		if strings.HasPrefix(h.entries[i], prefix) {
			h.pos = i
			return h.entries[i], true
		}
	}
	return "", false
}
