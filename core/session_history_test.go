package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHistoryNavigationRestoresUncommitted(t *testing.T) {
	ts := newTestSession(t, nil)
	ts.submit(t, "b", "d")
	ts.typeText(t, "f")

	steps := []struct {
		name string
		op   func() error
		want string
	}{
		{"previous", ts.HistoryPrevious, "d"},
		{"previous", ts.HistoryPrevious, "b"},
		{"next", ts.HistoryNext, "d"},
		{"next", ts.HistoryNext, "f"},
	}
	for i, step := range steps {
		if err := step.op(); err != nil {
			t.Fatalf("step %d %s: %v", i, step.name, err)
		}
		if got := ts.CurrentInput(); got != step.want {
			t.Fatalf("step %d %s: expected %q, got %q", i, step.name, step.want, got)
		}
	}
}

func TestHistorySearchUsesPrefixFromStart(t *testing.T) {
	ts := newTestSession(t, nil)
	ts.submit(t, "abc", "xyz", "abd")
	ts.typeText(t, "ab")

	steps := []struct {
		op   func() error
		want string
	}{
		{ts.HistorySearchPrevious, "abd"},
		{ts.HistorySearchPrevious, "abc"},
		{ts.HistorySearchPrevious, "abc"},
		{ts.HistorySearchNext, "abd"},
	}
	for i, step := range steps {
		if err := step.op(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got := ts.CurrentInput(); got != step.want {
			t.Fatalf("step %d: expected %q, got %q", i, step.want, got)
		}
	}
}

func TestHistoryRecallIsUndoable(t *testing.T) {
	ts := newTestSession(t, nil)
	ts.submit(t, "1")
	ts.typeText(t, "x")
	if err := ts.HistoryPrevious(); err != nil {
		t.Fatalf("previous: %v", err)
	}
	ts.expectText(t, "> 1\r\n1\r\n> 1")
	if err := ts.Undo(1); err != nil {
		t.Fatalf("undo: %v", err)
	}
	ts.expectText(t, "> 1\r\n1\r\n> x")
}

func TestSmartUpDown(t *testing.T) {
	ts := newTestSession(t, nil)
	ts.submit(t, "1")
	if err := ts.SmartUp(); err != nil {
		t.Fatalf("smart up: %v", err)
	}
	if got := ts.CurrentInput(); got != "1" {
		t.Fatalf("expected history recall, got %q", got)
	}
	if err := ts.CaretLeft(false); err != nil {
		t.Fatalf("caret left: %v", err)
	}
	if err := ts.SmartUp(); err != nil {
		t.Fatalf("smart up: %v", err)
	}
	ts.expectCaret(t, 1, 1)
	if got := ts.CurrentInput(); got != "1" {
		t.Fatalf("expected input unchanged, got %q", got)
	}
}

func TestClearHistory(t *testing.T) {
	ts := newTestSession(t, nil)
	ts.submit(t, "1")
	if err := ts.ClearHistory(); err != nil {
		t.Fatalf("clear history: %v", err)
	}
	if entries := ts.HistoryEntries(); len(entries) != 0 {
		t.Fatalf("expected empty history, got %q", entries)
	}
	ts.expectText(t, "> 1\r\n1\r\n> ")
}

func TestHistoryBufferSkipsBlankAndDuplicates(t *testing.T) {
	h := newHistory(2)
	for _, entry := range []string{"a", "", "  ", "a", "b", "c"} {
		h.Append(entry)
	}
	if diff := cmp.Diff([]string{"b", "c"}, h.Entries()); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryBufferBounds(t *testing.T) {
	h := newHistory(0)
	if _, ok := h.Previous("x"); ok {
		t.Fatalf("expected no previous entry in empty history")
	}
	if _, ok := h.Next(); ok {
		t.Fatalf("expected no next entry without navigation")
	}
	h.Append("a")
	if entry, ok := h.Previous("x"); !ok || entry != "a" {
		t.Fatalf("expected a, got %q %v", entry, ok)
	}
	if _, ok := h.Previous("x"); ok {
		t.Fatalf("expected no entry before the oldest")
	}
	if entry, ok := h.Next(); !ok || entry != "x" {
		t.Fatalf("expected uncommitted x, got %q %v", entry, ok)
	}
	if h.navigating() {
		t.Fatalf("expected navigation to end")
	}
}
