package console

import (
	"strconv"
	"testing"
)

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = strconv.Itoa(i)
	}
	return lines
}

func TestViewportSnapshotShowsTail(t *testing.T) {
	var v viewport
	v.Set(numberedLines(10))
	snap := v.Snapshot(4)
	if snap.First != 6 || len(snap.Lines) != 4 || !snap.AtBottom {
		t.Fatalf("expected tail window from 6, got %+v", snap)
	}
	if snap.Lines[3] != "9" {
		t.Fatalf("expected last line 9, got %q", snap.Lines[3])
	}
}

func TestViewportScrollClamps(t *testing.T) {
	var v viewport
	v.Set(numberedLines(10))
	v.Scroll(2, 4)
	if snap := v.Snapshot(4); snap.First != 4 || snap.AtBottom {
		t.Fatalf("expected window from 4, got %+v", snap)
	}
	v.Scroll(100, 4)
	if snap := v.Snapshot(4); snap.First != 0 || snap.ScrollOffset != 6 {
		t.Fatalf("expected window from 0, got %+v", snap)
	}
	v.Scroll(-100, 4)
	if snap := v.Snapshot(4); !snap.AtBottom {
		t.Fatalf("expected bottom, got %+v", snap)
	}
}

func TestViewportRevealFollowsRow(t *testing.T) {
	var v viewport
	v.Set(numberedLines(10))
	v.Reveal(1, 4)
	if snap := v.Snapshot(4); snap.First != 1 {
		t.Fatalf("expected window from 1, got %+v", snap)
	}
	v.Reveal(9, 4)
	if snap := v.Snapshot(4); snap.First != 6 {
		t.Fatalf("expected window from 6, got %+v", snap)
	}
}

func TestViewportPinnedScrollHoldsPosition(t *testing.T) {
	var v viewport
	v.Set(numberedLines(10))
	v.Scroll(2, 4)
	v.Set(numberedLines(12))
	v.Reveal(11, 4)
	snap := v.Snapshot(4)
	if snap.First != 4 {
		t.Fatalf("expected pinned window from 4, got %+v", snap)
	}
	v.ResetScroll()
	if snap := v.Snapshot(4); snap.First != 8 {
		t.Fatalf("expected window from 8 after reset, got %+v", snap)
	}
}

func TestViewportShortContent(t *testing.T) {
	var v viewport
	v.Set(numberedLines(2))
	snap := v.Snapshot(5)
	if snap.First != 0 || len(snap.Lines) != 2 || !snap.AtBottom {
		t.Fatalf("expected whole content, got %+v", snap)
	}
}
