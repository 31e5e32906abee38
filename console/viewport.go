package console

// viewportView is the visible window of a viewport.
type viewportView struct {
	Lines        []string
	First        int
	TotalLines   int
	ScrollOffset int
	AtBottom     bool
}

// viewport holds the laid out rows of the session text and the scroll state.
// scrollOffset is the number of rows hidden below the window; 0 means the
// window shows the tail.
type viewport struct {
	lines        []string
	scrollOffset int
	pinned       bool
}

// Set replaces the rows. A scrolled view keeps its distance from the top so
// new output below does not move what the user is reading.
func (v *viewport) Set(lines []string) {
	grown := len(lines) - len(v.lines)
	v.lines = lines
	if v.pinned && v.scrollOffset > 0 && grown > 0 {
		v.scrollOffset += grown
	}
}

// ResetScroll returns the view to the bottom.
func (v *viewport) ResetScroll() {
	v.scrollOffset = 0
	v.pinned = false
}

// Scroll adjusts the scroll offset by delta. Positive delta scrolls up
// (older rows), negative delta scrolls down. Limit is the window height.
func (v *viewport) Scroll(delta, limit int) {
	v.scrollOffset = clampScroll(v.scrollOffset+delta, len(v.lines), limit)
	v.pinned = v.scrollOffset > 0
}

// Reveal scrolls the least distance that brings row into the window,
// unless the user scrolled away on purpose.
func (v *viewport) Reveal(row, limit int) {
	if v.pinned || limit <= 0 {
		return
	}
	total := len(v.lines)
	end := total - v.scrollOffset
	start := end - limit
	switch {
	case row < start:
		v.scrollOffset = total - row - limit
	case row >= end:
		v.scrollOffset = total - row - 1
	}
	v.scrollOffset = clampScroll(v.scrollOffset, total, limit)
}

// Snapshot returns the window for the given height.
func (v *viewport) Snapshot(limit int) viewportView {
	total := len(v.lines)
	if limit <= 0 || limit > total {
		limit = total
	}
	v.scrollOffset = clampScroll(v.scrollOffset, total, limit)

	end := total - v.scrollOffset
	start := end - limit
	if start < 0 {
		start = 0
	}

	lines := make([]string, end-start)
	copy(lines, v.lines[start:end])

	return viewportView{
		Lines:        lines,
		First:        start,
		TotalLines:   total,
		ScrollOffset: v.scrollOffset,
		AtBottom:     v.scrollOffset == 0,
	}
}

func maxScroll(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	if total <= limit {
		return 0
	}
	return total - limit
}

func clampScroll(offset, total, limit int) int {
	max := maxScroll(total, limit)
	if offset < 0 {
		return 0
	}
	if offset > max {
		return max
	}
	return offset
}
