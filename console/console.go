// Package console is the terminal front end of a session: it decodes keys,
// maps them to editing operations and redraws the window after every
// change. The same loop drives the local terminal and SSH connections.
package console

import (
	"context"
	"errors"
	"io"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/replwin/core"
	"pkt.systems/replwin/internal/eventbus"
	"pkt.systems/replwin/schema"
)

// Size is a terminal size in cells.
type Size struct {
	Width  int
	Height int
}

// Console binds one session to one terminal.
type Console struct {
	session *core.Session
	screen  *screen
	events  <-chan eventbus.Event
	log     pslog.Logger
	title   string

	width  int
	height int

	view     viewport
	chord    keyKind
	last     schema.ViewSnapshot
	rendered bool
	dirty    bool
	exit     bool
}

// New constructs a console drawing to out. events may be nil; the console
// then polls the session for changes.
func New(session *core.Session, out io.Writer, events <-chan eventbus.Event, logger pslog.Logger) *Console {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Console{
		session: session,
		screen:  newScreen(out),
		events:  events,
		log:     logger,
		title:   "replwin",
		width:   80,
		height:  24,
	}
}

// SetTitle sets the text shown at the left of the status line.
func (c *Console) SetTitle(title string) {
	c.title = title
}

// SetSize records the terminal size; non-positive values keep 80x24.
func (c *Console) SetSize(width, height int) {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	c.width = width
	c.height = height
}

// Run reads keys from in until it is exhausted, the user exits or ctx ends.
func (c *Console) Run(ctx context.Context, in io.Reader, sizes <-chan Size) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.screen.EnterAltScreen()
	defer c.screen.ExitAltScreen()
	c.render()
	c.log.Info("console start", "width", c.width, "height", c.height)

	keys := make(chan key, 16)
	go readKeys(in, keys)

	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()
	events := c.events

	for {
		select {
		case <-ctx.Done():
			c.log.Info("console stop", "reason", "context done")
			return nil
		case k, ok := <-keys:
			if !ok {
				c.log.Info("console stop", "reason", "input closed")
				return nil
			}
			c.handleKey(k)
			if c.exit {
				c.log.Info("console stop", "reason", "exit")
				return nil
			}
			c.dirty = true
		case size, ok := <-sizes:
			if !ok {
				sizes = nil
				break
			}
			c.SetSize(size.Width, size.Height)
			c.dirty = true
			c.log.Debug("console resize", "width", c.width, "height", c.height)
		case ev, ok := <-events:
			if !ok {
				events = nil
				break
			}
			if ev.Type == eventbus.EventText || ev.Type == eventbus.EventState {
				c.dirty = true
			}
		case <-poll.C:
			if c.session.State() != c.last.State {
				c.dirty = true
			}
			if events == nil {
				c.dirty = true
			}
		}
		if c.dirty {
			c.render()
			c.dirty = false
		}
	}
}

// handleKey applies one key to the session. Chords started with Ctrl-K or
// Ctrl-E wait for the key that follows.
func (c *Console) handleKey(k key) {
	chord := c.chord
	c.chord = 0
	s := c.session
	var err error
	switch k.kind {
	case keyRune:
		c.view.ResetScroll()
		err = s.TypeChar(k.r)
	case keyTab:
		c.view.ResetScroll()
		err = s.InsertCode("    ")
	case keyEnter:
		c.view.ResetScroll()
		err = s.Return()
	case keyExecute:
		c.view.ResetScroll()
		switch chord {
		case keyCtrlK:
			err = s.AppendSelection(false)
		case keyCtrlE:
			err = s.AppendSelection(true)
		default:
			err = s.ExecuteInput()
		}
	case keyBreakLine:
		err = s.BreakLine()
	case keyBackspace:
		err = s.Backspace()
	case keyDelete:
		err = s.Delete()
	case keyEscape:
		err = s.Cancel()
	case keyLeft:
		err = s.CaretLeft(k.has(modShift))
	case keyRight:
		err = s.CaretRight(k.has(modShift))
	case keyUp:
		err = c.vertical(k, true)
	case keyDown:
		err = c.vertical(k, false)
	case keyHome:
		err = s.Home(k.has(modShift))
	case keyEnd:
		err = s.End(k.has(modShift))
	case keyPageUp:
		c.view.Scroll(c.viewHeight()-1, c.viewHeight())
	case keyPageDown:
		c.view.Scroll(-(c.viewHeight() - 1), c.viewHeight())
		if c.view.scrollOffset == 0 {
			c.view.ResetScroll()
		}
	case keyCtrlA:
		err = s.SelectAll()
	case keyCtrlC:
		err = c.copyOrAbort()
	case keyCtrlD:
		if s.State() == schema.StateWaitingForInput && s.CurrentInput() == "" {
			c.exit = true
			return
		}
		err = s.Delete()
	case keyCtrlE, keyCtrlK:
		c.chord = k.kind
	case keyCtrlL:
		s.ClearView()
	case keyCtrlU:
		err = s.DeleteLine()
	case keyCtrlV:
		c.view.ResetScroll()
		err = s.Paste()
	case keyCtrlX:
		if start, end := s.Selection(); start != end {
			err = s.Cut()
		} else {
			err = s.CutLine()
		}
	case keyCtrlY:
		err = s.Redo(1)
	case keyCtrlZ:
		err = s.Undo(1)
	case keyAltC:
		err = s.CopyCode()
	}
	if err == nil {
		return
	}
	if errors.Is(err, schema.ErrClosed) {
		c.exit = true
		return
	}
	c.log.Debug("console key failed", "key", int(k.kind), "err", err)
}

// vertical maps Up and Down. Alt browses history, Ctrl-Alt searches it by
// prefix, and plain keys use smart history when the session enables it.
func (c *Console) vertical(k key, up bool) error {
	s := c.session
	switch {
	case k.has(modCtrl | modAlt):
		if up {
			return s.HistorySearchPrevious()
		}
		return s.HistorySearchNext()
	case k.has(modAlt):
		if up {
			return s.HistoryPrevious()
		}
		return s.HistoryNext()
	case k.has(modShift):
		if up {
			return s.CaretUp(true)
		}
		return s.CaretDown(true)
	case s.SmartUpDown():
		if up {
			return s.SmartUp()
		}
		return s.SmartDown()
	}
	if up {
		return s.CaretUp(false)
	}
	return s.CaretDown(false)
}

// copyOrAbort copies a selection; without one it interrupts a running
// submission or cancels a pending standard input read.
func (c *Console) copyOrAbort() error {
	s := c.session
	if start, end := s.Selection(); start != end {
		return s.Copy()
	}
	if s.State() != schema.StateExecuting {
		return nil
	}
	if err := s.CancelStandardInput(); err == nil {
		return nil
	}
	return s.AbortExecution()
}

func (c *Console) viewHeight() int {
	return max(c.height-1, 1)
}

func (c *Console) render() {
	snap := c.session.View()
	f := layout(snap, c.width)
	height := c.viewHeight()
	c.view.Set(f.lines)
	if snap.Caret != c.last.Caret || snap.Text != c.last.Text || !c.rendered {
		c.view.Reveal(f.caretRow, height)
	}
	v := c.view.Snapshot(height)
	c.last = snap
	c.rendered = true

	lines := make([]string, 0, c.height)
	lines = append(lines, statusLine(c.title, snap.State, v, c.width))
	lines = append(lines, v.Lines...)
	for len(lines) < c.height {
		lines = append(lines, "")
	}
	row := f.caretRow - v.First
	visible := row >= 0 && row < len(v.Lines)
	if err := c.screen.Render(lines, row+2, f.caretCol+1, visible); err != nil {
		c.log.Warn("console render failed", "err", err)
	}
}
