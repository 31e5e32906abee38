package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/replwin/core"
	"pkt.systems/replwin/internal/clipboard"
	"pkt.systems/replwin/internal/eventbus"
	"pkt.systems/replwin/internal/jseval"
	"pkt.systems/replwin/schema"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func openSession(sink core.EventSink) (*core.Session, error) {
	s, err := core.NewSession(schema.SessionConfig{SmartUpDown: true}, core.SessionDeps{
		Evaluator: jseval.New(jseval.Config{Timeout: 5 * time.Second}, nil),
		Clipboard: clipboard.NewMemory(),
		EventSink: sink,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.Initialize(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func newSession(t *testing.T, sink core.EventSink) *core.Session {
	t.Helper()
	s, err := openSession(sink)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestConsole(t *testing.T) (*Console, *core.Session) {
	t.Helper()
	s := newSession(t, nil)
	return New(s, io.Discard, nil, nil), s
}

func typeKeys(c *Console, text string) {
	for _, r := range text {
		c.handleKey(key{kind: keyRune, r: r})
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitIdle(t *testing.T, s *core.Session, suffix string) {
	t.Helper()
	waitFor(t, "output "+suffix, func() bool {
		return s.State() == schema.StateWaitingForInput && strings.HasSuffix(s.Text(), suffix)
	})
}

func TestConsoleTypingAndReturnEvaluates(t *testing.T) {
	c, s := newTestConsole(t)
	typeKeys(c, "1+2")
	c.handleKey(key{kind: keyEnter})
	waitIdle(t, s, "> 1+2\r\n3\r\n> ")
}

func TestConsoleIncompleteInputBreaksLine(t *testing.T) {
	c, s := newTestConsole(t)
	typeKeys(c, "(1 +")
	c.handleKey(key{kind: keyEnter})
	if s.State() != schema.StateWaitingForInput {
		t.Fatalf("expected incomplete input to stay editable, got %s", s.State())
	}
	typeKeys(c, "2)")
	c.handleKey(key{kind: keyEnter})
	waitIdle(t, s, "3\r\n> ")
}

func TestConsoleExecuteKeyForcesSubmission(t *testing.T) {
	c, s := newTestConsole(t)
	typeKeys(c, "4")
	c.handleKey(key{kind: keyBreakLine})
	typeKeys(c, "*2")
	c.handleKey(key{kind: keyExecute})
	waitIdle(t, s, "8\r\n> ")
}

func TestConsoleHistoryKeys(t *testing.T) {
	c, s := newTestConsole(t)
	typeKeys(c, "40+2")
	c.handleKey(key{kind: keyEnter})
	waitIdle(t, s, "42\r\n> ")

	c.handleKey(key{kind: keyUp})
	if got := s.CurrentInput(); got != "40+2" {
		t.Fatalf("expected smart up to recall %q, got %q", "40+2", got)
	}
	c.handleKey(key{kind: keyEscape})
	c.handleKey(key{kind: keyUp, mod: modAlt})
	if got := s.CurrentInput(); got != "40+2" {
		t.Fatalf("expected alt-up to recall %q, got %q", "40+2", got)
	}
	c.handleKey(key{kind: keyDown, mod: modAlt})
	if got := s.CurrentInput(); got != "" {
		t.Fatalf("expected alt-down to restore empty input, got %q", got)
	}
}

func TestConsoleUndoRedo(t *testing.T) {
	c, s := newTestConsole(t)
	typeKeys(c, "ab")
	c.handleKey(key{kind: keyCtrlZ})
	if got := s.CurrentInput(); got != "" {
		t.Fatalf("expected undo to clear typing, got %q", got)
	}
	c.handleKey(key{kind: keyCtrlY})
	if got := s.CurrentInput(); got != "ab" {
		t.Fatalf("expected redo to restore %q, got %q", "ab", got)
	}
}

func TestConsoleCutAndPaste(t *testing.T) {
	c, s := newTestConsole(t)
	typeKeys(c, "abc")
	c.handleKey(key{kind: keyCtrlA})
	c.handleKey(key{kind: keyCtrlX})
	if got := s.CurrentInput(); got != "" {
		t.Fatalf("expected cut to empty the input, got %q", got)
	}
	c.handleKey(key{kind: keyCtrlV})
	c.handleKey(key{kind: keyCtrlV})
	if got := s.CurrentInput(); got != "abcabc" {
		t.Fatalf("expected pasted input %q, got %q", "abcabc", got)
	}
}

func TestConsoleAppendSelectionChord(t *testing.T) {
	c, s := newTestConsole(t)
	typeKeys(c, "7")
	c.handleKey(key{kind: keyEnter})
	waitIdle(t, s, "7\r\n> ")

	start := strings.Index(s.Text(), "> 7\r\n") + 2
	if err := s.Select(start, start+1); err != nil {
		t.Fatalf("select: %v", err)
	}
	c.handleKey(key{kind: keyCtrlK})
	c.handleKey(key{kind: keyExecute})
	if got := s.CurrentInput(); got != "7" {
		t.Fatalf("expected appended selection %q, got %q", "7", got)
	}
	if s.State() != schema.StateWaitingForInput {
		t.Fatalf("expected no execution, got %s", s.State())
	}
}

func TestConsoleChordClearsOnOtherKey(t *testing.T) {
	c, _ := newTestConsole(t)
	c.handleKey(key{kind: keyCtrlE})
	c.handleKey(key{kind: keyLeft})
	if c.chord != keyRune {
		t.Fatalf("expected chord to clear, got %v", c.chord)
	}
}

func TestConsoleCtrlDExitsOnlyOnEmptyInput(t *testing.T) {
	c, s := newTestConsole(t)
	typeKeys(c, "x")
	c.handleKey(key{kind: keyHome})
	c.handleKey(key{kind: keyCtrlD})
	if c.exit {
		t.Fatalf("expected ctrl-d with input to delete, not exit")
	}
	if got := s.CurrentInput(); got != "" {
		t.Fatalf("expected ctrl-d to delete forward, got %q", got)
	}
	c.handleKey(key{kind: keyCtrlD})
	if !c.exit {
		t.Fatalf("expected ctrl-d on empty input to exit")
	}
}

func TestConsoleCtrlCAbortsExecution(t *testing.T) {
	c, s := newTestConsole(t)
	typeKeys(c, "while (true) {}")
	c.handleKey(key{kind: keyEnter})
	waitFor(t, "execution", func() bool { return s.State() == schema.StateExecuting })
	c.handleKey(key{kind: keyCtrlC})
	waitIdle(t, s, "> ")
	if !strings.Contains(s.Text(), jseval.ErrInterrupted.Error()) {
		t.Fatalf("expected interruption to be reported, got %q", s.Text())
	}
}

func TestConsoleCtrlCCancelsStandardInput(t *testing.T) {
	c, s := newTestConsole(t)
	typeKeys(c, "readline()")
	c.handleKey(key{kind: keyEnter})
	waitFor(t, "standard input", func() bool {
		view := s.View()
		return len(view.Spans) > 0 && view.Spans[len(view.Spans)-1].Kind == schema.SpanStandardInput
	})
	c.handleKey(key{kind: keyCtrlC})
	waitIdle(t, s, "> ")
}

func TestConsoleClosedSessionExits(t *testing.T) {
	c, s := newTestConsole(t)
	_ = s.Close()
	c.handleKey(key{kind: keyRune, r: 'a'})
	if !c.exit {
		t.Fatalf("expected closed session to end the console")
	}
}

func TestConsoleRunRendersFromEvents(t *testing.T) {
	bus := eventbus.New(nil)
	s := newSession(t, bus)
	events, cancel := bus.Subscribe(s.ID())
	defer cancel()

	out := &lockedBuffer{}
	in, input := io.Pipe()
	c := New(s, out, events, nil)
	c.SetSize(40, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Run(context.Background(), in, nil)
	}()

	if _, err := io.WriteString(input, "6*7\r"); err != nil {
		t.Fatalf("write keys: %v", err)
	}
	waitFor(t, "rendered result", func() bool { return strings.Contains(out.String(), "42") })
	_ = input.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for console to stop")
	}
	got := out.String()
	if !strings.HasPrefix(got, "\x1b[?1049h") || !strings.HasSuffix(got, "\x1b[?1049l\x1b[?25h") {
		t.Fatalf("expected alternate screen enter and exit, got %q", got)
	}
	if !strings.Contains(got, "replwin") {
		t.Fatalf("expected status line, got %q", got)
	}
}

func TestConsoleRunStopsOnContext(t *testing.T) {
	c, _ := newTestConsole(t)
	ctx, cancel := context.WithCancel(context.Background())
	in, input := io.Pipe()
	defer input.Close()
	sizes := make(chan Size, 1)
	sizes <- Size{Width: 100, Height: 30}
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, in, sizes)
	}()
	waitFor(t, "resize", func() bool { return len(sizes) == 0 })
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for console to stop")
	}
	if c.width != 100 || c.height != 30 {
		t.Fatalf("expected size 100x30, got %dx%d", c.width, c.height)
	}
}
