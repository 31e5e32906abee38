package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pkt.systems/pslog"
	"pkt.systems/replwin/schema"
)

type fakeWindow struct {
	mu          sync.Mutex
	out         []string
	errs        []string
	cleared     int
	resets      []bool
	smartUpDown bool
	resetErr    error
}

func (w *fakeWindow) ID() schema.SessionID {
	return "s1"
}

func (w *fakeWindow) Write(text string) {
	w.mu.Lock()
	w.out = append(w.out, text)
	w.mu.Unlock()
}

func (w *fakeWindow) WriteLine(text string) {
	w.Write(text + "\n")
}

func (w *fakeWindow) WriteError(text string) {
	w.mu.Lock()
	w.errs = append(w.errs, text)
	w.mu.Unlock()
}

func (w *fakeWindow) WriteErrorLine(text string) {
	w.WriteError(text + "\n")
}

func (w *fakeWindow) OutputWriter() io.Writer {
	return io.Discard
}

func (w *fakeWindow) ErrorWriter() io.Writer {
	return io.Discard
}

func (w *fakeWindow) FlushOutput() {}

func (w *fakeWindow) ClearView() {
	w.cleared++
}

func (w *fakeWindow) Reset(_ context.Context, initialize bool) (schema.ExecutionResult, error) {
	w.resets = append(w.resets, initialize)
	if w.resetErr != nil {
		return schema.Failed(), w.resetErr
	}
	return schema.Succeeded(), nil
}

func (w *fakeWindow) ReadStandardInput(context.Context) (string, error) {
	return "", nil
}

func (w *fakeWindow) AddInput(string) error {
	return nil
}

func (w *fakeWindow) SmartUpDown() bool {
	return w.smartUpDown
}

func (w *fakeWindow) CommandPrefix() string {
	return "#"
}

func (w *fakeWindow) output() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.Join(w.out, "")
}

func (w *fakeWindow) errOutput() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.Join(w.errs, "")
}

type funcCommand struct {
	info Info
	fn   func(ctx context.Context, env Env, args string) (schema.ExecutionResult, error)
}

func (c funcCommand) Info() Info {
	return c.info
}

func (c funcCommand) Execute(ctx context.Context, env Env, args string) (schema.ExecutionResult, error) {
	if c.fn == nil {
		return schema.Succeeded(), nil
	}
	return c.fn(ctx, env, args)
}

func fakeCommand(names ...string) funcCommand {
	return funcCommand{info: Info{Names: names, Description: "Description of " + names[0] + " command."}}
}

func mustTable(t *testing.T, prefix string, commands ...Command) *Table {
	t.Helper()
	table, err := NewTable(prefix, commands...)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	return table
}

func TestNewTableRejectsDuplicateNames(t *testing.T) {
	_, err := NewTable("#", fakeCommand("a", "b"), fakeCommand("c", "b"))
	if !errors.Is(err, schema.ErrDuplicateCommand) {
		t.Fatalf("expected ErrDuplicateCommand, got %v", err)
	}
	if !strings.Contains(err.Error(), "c, b") {
		t.Fatalf("expected names in error, got %v", err)
	}
}

func TestNewTableRejectsMissingNames(t *testing.T) {
	_, err := NewTable("#", funcCommand{})
	if !errors.Is(err, schema.ErrMissingCommandName) {
		t.Fatalf("expected ErrMissingCommandName, got %v", err)
	}
}

func TestDefaultTableNames(t *testing.T) {
	table, err := NewDefaultTable("#")
	if err != nil {
		t.Fatalf("default table: %v", err)
	}
	for _, name := range []string{"cls", "clear", "help", "reset"} {
		if _, ok := table.Lookup(name); !ok {
			t.Fatalf("expected %s command", name)
		}
	}
	cls, _ := table.Lookup("cls")
	clear, _ := table.Lookup("clear")
	if cls != clear {
		t.Fatalf("expected cls and clear to share a command")
	}
	if len(table.Commands()) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(table.Commands()))
	}
}

func TestHelpLinesAlign(t *testing.T) {
	table := mustTable(t, "&", fakeCommand("foo"))
	want := []string{"&foo                 Description of foo command."}
	if diff := cmp.Diff(want, table.HelpLines()); diff != "" {
		t.Fatalf("help lines mismatch (-want +got):\n%s", diff)
	}
}

func TestHelpLinesSortedAndGrouped(t *testing.T) {
	table := mustTable(t, "#", fakeCommand("zeta"), fakeCommand("alpha", "a-very-long-alias-name"))
	lines := table.HelpLines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", lines)
	}
	if !strings.HasPrefix(lines[0], "#alpha, #a-very-long-alias-name  Description of alpha") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "#zeta                            Description of zeta") {
		t.Fatalf("unexpected second line %q", lines[1])
	}
}

func TestShortcutLinesSmartUpDown(t *testing.T) {
	plain := ShortcutLines(false)
	smart := ShortcutLines(true)
	if len(smart) != len(plain)+4 {
		t.Fatalf("expected 4 extra lines, got %d vs %d", len(smart), len(plain))
	}
	if plain[0] != "  Enter                If the current submission appears to be complete, evaluate it. Otherwise, insert a new line." {
		t.Fatalf("unexpected first line %q", plain[0])
	}
	if !strings.HasPrefix(plain[2], "                       Within a previous submission") {
		t.Fatalf("expected continuation line, got %q", plain[2])
	}
	if !strings.HasPrefix(smart[len(plain)], "  UpArrow   ") {
		t.Fatalf("expected UpArrow line, got %q", smart[len(plain)])
	}
}

func TestTryExecuteUnknownFallsThrough(t *testing.T) {
	table := mustTable(t, "#", Builtins()...)
	w := &fakeWindow{}
	for _, input := range []string{"1 + 2", "#nope", "#"} {
		if _, ok := table.TryExecute(context.Background(), w, input); ok {
			t.Fatalf("%q: expected no command", input)
		}
	}
}

func TestTryExecuteReportsErrorsAndPanics(t *testing.T) {
	table := mustTable(t, "#",
		funcCommand{info: Info{Names: []string{"boom"}}, fn: func(context.Context, Env, string) (schema.ExecutionResult, error) {
			return schema.Succeeded(), errors.New("bad input")
		}},
		funcCommand{info: Info{Names: []string{"panic"}}, fn: func(context.Context, Env, string) (schema.ExecutionResult, error) {
			panic("kaboom")
		}},
	)
	w := &fakeWindow{}
	result, ok := table.TryExecute(context.Background(), w, "#boom")
	if !ok || result.Success {
		t.Fatalf("expected handled failure, got ok=%v success=%v", ok, result.Success)
	}
	result, ok = table.TryExecute(context.Background(), w, " #panic now")
	if !ok || result.Success {
		t.Fatalf("expected handled failure, got ok=%v success=%v", ok, result.Success)
	}
	want := "Command 'boom' failed: bad input\nCommand 'panic' failed: kaboom\n"
	if got := w.errOutput(); got != want {
		t.Fatalf("expected errors %q, got %q", want, got)
	}
}

func TestTryExecutePassesTrimmedArgs(t *testing.T) {
	var got string
	table := mustTable(t, "#", funcCommand{info: Info{Names: []string{"echo"}}, fn: func(_ context.Context, _ Env, args string) (schema.ExecutionResult, error) {
		got = args
		return schema.Succeeded(), nil
	}})
	if _, ok := table.TryExecute(context.Background(), &fakeWindow{}, "  #echo   a  b \r\n"); !ok {
		t.Fatalf("expected command")
	}
	if got != "a  b" {
		t.Fatalf("expected trimmed args, got %q", got)
	}
}

func TestClearScreenCommand(t *testing.T) {
	table := mustTable(t, "#", Builtins()...)
	w := &fakeWindow{}
	for _, input := range []string{"#cls", "#clear"} {
		result, ok := table.TryExecute(context.Background(), w, input)
		if !ok || !result.Success {
			t.Fatalf("%q: expected success", input)
		}
	}
	if w.cleared != 2 {
		t.Fatalf("expected 2 clears, got %d", w.cleared)
	}
}

func TestHelpCommandListsEverything(t *testing.T) {
	table := mustTable(t, "#", Builtins()...)
	w := &fakeWindow{smartUpDown: true}
	if result, ok := table.TryExecute(context.Background(), w, "#help"); !ok || !result.Success {
		t.Fatalf("expected help to succeed")
	}
	out := w.output()
	for _, want := range []string{"Keyboard shortcuts:\n", "  UpArrow", "REPL commands:\n", "  #cls, #clear", "  #help", "  #reset"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in help output:\n%s", want, out)
		}
	}
}

func TestHelpCommandForCommand(t *testing.T) {
	table := mustTable(t, "#", Builtins()...)
	for _, input := range []string{"#help reset", "#help #reset extra"} {
		w := &fakeWindow{}
		if result, ok := table.TryExecute(context.Background(), w, input); !ok || !result.Success {
			t.Fatalf("%q: expected success", input)
		}
		want := strings.Join([]string{
			"Reset the execution environment to the initial state, keep history.",
			"",
			"Usage:",
			"  #reset [noconfig]",
			"",
			"Parameters:",
			"  noconfig  Reset to an empty environment without running the startup script.",
			"",
		}, "\n")
		if got := w.output(); got != want {
			t.Fatalf("%q: expected %q, got %q", input, want, got)
		}
	}
}

func TestHelpCommandUnknownTarget(t *testing.T) {
	table := mustTable(t, "#", Builtins()...)
	w := &fakeWindow{}
	result, ok := table.TryExecute(context.Background(), w, "#help nope")
	if !ok || result.Success {
		t.Fatalf("expected handled failure")
	}
	want := "Unknown command 'nope'\nUsage:\n  #help [command]\n"
	if got := w.errOutput(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestResetCommand(t *testing.T) {
	table := mustTable(t, "#", Builtins()...)
	w := &fakeWindow{}
	for _, input := range []string{"#reset", "#reset noconfig"} {
		if result, ok := table.TryExecute(context.Background(), w, input); !ok || !result.Success {
			t.Fatalf("%q: expected success", input)
		}
	}
	if diff := cmp.Diff([]bool{true, false}, w.resets); diff != "" {
		t.Fatalf("resets mismatch (-want +got):\n%s", diff)
	}
	if got := w.output(); got != "Resetting execution engine.\nResetting execution engine.\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestResetCommandInvalidArguments(t *testing.T) {
	table := mustTable(t, "#", Builtins()...)
	w := &fakeWindow{}
	result, ok := table.TryExecute(context.Background(), w, "#reset now")
	if !ok || result.Success {
		t.Fatalf("expected handled failure")
	}
	if len(w.resets) != 0 {
		t.Fatalf("expected no reset")
	}
	if got := w.errOutput(); got != "Usage:\n  #reset [noconfig]\n" {
		t.Fatalf("unexpected usage %q", got)
	}
}

func TestResetCommandError(t *testing.T) {
	table := mustTable(t, "#", Builtins()...)
	w := &fakeWindow{resetErr: errors.New("engine gone")}
	result, ok := table.TryExecute(context.Background(), w, "#reset")
	if !ok || result.Success {
		t.Fatalf("expected handled failure")
	}
	if got := w.errOutput(); got != "Command 'reset' failed: engine gone\n" {
		t.Fatalf("unexpected error output %q", got)
	}
}

func TestTryExecuteLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := pslog.NewWithOptions(&buf, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		VerboseFields: true,
		MinLevel:      pslog.DebugLevel,
	})
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	table := mustTable(t, "#", funcCommand{info: Info{Names: []string{"boom"}}, fn: func(context.Context, Env, string) (schema.ExecutionResult, error) {
		return schema.Failed(), errors.New("bad")
	}})
	table.TryExecute(ctx, &fakeWindow{}, "#boom")

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		msg, _ := entry["msg"].(string)
		if msg == "" {
			msg, _ = entry["message"].(string)
		}
		if msg == "command failed" && entry["command"] == "boom" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected command failed log entry, got %s", buf.String())
	}
}
