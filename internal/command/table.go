package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/replwin/core"
	"pkt.systems/replwin/internal/logx"
	"pkt.systems/replwin/schema"
)

const (
	nameSeparator = ", "
	helpIndent    = "  "
	// minNameColumn keeps command descriptions aligned with the shortcut list.
	minNameColumn = 19
)

// Parameter documents one command argument.
type Parameter struct {
	Name        string
	Description string
}

// Info describes a command for lookup and help output.
type Info struct {
	Names       []string
	Description string
	CommandLine string
	Parameters  []Parameter
	Details     []string
}

// Env is what a running command sees.
type Env struct {
	Window core.Window
	Table  *Table
}

// Command is a meta-command recognized ahead of evaluation.
type Command interface {
	Info() Info
	Execute(ctx context.Context, env Env, args string) (schema.ExecutionResult, error)
}

// Table resolves and runs meta-commands.
type Table struct {
	prefix   string
	commands []Command
	byName   map[string]Command
	nameCol  int
}

var _ core.Commands = (*Table)(nil)

// NewTable builds a table. Every command needs at least one name and names
// must be unique across commands.
func NewTable(prefix string, commands ...Command) (*Table, error) {
	t := &Table{
		prefix: prefix,
		byName: make(map[string]Command),
	}
	for _, cmd := range commands {
		info := cmd.Info()
		if len(info.Names) == 0 {
			return nil, fmt.Errorf("%w: %T", schema.ErrMissingCommandName, cmd)
		}
		width := 0
		for i, name := range info.Names {
			if name == "" {
				return nil, fmt.Errorf("%w: %T", schema.ErrMissingCommandName, cmd)
			}
			if _, ok := t.byName[name]; ok {
				return nil, fmt.Errorf("%w: %s", schema.ErrDuplicateCommand, strings.Join(info.Names, nameSeparator))
			}
			if i > 0 {
				width += len(nameSeparator)
			}
			width += len(prefix) + len(name)
			t.byName[name] = cmd
		}
		t.nameCol = max(t.nameCol, width)
		t.commands = append(t.commands, cmd)
	}
	t.nameCol = max(t.nameCol, minNameColumn)
	return t, nil
}

// NewDefaultTable builds a table with the built-in commands plus extra.
func NewDefaultTable(prefix string, extra ...Command) (*Table, error) {
	return NewTable(prefix, append(Builtins(), extra...)...)
}

// Prefix returns the command prefix.
func (t *Table) Prefix() string {
	return t.prefix
}

// Commands returns the registered commands in registration order.
func (t *Table) Commands() []Command {
	return append([]Command(nil), t.commands...)
}

// Lookup finds a command by name.
func (t *Table) Lookup(name string) (Command, bool) {
	cmd, ok := t.byName[name]
	return cmd, ok
}

// TryParseCommand parses r and resolves the name. A recognizable command
// line with an unknown name returns the parsed ranges and a nil Command.
func (t *Table) TryParseCommand(text string, r Range) (Parsed, Command) {
	parsed := TryParse(text, r, t.prefix)
	if !parsed.Ok {
		return parsed, nil
	}
	cmd, ok := t.byName[parsed.Name.Text(text)]
	if !ok {
		return parsed, nil
	}
	return parsed, cmd
}

// IsCommand reports whether text invokes a known command.
func (t *Table) IsCommand(text string) bool {
	_, cmd := t.TryParseCommand(text, Range{End: len(text)})
	return cmd != nil
}

// TryExecute runs input when it invokes a known command. Command errors
// and panics are reported on the error output and yield a failed result.
func (t *Table) TryExecute(ctx context.Context, w core.Window, input string) (schema.ExecutionResult, bool) {
	parsed, cmd := t.TryParseCommand(input, Range{End: len(input)})
	if cmd == nil {
		return schema.ExecutionResult{}, false
	}
	name := cmd.Info().Names[0]
	log := logx.WithCommand(pslog.Ctx(ctx), name)
	log.Debug("command start", "args", parsed.Args.Len())
	result, err := t.run(ctx, cmd, Env{Window: w, Table: t}, parsed.Args.Text(input))
	if err != nil {
		log.Warn("command failed", "err", err)
		w.WriteErrorLine(fmt.Sprintf("Command '%s' failed: %s", name, err))
		return schema.Failed(), true
	}
	log.Debug("command done", "success", result.Success)
	return result, true
}

func (t *Table) run(ctx context.Context, cmd Command, env Env, args string) (result schema.ExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return cmd.Execute(ctx, env, args)
}

// HelpLines returns one aligned, sorted line per command.
func (t *Table) HelpLines() []string {
	lines := make([]string, 0, len(t.commands))
	for _, cmd := range t.commands {
		info := cmd.Info()
		lines = append(lines, fmt.Sprintf("%-*s  %s", t.nameCol, t.joinNames(info.Names), info.Description))
	}
	sort.Strings(lines)
	return lines
}

func (t *Table) joinNames(names []string) string {
	prefixed := make([]string, len(names))
	for i, name := range names {
		prefixed[i] = t.prefix + name
	}
	return strings.Join(prefixed, nameSeparator)
}

// DisplayHelp writes the key bindings and the command list.
func (t *Table) DisplayHelp(w core.Window) {
	w.WriteLine("Keyboard shortcuts:")
	for _, line := range ShortcutLines(w.SmartUpDown()) {
		w.WriteLine(line)
	}
	w.WriteLine("REPL commands:")
	for _, line := range t.HelpLines() {
		w.WriteLine(helpIndent + line)
	}
}

// UsageLines renders the usage of cmd. With details the description,
// parameters and details are included.
func (t *Table) UsageLines(cmd Command, details bool) []string {
	info := cmd.Info()
	var lines []string
	if details {
		lines = append(lines, info.Description, "")
	}
	usage := helpIndent + t.joinNames(info.Names)
	if info.CommandLine != "" {
		usage += " " + info.CommandLine
	}
	lines = append(lines, "Usage:", usage)
	if !details {
		return lines
	}
	if len(info.Parameters) > 0 {
		width := 0
		for _, p := range info.Parameters {
			width = max(width, len(p.Name))
		}
		lines = append(lines, "", "Parameters:")
		for _, p := range info.Parameters {
			lines = append(lines, fmt.Sprintf("%s%-*s  %s", helpIndent, width, p.Name, p.Description))
		}
	}
	if len(info.Details) > 0 {
		lines = append(lines, "")
		lines = append(lines, info.Details...)
	}
	return lines
}

// DisplayCommandHelp writes the detailed usage of cmd to the output.
func (t *Table) DisplayCommandHelp(w core.Window, cmd Command) {
	for _, line := range t.UsageLines(cmd, true) {
		w.WriteLine(line)
	}
}

// ReportInvalidArguments writes the short usage of cmd to the error output.
func (t *Table) ReportInvalidArguments(w core.Window, cmd Command) {
	for _, line := range t.UsageLines(cmd, false) {
		w.WriteErrorLine(line)
	}
}

type shortcut struct {
	keys  string
	lines []string
}

var shortcuts = []shortcut{
	{"Enter", []string{"If the current submission appears to be complete, evaluate it. Otherwise, insert a new line."}},
	{"Ctrl-Enter", []string{"Within the current submission, evaluate the current submission.", "Within a previous submission, append the previous submission to the current submission."}},
	{"Shift-Enter", []string{"Insert a new line."}},
	{"Escape", []string{"Clear the current submission."}},
	{"Alt-UpArrow", []string{"Replace the current submission with a previous submission."}},
	{"Alt-DownArrow", []string{"Replace the current submission with a subsequent submission (after having previously navigated backwards)."}},
	{"Ctrl-Alt-UpArrow", []string{"Replace the current submission with a previous submission beginning with the same text."}},
	{"Ctrl-Alt-DownArrow", []string{"Replace the current submission with a subsequent submission beginning with the same text (after having previously navigated backwards)."}},
	{"Ctrl-K, Ctrl-Enter", []string{"Paste the selection at the end of interactive buffer, leave caret at the end of input."}},
	{"Ctrl-E, Ctrl-Enter", []string{"Paste and execute the selection before any pending input in the interactive buffer."}},
	{"Ctrl-A", []string{"First press, select the submission containing the cursor. Second press, select all text in the window."}},
}

var smartUpDownShortcuts = []shortcut{
	{"UpArrow", []string{"At the end of the current submission, replace the current submission with a previous submission.", "Elsewhere, move the cursor up one line."}},
	{"DownArrow", []string{"At the end of the current submission, replace the current submission with a subsequent submission (after having previously navigated backwards).", "Elsewhere, move the cursor down one line."}},
}

// ShortcutLines lists the key bindings, one indented line per description
// line. The smart Up and Down bindings are listed when enabled.
func ShortcutLines(smartUpDown bool) []string {
	var lines []string
	add := func(list []shortcut) {
		for _, s := range list {
			for i, text := range s.lines {
				keys := ""
				if i == 0 {
					keys = s.keys
				}
				lines = append(lines, fmt.Sprintf("%s%-*s  %s", helpIndent, minNameColumn, keys, text))
			}
		}
	}
	add(shortcuts)
	if smartUpDown {
		add(smartUpDownShortcuts)
	}
	return lines
}
