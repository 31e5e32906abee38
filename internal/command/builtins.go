package command

import (
	"context"
	"strings"
	"unicode"

	"pkt.systems/replwin/schema"
)

const noConfigArg = "noconfig"

// Builtins returns the commands every console offers: cls/clear, help and
// reset.
func Builtins() []Command {
	return []Command{clearScreen{}, help{}, reset{}}
}

type clearScreen struct{}

func (clearScreen) Info() Info {
	return Info{
		Names:       []string{"cls", "clear"},
		Description: "Clears the contents of the REPL window, leaving history and execution context intact.",
	}
}

func (clearScreen) Execute(_ context.Context, env Env, _ string) (schema.ExecutionResult, error) {
	env.Window.ClearView()
	return schema.Succeeded(), nil
}

type help struct{}

func (help) Info() Info {
	return Info{
		Names:       []string{"help"},
		Description: "Display help on specified command, or all available commands and key bindings if none specified.",
		CommandLine: "[command]",
		Parameters: []Parameter{
			{Name: "command", Description: "Command to display help on."},
		},
	}
}

func (h help) Execute(_ context.Context, env Env, args string) (schema.ExecutionResult, error) {
	name := args
	if i := strings.IndexFunc(args, unicode.IsSpace); i >= 0 {
		name = args[:i]
	}
	if name == "" {
		env.Table.DisplayHelp(env.Window)
		return schema.Succeeded(), nil
	}
	cmd, ok := env.Table.Lookup(name)
	if !ok && strings.HasPrefix(name, env.Table.Prefix()) {
		name = strings.TrimPrefix(name, env.Table.Prefix())
		cmd, ok = env.Table.Lookup(name)
	}
	if !ok {
		env.Window.WriteErrorLine("Unknown command '" + name + "'")
		env.Table.ReportInvalidArguments(env.Window, h)
		return schema.Failed(), nil
	}
	env.Table.DisplayCommandHelp(env.Window, cmd)
	return schema.Succeeded(), nil
}

type reset struct{}

func (reset) Info() Info {
	return Info{
		Names:       []string{"reset"},
		Description: "Reset the execution environment to the initial state, keep history.",
		CommandLine: "[" + noConfigArg + "]",
		Parameters: []Parameter{
			{Name: noConfigArg, Description: "Reset to an empty environment without running the startup script."},
		},
	}
}

func (r reset) Execute(ctx context.Context, env Env, args string) (schema.ExecutionResult, error) {
	initialize, ok := TryParseResetArguments(args)
	if !ok {
		env.Table.ReportInvalidArguments(env.Window, r)
		return schema.Failed(), nil
	}
	env.Window.WriteLine("Resetting execution engine.")
	return env.Window.Reset(ctx, initialize)
}
