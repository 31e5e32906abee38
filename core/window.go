package core

import (
	"context"
	"io"

	"pkt.systems/replwin/schema"
)

// Window is the part of a session exposed to evaluators and meta-commands.
type Window interface {
	ID() schema.SessionID
	Write(text string)
	WriteLine(text string)
	WriteError(text string)
	WriteErrorLine(text string)
	OutputWriter() io.Writer
	ErrorWriter() io.Writer
	FlushOutput()
	ClearView()
	Reset(ctx context.Context, initialize bool) (schema.ExecutionResult, error)
	ReadStandardInput(ctx context.Context) (string, error)
	AddInput(input string) error
	// SmartUpDown reports whether Up and Down browse history at the end of input.
	SmartUpDown() bool
	// CommandPrefix is the prefix that introduces meta-commands.
	CommandPrefix() string
}

// Commands recognizes meta-commands ahead of evaluation. ok is false when
// input is not a command and should go to the evaluator.
type Commands interface {
	TryExecute(ctx context.Context, w Window, input string) (result schema.ExecutionResult, ok bool)
}

var _ Window = (*Session)(nil)
