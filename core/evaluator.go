package core

import (
	"context"

	"pkt.systems/replwin/schema"
)

// Evaluator runs the language behind a session.
//
// Initialize, Reset and ExecuteCode run off the session loop and may block.
// CanExecuteCode, Prompt and FormatClipboard are called on the loop and must
// not call back into the session.
type Evaluator interface {
	// Initialize prepares the evaluator and binds it to the session window.
	Initialize(ctx context.Context, w Window) (schema.ExecutionResult, error)
	// Reset restores the initial execution state. initialize requests that
	// startup configuration runs again.
	Reset(ctx context.Context, initialize bool) (schema.ExecutionResult, error)
	// CanExecuteCode reports whether text is a complete submission.
	CanExecuteCode(text string) bool
	// ExecuteCode evaluates text, which carries no trailing line break.
	// ctx is cancelled when the submission is aborted.
	ExecuteCode(ctx context.Context, text string) (schema.ExecutionResult, error)
	// AbortExecution interrupts a running ExecuteCode.
	AbortExecution()
	// FormatClipboard returns clipboard content formatted for pasting, if
	// the evaluator understands it.
	FormatClipboard() (string, bool)
	// Prompt is the prompt shown ahead of each input line.
	Prompt() string
	// Configuration describes the startup configuration, if any.
	Configuration() string
	Close() error
}
