package schema

import "fmt"

// SessionID identifies an interactive session.
type SessionID string

// SpanKind classifies a run of text in the composed session view.
type SpanKind int

const (
	// SpanPrompt is a primary or secondary prompt.
	SpanPrompt SpanKind = 0
	// SpanOutput is evaluator or command output.
	SpanOutput SpanKind = 1
	// SpanInput is code typed after a prompt.
	SpanInput SpanKind = 2
	// SpanStandardInput is text typed in answer to a standard input read.
	SpanStandardInput SpanKind = 3
	// SpanLineBreak is a line break inserted after output that lacks one.
	SpanLineBreak SpanKind = 4
)

// String returns the kind name.
func (k SpanKind) String() string {
	switch k {
	case SpanPrompt:
		return "prompt"
	case SpanOutput:
		return "output"
	case SpanInput:
		return "input"
	case SpanStandardInput:
		return "stdin"
	case SpanLineBreak:
		return "linebreak"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether the kind is one of the known span kinds.
func (k SpanKind) Valid() bool {
	return k >= SpanPrompt && k <= SpanLineBreak
}

// ReadOnly reports whether spans of this kind are never editable.
func (k SpanKind) ReadOnly() bool {
	return k == SpanPrompt || k == SpanOutput || k == SpanLineBreak
}

// Span is a classified, contiguous run of text in the session view.
type Span struct {
	Kind  SpanKind
	Text  string
	Start int
	// Error marks output written to the error stream.
	Error bool
}

// Len returns the length of the span in bytes.
func (s Span) Len() int {
	return len(s.Text)
}

// End returns the offset just past the span.
func (s Span) End() int {
	return s.Start + len(s.Text)
}

// Contains reports whether offset lies inside the span, bounds included.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset <= s.End()
}

// Block is the persisted form of a span.
type Block struct {
	Kind    SpanKind `json:"kind"`
	Content string   `json:"content"`
	Error   bool     `json:"error,omitempty"`
}

// State is the session state machine position.
type State int

const (
	// StateStarting is the state of a session that has not been initialized.
	StateStarting State = iota
	// StateInitializing is entered exactly once, while the evaluator initializes.
	StateInitializing
	// StateWaitingForInput means a live prompt accepts typing.
	StateWaitingForInput
	// StateExecuting means a submission is being evaluated.
	StateExecuting
	// StateResetting means the evaluator is being reset.
	StateResetting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateInitializing:
		return "initializing"
	case StateWaitingForInput:
		return "waiting_for_input"
	case StateExecuting:
		return "executing"
	case StateResetting:
		return "resetting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ExecutionResult is the terminal outcome of an evaluation or command.
type ExecutionResult struct {
	Success bool
}

// Succeeded returns a successful result.
func Succeeded() ExecutionResult {
	return ExecutionResult{Success: true}
}

// Failed returns a failed result.
func Failed() ExecutionResult {
	return ExecutionResult{Success: false}
}

// ViewSnapshot is a consistent copy of what a front end draws: the spans,
// the caret and the selection, taken in one step.
type ViewSnapshot struct {
	Spans          []Span
	Text           string
	Caret          int
	SelectionStart int
	SelectionEnd   int
	State          State
}
