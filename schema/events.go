package schema

// StateEvent reports a session state transition.
type StateEvent struct {
	SessionID SessionID
	From      State
	To        State
}

// TextEvent reports that the composed text of a session changed.
type TextEvent struct {
	SessionID SessionID
	// Length is the length of the composed text after the change.
	Length int
}

// OutputStream identifies where output was written.
type OutputStream int

const (
	// StreamOutput is regular output.
	StreamOutput OutputStream = iota
	// StreamError is error output.
	StreamError
)

func (s OutputStream) String() string {
	if s == StreamError {
		return "error"
	}
	return "output"
}

// OutputEvent reports output placed in the view.
type OutputEvent struct {
	SessionID SessionID
	Stream    OutputStream
	Text      string
}

// SubmissionEvent reports a submission entering or leaving evaluation.
type SubmissionEvent struct {
	SessionID SessionID
	Input     string
	// Command is set when the input ran as a meta-command.
	Command bool
	// Done is false when evaluation starts and true when it finished.
	Done   bool
	Result ExecutionResult
}
