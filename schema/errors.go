package schema

import "errors"

var (
	// ErrInvalidState indicates an operation was invoked in a state that does not allow it.
	ErrInvalidState = errors.New("invalid session state")
	// ErrClosed indicates the session has been closed.
	ErrClosed = errors.New("session closed")
	// ErrInvalidData indicates persisted session data could not be decoded.
	ErrInvalidData = errors.New("invalid data")
	// ErrDuplicateCommand indicates two commands share a name.
	ErrDuplicateCommand = errors.New("duplicate command name")
	// ErrMissingCommandName indicates a command was registered without names.
	ErrMissingCommandName = errors.New("command has no name")
	// ErrNotReadingInput indicates no standard input read is pending.
	ErrNotReadingInput = errors.New("not reading standard input")
	// ErrInputCancelled indicates a standard input read was cancelled.
	ErrInputCancelled = errors.New("standard input cancelled")
	// ErrSubmissionCancelled indicates a queued submission was discarded before it ran.
	ErrSubmissionCancelled = errors.New("submission cancelled")
)

// InvalidDataError wraps a decoding failure of persisted session data.
type InvalidDataError struct {
	Msg string
	Err error
}

func (e *InvalidDataError) Error() string {
	if e.Msg == "" {
		return ErrInvalidData.Error()
	}
	return ErrInvalidData.Error() + ": " + e.Msg
}

// Unwrap returns the underlying decode error.
func (e *InvalidDataError) Unwrap() error {
	return e.Err
}

// Is matches ErrInvalidData.
func (e *InvalidDataError) Is(target error) bool {
	return target == ErrInvalidData
}
