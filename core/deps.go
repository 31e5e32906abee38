package core

import "pkt.systems/pslog"

// SessionDeps captures the collaborators of a session. Evaluator is required.
type SessionDeps struct {
	Evaluator Evaluator
	Commands  Commands
	Clipboard Clipboard
	EventSink EventSink
	Logger    pslog.Logger
}
