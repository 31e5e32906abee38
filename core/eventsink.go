package core

import "pkt.systems/replwin/schema"

// EventSink receives session events. Methods are called on the session loop
// and must not block or call back into the session.
type EventSink interface {
	OnState(event schema.StateEvent)
	OnText(event schema.TextEvent)
	OnOutput(event schema.OutputEvent)
	OnSubmission(event schema.SubmissionEvent)
}
