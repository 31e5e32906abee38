package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/replwin/core"
	"pkt.systems/replwin/schema"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventState carries session state transitions.
	EventState EventType = "state"
	// EventText signals that the composed text changed.
	EventText EventType = "text"
	// EventOutput carries output placed in the view, tagged by stream.
	EventOutput EventType = "output"
	// EventSubmission carries submission start and completion.
	EventSubmission EventType = "submission"
)

// Event represents an engine event delivered to subscribers.
type Event struct {
	Type       EventType
	State      schema.StateEvent
	Text       schema.TextEvent
	Output     schema.OutputEvent
	Submission schema.SubmissionEvent
}

// SessionID returns the session the event belongs to.
func (e Event) SessionID() schema.SessionID {
	switch e.Type {
	case EventState:
		return e.State.SessionID
	case EventText:
		return e.Text.SessionID
	case EventOutput:
		return e.Output.SessionID
	default:
		return e.Submission.SessionID
	}
}

// Bus fans engine events out to per-session subscribers. It implements
// core.EventSink and never blocks the publishing session: events for a
// full subscriber are dropped.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.SessionID]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

var _ core.EventSink = (*Bus)(nil)

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.SessionID]map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the session and returns a channel + cancel.
func (b *Bus) Subscribe(sessionID schema.SessionID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	sessionSubs := b.subs[sessionID]
	if sessionSubs == nil {
		sessionSubs = make(map[chan Event]struct{})
		b.subs[sessionID] = sessionSubs
	}
	sessionSubs[ch] = struct{}{}
	count := len(sessionSubs)
	b.mu.Unlock()
	b.log.With("session", sessionID).Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[sessionID]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, sessionID)
				}
			}
			b.mu.Unlock()
			close(ch)
			b.log.With("session", sessionID).Debug("eventbus unsubscribe")
		})
	}
}

// OnState publishes a state event.
func (b *Bus) OnState(event schema.StateEvent) {
	b.publish(Event{Type: EventState, State: event})
}

// OnText publishes a text event.
func (b *Bus) OnText(event schema.TextEvent) {
	b.publish(Event{Type: EventText, Text: event})
}

// OnOutput publishes an output event.
func (b *Bus) OnOutput(event schema.OutputEvent) {
	b.publish(Event{Type: EventOutput, Output: event})
}

// OnSubmission publishes a submission event.
func (b *Bus) OnSubmission(event schema.SubmissionEvent) {
	b.publish(Event{Type: EventSubmission, Submission: event})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	sessionID := event.SessionID()
	b.mu.Lock()
	sessionSubs := b.subs[sessionID]
	subs := make([]chan Event, 0, len(sessionSubs))
	for sub := range sessionSubs {
		subs = append(subs, sub)
	}
	// Sends happen under the lock so cancel cannot close a channel mid-send.
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 {
		b.log.With("session", sessionID).Trace("eventbus dropped", "type", string(event.Type), "count", dropped)
	}
}
