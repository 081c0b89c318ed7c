package orchestrator

import (
	"fmt"
	"time"

	"github.com/Shaxina0930/vocalis-app/internal/taskstore"
)

// State is the interaction state.
type State int32

const (
	// Idle waits for a trigger.
	Idle State = iota

	// Listening holds the microphone.
	Listening

	// Processing recognises and runs the last recording or typed message.
	Processing

	// Speaking plays a reply.
	Speaking
)

// String returns the lower-case state name used on the wire.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	case Speaking:
		return "speaking"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Speaker labels a chat message.
type Speaker string

const (
	SpeakerYou       Speaker = "You"
	SpeakerAssistant Speaker = "Vocalis"
	SpeakerSystem    Speaker = "System"
)

// EventKind discriminates [Event].
type EventKind string

const (
	// EventChat appends Text from Speaker to the chat log.
	EventChat EventKind = "chat"

	// EventTasksChanged carries the full task list after a command changed
	// it.
	EventTasksChanged EventKind = "tasks_changed"

	// EventState reports a transition to State.
	EventState EventKind = "state"
)

// Event is one update for the UI.
type Event struct {
	Kind    EventKind
	Speaker Speaker
	Text    string
	Tasks   []taskstore.Task
	State   State
	Time    time.Time
}

// String renders chat events the way the chat log shows them.
func (e Event) String() string {
	switch e.Kind {
	case EventChat:
		return string(e.Speaker) + ": " + e.Text
	case EventTasksChanged:
		return fmt.Sprintf("tasks_changed(%d)", len(e.Tasks))
	default:
		return "state(" + e.State.String() + ")"
	}
}

// Subscribe returns a channel receiving every event emitted from now on and
// a function that ends the subscription. A subscriber that falls behind by
// more than the buffer loses events rather than stalling the dispatcher.
// The channel is closed by cancel or by [Orchestrator.Close].
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, o.subBuffer)

	o.subMu.Lock()
	id := o.nextSub
	o.nextSub++
	select {
	case <-o.done:
		close(ch)
	default:
		o.subs[id] = ch
	}
	o.subMu.Unlock()

	cancel := func() {
		o.subMu.Lock()
		defer o.subMu.Unlock()
		if c, ok := o.subs[id]; ok {
			close(c)
			delete(o.subs, id)
		}
	}
	return ch, cancel
}

// emit delivers ev to every subscriber. Runs on the dispatcher.
func (o *Orchestrator) emit(ev Event) {
	ev.Time = o.now()
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for id, ch := range o.subs {
		select {
		case ch <- ev:
		default:
			o.logger.Warn("orchestrator: subscriber too slow, event dropped", "subscriber", id, "kind", string(ev.Kind))
		}
	}
}

func (o *Orchestrator) chat(s Speaker, text string) {
	o.logger.Debug("orchestrator: chat", "speaker", string(s), "text", text)
	o.emit(Event{Kind: EventChat, Speaker: s, Text: text})
}

func (o *Orchestrator) system(text string) {
	o.chat(SpeakerSystem, text)
}

// setState records a transition and announces it. Runs on the dispatcher.
func (o *Orchestrator) setState(next State) {
	if o.state == next {
		return
	}
	o.logger.Debug("orchestrator: state", "from", o.state.String(), "to", next.String())
	o.state = next
	o.current.Store(int32(next))
	o.emit(Event{Kind: EventState, State: next})
}
