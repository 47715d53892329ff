package present

import "sync"

// EventKind identifies a sink call.
type EventKind int

const (
	EventHide EventKind = iota
	EventShow
	EventLoading
	EventResult
	EventError
)

func (k EventKind) String() string {
	return [...]string{"hide", "show", "loading", "result", "error"}[k]
}

// Terminal reports whether k ends a run.
func (k EventKind) Terminal() bool { return k == EventResult || k == EventError }

// Event is one recorded sink call.
type Event struct {
	Kind EventKind
	Text string
}

// Recorder is a Sink that keeps every call in order. The ask command uses it
// to collect the answer; tests use it to assert on event sequences.
type Recorder struct {
	mu      sync.Mutex
	visible bool
	events  []Event
	done    chan struct{}
}

// NewRecorder returns a recorder with the given initial visibility.
func NewRecorder(visible bool) *Recorder {
	return &Recorder{visible: visible, done: make(chan struct{})}
}

// Done is closed by the first result or error.
func (r *Recorder) Done() <-chan struct{} { return r.done }

func (r *Recorder) Visible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

func (r *Recorder) Hide()                    { r.record(Event{Kind: EventHide}, false) }
func (r *Recorder) Show()                    { r.record(Event{Kind: EventShow}, true) }
func (r *Recorder) ShowLoading()             { r.record(Event{Kind: EventLoading}, true) }
func (r *Recorder) ShowResult(text string)   { r.record(Event{Kind: EventResult, Text: text}, true) }
func (r *Recorder) ShowError(message string) { r.record(Event{Kind: EventError, Text: message}, true) }

func (r *Recorder) record(ev Event, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visible = visible
	r.events = append(r.events, ev)
	if ev.Kind.Terminal() {
		select {
		case <-r.done:
		default:
			close(r.done)
		}
	}
}

// Events returns a copy of the recorded calls.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many calls of kind were recorded.
func (r *Recorder) Count(kind EventKind) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Last returns the most recent terminal event.
func (r *Recorder) Last() (Event, bool) {
	evs := r.Events()
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Kind.Terminal() {
			return evs[i], true
		}
	}
	return Event{}, false
}
