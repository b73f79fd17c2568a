package backend

import (
	"errors"
	"sync"
)

// ErrInjected is the default error returned by a Recorder set to fail.
var ErrInjected = errors.New("injected backend failure")

// Call is one recorded backend call.
type Call struct {
	Op   string // "say" or "flush"
	Text string // batch text for "say"
}

// Recorder is an in-memory backend that records every call. Failures,
// panics and blocking flushes can be injected to exercise the dispatcher.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	sayErr   map[int]error
	flushErr map[int]error
	panicOn  map[int]bool

	says    int
	flushes int

	// OnFlush, if set, runs inside Flush with the zero-based flush index.
	// It may block to simulate playback.
	OnFlush func(n int)
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		sayErr:   make(map[int]error),
		flushErr: make(map[int]error),
		panicOn:  make(map[int]bool),
	}
}

// FailSay makes the n-th Say call (zero-based) return err.
func (r *Recorder) FailSay(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sayErr[n] = err
}

// FailFlush makes the n-th Flush call (zero-based) return err.
func (r *Recorder) FailFlush(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushErr[n] = err
}

// PanicOnSay makes the n-th Say call (zero-based) panic.
func (r *Recorder) PanicOnSay(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panicOn[n] = true
}

// Say records text.
func (r *Recorder) Say(text string) error {
	r.mu.Lock()
	n := r.says
	r.says++
	r.calls = append(r.calls, Call{Op: "say", Text: text})
	err := r.sayErr[n]
	shouldPanic := r.panicOn[n]
	r.mu.Unlock()

	if shouldPanic {
		panic("recorder: injected panic")
	}
	return err
}

// Flush records a flush and runs OnFlush.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	n := r.flushes
	r.flushes++
	r.calls = append(r.calls, Call{Op: "flush"})
	err := r.flushErr[n]
	hook := r.OnFlush
	r.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return err
}

// Calls returns a copy of every recorded call in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]Call, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// Said returns the text of every Say call in order.
func (r *Recorder) Said() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var said []string
	for _, c := range r.calls {
		if c.Op == "say" {
			said = append(said, c.Text)
		}
	}
	return said
}

// Flushes returns the number of Flush calls.
func (r *Recorder) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}
