package speech

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// recordingSink captures every emitted transcript.
type recordingSink struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingSink) Emit(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

func (r *recordingSink) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.texts))
	copy(out, r.texts)
	return out
}

// endingSink records emissions and response ends in one ordered log,
// with "|" marking each End.
type endingSink struct {
	mu     sync.Mutex
	events []string
}

func (e *endingSink) Emit(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, text)
}

func (e *endingSink) End() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, "|")
}

func (e *endingSink) Events() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, len(e.events))
	copy(out, e.events)
	return out
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// gate blocks chosen flushes until released and reports when they start.
type gate struct {
	started chan int
	release chan struct{}
	block   map[int]bool
}

func newGate(block ...int) *gate {
	g := &gate{
		started: make(chan int, 16),
		release: make(chan struct{}),
		block:   make(map[int]bool),
	}
	for _, n := range block {
		g.block[n] = true
	}
	return g
}

func (g *gate) onFlush(n int) {
	if !g.block[n] {
		return
	}
	g.started <- n
	<-g.release
}

func (g *gate) waitStarted(t *testing.T) int {
	t.Helper()
	select {
	case n := <-g.started:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for flush to start")
		return -1
	}
}

func waitSession(t *testing.T, s *Session) State {
	t.Helper()
	select {
	case <-s.Done():
		return s.State()
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for session %s", s.ID)
		return s.State()
	}
}
