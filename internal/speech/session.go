package speech

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a spoken response.
type State int32

const (
	// StateIdle indicates the session is queued and has not started speaking
	StateIdle State = iota

	// StateSpeaking indicates batches are being synthesized
	StateSpeaking

	// StateCompleted indicates every batch was spoken
	StateCompleted

	// StateCancelled indicates the session stopped early
	StateCancelled
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Session is the mutable state of one spoken response: its running
// transcript and its cancellation signal. The speech worker owns the
// transcript; any goroutine may request cancellation.
type Session struct {
	// ID uniquely identifies the session in logs and metrics.
	ID string

	text string

	cancel atomic.Bool
	state  atomic.Int32

	mu         sync.RWMutex
	transcript strings.Builder
	batches    int
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time

	done       chan struct{}
	finishOnce sync.Once
}

// SessionStats summarizes a session's progress.
type SessionStats struct {
	State         State
	BatchesSpoken int
	CreatedAt     time.Time
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Duration returns how long the session spent speaking.
func (s SessionStats) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func newSession(text string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		text:      text,
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Text returns the full response text the session was created with.
func (s *Session) Text() string {
	return s.text
}

// Transcript returns everything emitted so far.
func (s *Session) Transcript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.transcript.String()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Stats returns a snapshot of the session's progress.
func (s *Session) Stats() SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SessionStats{
		State:         s.State(),
		BatchesSpoken: s.batches,
		CreatedAt:     s.createdAt,
		StartedAt:     s.startedAt,
		FinishedAt:    s.finishedAt,
	}
}

// RequestCancel asks the session to stop after the batch currently being
// played. It returns false if the session has already finished.
func (s *Session) RequestCancel() bool {
	if s.State().Terminal() {
		return false
	}
	s.cancel.Store(true)
	return true
}

// CancelRequested reports whether a cancellation is pending.
func (s *Session) CancelRequested() bool {
	return s.cancel.Load()
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session finishes or ctx is done.
func (s *Session) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.done:
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

func (s *Session) start() {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.state.Store(int32(StateSpeaking))
}

// append adds batch to the transcript and returns the new transcript.
func (s *Session) append(batch string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript.WriteString(batch)
	s.batches++
	return s.transcript.String()
}

// takeCancel consumes a pending cancellation, resetting the signal.
func (s *Session) takeCancel() bool {
	return s.cancel.CompareAndSwap(true, false)
}

func (s *Session) finish(state State) {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.finishedAt = time.Now()
		s.mu.Unlock()

		s.state.Store(int32(state))
		close(s.done)
	})
}
