package speech

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jarvis-go/jarvis/internal/batch"
	"github.com/jarvis-go/jarvis/internal/observability"
	"github.com/jarvis-go/jarvis/internal/queue"
)

// Request is a single response to deliver.
type Request struct {
	Text         string
	AudioEnabled bool
}

// Config controls batching and queueing.
type Config struct {
	// WordsPerBatch is the number of words handed to the backend at once.
	WordsPerBatch int

	// QueueSize bounds how many spoken responses may wait behind the active one.
	QueueSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		WordsPerBatch: batch.DefaultWordsPerBatch,
		QueueSize:     16,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.WordsPerBatch <= 0 {
		return NewError(ErrorCodeInvalidConfig, "words per batch must be positive",
			fmt.Errorf("%w: %w", ErrInvalidConfig, batch.ErrInvalidBatchSize))
	}
	if c.QueueSize <= 0 {
		return NewError(ErrorCodeInvalidConfig, "queue size must be positive", ErrInvalidConfig)
	}
	return nil
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for pipeline events.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records pipeline activity on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// Dispatcher delivers responses as speech or text. Spoken responses are
// handled one at a time, in the order Respond was called.
type Dispatcher struct {
	config  Config
	backend Backend
	sink    Sink
	logger  *log.Logger
	metrics *observability.Metrics

	work   *queue.Queue[*Session]
	active atomic.Pointer[Session]

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher and starts its speech worker.
func NewDispatcher(config Config, backend Backend, sink Sink, opts ...Option) (*Dispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, ErrNilBackend
	}
	if sink == nil {
		return nil, ErrNilSink
	}

	d := &Dispatcher{
		config:  config,
		backend: backend,
		sink:    sink,
		logger:  log.Default(),
		work:    queue.New[*Session](config.QueueSize),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(1)
	go d.run()

	return d, nil
}

// Respond delivers req. With audio disabled the text is emitted before
// Respond returns and the result is nil. Otherwise the response is queued
// for the speech worker and its session is returned; callers may ignore
// it or Wait on it.
//
// If a spoken response cannot be scheduled, the failure is logged and the
// text is emitted instead so the response is never lost.
func (d *Dispatcher) Respond(req Request) *Session {
	if !req.AudioEnabled {
		d.emitWhole(req.Text)
		d.metrics.ObserveResponse("text")
		return nil
	}

	s := newSession(req.Text)
	if err := d.work.Enqueue(s); err != nil {
		launchErr := NewError(ErrorCodeLaunchFailure, "could not schedule spoken response", err).WithSession(s.ID, -1)
		d.logger.Error("Speech launch failed, falling back to text", "session", s.ID, "error", launchErr)
		d.metrics.ObserveLaunchFailure()
		d.metrics.ObserveResponse("text")

		s.finish(StateCancelled)
		d.emitWhole(req.Text)
		return nil
	}

	d.metrics.ObserveResponse("spoken")
	d.metrics.SetQueueDepth(d.work.Size())
	d.logger.Debug("Spoken response queued", "session", s.ID, "length", len(req.Text))

	return s
}

// Stop requests cancellation of the response currently being spoken. It
// returns false when nothing is being spoken.
func (d *Dispatcher) Stop() bool {
	s := d.active.Load()
	if s == nil {
		return false
	}
	if !s.RequestCancel() {
		return false
	}

	d.logger.Debug("Stop requested", "session", s.ID)
	return true
}

// Clear drops every queued response that has not started speaking and
// returns how many were dropped. The active response is not affected.
func (d *Dispatcher) Clear() int {
	dropped := d.work.Clear()
	for _, s := range dropped {
		s.finish(StateCancelled)
		d.metrics.ObserveSession(StateCancelled.String())
	}
	d.metrics.SetQueueDepth(0)

	if len(dropped) > 0 {
		d.logger.Debug("Dropped queued responses", "count", len(dropped))
	}
	return len(dropped)
}

// Active returns the session being spoken, or nil.
func (d *Dispatcher) Active() *Session {
	return d.active.Load()
}

// Pending returns the number of spoken responses waiting to start.
func (d *Dispatcher) Pending() int {
	return d.work.Size()
}

// Close stops accepting spoken responses and waits for queued ones to be
// spoken. If ctx ends first, queued responses are dropped, the active one
// is asked to stop, and ctx's error is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		_ = d.work.Close()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.Clear()
		d.Stop()
		return ctx.Err()
	}
}

// run is the single consumer of the work queue.
func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		s, err := d.work.Dequeue()
		if err != nil {
			return
		}
		d.metrics.SetQueueDepth(d.work.Size())

		// Already finished by Clear before it could be dequeued
		if s.State().Terminal() {
			continue
		}

		d.speak(s)
	}
}

// speak feeds one session's batches to the backend in order.
func (d *Dispatcher) speak(s *Session) {
	d.active.Store(s)
	s.start()
	logger := d.logger.With("session", s.ID)

	state := d.speakBatches(s, logger)

	if s.Stats().BatchesSpoken > 0 {
		d.endResponse()
	}

	// Inactive before Done fires so waiters never see a stale Active
	d.active.CompareAndSwap(s, nil)
	s.finish(state)
	d.metrics.ObserveSession(state.String())

	stats := s.Stats()
	logger.Debug("Speech finished",
		"state", state,
		"batches", stats.BatchesSpoken,
		"duration", stats.Duration())
}

func (d *Dispatcher) speakBatches(s *Session, logger *log.Logger) State {
	// Cancelled while still queued
	if s.takeCancel() {
		return StateCancelled
	}

	batches, err := batch.Batch(s.Text(), d.config.WordsPerBatch)
	if err != nil {
		logger.Error("Could not split response into batches", "error", err)
		return StateCancelled
	}

	for i, b := range batches {
		if err := d.guard(func() error { return d.backend.Say(b) }); err != nil {
			d.backendFailed(logger, NewError(ErrorCodeBackendSay, "synthesis failed", err).WithSession(s.ID, i))
		}

		d.sink.Emit(s.append(b))
		d.metrics.ObserveBatch()

		start := time.Now()
		if err := d.guard(d.backend.Flush); err != nil {
			d.backendFailed(logger, NewError(ErrorCodeBackendFlush, "playback failed", err).WithSession(s.ID, i))
		}
		d.metrics.ObserveFlush(time.Since(start))

		if s.takeCancel() {
			logger.Info("Speech stopped", "batch", i+1, "of", len(batches))
			return StateCancelled
		}
	}

	return StateCompleted
}

// emitWhole delivers text as a complete response.
func (d *Dispatcher) emitWhole(text string) {
	d.sink.Emit(text)
	d.endResponse()
}

func (d *Dispatcher) endResponse() {
	if e, ok := d.sink.(Ender); ok {
		e.End()
	}
}

func (d *Dispatcher) backendFailed(logger *log.Logger, err *Error) {
	op := "say"
	if err.Code == ErrorCodeBackendFlush {
		op = "flush"
	}
	d.metrics.ObserveBackendError(op)
	logger.Warn("Speech backend error, continuing", "batch", err.Batch, "error", err)
}

// guard runs a backend call, turning a panic into an error.
func (d *Dispatcher) guard(call func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrBackendPanic, r)
		}
	}()
	return call()
}
