package speech

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jarvis-go/jarvis/internal/backend"
	"github.com/jarvis-go/jarvis/internal/batch"
	"github.com/jarvis-go/jarvis/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestDispatcher(t *testing.T, cfg Config, rec *backend.Recorder, sink *recordingSink, opts ...Option) *Dispatcher {
	t.Helper()

	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	d, err := NewDispatcher(cfg, rec, sink, opts...)
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.Close(ctx)
	})
	return d
}

func TestRespond_TextOnly(t *testing.T) {
	rec := backend.NewRecorder()
	sink := &recordingSink{}
	d := newTestDispatcher(t, DefaultConfig(), rec, sink)

	if s := d.Respond(Request{Text: "hello there", AudioEnabled: false}); s != nil {
		t.Errorf("Expected nil session for text response, got %v", s.ID)
	}

	// Emitted before Respond returned
	texts := sink.Texts()
	if len(texts) != 1 || texts[0] != "hello there" {
		t.Errorf("Expected single emit of full text, got %q", texts)
	}
	if len(rec.Calls()) != 0 {
		t.Errorf("Expected no backend calls, got %+v", rec.Calls())
	}
}

func TestRespond_SpeaksBatchesInOrder(t *testing.T) {
	rec := backend.NewRecorder()
	sink := &recordingSink{}
	d := newTestDispatcher(t, Config{WordsPerBatch: 2, QueueSize: 4}, rec, sink)

	text := "the quick brown fox jumps"
	s := d.Respond(Request{Text: text, AudioEnabled: true})
	if s == nil {
		t.Fatal("Expected session for spoken response")
	}

	if state := waitSession(t, s); state != StateCompleted {
		t.Errorf("Expected completed, got %s", state)
	}

	expected, _ := batch.Batch(text, 2)
	said := rec.Said()
	if strings.Join(said, "|") != strings.Join(expected, "|") {
		t.Errorf("Expected batches %q, got %q", expected, said)
	}

	// Every say is followed by its flush
	calls := rec.Calls()
	for i, c := range calls {
		want := "say"
		if i%2 == 1 {
			want = "flush"
		}
		if c.Op != want {
			t.Fatalf("Expected call %d to be %s, got %s", i, want, c.Op)
		}
	}

	// The transcript grows by exactly one batch per emit
	texts := sink.Texts()
	if len(texts) != len(expected) {
		t.Fatalf("Expected %d emits, got %d", len(expected), len(texts))
	}
	prev := ""
	for i, got := range texts {
		if got != prev+expected[i] {
			t.Errorf("Emit %d: expected %q, got %q", i, prev+expected[i], got)
		}
		prev = got
	}
	if s.Transcript() != strings.Join(expected, "") {
		t.Errorf("Expected transcript %q, got %q", strings.Join(expected, ""), s.Transcript())
	}
	if s.Stats().BatchesSpoken != len(expected) {
		t.Errorf("Expected %d batches spoken, got %d", len(expected), s.Stats().BatchesSpoken)
	}
}

func TestRespond_EndsEachResponse(t *testing.T) {
	rec := backend.NewRecorder()
	sink := &endingSink{}
	d, err := NewDispatcher(Config{WordsPerBatch: 5, QueueSize: 4}, rec, sink, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}

	// Identical responses must stay distinguishable to the sink
	d.Respond(Request{Text: "hello", AudioEnabled: false})
	first := d.Respond(Request{Text: "hello", AudioEnabled: true})
	second := d.Respond(Request{Text: "hello", AudioEnabled: true})
	waitSession(t, first)
	waitSession(t, second)

	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	expected := []string{"hello", "|", "hello ", "|", "hello ", "|"}
	if got := sink.Events(); strings.Join(got, ",") != strings.Join(expected, ",") {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestRespond_NoEndWithoutEmission(t *testing.T) {
	g := newGate(0)
	rec := backend.NewRecorder()
	rec.OnFlush = g.onFlush
	sink := &endingSink{}
	d, err := NewDispatcher(Config{WordsPerBatch: 5, QueueSize: 4}, rec, sink, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}
	defer d.Close(context.Background()) //nolint:errcheck

	first := d.Respond(Request{Text: "first", AudioEnabled: true})
	g.waitStarted(t)
	second := d.Respond(Request{Text: "second", AudioEnabled: true})
	second.RequestCancel()
	close(g.release)

	waitSession(t, first)
	waitSession(t, second)

	expected := []string{"first ", "|"}
	if got := sink.Events(); strings.Join(got, ",") != strings.Join(expected, ",") {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestStop_AfterFirstBatch(t *testing.T) {
	g := newGate(0)
	rec := backend.NewRecorder()
	rec.OnFlush = g.onFlush
	sink := &recordingSink{}
	d := newTestDispatcher(t, Config{WordsPerBatch: 1, QueueSize: 4}, rec, sink)

	s := d.Respond(Request{Text: "one two three", AudioEnabled: true})
	g.waitStarted(t)

	if d.Active() != s {
		t.Error("Expected session to be active while speaking")
	}
	if !d.Stop() {
		t.Error("Expected Stop to report an active session")
	}
	close(g.release)

	if state := waitSession(t, s); state != StateCancelled {
		t.Errorf("Expected cancelled, got %s", state)
	}

	if said := rec.Said(); len(said) != 1 || said[0] != "one " {
		t.Errorf("Expected only first batch spoken, got %q", said)
	}
	if texts := sink.Texts(); len(texts) != 1 || texts[0] != "one " {
		t.Errorf("Expected one emit, got %q", texts)
	}
	if s.CancelRequested() {
		t.Error("Expected cancel signal to be cleared")
	}
	if d.Active() != nil {
		t.Error("Expected no active session after cancel")
	}
}

func TestStop_NothingActive(t *testing.T) {
	d := newTestDispatcher(t, DefaultConfig(), backend.NewRecorder(), &recordingSink{})

	if d.Stop() {
		t.Error("Expected Stop to return false with nothing speaking")
	}
}

func TestStop_DoesNotLeakIntoNextSession(t *testing.T) {
	g := newGate(0)
	rec := backend.NewRecorder()
	rec.OnFlush = g.onFlush
	sink := &recordingSink{}
	d := newTestDispatcher(t, Config{WordsPerBatch: 1, QueueSize: 4}, rec, sink)

	first := d.Respond(Request{Text: "a b", AudioEnabled: true})
	second := d.Respond(Request{Text: "c d", AudioEnabled: true})
	g.waitStarted(t)
	d.Stop()
	close(g.release)

	if state := waitSession(t, first); state != StateCancelled {
		t.Errorf("Expected first cancelled, got %s", state)
	}
	if state := waitSession(t, second); state != StateCompleted {
		t.Errorf("Expected second completed, got %s", state)
	}
	if second.Transcript() != "c d " {
		t.Errorf("Expected full second transcript, got %q", second.Transcript())
	}
}

func TestRespond_BackendFailuresContinue(t *testing.T) {
	m := newMetrics(t)
	rec := backend.NewRecorder()
	rec.FailSay(0, backend.ErrInjected)
	rec.FailFlush(1, backend.ErrInjected)
	rec.PanicOnSay(2)
	sink := &recordingSink{}
	d := newTestDispatcher(t, Config{WordsPerBatch: 1, QueueSize: 4}, rec, sink, WithMetrics(m))

	s := d.Respond(Request{Text: "w x y z", AudioEnabled: true})
	if state := waitSession(t, s); state != StateCompleted {
		t.Errorf("Expected completed despite failures, got %s", state)
	}

	if len(rec.Said()) != 4 || rec.Flushes() != 4 {
		t.Errorf("Expected 4 says and 4 flushes, got %d and %d", len(rec.Said()), rec.Flushes())
	}
	if s.Transcript() != "w x y z " {
		t.Errorf("Expected full transcript, got %q", s.Transcript())
	}
	if got := testutil.ToFloat64(m.BackendErrors.WithLabelValues("say")); got != 2 {
		t.Errorf("Expected 2 say errors, got %v", got)
	}
	if got := testutil.ToFloat64(m.BackendErrors.WithLabelValues("flush")); got != 1 {
		t.Errorf("Expected 1 flush error, got %v", got)
	}
}

func TestRespond_LaunchFailureFallsBackToText(t *testing.T) {
	g := newGate(0)
	rec := backend.NewRecorder()
	rec.OnFlush = g.onFlush
	sink := &recordingSink{}
	m := newMetrics(t)
	d := newTestDispatcher(t, Config{WordsPerBatch: 5, QueueSize: 1}, rec, sink, WithMetrics(m))

	first := d.Respond(Request{Text: "first", AudioEnabled: true})
	g.waitStarted(t)
	queued := d.Respond(Request{Text: "second", AudioEnabled: true})
	if queued == nil || d.Pending() != 1 {
		t.Fatalf("Expected second response queued, pending %d", d.Pending())
	}

	if s := d.Respond(Request{Text: "third overflow", AudioEnabled: true}); s != nil {
		t.Error("Expected nil session on launch failure")
	}
	texts := sink.Texts()
	if texts[len(texts)-1] != "third overflow" {
		t.Errorf("Expected fallback text emit, got %q", texts)
	}
	if got := testutil.ToFloat64(m.LaunchFailures); got != 1 {
		t.Errorf("Expected 1 launch failure, got %v", got)
	}

	close(g.release)
	waitSession(t, first)
	if state := waitSession(t, queued); state != StateCompleted {
		t.Errorf("Expected queued response completed, got %s", state)
	}
	for _, said := range rec.Said() {
		if strings.Contains(said, "overflow") {
			t.Error("Expected fallback response never to reach the backend")
		}
	}
}

func TestRespond_SessionsDoNotOverlap(t *testing.T) {
	rec := backend.NewRecorder()
	sink := &recordingSink{}
	d := newTestDispatcher(t, Config{WordsPerBatch: 1, QueueSize: 8}, rec, sink)

	var sessions []*Session
	for _, text := range []string{"a b c", "d e", "f g h i"} {
		sessions = append(sessions, d.Respond(Request{Text: text, AudioEnabled: true}))
	}
	for _, s := range sessions {
		waitSession(t, s)
	}

	want := []string{"a ", "b ", "c ", "d ", "e ", "f ", "g ", "h ", "i "}
	if got := rec.Said(); strings.Join(got, "") != strings.Join(want, "") {
		t.Errorf("Expected sessions spoken back to back %q, got %q", want, got)
	}
	for i := 1; i < len(sessions); i++ {
		prev, cur := sessions[i-1].Stats(), sessions[i].Stats()
		if cur.StartedAt.Before(prev.FinishedAt) {
			t.Errorf("Session %d started before session %d finished", i, i-1)
		}
	}
}

func TestRespond_CancelWhileQueued(t *testing.T) {
	g := newGate(0)
	rec := backend.NewRecorder()
	rec.OnFlush = g.onFlush
	sink := &recordingSink{}
	d := newTestDispatcher(t, Config{WordsPerBatch: 5, QueueSize: 4}, rec, sink)

	first := d.Respond(Request{Text: "first", AudioEnabled: true})
	g.waitStarted(t)
	second := d.Respond(Request{Text: "second", AudioEnabled: true})
	if !second.RequestCancel() {
		t.Error("Expected queued session to accept cancel")
	}
	close(g.release)

	waitSession(t, first)
	if state := waitSession(t, second); state != StateCancelled {
		t.Errorf("Expected cancelled, got %s", state)
	}
	if second.Transcript() != "" {
		t.Errorf("Expected nothing spoken, got %q", second.Transcript())
	}
}

func TestClear(t *testing.T) {
	g := newGate(0)
	rec := backend.NewRecorder()
	rec.OnFlush = g.onFlush
	d := newTestDispatcher(t, Config{WordsPerBatch: 5, QueueSize: 4}, rec, &recordingSink{})

	first := d.Respond(Request{Text: "first", AudioEnabled: true})
	g.waitStarted(t)
	a := d.Respond(Request{Text: "second", AudioEnabled: true})
	b := d.Respond(Request{Text: "third", AudioEnabled: true})

	if n := d.Clear(); n != 2 {
		t.Errorf("Expected 2 dropped, got %d", n)
	}
	for _, s := range []*Session{a, b} {
		if s.State() != StateCancelled {
			t.Errorf("Expected dropped session cancelled, got %s", s.State())
		}
	}
	if first.State() != StateSpeaking {
		t.Errorf("Expected active session unaffected, got %s", first.State())
	}

	close(g.release)
	if state := waitSession(t, first); state != StateCompleted {
		t.Errorf("Expected active session completed, got %s", state)
	}
}

func TestNewDispatcher_Validation(t *testing.T) {
	rec := backend.NewRecorder()
	sink := &recordingSink{}

	_, err := NewDispatcher(Config{WordsPerBatch: 0, QueueSize: 4}, rec, sink)
	if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, batch.ErrInvalidBatchSize) {
		t.Errorf("Expected invalid batch size error, got %v", err)
	}
	var se *Error
	if !errors.As(err, &se) || se.Code != ErrorCodeInvalidConfig {
		t.Errorf("Expected INVALID_CONFIG code, got %v", err)
	}

	if _, err := NewDispatcher(Config{WordsPerBatch: 5}, rec, sink); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected invalid queue size error, got %v", err)
	}
	if _, err := NewDispatcher(DefaultConfig(), nil, sink); err != ErrNilBackend {
		t.Errorf("Expected ErrNilBackend, got %v", err)
	}
	if _, err := NewDispatcher(DefaultConfig(), rec, nil); err != ErrNilSink {
		t.Errorf("Expected ErrNilSink, got %v", err)
	}
}

func TestClose_DrainsQueue(t *testing.T) {
	rec := backend.NewRecorder()
	sink := &recordingSink{}
	d, err := NewDispatcher(Config{WordsPerBatch: 2, QueueSize: 4}, rec, sink, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}

	a := d.Respond(Request{Text: "one two three", AudioEnabled: true})
	b := d.Respond(Request{Text: "four five", AudioEnabled: true})

	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if a.State() != StateCompleted || b.State() != StateCompleted {
		t.Errorf("Expected both completed, got %s and %s", a.State(), b.State())
	}

	// Closed dispatchers fall back to text
	if s := d.Respond(Request{Text: "late", AudioEnabled: true}); s != nil {
		t.Error("Expected nil session after close")
	}
	if texts := sink.Texts(); texts[len(texts)-1] != "late" {
		t.Errorf("Expected late response as text, got %q", texts)
	}
}

func TestClose_ContextExpires(t *testing.T) {
	g := newGate(0)
	rec := backend.NewRecorder()
	rec.OnFlush = g.onFlush
	d, err := NewDispatcher(Config{WordsPerBatch: 1, QueueSize: 4}, rec, &recordingSink{}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}

	active := d.Respond(Request{Text: "a b c", AudioEnabled: true})
	queued := d.Respond(Request{Text: "d e", AudioEnabled: true})
	g.waitStarted(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if queued.State() != StateCancelled {
		t.Errorf("Expected queued session dropped, got %s", queued.State())
	}

	close(g.release)
	if state := waitSession(t, active); state != StateCancelled {
		t.Errorf("Expected active session stopped, got %s", state)
	}
	if len(rec.Said()) != 1 {
		t.Errorf("Expected 1 batch spoken, got %d", len(rec.Said()))
	}
}

func newMetrics(t *testing.T) *observability.Metrics {
	t.Helper()
	return observability.NewMetrics("jarvis_test")
}
