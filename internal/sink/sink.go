// Package sink provides destinations for response transcripts.
package sink

import (
	"github.com/charmbracelet/log"
	"github.com/jarvis-go/jarvis/internal/speech"
)

// Func adapts an ordinary function to a speech.Sink.
type Func func(text string)

// Emit calls f(text).
func (f Func) Emit(text string) {
	f(text)
}

// Logger emits transcripts as info-level log records.
type Logger struct {
	logger *log.Logger
}

// NewLogger creates a Logger sink. A nil logger uses the default logger.
func NewLogger(logger *log.Logger) *Logger {
	if logger == nil {
		logger = log.Default()
	}
	return &Logger{logger: logger}
}

// Emit logs text.
func (l *Logger) Emit(text string) {
	l.logger.Info("Response", "transcript", text)
}

// Multi fans every emission out to each sink in order.
type Multi []speech.Sink

// NewMulti combines sinks, skipping nil ones.
func NewMulti(sinks ...speech.Sink) Multi {
	m := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

// Emit forwards text to every sink.
func (m Multi) Emit(text string) {
	for _, s := range m {
		s.Emit(text)
	}
}

// End forwards the end of a response to every sink that tracks it.
func (m Multi) End() {
	for _, s := range m {
		if e, ok := s.(speech.Ender); ok {
			e.End()
		}
	}
}
