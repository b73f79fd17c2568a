package speech

// Backend is the speech synthesizer the dispatcher feeds, one batch at a time.
type Backend interface {
	// Say enqueues text for synthesis. It does not play anything.
	Say(text string) error

	// Flush plays everything enqueued since the last flush and blocks
	// until playback finishes or fails.
	Flush() error
}

// Sink receives the running transcript of a response. Implementations
// must not panic; write failures are theirs to handle.
type Sink interface {
	Emit(text string)
}

// Ender is implemented by sinks that need to know where one response's
// transcript stops and the next one begins. End is called once after the
// last emission of every response.
type Ender interface {
	End()
}
