// Package backend provides the speech backends the dispatcher drives.
//
// A Speaker pairs a Synthesizer, which turns text into PCM, with a Player,
// which plays PCM and blocks until it is heard. Say synthesizes and
// buffers; Flush plays the buffer. Synthesizers are pluggable: Piper runs
// the offline piper binary, Tone produces timed audio for the mock engine.
package backend
