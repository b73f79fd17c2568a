// Package speech turns response text into spoken word batches.
//
// A Dispatcher either echoes a response straight to its text sink or
// queues it for a single background worker. The worker splits the text
// into batches, hands each one to the speech backend, emits the running
// transcript and waits for playback before moving on. A stop request
// takes effect between batches, never in the middle of one.
package speech
