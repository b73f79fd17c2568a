// Package audio plays raw 16-bit PCM through the system audio device
// using oto/v3. Playback is blocking: PlayAndWait returns once the
// device has drained the buffer, which is what lets the speech worker
// treat a flush as "this batch has been heard".
package audio
