package audio

import (
	"fmt"
	"time"
)

// Format describes raw PCM audio.
type Format struct {
	SampleRate int // Hz
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // bits per sample, only 16 is supported
}

// DefaultFormat is what piper emits with --output-raw.
func DefaultFormat() Format {
	return Format{
		SampleRate: 22050,
		Channels:   1,
		BitDepth:   16,
	}
}

// Validate checks that oto can play the format.
func (f Format) Validate() error {
	switch f.SampleRate {
	case 16000, 22050, 24000, 44100, 48000:
	default:
		return fmt.Errorf("unsupported sample rate %d Hz", f.SampleRate)
	}

	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", f.Channels)
	}

	if f.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", f.BitDepth)
	}

	return nil
}

// BytesPerSecond returns the PCM data rate.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

// Duration returns how long pcm takes to play.
func (f Format) Duration(pcm []byte) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(len(pcm)) * time.Second / time.Duration(bps)
}

// Bytes returns the PCM size for d, aligned to whole frames.
func (f Format) Bytes(d time.Duration) int {
	frame := f.Channels * f.BitDepth / 8
	if frame == 0 {
		return 0
	}
	n := int(d * time.Duration(f.BytesPerSecond()) / time.Second)
	return n - n%frame
}
