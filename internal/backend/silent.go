package backend

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jarvis-go/jarvis/internal/audio"
)

// Silent is a Player that waits for as long as the audio would take to
// play without touching an audio device. Useful on headless machines and
// in CI.
type Silent struct {
	format audio.Format
	played atomic.Int64
}

// NewSilent creates a silent player for format.
func NewSilent(format audio.Format) *Silent {
	return &Silent{format: format}
}

// PlayAndWait sleeps for the duration of pcm.
func (s *Silent) PlayAndWait(ctx context.Context, pcm []byte) error {
	timer := time.NewTimer(s.format.Duration(pcm))
	defer timer.Stop()

	select {
	case <-timer.C:
		s.played.Add(int64(len(pcm)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Played returns the total number of PCM bytes played.
func (s *Silent) Played() int64 {
	return s.played.Load()
}

// Close implements Player.
func (s *Silent) Close() error {
	return nil
}
