package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// ErrPlayerClosed is returned when playing on a closed player.
var ErrPlayerClosed = errors.New("player is closed")

// pollInterval is how often PlayAndWait checks whether playback drained.
const pollInterval = 10 * time.Millisecond

// stream is the part of *oto.Player the player drives.
type stream interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(volume float64)
	Close() error
}

// streamFactory creates a stream reading PCM from r.
type streamFactory func(r io.Reader) stream

var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoFormat  Format
	otoErr     error
)

// sharedContext returns the process-wide oto context. oto allows only
// one per process, so every Player shares it and must agree on format.
func sharedContext(format Format) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoContext = ctx
		otoFormat = format
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoFormat != format {
		return nil, fmt.Errorf("audio device already opened at %d Hz, %d channel(s)", otoFormat.SampleRate, otoFormat.Channels)
	}
	return otoContext, nil
}

// Player plays PCM buffers one at a time.
type Player struct {
	format    Format
	volume    float64
	newStream streamFactory

	mu     sync.Mutex
	closed bool
}

// NewPlayer opens the audio device for format.
func NewPlayer(format Format, volume float64) (*Player, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}
	if volume < 0 || volume > 1 {
		return nil, fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}

	ctx, err := sharedContext(format)
	if err != nil {
		return nil, err
	}

	return newPlayer(format, volume, func(r io.Reader) stream {
		return ctx.NewPlayer(r)
	}), nil
}

func newPlayer(format Format, volume float64, factory streamFactory) *Player {
	return &Player{
		format:    format,
		volume:    volume,
		newStream: factory,
	}
}

// Format returns the PCM format the player expects.
func (p *Player) Format() Format {
	return p.format
}

// PlayAndWait plays pcm and blocks until it has drained. If ctx ends
// first, playback is cut off and ctx's error is returned.
func (p *Player) PlayAndWait(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPlayerClosed
	}

	// oto reads from the buffer while playing, so it must own a copy
	data := make([]byte, len(pcm))
	copy(data, pcm)

	s := p.newStream(bytes.NewReader(data))
	defer s.Close() //nolint:errcheck

	s.SetVolume(p.volume)
	s.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for s.IsPlaying() {
		select {
		case <-ctx.Done():
			s.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}

// Close marks the player closed. The shared device stays open for the
// life of the process.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	return nil
}
