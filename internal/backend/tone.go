package backend

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"time"

	"github.com/jarvis-go/jarvis/internal/audio"
)

// Tone is a synthesizer that produces audio whose length matches how long
// the text would take to read aloud. Each word is a short tone followed by
// a gap, which is enough to hear batches being played without a real
// voice installed.
type Tone struct {
	format         audio.Format
	wordsPerMinute int
	frequency      float64
	amplitude      float64
	delay          time.Duration
}

// ToneConfig holds configuration for the Tone synthesizer.
type ToneConfig struct {
	WordsPerMinute int
	Frequency      float64 // Hz; 0 produces silence
	Amplitude      float64 // 0.0 to 1.0
	Delay          time.Duration
}

// NewTone creates a Tone synthesizer.
func NewTone(config ToneConfig) *Tone {
	if config.WordsPerMinute <= 0 {
		config.WordsPerMinute = 150
	}
	return &Tone{
		format:         audio.DefaultFormat(),
		wordsPerMinute: config.WordsPerMinute,
		frequency:      config.Frequency,
		amplitude:      math.Max(0, math.Min(1, config.Amplitude)),
		delay:          config.Delay,
	}
}

// Name returns the engine name.
func (t *Tone) Name() string { return "mock" }

// Voice returns an empty voice; the tone has none.
func (t *Tone) Voice() string { return "" }

// Format returns the PCM format produced.
func (t *Tone) Format() audio.Format { return t.format }

// EstimateDuration returns how long text takes to speak.
func (t *Tone) EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words < 1 {
		words = 1
	}
	return time.Duration(words) * time.Minute / time.Duration(t.wordsPerMinute)
}

// Synthesize produces PCM for text.
func (t *Tone) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	words := len(strings.Fields(text))
	if words < 1 {
		words = 1
	}
	perWord := t.format.Bytes(t.EstimateDuration(text) / time.Duration(words))
	toneBytes := perWord * 2 / 3
	toneBytes -= toneBytes % 2

	pcm := make([]byte, perWord*words)
	if t.frequency <= 0 || t.amplitude == 0 {
		return pcm, nil
	}

	peak := t.amplitude * math.MaxInt16
	for w := 0; w < words; w++ {
		offset := w * perWord
		for i := 0; i < toneBytes; i += 2 {
			n := float64(i / 2)
			sample := int16(peak * math.Sin(2*math.Pi*t.frequency*n/float64(t.format.SampleRate)))
			binary.LittleEndian.PutUint16(pcm[offset+i:], uint16(sample))
		}
	}

	return pcm, nil
}
