package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jarvis-go/jarvis/internal/audio"
	"github.com/jarvis-go/jarvis/internal/cache"
	"golang.org/x/time/rate"
)

var (
	// ErrSpeakerClosed is returned when the speaker is used after Close
	ErrSpeakerClosed = errors.New("speaker is closed")

	// ErrEmptyAudio is returned when a synthesizer produces no PCM
	ErrEmptyAudio = errors.New("synthesizer produced no audio")
)

// Synthesizer converts text into 16-bit PCM in its Format.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Name() string
	Voice() string
	Format() audio.Format
}

// Player plays PCM and blocks until playback finishes or ctx ends.
type Player interface {
	PlayAndWait(ctx context.Context, pcm []byte) error
	Close() error
}

// SpeakerOption configures a Speaker.
type SpeakerOption func(*Speaker)

// WithCache reuses audio for text that was synthesized before.
func WithCache(c *cache.Manager) SpeakerOption {
	return func(s *Speaker) { s.cache = c }
}

// WithRateLimit bounds how often the synthesizer is invoked.
func WithRateLimit(perMinute int) SpeakerOption {
	return func(s *Speaker) {
		if perMinute > 0 {
			s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
		}
	}
}

// WithSynthesisTimeout bounds a single Synthesize call.
func WithSynthesisTimeout(d time.Duration) SpeakerOption {
	return func(s *Speaker) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSpeakerLogger sets the logger.
func WithSpeakerLogger(logger *log.Logger) SpeakerOption {
	return func(s *Speaker) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Speaker implements the dispatcher's Backend on top of a synthesizer
// and a player.
type Speaker struct {
	synth   Synthesizer
	player  Player
	cache   *cache.Manager
	limiter *rate.Limiter
	timeout time.Duration
	logger  *log.Logger

	// Closing the speaker cancels in-flight synthesis and playback
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []byte
	closed  bool
}

// NewSpeaker creates a speaker.
func NewSpeaker(synth Synthesizer, player Player, opts ...SpeakerOption) (*Speaker, error) {
	if synth == nil {
		return nil, errors.New("synthesizer cannot be nil")
	}
	if player == nil {
		return nil, errors.New("player cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Speaker{
		synth:   synth,
		player:  player,
		timeout: 30 * time.Second,
		logger:  log.Default(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Say synthesizes text and buffers the audio until the next Flush.
// Whitespace-only text is accepted and produces no audio.
func (s *Speaker) Say(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if s.isClosed() {
		return ErrSpeakerClosed
	}

	pcm, err := s.synthesize(text)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.pending = append(s.pending, pcm...)
	s.mu.Unlock()

	return nil
}

// Flush plays everything buffered since the last Flush and blocks until
// it has been heard.
func (s *Speaker) Flush() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSpeakerClosed
	}
	pcm := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(pcm) == 0 {
		return nil
	}

	if err := s.player.PlayAndWait(s.ctx, pcm); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}
	return nil
}

// Close aborts in-flight work and releases the player and synthesizer.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.pending = nil
	s.mu.Unlock()

	s.cancel()

	errs := []error{s.player.Close()}
	if c, ok := s.synth.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	return errors.Join(errs...)
}

func (s *Speaker) synthesize(text string) ([]byte, error) {
	var key string
	if s.cache != nil {
		key = cache.GenerateKey(s.synth.Name(), s.synth.Voice(), text)
		if pcm, ok := s.cache.Get(key); ok {
			return pcm, nil
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(s.ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	pcm, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%s synthesis failed: %w", s.synth.Name(), err)
	}
	if len(pcm) == 0 {
		return nil, ErrEmptyAudio
	}

	s.logger.Debug("Synthesized batch",
		"engine", s.synth.Name(),
		"chars", len(text),
		"audio", s.synth.Format().Duration(pcm),
		"took", time.Since(start))

	if s.cache != nil {
		if err := s.cache.Put(key, pcm); err != nil {
			s.logger.Debug("Could not cache audio", "error", err)
		}
	}

	return pcm, nil
}

func (s *Speaker) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
