package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jarvis-go/jarvis/internal/audio"
	"github.com/jarvis-go/jarvis/internal/cache"
)

// Engine names.
const (
	EngineMock  = "mock"
	EnginePiper = "piper"
)

// Player names.
const (
	PlayerOto    = "oto"
	PlayerSilent = "silent"
)

// ErrInvalidEngine indicates an unknown engine was specified
var ErrInvalidEngine = errors.New("invalid speech engine")

// Config selects and configures a backend.
type Config struct {
	Engine             string
	Player             string
	Volume             float64
	RateLimitPerMinute int
	SynthesisTimeout   time.Duration

	Piper PiperConfig
	Tone  ToneConfig

	// Cache enables the audio cache when non-nil.
	Cache *cache.Config
}

// New builds a Speaker from config.
func New(config Config, logger *log.Logger) (*Speaker, error) {
	if logger == nil {
		logger = log.Default()
	}

	var synth Synthesizer
	switch config.Engine {
	case EngineMock, "":
		synth = NewTone(config.Tone)
	case EnginePiper:
		p, err := NewPiper(config.Piper)
		if err != nil {
			return nil, fmt.Errorf("piper engine unavailable: %w", err)
		}
		synth = p
	default:
		return nil, fmt.Errorf("%w: %q (use %s or %s)", ErrInvalidEngine, config.Engine, EngineMock, EnginePiper)
	}

	player, err := newPlayer(config.Player, synth.Format(), config.Volume)
	if err != nil {
		return nil, err
	}

	opts := []SpeakerOption{
		WithSpeakerLogger(logger),
		WithRateLimit(config.RateLimitPerMinute),
		WithSynthesisTimeout(config.SynthesisTimeout),
	}
	if config.Cache != nil {
		c, err := cache.NewManager(*config.Cache, logger)
		if err != nil {
			_ = player.Close()
			return nil, fmt.Errorf("failed to create audio cache: %w", err)
		}
		opts = append(opts, WithCache(c))
	}

	logger.Info("Speech engine selected", "engine", synth.Name(), "player", config.Player)

	return NewSpeaker(synth, player, opts...)
}

func newPlayer(name string, format audio.Format, volume float64) (Player, error) {
	switch name {
	case PlayerSilent:
		return NewSilent(format), nil
	case PlayerOto, "":
		p, err := audio.NewPlayer(format, volume)
		if err != nil {
			return nil, fmt.Errorf("audio device unavailable: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown player %q (use %s or %s)", name, PlayerOto, PlayerSilent)
	}
}
