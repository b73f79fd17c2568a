// Package config loads jarvis settings from defaults, the config file
// and JARVIS_ environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jarvis-go/jarvis/internal/backend"
	"github.com/jarvis-go/jarvis/internal/cache"
	"github.com/jarvis-go/jarvis/internal/logging"
	"github.com/jarvis-go/jarvis/internal/speech"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable jarvis reads.
const EnvPrefix = "JARVIS_"

// Config holds every jarvis setting.
type Config struct {
	AudioEnabled       bool          `yaml:"audio_enabled"         mapstructure:"audio_enabled"         env:"AUDIO_ENABLED"         envDefault:"true"`
	WordsPerBatch      int           `yaml:"words_per_batch"       mapstructure:"words_per_batch"       env:"WORDS_PER_BATCH"       envDefault:"5"`
	QueueSize          int           `yaml:"queue_size"            mapstructure:"queue_size"            env:"QUEUE_SIZE"            envDefault:"16"`
	Engine             string        `yaml:"engine"                mapstructure:"engine"                env:"ENGINE"                envDefault:"mock"`
	Player             string        `yaml:"player"                mapstructure:"player"                env:"PLAYER"                envDefault:"oto"`
	Volume             float64       `yaml:"volume"                mapstructure:"volume"                env:"VOLUME"                envDefault:"1.0"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE" envDefault:"0"`
	SynthesisTimeout   time.Duration `yaml:"synthesis_timeout"     mapstructure:"synthesis_timeout"     env:"SYNTHESIS_TIMEOUT"     envDefault:"30s"`

	Piper   PiperConfig   `yaml:"piper"   mapstructure:"piper"   envPrefix:"PIPER_"`
	Mock    MockConfig    `yaml:"mock"    mapstructure:"mock"    envPrefix:"MOCK_"`
	Cache   CacheConfig   `yaml:"cache"   mapstructure:"cache"   envPrefix:"CACHE_"`
	Log     LogConfig     `yaml:"log"     mapstructure:"log"     envPrefix:"LOG_"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics" envPrefix:"METRICS_"`
}

// PiperConfig configures the piper engine.
type PiperConfig struct {
	Binary     string `yaml:"binary"      mapstructure:"binary"      env:"BINARY" envDefault:"piper"`
	Model      string `yaml:"model"       mapstructure:"model"       env:"MODEL"`
	ConfigPath string `yaml:"config_path" mapstructure:"config_path" env:"CONFIG_PATH"`
	Speaker    int    `yaml:"speaker"     mapstructure:"speaker"     env:"SPEAKER"`
}

// MockConfig configures the mock engine.
type MockConfig struct {
	WordsPerMinute int     `yaml:"words_per_minute" mapstructure:"words_per_minute" env:"WORDS_PER_MINUTE" envDefault:"150"`
	Frequency      float64 `yaml:"frequency"        mapstructure:"frequency"        env:"FREQUENCY"        envDefault:"440"`
	Amplitude      float64 `yaml:"amplitude"        mapstructure:"amplitude"        env:"AMPLITUDE"        envDefault:"0.1"`
}

// CacheConfig configures the synthesized audio cache.
type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"     mapstructure:"enabled"     env:"ENABLED"     envDefault:"true"`
	Dir         string        `yaml:"dir"         mapstructure:"dir"         env:"DIR"`
	MemoryMB    int           `yaml:"memory_mb"   mapstructure:"memory_mb"   env:"MEMORY_MB"   envDefault:"32"`
	DiskMB      int           `yaml:"disk_mb"     mapstructure:"disk_mb"     env:"DISK_MB"     envDefault:"256"`
	Compression int           `yaml:"compression" mapstructure:"compression" env:"COMPRESSION" envDefault:"3"`
	TTL         time.Duration `yaml:"ttl"         mapstructure:"ttl"         env:"TTL"         envDefault:"168h"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level" env:"LEVEL" envDefault:"info"`
	File  string `yaml:"file"  mapstructure:"file"  env:"FILE"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr serves /metrics when non-empty, e.g. "localhost:9464".
	Addr string `yaml:"addr" mapstructure:"addr" env:"ADDR"`
}

// Defaults returns the built-in configuration, ignoring the environment.
func Defaults() Config {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{
		Prefix:      EnvPrefix,
		Environment: map[string]string{},
	})
	if err != nil {
		// Only reachable if a default tag above is malformed
		panic(fmt.Sprintf("config: bad defaults: %v", err))
	}
	return cfg
}

// Load builds the configuration. Values come from defaults, then the
// environment, then whatever v holds from the config file, flags or
// its own environment bindings.
func Load(v *viper.Viper) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: EnvPrefix})
	if err != nil {
		return Config{}, fmt.Errorf("error parsing environment: %w", err)
	}

	if v != nil {
		if err := v.Unmarshal(&cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	return cfg, cfg.Validate()
}

// BindEnv makes v resolve nested keys such as piper.model from
// JARVIS_PIPER_MODEL.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(strings.TrimSuffix(EnvPrefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error

	if err := c.Speech().Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Engine {
	case backend.EngineMock:
	case backend.EnginePiper:
		if c.Piper.Model == "" {
			errs = append(errs, errors.New("piper.model is required for the piper engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", backend.ErrInvalidEngine, c.Engine))
	}

	if c.Player != backend.PlayerOto && c.Player != backend.PlayerSilent {
		errs = append(errs, fmt.Errorf("player must be %s or %s, got %q", backend.PlayerOto, backend.PlayerSilent, c.Player))
	}
	if c.Volume < 0 || c.Volume > 1 {
		errs = append(errs, fmt.Errorf("volume must be between 0.0 and 1.0, got %.2f", c.Volume))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("rate_limit_per_minute cannot be negative, got %d", c.RateLimitPerMinute))
	}
	if c.Mock.Amplitude < 0 || c.Mock.Amplitude > 1 {
		errs = append(errs, fmt.Errorf("mock.amplitude must be between 0.0 and 1.0, got %.2f", c.Mock.Amplitude))
	}
	if c.Cache.MemoryMB < 0 || c.Cache.DiskMB < 0 {
		errs = append(errs, errors.New("cache sizes cannot be negative"))
	}
	if c.Cache.Compression < 0 || c.Cache.Compression > 22 {
		errs = append(errs, fmt.Errorf("cache.compression must be between 0 and 22, got %d", c.Cache.Compression))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Speech returns the dispatcher settings.
func (c Config) Speech() speech.Config {
	return speech.Config{
		WordsPerBatch: c.WordsPerBatch,
		QueueSize:     c.QueueSize,
	}
}

// Logging returns the logger settings.
func (c Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, File: c.Log.File}
}

// Backend returns the speech backend settings. Player overrides the
// configured player when non-empty.
func (c Config) Backend(player string) (backend.Config, error) {
	if player == "" {
		player = c.Player
	}

	bc := backend.Config{
		Engine:             c.Engine,
		Player:             player,
		Volume:             c.Volume,
		RateLimitPerMinute: c.RateLimitPerMinute,
		SynthesisTimeout:   c.SynthesisTimeout,
		Piper: backend.PiperConfig{
			Binary:     c.Piper.Binary,
			ModelPath:  c.Piper.Model,
			ConfigPath: c.Piper.ConfigPath,
			Speaker:    c.Piper.Speaker,
		},
		Tone: backend.ToneConfig{
			WordsPerMinute: c.Mock.WordsPerMinute,
			Frequency:      c.Mock.Frequency,
			Amplitude:      c.Mock.Amplitude,
		},
	}

	if c.Cache.Enabled {
		dir, err := c.Cache.dir()
		if err != nil {
			return backend.Config{}, err
		}
		bc.Cache = &cache.Config{
			MemoryCapacity:   int64(c.Cache.MemoryMB) << 20,
			DiskPath:         dir,
			DiskCapacity:     int64(c.Cache.DiskMB) << 20,
			CompressionLevel: c.Cache.Compression,
			TTL:              c.Cache.TTL,
		}
	}

	return bc, nil
}

// dir resolves the disk cache location. A zero disk size keeps the cache
// in memory only.
func (c CacheConfig) dir() (string, error) {
	if c.DiskMB == 0 {
		return "", nil
	}
	if c.Dir != "" {
		dir, err := homedir.Expand(c.Dir)
		if err != nil {
			return "", fmt.Errorf("invalid cache directory: %w", err)
		}
		return dir, nil
	}

	dir, err := gap.NewScope(gap.User, "jarvis").CacheDir()
	if err != nil {
		return "", fmt.Errorf("could not find cache directory: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}
