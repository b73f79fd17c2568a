package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jarvis-go/jarvis/internal/audio"
	"github.com/mitchellh/go-homedir"
)

// maxPiperText bounds a single piper invocation.
const maxPiperText = 5000

// Piper synthesizes speech by running the offline piper binary once per
// call with the text on stdin and raw PCM on stdout.
type Piper struct {
	binary     string
	modelPath  string
	configPath string
	speaker    int
	format     audio.Format
}

// PiperConfig holds configuration for the Piper synthesizer.
type PiperConfig struct {
	// Binary is the piper executable, looked up in PATH when not absolute.
	Binary string

	// ModelPath is the .onnx voice model (required).
	ModelPath string

	// ConfigPath defaults to the model path with a .json extension.
	ConfigPath string

	// Speaker selects a speaker in multi-speaker models.
	Speaker int
}

// NewPiper validates config and creates a Piper synthesizer.
func NewPiper(config PiperConfig) (*Piper, error) {
	if config.ModelPath == "" {
		return nil, errors.New("piper model path is required")
	}

	modelPath, err := homedir.Expand(config.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("invalid model path: %w", err)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}

	configPath := config.ConfigPath
	if configPath == "" {
		configPath = modelPath + ".json"
		if _, err := os.Stat(configPath); err != nil {
			configPath = strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".json"
		}
	} else if configPath, err = homedir.Expand(configPath); err != nil {
		return nil, fmt.Errorf("invalid model config path: %w", err)
	}

	binary := config.Binary
	if binary == "" {
		binary = "piper"
	}
	if binary, err = exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("piper binary not found: %w", err)
	}

	return &Piper{
		binary:     binary,
		modelPath:  modelPath,
		configPath: configPath,
		speaker:    config.Speaker,
		format:     audio.DefaultFormat(),
	}, nil
}

// Name returns the engine name.
func (p *Piper) Name() string { return "piper" }

// Voice identifies the model and speaker for cache keys.
func (p *Piper) Voice() string {
	return filepath.Base(p.modelPath) + "#" + strconv.Itoa(p.speaker)
}

// Format returns the PCM format piper emits.
func (p *Piper) Format() audio.Format { return p.format }

// Synthesize runs piper for text. The process is killed when ctx ends.
func (p *Piper) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}
	if len(text) > maxPiperText {
		return nil, fmt.Errorf("text too long: %d characters (max %d)", len(text), maxPiperText)
	}

	args := []string{
		"--model", p.modelPath,
		"--config", p.configPath,
		"--output-raw",
	}
	if p.speaker > 0 {
		args = append(args, "--speaker", strconv.Itoa(p.speaker))
	}

	cmd := exec.CommandContext(ctx, p.binary, args...) //nolint:gosec
	// Stdin is fixed before start so piper never races us for input
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("piper timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("piper failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	pcm := stdout.Bytes()
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w, stderr: %s", ErrEmptyAudio, strings.TrimSpace(stderr.String()))
	}
	// Drop a trailing half sample
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}

	return pcm, nil
}
