package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jarvis-go/jarvis/internal/backend"
	"github.com/jarvis-go/jarvis/internal/speech"
	"github.com/spf13/cobra"
)

var (
	noAudio       bool
	silent        bool
	wordsPerBatch int

	sayCmd = &cobra.Command{
		Use:     "say [TEXT...]",
		Short:   "Speak a single response",
		Long:    paragraph(fmt.Sprintf("\n%s a response aloud while printing it, then exit. Text is read from the arguments or from stdin.", keyword("Speak"))),
		Example: paragraph("jarvis say hello there\necho 'hello there' | jarvis say --words 2"),
		RunE:    runSay,
	}
)

func init() {
	for _, c := range []*cobra.Command{sayCmd, chatCmd} {
		c.Flags().BoolVar(&noAudio, "no-audio", false, "print responses without speaking them")
		c.Flags().BoolVar(&silent, "silent", false, "go through the speech pipeline without an audio device")
		c.Flags().IntVarP(&wordsPerBatch, "words", "w", 0, "words spoken per batch (default from config)")
	}
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// responseText joins args, or reads r when there are none. Text read
// from r keeps its inner whitespace.
func responseText(args []string, r io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if r == nil {
		return "", errors.New("nothing to say")
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("unable to read from reader: %w", err)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", errors.New("nothing to say")
	}
	return text, nil
}

// applyFlags overlays the shared say/chat flags on the loaded config.
func applyFlags(cmd *cobra.Command) (player string, err error) {
	if cmd.Flags().Changed("words") {
		cfg.WordsPerBatch = wordsPerBatch
		if err := cfg.Validate(); err != nil {
			return "", err //nolint:wrapcheck
		}
	}
	if noAudio {
		cfg.AudioEnabled = false
	}
	if silent || !cfg.AudioEnabled {
		player = backend.PlayerSilent
	}
	return player, nil
}

func runSay(cmd *cobra.Command, args []string) error {
	var in io.Reader
	if len(args) == 0 {
		if yes, err := stdinIsPipe(); err != nil {
			return err
		} else if yes {
			in = os.Stdin
		}
	}
	text, err := responseText(args, in)
	if err != nil {
		return err
	}

	player, err := applyFlags(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, player)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s := a.dispatcher.Respond(speech.Request{Text: text, AudioEnabled: cfg.AudioEnabled})
	if s != nil {
		if _, err := s.Wait(ctx); err != nil {
			// Interrupted: let the current batch finish, then exit
			a.dispatcher.Stop()
			_, _ = s.Wait(context.Background())
		}
		stats := s.Stats()
		log.Debug("Response finished", "state", stats.State, "batches", stats.BatchesSpoken, "duration", stats.Duration())
	}

	return a.Close(context.Background())
}
