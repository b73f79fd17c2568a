package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/jarvis-go/jarvis/internal/speech"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Speak each line read from stdin",
	Long: paragraph(fmt.Sprintf(
		"\nRead responses line by line and speak them in order. Say %s to interrupt, %s or %s to toggle audio, and %s to leave.",
		keyword("stop"), keyword("mute"), keyword("unmute"), keyword("exit"))),
	Args: cobra.NoArgs,
	RunE: runChat,
}

type command int

const (
	commandRespond command = iota
	commandNone
	commandStop
	commandMute
	commandUnmute
	commandQuit
)

// parseCommand recognizes control phrases; anything else is a response.
func parseCommand(line string) command {
	phrase := strings.ToLower(strings.TrimRight(strings.TrimSpace(line), ".!"))
	switch phrase {
	case "":
		return commandNone
	case "stop", "stop talking", "shut up":
		return commandStop
	case "mute":
		return commandMute
	case "unmute":
		return commandUnmute
	case "exit", "quit":
		return commandQuit
	default:
		return commandRespond
	}
}

// chatSession is the state of an interactive chat.
type chatSession struct {
	app   *app
	audio atomic.Bool
}

// handle acts on one input line and reports whether to keep going.
func (c *chatSession) handle(line string) bool {
	switch parseCommand(line) {
	case commandNone:
	case commandStop:
		stopped := c.app.dispatcher.Stop()
		log.Debug("Stop requested", "stopped", stopped)
	case commandMute:
		c.audio.Store(false)
		log.Info("Audio muted")
	case commandUnmute:
		c.audio.Store(true)
		log.Info("Audio unmuted")
	case commandQuit:
		return false
	case commandRespond:
		c.app.dispatcher.Respond(speech.Request{Text: strings.TrimSpace(line), AudioEnabled: c.audio.Load()})
	}
	return true
}

func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func runChat(cmd *cobra.Command, _ []string) error {
	player, err := applyFlags(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, player)
	if err != nil {
		return err
	}

	c := &chatSession{app: a}
	c.audio.Store(cfg.AudioEnabled)

	// Audio can be toggled from the config file while chatting, unless
	// the device was never opened
	if player == "" && viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			enabled := viper.GetBool("audio_enabled")
			if c.audio.Swap(enabled) != enabled {
				log.Info("Audio setting changed", "enabled", enabled, "file", e.Name)
			}
		})
		viper.WatchConfig()
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	lines := readLines(os.Stdin)
loop:
	for {
		select {
		case line, ok := <-lines:
			if !ok || !c.handle(line) {
				break loop
			}
		case <-interrupts:
			// First interrupt silences speech, a second one leaves
			if !a.dispatcher.Stop() {
				break loop
			}
		}
	}
	signal.Stop(interrupts)

	// Let queued responses finish unless interrupted again
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return a.Close(ctx)
}
