package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jarvis-go/jarvis/internal/backend"
	"github.com/jarvis-go/jarvis/internal/config"
	"github.com/jarvis-go/jarvis/internal/observability"
	"github.com/jarvis-go/jarvis/internal/sink"
	"github.com/jarvis-go/jarvis/internal/speech"
)

const shutdownTimeout = 5 * time.Second

// app wires a speaker, a console and a dispatcher together.
type app struct {
	console    *sink.Console
	speaker    *backend.Speaker
	dispatcher *speech.Dispatcher
	server     *http.Server
}

func newApp(cfg config.Config, player string) (*app, error) {
	logger := log.Default()
	metrics := observability.NewMetrics("jarvis")

	speaker, err := newSpeaker(cfg, player, logger.WithPrefix("backend"))
	if err != nil {
		return nil, err
	}

	console := sink.NewConsole(os.Stdout)
	var out speech.Sink = console
	if logger.GetLevel() <= log.DebugLevel {
		out = sink.NewMulti(console, sink.NewLogger(logger.WithPrefix("transcript")))
	}

	d, err := speech.NewDispatcher(cfg.Speech(), speaker, out,
		speech.WithLogger(logger.WithPrefix("speech")),
		speech.WithMetrics(metrics))
	if err != nil {
		_ = speaker.Close()
		return nil, err //nolint:wrapcheck
	}

	a := &app{console: console, speaker: speaker, dispatcher: d}

	if cfg.Metrics.Addr != "" {
		srv, err := serveMetrics(cfg.Metrics.Addr, metrics)
		if err != nil {
			_ = a.Close(context.Background())
			return nil, err
		}
		a.server = srv
		logger.Info("Serving metrics", "addr", cfg.Metrics.Addr)
	}

	return a, nil
}

// newSpeaker builds the configured backend, falling back to the silent
// player when no audio device is available.
func newSpeaker(cfg config.Config, player string, logger *log.Logger) (*backend.Speaker, error) {
	bc, err := cfg.Backend(player)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	speaker, err := backend.New(bc, logger)
	if err == nil || bc.Player == backend.PlayerSilent {
		return speaker, err //nolint:wrapcheck
	}

	logger.Warn("Audio output unavailable, continuing without sound", "error", err)
	bc.Player = backend.PlayerSilent
	speaker, err = backend.New(bc, logger)
	if err != nil {
		return nil, fmt.Errorf("unable to start speech backend: %w", err)
	}
	return speaker, nil
}

func serveMetrics(addr string, metrics *observability.Metrics) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("unable to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", "error", err)
		}
	}()
	return srv, nil
}

// Close finishes queued speech, or abandons it once ctx ends, and then
// releases the audio device.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if err := a.dispatcher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("speech did not finish: %w", err))
	}
	a.console.End()

	if err := a.speaker.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.server != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(sctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
