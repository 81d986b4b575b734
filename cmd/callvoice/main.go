// Callvoice is a telephony webhook responder that answers inbound calls with
// synthesized Telugu speech.
//
// Usage:
//
//	callvoice [flags]
//	callvoice --config /path/to/callvoice.yaml
//
// @title       callvoice API
// @version     1.0
// @description Telephony webhook responder that answers calls with synthesized Telugu speech.
// @BasePath    /
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nadzzz/callvoice/internal/artifact"
	"github.com/nadzzz/callvoice/internal/config"
	"github.com/nadzzz/callvoice/internal/dispatch"
	"github.com/nadzzz/callvoice/internal/health"
	"github.com/nadzzz/callvoice/internal/transport"
	grpctransport "github.com/nadzzz/callvoice/internal/transport/grpc"
	httptransport "github.com/nadzzz/callvoice/internal/transport/http"
	"github.com/nadzzz/callvoice/internal/tts"
	"github.com/nadzzz/callvoice/internal/tts/elevenlabs"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/callvoice.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("callvoice %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging, cfg.Server.Debug)
	slog.Info("callvoice starting", "version", version, "debug", cfg.Server.Debug)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize the synthesis backend.
	var synth tts.Synthesizer
	switch cfg.TTS.Backend {
	case "elevenlabs":
		synth = elevenlabs.New(cfg.TTS.ElevenLabs)
		slog.Info("using ElevenLabs synthesizer",
			"model", cfg.TTS.ElevenLabs.ModelID,
			"timeout", cfg.TTS.ElevenLabs.Timeout)
	default:
		slog.Error("unknown tts backend", "backend", cfg.TTS.Backend)
		os.Exit(1)
	}
	defer synth.Close()

	if err := synth.CheckConfig(); err != nil {
		slog.Warn("synthesis is not configured; calls will fail until it is", "error", err)
	}

	store := artifact.New(cfg.Artifact)
	dispatcher := dispatch.New(synth, store, cfg.Server.DefaultMessage)

	// Health sub-checks shared by /health and the health server.
	checker := health.NewChecker(2 * time.Second)
	checker.Register("tts_config", func(context.Context) error { return synth.CheckConfig() })
	checker.Register("audio_dir", func(context.Context) error { return store.CheckWritable() })
	checker.Register("audio_artifact", func(context.Context) error {
		_, err := store.Verify()
		return err
	})

	healthServer := health.New(cfg.Server.HealthPort, checker)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	// Initialize enabled transports.
	transports := []transport.Transport{
		httptransport.New(httptransport.Options{
			Port:          cfg.Server.Port,
			PublicBaseURL: cfg.Server.PublicBaseURL,
			Handler:       dispatcher,
			Audio:         store,
			Health:        checker,
		}),
	}

	var grpcTransport *grpctransport.Transport
	if cfg.Transports.GRPC.Enabled {
		grpcTransport = grpctransport.New(cfg.Transports.GRPC.Port)
		transports = append(transports, grpcTransport)
	}

	// Start all transports.
	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
				cancel()
			}
		}(t)
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	if grpcTransport != nil {
		grpcTransport.SetServing(true)
	}
	slog.Info("callvoice ready",
		"port", cfg.Server.Port,
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort,
		"artifact", store.Path())

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	slog.Info("callvoice stopped")
}
