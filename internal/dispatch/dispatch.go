// Package dispatch implements the call flow.
//
// For every inbound call event the dispatcher synthesizes the message,
// stores and verifies the audio artifact, and renders the voice document
// that points the telephony provider at it. Any failure ends the flow; no
// step is retried and no partial document is ever produced.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/callvoice/internal/audio"
	"github.com/nadzzz/callvoice/internal/message"
	"github.com/nadzzz/callvoice/internal/tts"
	"github.com/nadzzz/callvoice/internal/voicexml"
)

// ArtifactStore persists the synthesized audio.
type ArtifactStore interface {
	Store(data []byte) error
	Verify() (int64, error)
	URLPath() string
}

// Dispatcher runs call events through synthesis, storage and rendering.
type Dispatcher struct {
	synthesizer    tts.Synthesizer
	store          ArtifactStore
	defaultMessage string
}

// New creates a new Dispatcher.
func New(synthesizer tts.Synthesizer, store ArtifactStore, defaultMessage string) *Dispatcher {
	return &Dispatcher{
		synthesizer:    synthesizer,
		store:          store,
		defaultMessage: defaultMessage,
	}
}

// HandleCall processes a single call event through the full pipeline.
func (d *Dispatcher) HandleCall(ctx context.Context, ev *message.CallEvent) (*message.CallResult, error) {
	start := time.Now()
	logger := slog.With("call_id", ev.ID, "call_sid", ev.CallSid)
	logger.Info("call received",
		"from", ev.CallFrom,
		"to", ev.CallTo,
		"status", ev.CallStatus)

	text := d.defaultMessage
	if ev.HasMessage {
		text = ev.Message
	}

	// Step 1: Synthesize. The caller hanging up does not abort synthesis;
	// only the client timeout bounds it.
	logger.Debug("synthesizing", "text", text, "default", !ev.HasMessage)
	synth, err := d.synthesizer.Synthesize(context.WithoutCancel(ctx), text, tts.SynthesizeOpts{})
	if err != nil {
		logger.Error("synthesis failed", "error", err)
		return nil, fmt.Errorf("synthesizing: %w", err)
	}

	// Step 2: Store and verify the artifact.
	if err := d.store.Store(synth.Audio); err != nil {
		logger.Error("storing audio failed", "error", err)
		return nil, fmt.Errorf("storing audio: %w", err)
	}
	size, err := d.store.Verify()
	if err != nil {
		logger.Error("audio verification failed", "error", err)
		return nil, fmt.Errorf("verifying audio: %w", err)
	}

	var duration time.Duration
	if info, err := audio.ProbeMP3(synth.Audio); err != nil {
		logger.Warn("stored audio could not be probed", "error", err, "content_type", synth.ContentType)
	} else {
		duration = info.Duration
	}
	logger.Info("audio stored", "bytes", size, "duration", duration)

	// Step 3: Build the voice document.
	var audioURL string
	if base := strings.TrimRight(strings.TrimSpace(ev.BaseURL), "/"); base != "" {
		audioURL = base + d.store.URLPath()
	}
	doc, err := voicexml.Build(audioURL)
	if err != nil {
		logger.Error("building voice response failed", "error", err)
		return nil, fmt.Errorf("building response: %w", err)
	}

	logger.Info("call handled", "audio_url", audioURL, "duration", time.Since(start))
	return &message.CallResult{
		AudioURL:   audioURL,
		AudioBytes: size,
		Duration:   duration,
		Document:   doc,
	}, nil
}

// HandleWebhook acknowledges a generic webhook delivery. No business logic
// is attached to the payload; it is logged and counted.
func (d *Dispatcher) HandleWebhook(ctx context.Context, p *message.WebhookPayload) (*message.WebhookResult, error) {
	logger := slog.With("request_id", p.ID)

	if len(p.Fields) == 0 {
		logger.Warn("webhook received with empty payload", "content_type", p.ContentType)
		return &message.WebhookResult{
			Status:    message.StatusWarning,
			Message:   "Webhook received with empty payload",
			RequestID: p.ID,
		}, nil
	}

	logger.Info("webhook received", "content_type", p.ContentType, "fields", len(p.Fields), "data", p.Fields)
	return &message.WebhookResult{
		Status:    message.StatusSuccess,
		Message:   "Webhook received",
		RequestID: p.ID,
		Fields:    len(p.Fields),
	}, nil
}
