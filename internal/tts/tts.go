// Package tts defines the interface for text-to-speech synthesis.
//
// Callvoice synthesizes one message per inbound call event and hands the
// resulting audio to the artifact store. Backends report failures as one of
// the sentinel errors below (or a *ProviderError) so the transport can map
// them to status codes in a single place.
package tts

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for empty or whitespace-only text.
	ErrInvalidInput = errors.New("tts: invalid input")

	// ErrNotConfigured is returned when credentials are missing or still
	// set to their placeholder values.
	ErrNotConfigured = errors.New("tts: synthesis not configured")

	// ErrTimeout is returned when the provider did not answer in time.
	ErrTimeout = errors.New("tts: provider timed out")

	// ErrConnection is returned when the provider could not be reached.
	ErrConnection = errors.New("tts: provider unreachable")

	// ErrUnexpected covers any other transport failure.
	ErrUnexpected = errors.New("tts: unexpected failure")
)

// ProviderError is a non-200 answer from the synthesis provider.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts: provider returned status %d: %s", e.Status, e.Body)
}

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Voice overrides the configured voice identifier.
	Voice string

	// Model overrides the configured model identifier.
	Model string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize generates audio from the given text. A successful result
	// may carry an empty Audio slice; callers verify what they persist.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// CheckConfig reports ErrNotConfigured without contacting the provider.
	CheckConfig() error

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the encoded audio exactly as returned by the provider.
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/mpeg").
	ContentType string
}
