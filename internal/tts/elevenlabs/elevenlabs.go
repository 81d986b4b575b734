// Package elevenlabs implements the TTS Synthesizer using the ElevenLabs
// text-to-speech REST API.
//
// Each call is a single blocking POST to /v1/text-to-speech/{voice_id}; the
// response body is the encoded audio (MP3 by default). The multilingual
// model is used so that non-Latin scripts such as Telugu are pronounced.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/nadzzz/callvoice/internal/config"
	"github.com/nadzzz/callvoice/internal/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_multilingual_v2"
	defaultTimeout = 30 * time.Second

	// maxAudioBytes bounds the response body read into memory.
	maxAudioBytes = 25 << 20
)

// Synthesizer implements tts.Synthesizer against the ElevenLabs API.
type Synthesizer struct {
	apiKey          string
	voiceID         string
	baseURL         string
	modelID         string
	stability       float64
	similarityBoost float64
	maxAudio        int64
	client          *http.Client
}

// New creates a new ElevenLabs synthesizer from config.
func New(cfg config.ElevenLabsConfig) *Synthesizer {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.ModelID
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Synthesizer{
		apiKey:          strings.TrimSpace(cfg.APIKey),
		voiceID:         strings.TrimSpace(cfg.VoiceID),
		baseURL:         baseURL,
		modelID:         model,
		stability:       cfg.Stability,
		similarityBoost: cfg.SimilarityBoost,
		maxAudio:        maxAudioBytes,
		client:          &http.Client{Timeout: timeout},
	}
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// CheckConfig reports whether the API key and voice are usable.
func (s *Synthesizer) CheckConfig() error {
	return checkCredentials(s.apiKey, s.voiceID)
}

func checkCredentials(apiKey, voiceID string) error {
	if apiKey == "" || apiKey == config.PlaceholderAPIKey || strings.HasPrefix(apiKey, "${") {
		return fmt.Errorf("%w: elevenlabs api key is not set", tts.ErrNotConfigured)
	}
	if voiceID == "" || voiceID == config.PlaceholderVoiceID {
		return fmt.Errorf("%w: elevenlabs voice id is not set", tts.ErrNotConfigured)
	}
	return nil
}

// Synthesize sends text to ElevenLabs and returns the audio bytes.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text for synthesis", tts.ErrInvalidInput)
	}

	voice := s.voiceID
	if opts.Voice != "" {
		voice = opts.Voice
	}
	model := s.modelID
	if opts.Model != "" {
		model = opts.Model
	}
	if err := checkCredentials(s.apiKey, voice); err != nil {
		return nil, err
	}

	bodyBytes, err := json.Marshal(synthesizeRequest{
		Text:    text,
		ModelID: model,
		VoiceSettings: voiceSettings{
			Stability:       s.stability,
			SimilarityBoost: s.similarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshalling request: %v", tts.ErrUnexpected, err)
	}

	endpoint := s.baseURL + "/v1/text-to-speech/" + url.PathEscape(voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", tts.ErrUnexpected, err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	slog.Debug("elevenlabs synthesize", "text_length", len(text), "voice", voice, "model", model)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &tts.ProviderError{Status: resp.StatusCode, Body: string(respBody)}
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, s.maxAudio+1))
	if err != nil {
		return nil, classify(err)
	}
	if int64(len(audio)) > s.maxAudio {
		return nil, fmt.Errorf("%w: audio exceeds %d bytes", tts.ErrUnexpected, s.maxAudio)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	slog.Debug("elevenlabs synthesize complete",
		"audio_bytes", len(audio),
		"content_type", contentType,
		"duration", time.Since(start))

	return &tts.SynthesizeResult{
		Audio:       audio,
		ContentType: contentType,
	}, nil
}

// Close drops idle provider connections.
func (s *Synthesizer) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// classify maps a transport error onto the tts error kinds.
func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", tts.ErrTimeout, err)
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.As(err, &opErr) && opErr.Op == "dial":
		return fmt.Errorf("%w: %v", tts.ErrConnection, err)
	}

	return fmt.Errorf("%w: %v", tts.ErrUnexpected, err)
}
