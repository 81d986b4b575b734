package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/callvoice/internal/artifact"
	"github.com/nadzzz/callvoice/internal/config"
	"github.com/nadzzz/callvoice/internal/dispatch"
	"github.com/nadzzz/callvoice/internal/health"
	"github.com/nadzzz/callvoice/internal/message"
	"github.com/nadzzz/callvoice/internal/tts"
	"github.com/nadzzz/callvoice/internal/tts/elevenlabs"
	"github.com/nadzzz/callvoice/internal/voicexml"
)

// fakeProvider is a stand-in for the ElevenLabs API.
type fakeProvider struct {
	mu     sync.Mutex
	texts  []string
	status int
	audio  []byte
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	p.mu.Lock()
	p.texts = append(p.texts, body.Text)
	status, audio := p.status, p.audio
	p.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"detail":"rejected"}`))
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write(audio)
}

func (p *fakeProvider) respond(status int, audio []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status, p.audio = status, audio
}

func (p *fakeProvider) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

type testEnv struct {
	provider *fakeProvider
	store    *artifact.Store
	checker  *health.Checker
	handler  http.Handler
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	provider := &fakeProvider{audio: []byte("synthesized-telugu-audio")}
	server := httptest.NewServer(provider)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{DefaultMessage: config.DefaultMessage},
		TTS: config.TTSConfig{ElevenLabs: config.ElevenLabsConfig{
			APIKey:          "sk-test",
			VoiceID:         "voice-1",
			BaseURL:         server.URL,
			ModelID:         "eleven_multilingual_v2",
			Stability:       0.5,
			SimilarityBoost: 0.5,
			Timeout:         5 * time.Second,
		}},
		Artifact: config.ArtifactConfig{
			Dir:      filepath.Join(t.TempDir(), "static", "audio"),
			Filename: "mla-response.mp3",
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	synth := elevenlabs.New(cfg.TTS.ElevenLabs)
	store := artifact.New(cfg.Artifact)
	checker := health.NewChecker(time.Second)
	checker.Register("tts", func(context.Context) error { return synth.CheckConfig() })

	tr := New(Options{
		PublicBaseURL: cfg.Server.PublicBaseURL,
		Handler:       dispatch.New(synth, store, cfg.Server.DefaultMessage),
		Audio:         store,
		Health:        checker,
	})

	return &testEnv{provider: provider, store: store, checker: checker, handler: tr.Handler()}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func formRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func callForm(extra url.Values) url.Values {
	form := url.Values{
		"CallSid":    {"CA42"},
		"CallFrom":   {"+919000000001"},
		"CallTo":     {"+918000000002"},
		"CallStatus": {"ringing"},
	}
	for k, v := range extra {
		form[k] = v
	}
	return form
}

func TestVoiceResponse_DefaultMessage(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(formRequest("/voice-response", callForm(nil)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, voicexml.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<Play>http://example.com/audio/mla-response.mp3</Play>")
	assert.True(t, strings.HasPrefix(w.Body.String(), `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Equal(t, []string{config.DefaultMessage}, env.provider.calls())

	// The provider then fetches the artifact it was told to play.
	w = env.do(httptest.NewRequest(http.MethodGet, "/audio/mla-response.mp3", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Len(t, w.Body.Bytes(), len(env.provider.audio))
	assert.Equal(t, env.provider.audio, w.Body.Bytes())
}

func TestVoiceResponse_CallerMessage(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(formRequest("/voice-response", callForm(url.Values{"message": {"నమస్కారం"}})))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"నమస్కారం"}, env.provider.calls())
}

func TestVoiceResponse_PlaceholderKey(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.TTS.ElevenLabs.APIKey = config.PlaceholderAPIKey
	})

	w := env.do(formRequest("/voice-response", callForm(url.Values{"message": {"test"}})))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.NotContains(t, w.Body.String(), "<Response>")
	assert.Empty(t, env.provider.calls(), "no network call may be made")

	_, err := os.Stat(env.store.Path())
	assert.True(t, os.IsNotExist(err), "no artifact may be written")
}

func TestVoiceResponse_EmptyMessage(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(formRequest("/voice-response", callForm(url.Values{"message": {"   "}})))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.provider.calls())
}

func TestVoiceResponse_ProviderFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provider.respond(http.StatusUnauthorized, nil)

	w := env.do(formRequest("/voice-response", callForm(nil)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to generate audio\n", w.Body.String())

	_, err := os.Stat(env.store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestVoiceResponse_EmptyAudio(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provider.respond(http.StatusOK, nil)

	w := env.do(formRequest("/voice-response", callForm(nil)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "<Play>")

	// The empty artifact is on disk but must not be served as audio.
	w = env.do(httptest.NewRequest(http.MethodGet, "/audio/mla-response.mp3", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// undecodableAudio searches seeded sync-word-prefixed buffers for one that
// makes the MP3 decoder panic.
func undecodableAudio() []byte {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 20000 {
		b := make([]byte, 4+rng.IntN(2048))
		for j := range b {
			b[j] = byte(rng.Uint32())
		}
		b[0], b[1] = 0xFF, 0xFB
		if decoderPanics(b) {
			return b
		}
	}
	return nil
}

func decoderPanics(data []byte) (panicked bool) {
	defer func() {
		if recover() != nil {
			panicked = true
		}
	}()
	_, _ = mp3.NewDecoder(bytes.NewReader(data))
	return false
}

func TestVoiceResponse_UndecodableAudioStillPlays(t *testing.T) {
	audio := undecodableAudio()
	if audio == nil {
		t.Skip("no buffer in the corpus trips the decoder")
	}
	env := newTestEnv(t, nil)
	env.provider.respond(http.StatusOK, audio)

	w := env.do(formRequest("/voice-response", callForm(nil)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "<Play>http://example.com/audio/mla-response.mp3</Play>")

	w = env.do(httptest.NewRequest(http.MethodGet, "/audio/mla-response.mp3", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, audio, w.Body.Bytes())
}

func TestVoiceResponse_BaseURL(t *testing.T) {
	t.Run("forwarded proto", func(t *testing.T) {
		env := newTestEnv(t, nil)
		req := formRequest("/voice-response", callForm(nil))
		req.Host = "calls.example.org"
		req.Header.Set("X-Forwarded-Proto", "https")

		w := env.do(req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "<Play>https://calls.example.org/audio/mla-response.mp3</Play>")
	})

	t.Run("configured public url", func(t *testing.T) {
		env := newTestEnv(t, func(c *config.Config) {
			c.Server.PublicBaseURL = "https://abc.ngrok.app/"
		})

		w := env.do(formRequest("/voice-response", callForm(nil)))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "<Play>https://abc.ngrok.app/audio/mla-response.mp3</Play>")
	})
}

func TestAudio_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/audio/missing.mp3", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhook(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  string
		wantFields  int
	}{
		{"json object", "application/json", `{"event":"call.completed","CallSid":"CA42"}`, message.StatusSuccess, 2},
		{"json array", "application/json", `[1,2,3]`, message.StatusSuccess, 1},
		{"form", "application/x-www-form-urlencoded", "CallSid=CA42&Status=completed&Digits=1", message.StatusSuccess, 3},
		{"empty", "application/json", "", message.StatusWarning, 0},
		{"malformed json", "application/json", `{"event":`, message.StatusWarning, 0},
		{"unknown type", "text/plain", "hello", message.StatusWarning, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			w := env.do(req)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var res message.WebhookResult
			require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantFields, res.Fields)
			assert.NotEmpty(t, res.RequestID)
		})
	}
}

func TestWebhook_OversizedBody(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `{"blob":"` + strings.Repeat("a", maxWebhookBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := env.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	var res message.WebhookResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, message.StatusError, res.Status)
	assert.Contains(t, res.Message, "Payload exceeds")
}

type failingHandler struct{}

func (failingHandler) HandleCall(context.Context, *message.CallEvent) (*message.CallResult, error) {
	panic("boom")
}

func (failingHandler) HandleWebhook(context.Context, *message.WebhookPayload) (*message.WebhookResult, error) {
	return nil, errors.New("storage offline")
}

func TestInternalFailures(t *testing.T) {
	h := New(Options{Handler: failingHandler{}}).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, formRequest("/voice-response", callForm(nil)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error\n", w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"a":1}`)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var res message.WebhookResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, message.StatusError, res.Status)
	assert.Equal(t, "storage offline", res.Message)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.TTS.ElevenLabs.VoiceID = config.PlaceholderVoiceID
	})

	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.False(t, env.checker.Run(context.Background()).Healthy())
}

func TestPages(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome to callvoice")
	assert.Contains(t, w.Body.String(), `action="/greet"`)

	w = env.do(httptest.NewRequest(http.MethodGet, "/greet", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<form")

	w = env.do(formRequest("/greet", url.Values{"name": {"<script>alert(1)</script>"}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hello, &lt;script&gt;")
	assert.NotContains(t, w.Body.String(), "<script>")

	w = env.do(formRequest("/greet", url.Values{}))
	assert.Contains(t, w.Body.String(), "Hello, Guest!")

	w = env.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCallErrorResponse(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantBody   string
	}{
		{tts.ErrInvalidInput, http.StatusBadRequest, "Invalid message"},
		{voicexml.ErrInvalidURL, http.StatusBadRequest, "Invalid message"},
		{tts.ErrNotConfigured, http.StatusInternalServerError, "Failed to generate audio"},
		{tts.ErrTimeout, http.StatusInternalServerError, "Failed to generate audio"},
		{tts.ErrConnection, http.StatusInternalServerError, "Failed to generate audio"},
		{&tts.ProviderError{Status: 429}, http.StatusInternalServerError, "Failed to generate audio"},
		{&artifact.StoreError{Op: "verify", Err: artifact.ErrEmpty}, http.StatusInternalServerError, "Failed to generate audio"},
		{tts.ErrUnexpected, http.StatusInternalServerError, "Internal server error"},
		{errors.New("anything else"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, body := callErrorResponse(fmt.Errorf("synthesizing: %w", tt.err))
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestSwaggerDoc(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "/voice-response")
}
