// Package http implements the HTTP transport for callvoice.
//
// This transport faces the telephony provider: it accepts call events,
// serves the synthesized audio back to the provider, acknowledges generic
// webhooks, and answers the plain-text health probe. It also carries the
// demonstration pages and the Swagger UI.
package http

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/callvoice/docs"
	"github.com/nadzzz/callvoice/internal/health"
	"github.com/nadzzz/callvoice/internal/transport"
)

const (
	maxFormBytes    = 1 << 20
	maxWebhookBytes = 1 << 20
)

// AudioSource opens stored audio files by bare name.
type AudioSource interface {
	Open(name string) (*os.File, fs.FileInfo, error)
}

// HealthRunner runs the health sub-checks.
type HealthRunner interface {
	Run(ctx context.Context) health.Report
}

// Options configures the HTTP transport.
type Options struct {
	Port int

	// PublicBaseURL, when set, replaces the request-derived scheme and host
	// in audio URLs handed to the telephony provider.
	PublicBaseURL string

	Handler transport.Handler
	Audio   AudioSource
	Health  HealthRunner
}

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port          int
	publicBaseURL string
	handler       transport.Handler
	audio         AudioSource
	health        HealthRunner
	server        *http.Server
}

// New creates a new HTTP transport.
func New(opts Options) *Transport {
	return &Transport{
		port:          opts.Port,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/"),
		handler:       opts.Handler,
		audio:         opts.Audio,
		health:        opts.Health,
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler returns the routed, middleware-wrapped HTTP handler.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()

	// POST /voice-response: call event in, voice document out.
	mux.HandleFunc("POST /voice-response", t.handleVoiceResponse)

	// GET /audio/{filename}: the stored artifact, fetched by the provider.
	mux.HandleFunc("GET /audio/{filename}", t.handleAudio)

	mux.HandleFunc("POST /webhook", t.handleWebhook)
	mux.HandleFunc("GET /health", t.handleHealth)

	// Demonstration pages.
	mux.HandleFunc("GET /{$}", handleWelcome)
	mux.HandleFunc("GET /greet", handleGreetForm)
	mux.HandleFunc("POST /greet", handleGreet)

	// Swagger UI serves the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return recoverer(logRequests(mux))
}

// Listen starts the HTTP server. It blocks until the context is cancelled.
func (t *Transport) Listen(ctx context.Context) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

// baseURL returns the scheme and host the provider used to reach us.
func (t *Transport) baseURL(r *http.Request) string {
	if t.publicBaseURL != "" {
		return t.publicBaseURL
	}
	if r.Host == "" {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// recoverer turns a panicking handler into a plain-text 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				slog.Error("handler panic", "method", r.Method, "path", r.URL.Path, "panic", v)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
