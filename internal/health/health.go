// Package health provides liveness and readiness reporting.
//
// Docker and Kubernetes poll /healthz and /readyz on the dedicated health
// port. The Checker runs named sub-checks (synthesis credentials, artifact
// directory, last artifact) and is also used by the public /health endpoint,
// which logs the outcome but always answers OK.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Report statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFailing  = "failing"
)

// CheckFunc returns nil when the checked dependency is healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one sub-check.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Report aggregates all sub-checks.
type Report struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Healthy reports whether every sub-check passed.
func (r Report) Healthy() bool { return r.Status == StatusOK }

type namedCheck struct {
	name string
	fn   CheckFunc
}

// Checker runs registered sub-checks. Register is not safe for use once
// the checker is serving requests.
type Checker struct {
	checks  []namedCheck
	timeout time.Duration
}

// NewChecker creates a checker whose sub-checks share a per-run timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{timeout: timeout}
}

// Register adds a named sub-check.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.checks = append(c.checks, namedCheck{name: name, fn: fn})
}

// Run executes every sub-check and logs the failures.
func (c *Checker) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	report := Report{Status: StatusOK, Checks: make(map[string]CheckResult, len(c.checks))}
	for _, chk := range c.checks {
		if err := chk.fn(ctx); err != nil {
			report.Status = StatusDegraded
			report.Checks[chk.name] = CheckResult{Status: StatusFailing, Error: err.Error()}
			slog.Warn("health check failing", "check", chk.name, "error", err)
			continue
		}
		report.Checks[chk.name] = CheckResult{Status: StatusOK}
	}
	slog.Debug("health checks complete", "status", report.Status, "checks", len(report.Checks))
	return report
}

// Server is a lightweight HTTP server that exposes /healthz and /readyz.
type Server struct {
	port    int
	checker *Checker
	ready   atomic.Bool
	server  *http.Server
}

// New creates a new health check server.
func New(port int, checker *Checker) *Server {
	return &Server{port: port, checker: checker}
}

// SetReady marks the daemon as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Ready reports the current readiness flag.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

// Handler returns the health routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// /healthz carries the detailed report; a degraded report still
	// answers 200 so that missing credentials don't restart the pod.
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !s.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready"})
			return
		}
		report := Report{Status: StatusOK}
		if s.checker != nil {
			report = s.checker.Run(r.Context())
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(report)
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !s.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	return mux
}

// ListenAndServe starts the health check HTTP server.
// It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("health server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
