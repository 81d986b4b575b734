// Package transport defines the contract for pluggable listeners.
//
// The HTTP transport carries the telephony-facing traffic; the gRPC
// transport exposes the standard health service for orchestrators. Both are
// started and stopped by the daemon in the same way.
package transport

import (
	"context"

	"github.com/nadzzz/callvoice/internal/message"
)

// Handler processes the requests a transport receives. The dispatcher
// provides it to each transport that needs one.
type Handler interface {
	// HandleCall runs a call event through the synthesis flow.
	HandleCall(ctx context.Context, ev *message.CallEvent) (*message.CallResult, error)

	// HandleWebhook acknowledges a generic webhook delivery.
	HandleWebhook(ctx context.Context, p *message.WebhookPayload) (*message.WebhookResult, error)
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "http", "grpc").
	Name() string

	// Listen starts accepting requests. It blocks until the context is
	// cancelled or the listener fails.
	Listen(ctx context.Context) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
