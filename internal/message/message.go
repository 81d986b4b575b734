// Package message defines the data types flowing between transports and the
// call dispatcher.
package message

import (
	"time"

	"github.com/google/uuid"
)

// CallEvent is an inbound call callback from the telephony provider.
type CallEvent struct {
	// ID is assigned by callvoice on receipt (UUID) and keys the logs.
	ID string `json:"id"`

	// CallSid is the provider's call identifier.
	CallSid string `json:"CallSid,omitempty"`

	// CallFrom is the caller's number.
	CallFrom string `json:"CallFrom,omitempty"`

	// CallTo is the dialled number.
	CallTo string `json:"CallTo,omitempty"`

	// CallStatus is the provider's call state (e.g., "ringing").
	CallStatus string `json:"CallStatus,omitempty"`

	// Message is the text to speak. Only meaningful when HasMessage is set;
	// otherwise the configured default message is spoken.
	Message    string `json:"message,omitempty"`
	HasMessage bool   `json:"-"`

	// BaseURL is the scheme and host under which callvoice is reachable
	// by the provider, without a trailing slash.
	BaseURL string `json:"-"`

	// ReceivedAt is when the event arrived.
	ReceivedAt time.Time `json:"received_at"`
}

// NewCallEvent returns an event with a fresh ID and receive time.
func NewCallEvent() *CallEvent {
	return &CallEvent{ID: uuid.NewString(), ReceivedAt: time.Now()}
}

// CallResult is the outcome of a successful call flow.
type CallResult struct {
	// AudioURL is the public URL of the stored artifact.
	AudioURL string

	// AudioBytes is the verified artifact size.
	AudioBytes int64

	// Duration is the decoded audio length; zero if the audio could not be probed.
	Duration time.Duration

	// Document is the voice-response markup to return to the provider.
	Document []byte
}

// WebhookPayload is an arbitrary JSON or form body posted to /webhook.
type WebhookPayload struct {
	ID          string
	ContentType string
	Fields      map[string]any
	ReceivedAt  time.Time
}

// NewWebhookPayload returns a payload with a fresh ID and receive time.
func NewWebhookPayload(contentType string, fields map[string]any) *WebhookPayload {
	return &WebhookPayload{
		ID:          uuid.NewString(),
		ContentType: contentType,
		Fields:      fields,
		ReceivedAt:  time.Now(),
	}
}

// Webhook result statuses.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"
)

// WebhookResult is the JSON body returned from /webhook.
type WebhookResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Fields    int    `json:"fields,omitempty"`
}
