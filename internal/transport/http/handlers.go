package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/nadzzz/callvoice/internal/artifact"
	"github.com/nadzzz/callvoice/internal/audio"
	"github.com/nadzzz/callvoice/internal/message"
	"github.com/nadzzz/callvoice/internal/tts"
	"github.com/nadzzz/callvoice/internal/voicexml"
)

// handleVoiceResponse processes a POST /voice-response call event.
//
// @Summary     Answer an inbound call
// @Description Synthesizes the optional Telugu message (or the default greeting), stores it as the
// @Description audio artifact and returns a voice document that plays it back to the caller.
// @Tags        telephony
// @Accept      x-www-form-urlencoded
// @Produce     xml
// @Param       CallSid     formData  string  false  "Provider call identifier"
// @Param       CallFrom    formData  string  false  "Caller number"
// @Param       CallTo      formData  string  false  "Dialled number"
// @Param       CallStatus  formData  string  false  "Provider call status"
// @Param       message     formData  string  false  "Text to speak; the default greeting is used when absent"
// @Success     200  {string}  string  "Voice document with a single Play element"
// @Failure     400  {string}  string  "Invalid message"
// @Failure     500  {string}  string  "Failed to generate audio"
// @Router      /voice-response [post]
func (t *Transport) handleVoiceResponse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}

	ev := message.NewCallEvent()
	ev.CallSid = r.PostForm.Get("CallSid")
	ev.CallFrom = r.PostForm.Get("CallFrom")
	ev.CallTo = r.PostForm.Get("CallTo")
	ev.CallStatus = r.PostForm.Get("CallStatus")
	if vals, ok := r.PostForm["message"]; ok && len(vals) > 0 {
		ev.Message = vals[0]
		ev.HasMessage = true
	}
	ev.BaseURL = t.baseURL(r)

	res, err := t.handler.HandleCall(r.Context(), ev)
	if err != nil {
		status, body := callErrorResponse(err)
		http.Error(w, body, status)
		return
	}

	w.Header().Set("Content-Type", voicexml.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Document)
}

// callErrorResponse maps a call flow failure to a status code and a fixed
// plain-text body. This is the only place the error kinds become HTTP.
func callErrorResponse(err error) (int, string) {
	var providerErr *tts.ProviderError
	var storeErr *artifact.StoreError
	switch {
	case errors.Is(err, tts.ErrInvalidInput), errors.Is(err, voicexml.ErrInvalidURL):
		return http.StatusBadRequest, "Invalid message"
	case errors.Is(err, tts.ErrNotConfigured),
		errors.Is(err, tts.ErrTimeout),
		errors.Is(err, tts.ErrConnection),
		errors.As(err, &providerErr),
		errors.As(err, &storeErr):
		return http.StatusInternalServerError, "Failed to generate audio"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// handleAudio serves a stored audio file.
//
// @Summary     Fetch synthesized audio
// @Tags        telephony
// @Produce     audio/mpeg
// @Param       filename  path  string  true  "Audio file name (e.g. mla-response.mp3)"
// @Success     200  {file}    file    "Audio bytes"
// @Failure     404  {string}  string  "Not found"
// @Failure     500  {string}  string  "Audio file is empty"
// @Router      /audio/{filename} [get]
func (t *Transport) handleAudio(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	f, info, err := t.audio.Open(name)
	if err != nil {
		switch {
		case errors.Is(err, artifact.ErrNotFound):
			http.Error(w, "Not found", http.StatusNotFound)
		case errors.Is(err, artifact.ErrEmpty):
			slog.Error("serving empty audio file", "file", name)
			http.Error(w, "Audio file is empty", http.StatusInternalServerError)
		default:
			slog.Error("opening audio file", "file", name, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}
	defer f.Close()

	// The artifact is rewritten by every call; never let a proxy reuse it.
	w.Header().Set("Content-Type", audio.ContentType(name))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// handleWebhook acknowledges a generic webhook delivery.
//
// @Summary     Receive a webhook
// @Description Accepts any JSON or form body. Empty payloads are acknowledged with status "warning".
// @Tags        webhook
// @Accept      json
// @Accept      x-www-form-urlencoded
// @Produce     json
// @Success     200  {object}  message.WebhookResult
// @Failure     413  {object}  message.WebhookResult
// @Failure     500  {object}  message.WebhookResult
// @Router      /webhook [post]
func (t *Transport) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("webhook body too large", "limit", tooLarge.Limit)
			writeJSON(w, http.StatusRequestEntityTooLarge, message.WebhookResult{
				Status:  message.StatusError,
				Message: fmt.Sprintf("Payload exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		slog.Error("reading webhook body", "error", err)
		writeJSON(w, http.StatusInternalServerError, message.WebhookResult{
			Status:  message.StatusError,
			Message: err.Error(),
		})
		return
	}

	contentType := r.Header.Get("Content-Type")
	payload := message.NewWebhookPayload(contentType, parseWebhookBody(contentType, body))

	res, err := t.handler.HandleWebhook(r.Context(), payload)
	if err != nil {
		slog.Error("handling webhook", "request_id", payload.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, message.WebhookResult{
			Status:    message.StatusError,
			Message:   err.Error(),
			RequestID: payload.ID,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseWebhookBody decodes a JSON object or a urlencoded form. Bodies that
// fail to decode yield no fields.
func parseWebhookBody(contentType string, body []byte) map[string]any {
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			slog.Debug("webhook body is not valid json", "error", err)
			return nil
		}
		switch vv := v.(type) {
		case map[string]any:
			return vv
		case nil:
			return nil
		default:
			return map[string]any{"payload": vv}
		}
	}

	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			slog.Debug("webhook body is not a valid form", "error", err)
			return nil
		}
		fields := make(map[string]any, len(values))
		for k, v := range values {
			if len(v) == 1 {
				fields[k] = v[0]
			} else {
				fields[k] = v
			}
		}
		return fields
	}

	return nil
}

// handleHealth runs the health sub-checks and always answers OK.
//
// @Summary     Health check
// @Tags        health
// @Produce     plain
// @Success     200  {string}  string  "OK"
// @Router      /health [get]
func (t *Transport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if t.health != nil {
		report := t.health.Run(r.Context())
		slog.Info("health check", "status", report.Status, "checks", report.Checks)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding json response", "error", err)
	}
}
