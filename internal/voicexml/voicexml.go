// Package voicexml renders the voice-response documents understood by
// TwiML-compatible telephony providers (Exotel, Twilio).
package voicexml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ContentType is the MIME type telephony providers expect for documents.
const ContentType = "text/xml"

// ErrInvalidURL is returned when the audio URL is empty.
var ErrInvalidURL = errors.New("voicexml: audio url is empty")

// Response is the document root. It carries exactly one Play instruction.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Play    string   `xml:"Play"`
}

// Build returns a document instructing the provider to play audioURL.
func Build(audioURL string) ([]byte, error) {
	if strings.TrimSpace(audioURL) == "" {
		return nil, ErrInvalidURL
	}
	body, err := xml.MarshalIndent(Response{Play: audioURL}, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("voicexml: marshalling: %w", err)
	}
	doc := make([]byte, 0, len(xml.Header)+len(body))
	doc = append(doc, xml.Header...)
	return append(doc, body...), nil
}
