// Package audio inspects encoded audio produced by the synthesizer.
package audio

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// Info describes a decoded MP3 stream.
type Info struct {
	SampleRate int
	Duration   time.Duration
}

// ProbeMP3 decodes the MP3 headers in data and returns its duration.
// go-mp3 always decodes to 16-bit stereo, so one sample frame is 4 bytes.
// Malformed frames can panic inside the decoder; that is reported as an error.
func ProbeMP3(data []byte) (info Info, err error) {
	defer func() {
		if v := recover(); v != nil {
			info, err = Info{}, fmt.Errorf("probing mp3: decoder panic: %v", v)
		}
	}()

	if len(data) == 0 {
		return Info{}, fmt.Errorf("probing mp3: no data")
	}
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("probing mp3: %w", err)
	}
	rate := d.SampleRate()
	if rate <= 0 {
		return Info{}, fmt.Errorf("probing mp3: invalid sample rate %d", rate)
	}
	frames := d.Length() / 4
	return Info{
		SampleRate: rate,
		Duration:   time.Duration(frames) * time.Second / time.Duration(rate),
	}, nil
}

var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".ulaw": "audio/basic",
}

// ContentType returns the MIME type for an audio file name.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
