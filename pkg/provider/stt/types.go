package stt

import (
	"strings"
	"time"
)

// Format identifies the container or encoding of a [Recording].
type Format string

const (
	// FormatPCM is raw 16-bit signed little-endian PCM.
	FormatPCM  Format = "pcm"
	FormatWAV  Format = "wav"
	FormatM4A  Format = "m4a"
	FormatMP3  Format = "mp3"
	FormatWebM Format = "webm"
)

// ParseFormat maps a file extension or MIME type to a Format. Unknown values
// yield "".
func ParseFormat(s string) Format {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, ".")
	switch s {
	case "pcm", "raw", "s16le", "audio/l16", "audio/pcm":
		return FormatPCM
	case "wav", "wave", "audio/wav", "audio/x-wav", "audio/wave":
		return FormatWAV
	case "m4a", "mp4", "audio/m4a", "audio/mp4", "audio/x-m4a":
		return FormatM4A
	case "mp3", "mpeg", "audio/mpeg", "audio/mp3":
		return FormatMP3
	case "webm", "audio/webm":
		return FormatWebM
	}
	return ""
}

// Recording is one complete reading attempt.
type Recording struct {
	// Audio holds the encoded bytes in Format.
	Audio []byte

	Format Format

	// SampleRate and Channels describe FormatPCM audio. They are ignored for
	// self-describing containers. Zero means 16000 Hz mono.
	SampleRate int
	Channels   int

	// Language is the BCP-47 language hint. Empty lets the provider decide.
	Language string

	// Prompt is an optional text hint. Passing the passage text here improves
	// recognition of the words the child was supposed to read.
	Prompt string
}

// Filename returns a file name with an extension matching r.Format, for
// multipart uploads.
func (r Recording) Filename() string {
	switch r.Format {
	case FormatPCM:
		return "recording.wav"
	case "":
		return "recording"
	}
	return "recording." + string(r.Format)
}

// Transcript is the result of transcribing a [Recording].
type Transcript struct {
	// Text is the recognised speech.
	Text string

	// Confidence is the overall confidence in [0, 1]. Zero if the provider
	// does not report it.
	Confidence float64

	// Words holds per-word detail when the provider supports it.
	Words []WordDetail

	// Language is the detected or requested language.
	Language string

	// Duration is the audio length when known.
	Duration time.Duration

	// Provider names the backend that produced the text.
	Provider string
}

// WordDetail holds per-word metadata from providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}
