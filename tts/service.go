package tts

import (
	"context"
	"io"
)

// Service converts text to speech audio.
type Service interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio. The caller closes the reader.
	Synthesize(ctx context.Context, text string, config SynthesisConfig) (io.ReadCloser, error)
}

// SynthesisConfig configures one synthesis call. Zero values fall back to
// the service defaults.
type SynthesisConfig struct {
	// Voice is the provider voice ID, not the friendly name.
	Voice string

	Format AudioFormat

	// Model is the provider model, e.g. eleven_multilingual_v2.
	Model string
}

// AudioFormat describes an audio output format.
type AudioFormat struct {
	// Name is the provider-specific format identifier, e.g. mp3_44100_128.
	Name      string
	MIMEType  string
	Extension string
}

// FormatMP3 is 44.1kHz 128kbps MP3, the ElevenLabs default.
var FormatMP3 = AudioFormat{Name: "mp3_44100_128", MIMEType: "audio/mpeg", Extension: "mp3"}

// String returns the format name.
func (f AudioFormat) String() string {
	return f.Name
}
