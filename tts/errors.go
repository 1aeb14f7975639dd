package tts

import "errors"

// Common TTS errors.
var (
	// ErrInvalidVoice is returned for an unknown voice name or a voice the
	// provider rejects.
	ErrInvalidVoice = errors.New("invalid or unsupported voice")

	// ErrEmptyText is returned when attempting to synthesize empty text.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrRateLimited is returned when API rate limits are exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnauthorized is returned when the API key is rejected.
	ErrUnauthorized = errors.New("invalid API key")
)

// SynthesisError carries the provider's error detail.
type SynthesisError struct {
	Provider string

	// Code is the provider status string, e.g. "voice_not_found".
	Code string

	Message string

	// HTTPStatus is zero for transport failures.
	HTTPStatus int

	Cause error

	// Retryable indicates a later attempt may succeed.
	Retryable bool
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Cause
}
