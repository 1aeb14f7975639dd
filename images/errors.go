package images

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoImages is returned when a successful response carries no image data.
var ErrNoImages = errors.New("no image data in response")

// APIError is a non-2xx response from the Images API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("openai: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("openai: HTTP %d: %s", e.StatusCode, truncate(e.Body, maxQuotedBody))
}

// Retryable reports whether the status suggests a later attempt may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// maxQuotedBody bounds how much of an unparseable body ends up in errors.
const maxQuotedBody = 300

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: body}

	var obj map[string]any
	if json.Unmarshal(body, &obj) != nil {
		return apiErr
	}
	switch v := obj["error"].(type) {
	case string:
		apiErr.Message = v
	case map[string]any:
		if m, ok := v["message"].(string); ok {
			apiErr.Message = m
		}
	}
	return apiErr
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return fmt.Sprintf("%q...", b[:n])
	}
	return fmt.Sprintf("%q", b)
}
