package naming

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"grandpa-fishing-story", "grandpa-fishing-story"},
		{"  Grandpa Fishing Story\n", "grandpa-fishing-story"},
		{"weather--report!!", "weather-report"},
		{"--leading and trailing--", "leading-and-trailing"},
		{"café 2024 news", "caf-news"},
		{"1234", Fallback},
		{"", Fallback},
		{"\"quoted-name\"", "quoted-name"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()

	p, err := UniquePath(dir, "grandpa-story", ".mp3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "grandpa-story.mp3"), p)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))

	p, err = UniquePath(dir, "grandpa-story", "mp3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "grandpa-story-1.mp3"), p)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))

	p, err = UniquePath(dir, "grandpa-story", "mp3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "grandpa-story-2.mp3"), p)
}

func TestAnthropicDescriber_Describe(t *testing.T) {
	long := strings.Repeat("é", 600)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, 50, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Contains(t, req.Messages[0].Content, "Use 3-5 words")
		assert.Contains(t, req.Messages[0].Content, strings.Repeat("é", 500)+"\"")
		assert.NotContains(t, req.Messages[0].Content, strings.Repeat("é", 501))

		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"  Long-Accented Rambling!\n"}]}`)
	}))
	defer server.Close()

	d := NewAnthropicDescriber("test-key", WithBaseURL(server.URL+"/v1/"))
	got, err := d.Describe(context.Background(), long)
	require.NoError(t, err)
	assert.Equal(t, "long-accented-rambling", got)
}

func TestAnthropicDescriber_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error", 401, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, "authentication_error: invalid x-api-key"},
		{"plain error", 500, `upstream down`, "HTTP 500: upstream down"},
		{"bad json", 200, `{`, "failed to decode response"},
		{"no text", 200, `{"content":[]}`, ErrEmptyDescription.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := NewAnthropicDescriber("k", WithBaseURL(server.URL)).Describe(context.Background(), "hi")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWithModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-sonnet-4-5", req.Model)
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"ok"}]}`)
	}))
	defer server.Close()

	d := NewAnthropicDescriber("k", WithBaseURL(server.URL), WithModel("claude-sonnet-4-5"), WithModel(""))
	got, err := d.Describe(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
