// Package naming derives short, filesystem-safe file names from content.
package naming

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AltairaLabs/mediakit/logger"
	"github.com/AltairaLabs/mediakit/metrics"
)

const (
	// DefaultBaseURL is the Anthropic API base.
	DefaultBaseURL = "https://api.anthropic.com/v1"

	// DefaultModel is a small, fast model; the output is a handful of words.
	DefaultModel = "claude-haiku-4-5-20251001"

	anthropicVersionKey   = "anthropic-version"
	anthropicVersionValue = "2023-06-01"

	providerName = "anthropic"

	maxTokens      = 50
	maxPromptRunes = 500

	defaultTimeout = 30 * time.Second
)

// ErrEmptyDescription is returned when the model replies with no text.
var ErrEmptyDescription = errors.New("empty description")

const promptTemplate = `Generate a short filename description for this spoken text.
Rules:
- Use 3-5 words, lowercase, separated by hyphens
- Describe the content/topic, not that it's speech
- No special characters, just letters and hyphens
- Reply with ONLY the filename, nothing else

Text: "%s"
`

// Describer turns text into a short hyphenated description.
type Describer interface {
	Describe(ctx context.Context, text string) (string, error)
}

// AnthropicDescriber asks a Claude model for the description.
type AnthropicDescriber struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// Option configures an AnthropicDescriber.
type Option func(*AnthropicDescriber)

// WithBaseURL sets the API base URL. Empty values are ignored.
func WithBaseURL(url string) Option {
	return func(d *AnthropicDescriber) {
		if url != "" {
			d.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(d *AnthropicDescriber) {
		if model != "" {
			d.model = model
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *AnthropicDescriber) {
		d.client = client
	}
}

// NewAnthropicDescriber creates a describer backed by the Messages API.
func NewAnthropicDescriber(apiKey string, opts ...Option) *AnthropicDescriber {
	d := &AnthropicDescriber{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Describe returns the sanitized description for text.
func (d *AnthropicDescriber) Describe(ctx context.Context, text string) (string, error) {
	reqBody := messagesRequest{
		Model:     d.model,
		MaxTokens: maxTokens,
		Messages: []message{{
			Role:    "user",
			Content: fmt.Sprintf(promptTemplate, truncateRunes(text, maxPromptRunes)),
		}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := d.baseURL + "/messages"
	ctx = logger.WithModel(logger.WithProvider(ctx, providerName), d.model)
	logger.APIRequest(ctx, providerName, http.MethodPost, url, map[string]string{"x-api-key": d.apiKey}, reqBody)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", d.apiKey)
	httpReq.Header.Set(anthropicVersionKey, anthropicVersionValue)

	start := time.Now()
	desc, err := d.do(ctx, httpReq)
	metrics.RecordRequest(providerName, "describe", err, time.Since(start))
	return desc, err
}

func (d *AnthropicDescriber) do(ctx context.Context, httpReq *http.Request) (string, error) {
	resp, err := d.client.Do(httpReq)
	if err != nil {
		logger.APIResponse(ctx, providerName, 0, "", err)
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed messagesResponse
	jsonErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("anthropic: HTTP %d: %s", resp.StatusCode, string(raw))
		if jsonErr == nil && parsed.Error != nil {
			err = fmt.Errorf("anthropic: HTTP %d: %s: %s", resp.StatusCode, parsed.Error.Type, parsed.Error.Message)
		}
		logger.APIResponse(ctx, providerName, resp.StatusCode, "", err)
		return "", err
	}
	logger.APIResponse(ctx, providerName, resp.StatusCode, string(raw), nil)
	if jsonErr != nil {
		return "", fmt.Errorf("failed to decode response: %w", jsonErr)
	}

	for _, c := range parsed.Content {
		if c.Type == "text" && strings.TrimSpace(c.Text) != "" {
			return Sanitize(c.Text), nil
		}
	}
	return "", ErrEmptyDescription
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
