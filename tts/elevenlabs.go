package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AltairaLabs/mediakit/logger"
	"github.com/AltairaLabs/mediakit/metrics"
)

const (
	// ElevenLabsBaseURL is the default API base.
	ElevenLabsBaseURL = "https://api.elevenlabs.io/v1"

	// ElevenLabsModelMultilingual is the multilingual v2 model.
	ElevenLabsModelMultilingual = "eleven_multilingual_v2"
	// ElevenLabsModelTurbo is the fast turbo v2.5 model.
	ElevenLabsModelTurbo = "eleven_turbo_v2_5"

	providerName = "elevenlabs"

	defaultElevenLabsTimeout = 60 * time.Second

	elevenLabsDefaultStability       = 0.5
	elevenLabsDefaultSimilarityBoost = 0.75
)

// ElevenLabsService implements Service against the ElevenLabs
// text-to-speech endpoint.
type ElevenLabsService struct {
	apiKey  string
	baseURL string
	client  *http.Client
	model   string
	format  AudioFormat
}

// ElevenLabsOption configures the ElevenLabs TTS service.
type ElevenLabsOption func(*ElevenLabsService)

// WithElevenLabsBaseURL sets a custom base URL. Empty values are ignored.
func WithElevenLabsBaseURL(url string) ElevenLabsOption {
	return func(s *ElevenLabsService) {
		if url != "" {
			s.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithElevenLabsClient sets a custom HTTP client.
func WithElevenLabsClient(client *http.Client) ElevenLabsOption {
	return func(s *ElevenLabsService) {
		s.client = client
	}
}

// WithElevenLabsModel sets the TTS model.
func WithElevenLabsModel(model string) ElevenLabsOption {
	return func(s *ElevenLabsService) {
		if model != "" {
			s.model = model
		}
	}
}

// WithElevenLabsFormat sets the default output format.
func WithElevenLabsFormat(format AudioFormat) ElevenLabsOption {
	return func(s *ElevenLabsService) {
		s.format = format
	}
}

// NewElevenLabs creates an ElevenLabs TTS service.
func NewElevenLabs(apiKey string, opts ...ElevenLabsOption) *ElevenLabsService {
	s := &ElevenLabsService{
		apiKey:  apiKey,
		baseURL: ElevenLabsBaseURL,
		client:  &http.Client{Timeout: defaultElevenLabsTimeout},
		model:   ElevenLabsModelMultilingual,
		format:  FormatMP3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider identifier.
func (s *ElevenLabsService) Name() string {
	return providerName
}

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id,omitempty"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to audio. The returned reader streams the
// response body; the caller must close it.
//
//nolint:gocritic // hugeParam: SynthesisConfig passed by value to satisfy Service interface
func (s *ElevenLabsService) Synthesize(
	ctx context.Context, text string, config SynthesisConfig,
) (io.ReadCloser, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if config.Voice == "" {
		return nil, fmt.Errorf("%w: voice ID is required", ErrInvalidVoice)
	}

	model := config.Model
	if model == "" {
		model = s.model
	}
	format := config.Format
	if format.Name == "" {
		format = s.format
	}

	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: model,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       elevenLabsDefaultStability,
			SimilarityBoost: elevenLabsDefaultSimilarityBoost,
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", s.baseURL, config.Voice, format.Name)

	ctx = logger.WithModel(logger.WithProvider(ctx, providerName), model)
	logger.APIRequest(ctx, providerName, http.MethodPost, endpoint,
		map[string]string{"xi-api-key": s.apiKey}, map[string]any{"chars": len(text), "voice": config.Voice})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", format.MIMEType)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RecordRequest(providerName, "synthesize", err, time.Since(start))
		logger.APIResponse(ctx, providerName, 0, "", err)
		return nil, &SynthesisError{Provider: providerName, Message: "request failed", Cause: err, Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		synthErr := handleError(resp)
		metrics.RecordRequest(providerName, "synthesize", synthErr, time.Since(start))
		logger.APIResponse(ctx, providerName, resp.StatusCode, "", synthErr)
		return nil, synthErr
	}

	metrics.RecordRequest(providerName, "synthesize", nil, time.Since(start))
	logger.APIResponse(ctx, providerName, resp.StatusCode, resp.Header.Get("Content-Type"), nil)
	return &countingBody{ReadCloser: resp.Body}, nil
}

// countingBody records received bytes once the caller closes the stream.
type countingBody struct {
	io.ReadCloser
	n int
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += n
	return n, err
}

func (b *countingBody) Close() error {
	metrics.RecordBytes(providerName, "received", b.n)
	return b.ReadCloser.Close()
}

type elevenLabsErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

type elevenLabsErrorDetail struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func handleError(resp *http.Response) error {
	retryable := resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode >= http.StatusInternalServerError

	var cause error
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		cause = ErrRateLimited
	case http.StatusUnauthorized:
		cause = ErrUnauthorized
	case http.StatusNotFound:
		cause = ErrInvalidVoice
	}

	synthErr := &SynthesisError{
		Provider:   providerName,
		Code:       fmt.Sprintf("%d", resp.StatusCode),
		Message:    "Unknown error",
		HTTPStatus: resp.StatusCode,
		Cause:      cause,
		Retryable:  retryable,
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return synthErr
	}
	var errResp elevenLabsErrorResponse
	if json.Unmarshal(raw, &errResp) != nil || len(errResp.Detail) == 0 {
		return synthErr
	}

	// detail is an object for API errors and a plain string for some
	// validation failures.
	var detail elevenLabsErrorDetail
	if json.Unmarshal(errResp.Detail, &detail) == nil {
		if detail.Status != "" {
			synthErr.Code = detail.Status
		}
		if detail.Message != "" {
			synthErr.Message = detail.Message
		}
		return synthErr
	}
	var msg string
	if json.Unmarshal(errResp.Detail, &msg) == nil && msg != "" {
		synthErr.Message = msg
	}
	return synthErr
}
