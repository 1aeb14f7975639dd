// Package images calls the OpenAI Images API to generate and edit images.
//
// Generation requests are sent as JSON. Edit requests upload the source
// images, and an optional mask, as multipart/form-data built by the
// multipart package.
package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AltairaLabs/mediakit/logger"
	"github.com/AltairaLabs/mediakit/metrics"
	"github.com/AltairaLabs/mediakit/multipart"
)

const (
	// DefaultBaseURL is used when no base URL is configured.
	DefaultBaseURL = "https://api.openai.com"

	providerName = "openai"

	opGenerations = "generations"
	opEdits       = "edits"

	defaultTimeout = 180 * time.Second
)

// ResolveBaseURL picks the API base from OPENAI_BASE_URL, then
// OPENAI_API_BASE, then DefaultBaseURL. getenv is usually os.Getenv.
func ResolveBaseURL(getenv func(string) string) string {
	for _, key := range []string{"OPENAI_BASE_URL", "OPENAI_API_BASE"} {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return strings.TrimRight(v, "/")
		}
	}
	return DefaultBaseURL
}

// Endpoint joins base and an Images operation, adding /v1 unless base
// already ends with it.
func Endpoint(base, op string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") {
		return base + "/images/" + op
	}
	return base + "/v1/images/" + op
}

// Client talks to the OpenAI Images API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	encoder *multipart.Encoder
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the API base URL. Empty values are ignored.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithEncoder sets the multipart encoder used for edit uploads.
func WithEncoder(enc *multipart.Encoder) Option {
	return func(c *Client) {
		c.encoder = enc
	}
}

// NewClient creates an Images client. The base URL defaults to
// ResolveBaseURL(os.Getenv).
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: ResolveBaseURL(os.Getenv),
		client:  &http.Client{Timeout: defaultTimeout},
		encoder: multipart.NewEncoder(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint URL for an Images operation such as "edits".
func (c *Client) URL(op string) string {
	return Endpoint(c.baseURL, op)
}

// Image is one decoded result.
type Image struct {
	// Index is the 1-based position in the response's data array.
	Index         int
	Data          []byte
	RevisedPrompt string
}

// Result is a decoded Images API response.
type Result struct {
	Images []Image
	// Skipped lists 1-based indexes of entries that carried no b64_json.
	Skipped []int
	Model   string
}

// GenerateRequest is a text-to-image request.
type GenerateRequest struct {
	Model      string
	Prompt     string
	N          int
	Moderation string
	Options
}

// Validate checks the request before it is sent.
func (r *GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if r.N < 0 {
		return fmt.Errorf("%w: n must be positive", ErrInvalidRequest)
	}
	if err := oneOf("moderation", r.Moderation, ValidModerations); err != nil {
		return err
	}
	return r.Options.Validate()
}

type generateBody struct {
	Model             string `json:"model"`
	Prompt            string `json:"prompt"`
	Size              string `json:"size,omitempty"`
	Quality           string `json:"quality,omitempty"`
	OutputFormat      string `json:"output_format,omitempty"`
	N                 int    `json:"n"`
	Background        string `json:"background,omitempty"`
	OutputCompression *int   `json:"output_compression,omitempty"`
	Moderation        string `json:"moderation,omitempty"`
}

// Generate creates images from a prompt.
//
//nolint:gocritic // hugeParam: request passed by value to keep call sites simple
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body := generateBody{
		Model:             req.Model,
		Prompt:            req.Prompt,
		Size:              req.Size,
		Quality:           req.Quality,
		OutputFormat:      req.OutputFormat,
		N:                 req.N,
		Background:        req.Background,
		OutputCompression: req.Compression,
		Moderation:        req.Moderation,
	}
	if body.Model == "" {
		body.Model = GenerateModel
	}
	if body.N == 0 {
		body.N = 1
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx = logger.WithModel(ctx, body.Model)
	logger.APIRequest(ctx, providerName, http.MethodPost, Endpoint(c.baseURL, opGenerations), nil, body)
	return c.post(ctx, opGenerations, "application/json", payload)
}

// InputImage is a source image or mask read into memory by the caller.
type InputImage struct {
	Filename    string
	Data        []byte
	ContentType string
}

// EditRequest edits or composites one or more source images.
type EditRequest struct {
	Model         string
	Prompt        string
	Images        []InputImage
	Mask          *InputImage
	N             int
	InputFidelity string
	Options
}

// Validate checks the request before it is sent.
func (r *EditRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if len(r.Images) == 0 {
		return fmt.Errorf("%w: at least one input image is required", ErrInvalidRequest)
	}
	if len(r.Images) > MaxInputImages {
		return fmt.Errorf("%w: maximum %d input images allowed", ErrInvalidRequest, MaxInputImages)
	}
	if r.N < 0 {
		return fmt.Errorf("%w: n must be positive", ErrInvalidRequest)
	}
	if err := oneOf("input fidelity", r.InputFidelity, ValidInputFidelities); err != nil {
		return err
	}
	return r.Options.Validate()
}

// Fields returns the form fields for the request in wire order. Source
// images use the array-style key image[] so the API keeps their order.
//
//nolint:gocritic // hugeParam: mirrors Edit
func (r EditRequest) Fields() []multipart.Field {
	n := r.N
	if n == 0 {
		n = 1
	}

	fields := []multipart.Field{
		multipart.TextField("model", r.model()),
		multipart.TextField("prompt", r.Prompt),
	}
	for _, img := range r.Images {
		fields = append(fields, multipart.FileField("image[]", img.Filename, img.Data, img.ContentType))
	}
	if r.Mask != nil {
		ct := r.Mask.ContentType
		if ct == "" {
			ct = "image/png"
		}
		fields = append(fields, multipart.FileField("mask", r.Mask.Filename, r.Mask.Data, ct))
	}
	fields = append(fields, multipart.TextField("n", strconv.Itoa(n)))
	if r.Size != "" {
		fields = append(fields, multipart.TextField("size", r.Size))
	}
	if r.Quality != "" {
		fields = append(fields, multipart.TextField("quality", r.Quality))
	}
	if r.OutputFormat != "" {
		fields = append(fields, multipart.TextField("output_format", r.OutputFormat))
	}
	if r.Background != "" {
		fields = append(fields, multipart.TextField("background", r.Background))
	}
	if r.Compression != nil {
		fields = append(fields, multipart.TextField("output_compression", strconv.Itoa(*r.Compression)))
	}
	if r.InputFidelity != "" {
		fields = append(fields, multipart.TextField("input_fidelity", r.InputFidelity))
	}
	return fields
}

func (r *EditRequest) model() string {
	if r.Model == "" {
		return EditModel
	}
	return r.Model
}

// Edit uploads source images and returns the edited results.
//
//nolint:gocritic // hugeParam: request passed by value to keep call sites simple
func (c *Client) Edit(ctx context.Context, req EditRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	enc, err := c.encoder.Encode(req.Fields())
	if err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}

	ctx = logger.WithModel(ctx, req.model())
	logger.APIRequest(ctx, providerName, http.MethodPost, Endpoint(c.baseURL, opEdits),
		map[string]string{"Content-Type": enc.ContentType},
		map[string]any{"images": len(req.Images), "mask": req.Mask != nil, "bytes": enc.ContentLength()})
	return c.post(ctx, opEdits, enc.ContentType, enc.Body)
}

func (c *Client) post(ctx context.Context, op, contentType string, payload []byte) (result *Result, err error) {
	requestID := uuid.NewString()
	ctx = logger.WithRequestID(logger.WithProvider(ctx, providerName), requestID)

	start := time.Now()
	defer func() {
		metrics.RecordRequest(providerName, op, err, time.Since(start))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, Endpoint(c.baseURL, op), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("X-Client-Request-Id", requestID)
	metrics.RecordBytes(providerName, "sent", len(payload))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		logger.APIResponse(ctx, providerName, 0, "", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	metrics.RecordBytes(providerName, "received", len(raw))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, raw)
		logger.APIResponse(ctx, providerName, resp.StatusCode, "", apiErr)
		return nil, apiErr
	}
	logger.APIResponse(ctx, providerName, resp.StatusCode, fmt.Sprintf("%d bytes", len(raw)), nil)

	return decodeResult(ctx, raw, resp.Header.Get("OpenAI-Model"))
}

type imagesResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func decodeResult(ctx context.Context, raw []byte, model string) (*Result, error) {
	var parsed imagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %s: %w", truncate(raw, maxQuotedBody), err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoImages, truncate(raw, maxQuotedBody))
	}

	res := &Result{Model: model}
	for i, d := range parsed.Data {
		if d.B64JSON == "" {
			logger.WarnContext(ctx, "no image data in result", "index", i+1)
			res.Skipped = append(res.Skipped, i+1)
			continue
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode b64 image %d: %w", i+1, err)
		}
		res.Images = append(res.Images, Image{Index: i + 1, Data: data, RevisedPrompt: d.RevisedPrompt})
	}
	if len(res.Images) == 0 {
		return nil, ErrNoImages
	}
	return res, nil
}
