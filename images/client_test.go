package images

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
}

func intPtr(v int) *int { return &v }

func b64Response(images ...[]byte) string {
	type item struct {
		B64JSON string `json:"b64_json"`
	}
	var resp struct {
		Data []item `json:"data"`
	}
	for _, img := range images {
		resp.Data = append(resp.Data, item{B64JSON: base64.StdEncoding.EncodeToString(img)})
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"default", nil, DefaultBaseURL},
		{"base url wins", map[string]string{"OPENAI_BASE_URL": "https://proxy/", "OPENAI_API_BASE": "https://other"}, "https://proxy"},
		{"api base fallback", map[string]string{"OPENAI_API_BASE": "https://other/v1/"}, "https://other/v1"},
		{"blank ignored", map[string]string{"OPENAI_BASE_URL": "  "}, DefaultBaseURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveBaseURL(func(k string) string { return tt.env[k] })
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://api.openai.com/v1/images/edits", Endpoint("https://api.openai.com", opEdits))
	assert.Equal(t, "https://proxy/v1/images/generations", Endpoint("https://proxy/v1", opGenerations))
	assert.Equal(t, "https://proxy/v1/images/generations", Endpoint("https://proxy/v1/", opGenerations))
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, "jpg", FileExtension("jpeg"))
	assert.Equal(t, "webp", FileExtension("webp"))
	assert.Equal(t, "png", FileExtension("png"))
	assert.Equal(t, "png", FileExtension("tiff"))
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"empty", Options{}, false},
		{"all valid", Options{Size: "1536x1024", Quality: "low", Background: "transparent", OutputFormat: "webp", Compression: intPtr(50)}, false},
		{"bad size", Options{Size: "800x600"}, true},
		{"bad quality", Options{Quality: "ultra"}, true},
		{"bad background", Options{Background: "green"}, true},
		{"bad format", Options{OutputFormat: "gif"}, true},
		{"compression out of range", Options{OutputFormat: "jpeg", Compression: intPtr(101)}, true},
		{"negative compression", Options{OutputFormat: "jpeg", Compression: intPtr(-1)}, true},
		{"compression with png", Options{OutputFormat: "png", Compression: intPtr(10)}, true},
		{"compression boundary", Options{OutputFormat: "jpeg", Compression: intPtr(0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Client-Request-Id"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, GenerateModel, body["model"])
		assert.Equal(t, "a glass whale", body["prompt"])
		assert.Equal(t, "1024x1024", body["size"])
		assert.Equal(t, "high", body["quality"])
		assert.Equal(t, "png", body["output_format"])
		assert.Equal(t, float64(1), body["n"])
		assert.NotContains(t, body, "background")
		assert.NotContains(t, body, "output_compression")
		assert.NotContains(t, body, "moderation")

		w.Header().Set("OpenAI-Model", GenerateModel)
		_, _ = io.WriteString(w, b64Response(pngBytes))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	res, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:  "a glass whale",
		Options: Options{Size: "1024x1024", Quality: "high", OutputFormat: "png"},
	})
	require.NoError(t, err)
	require.Len(t, res.Images, 1)
	assert.Equal(t, pngBytes, res.Images[0].Data)
	assert.Equal(t, 1, res.Images[0].Index)
	assert.Equal(t, GenerateModel, res.Model)
}

func TestGenerate_OptionalFieldsSent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "opaque", body["background"])
		assert.Equal(t, float64(0), body["output_compression"])
		assert.Equal(t, "low", body["moderation"])
		_, _ = io.WriteString(w, b64Response(pngBytes))
	}))
	defer server.Close()

	client := NewClient("k", WithBaseURL(server.URL+"/v1"))
	_, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:     "x",
		Moderation: "low",
		Options:    Options{Background: "opaque", OutputFormat: "jpeg", Compression: intPtr(0)},
	})
	require.NoError(t, err)
}

func TestGenerate_InvalidRequestNeverSent(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer server.Close()

	client := NewClient("k", WithBaseURL(server.URL))
	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: " "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = client.Generate(context.Background(), GenerateRequest{Prompt: "x", Moderation: "strict"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.False(t, called)
}

func TestPost_APIErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantMsg   string
		retryable bool
	}{
		{"object error", 400, `{"error":{"message":"Invalid size","type":"invalid_request_error"}}`, "Invalid size", false},
		{"string error", 401, `{"error":"bad key"}`, "bad key", false},
		{"rate limit", 429, `{"error":{"message":"slow down"}}`, "slow down", true},
		{"html", 502, `<html>bad gateway</html>`, "bad gateway", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := NewClient("k", WithBaseURL(server.URL))
			_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "x"})

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Contains(t, apiErr.Error(), tt.wantMsg)
			assert.Equal(t, tt.retryable, apiErr.Retryable())
		})
	}
}

func TestPost_BadResponses(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		wantMsg string
	}{
		{"not json", "nope", nil, "invalid JSON response"},
		{"empty data", `{"data":[]}`, ErrNoImages, ""},
		{"no b64 anywhere", `{"data":[{"url":"https://x"}]}`, ErrNoImages, ""},
		{"bad base64", `{"data":[{"b64_json":"!!!"}]}`, nil, "decode b64 image 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := NewClient("k", WithBaseURL(server.URL)).Generate(context.Background(), GenerateRequest{Prompt: "x"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestDecodeResult_SkipsMissingEntries(t *testing.T) {
	raw := `{"data":[{"b64_json":""},{"b64_json":"` + base64.StdEncoding.EncodeToString(pngBytes) + `","revised_prompt":"better"}]}`
	res, err := decodeResult(context.Background(), []byte(raw), "")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Skipped)
	require.Len(t, res.Images, 1)
	assert.Equal(t, 2, res.Images[0].Index)
	assert.Equal(t, "better", res.Images[0].RevisedPrompt)
}

func TestEditRequest_FieldOrder(t *testing.T) {
	req := EditRequest{
		Prompt: "Arrange these items in a gift basket",
		Images: []InputImage{
			{Filename: "item1.png", Data: pngBytes, ContentType: "image/png"},
			{Filename: "item2.jpg", Data: []byte{0xff, 0xd8}, ContentType: "image/jpeg"},
		},
		Mask:          &InputImage{Filename: "mask.png", Data: pngBytes},
		N:             2,
		InputFidelity: "high",
		Options: Options{
			Size: "auto", Quality: "high", OutputFormat: "webp",
			Background: "transparent", Compression: intPtr(80),
		},
	}

	var names []string
	for _, f := range req.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"model", "prompt", "image[]", "image[]", "mask", "n", "size", "quality",
		"output_format", "background", "output_compression", "input_fidelity",
	}, names)

	fields := req.Fields()
	assert.Equal(t, EditModel, string(fields[0].Content))
	assert.Equal(t, "item2.jpg", fields[3].Filename)
	assert.Equal(t, "image/png", fields[4].ContentType)
	assert.Equal(t, "2", string(fields[5].Content))
	assert.Equal(t, "80", string(fields[10].Content))
}

func TestEditRequest_Validate(t *testing.T) {
	one := []InputImage{{Filename: "a.png", Data: pngBytes, ContentType: "image/png"}}
	tooMany := make([]InputImage, MaxInputImages+1)

	tests := []struct {
		name string
		req  EditRequest
	}{
		{"no prompt", EditRequest{Images: one}},
		{"no images", EditRequest{Prompt: "x"}},
		{"too many images", EditRequest{Prompt: "x", Images: tooMany}},
		{"bad fidelity", EditRequest{Prompt: "x", Images: one, InputFidelity: "medium"}},
		{"compression with png", EditRequest{Prompt: "x", Images: one, Options: Options{OutputFormat: "png", Compression: intPtr(5)}}},
		{"negative n", EditRequest{Prompt: "x", Images: one, N: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.req.Validate(), ErrInvalidRequest)
		})
	}
}

func TestEdit_SendsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/edits", r.URL.Path)
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		assert.Equal(t, "multipart/form-data", mediaType)
		assert.True(t, strings.HasPrefix(params["boundary"], "----MediakitBoundary"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, []string{EditModel}, r.MultipartForm.Value["model"])
		assert.Equal(t, []string{"Add a hat"}, r.MultipartForm.Value["prompt"])
		assert.Equal(t, []string{"1"}, r.MultipartForm.Value["n"])

		files := r.MultipartForm.File["image[]"]
		require.Len(t, files, 2)
		assert.Equal(t, "a.png", files[0].Filename)
		assert.Equal(t, "b.png", files[1].Filename)
		assert.Equal(t, "image/png", files[0].Header.Get("Content-Type"))

		f, err := files[0].Open()
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, pngBytes, data)

		_, _ = io.WriteString(w, b64Response(pngBytes, pngBytes))
	}))
	defer server.Close()

	client := NewClient("k", WithBaseURL(server.URL))
	res, err := client.Edit(context.Background(), EditRequest{
		Prompt: "Add a hat",
		Images: []InputImage{
			{Filename: "a.png", Data: pngBytes, ContentType: "image/png"},
			{Filename: "b.png", Data: pngBytes, ContentType: "image/png"},
		},
		Options: Options{Size: "auto", Quality: "high", OutputFormat: "png"},
	})
	require.NoError(t, err)
	assert.Len(t, res.Images, 2)
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	_, err := NewClient("k", WithBaseURL(server.URL)).Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestNewClient_BaseURLFromEnv(t *testing.T) {
	t.Setenv("OPENAI_BASE_URL", "https://proxy.internal/v1/")
	t.Setenv("OPENAI_API_BASE", "")

	c := NewClient("k")
	assert.Equal(t, "https://proxy.internal/v1", c.baseURL)

	c = NewClient("k", WithBaseURL(""))
	assert.Equal(t, "https://proxy.internal/v1", c.baseURL)

	c = NewClient("k", WithBaseURL("http://localhost:8080/"))
	assert.Equal(t, "http://localhost:8080", c.baseURL)
}
