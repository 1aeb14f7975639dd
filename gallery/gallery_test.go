package gallery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStamp(t *testing.T) {
	ts := time.Date(2025, 3, 7, 9, 5, 2, 0, time.UTC)
	assert.Equal(t, "2025-03-07-090502", Stamp(ts))
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		fallback string
		want     string
	}{
		{"basic", "A glass whale floating above a desert", 60, "image", "a-glass-whale-floating-above-a-desert"},
		{"punctuation runs", "Lighting: golden hour!!  Palette: copper + teal", 60, "image", "lighting-golden-hour-palette-copper-teal"},
		{"edges trimmed", "  --Hello, World--  ", 60, "image", "hello-world"},
		{"cut at max", strings.Repeat("ab ", 40), 10, "image", "ab-ab-ab-a"},
		{"cut leaves hyphen", "abcd efgh", 5, "image", "abcd"},
		{"digits kept", "Room 101", 60, "image", "room-101"},
		{"empty uses fallback", "!!!", 60, "edited", "edited"},
		{"non ascii dropped", "Käse über Brücke", 60, "image", "k-se-ber-br-cke"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.text, tt.maxLen, tt.fallback))
		})
	}
}

func TestDefaultOutDir(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	require.NoError(t, err)

	got, err := DefaultOutDir("openai-image-gen", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "tmp", "openai-image-gen-2025-01-02-030405"), got)

	require.NoError(t, os.MkdirAll(filepath.Join(home, "Projects", "tmp"), 0o755))
	got, err = DefaultOutDir("openai-image-gen", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Projects", "tmp", "openai-image-gen-2025-01-02-030405"), got)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "01-whale.png")

	require.NoError(t, WriteFileAtomic(path, []byte("first")))
	require.NoError(t, WriteFileAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	err = WriteFileAtomic(filepath.Join(dir, "missing", "x.png"), []byte("x"))
	assert.Error(t, err)
}

func TestCopyInput(t *testing.T) {
	src := filepath.Join(t.TempDir(), "portrait.jpg")
	require.NoError(t, os.WriteFile(src, []byte{0xff, 0xd8}, 0o600))
	out := t.TempDir()

	name, err := CopyInput(out, src)
	require.NoError(t, err)
	assert.Equal(t, "input-portrait.jpg", name)

	data, err := os.ReadFile(filepath.Join(out, name))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data)

	_, err = CopyInput(out, filepath.Join(out, "nope.png"))
	assert.Error(t, err)
}

func TestWriteIndex_Generation(t *testing.T) {
	dir := t.TempDir()
	items := []Item{
		{File: "01-whale.png", Prompt: "a <glass> whale & friends"},
		{File: "02-robot.png", Prompt: "a moss-covered robot"},
	}
	require.NoError(t, WriteIndex(dir, "openai-image-gen", items, nil))

	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	html := string(data)

	assert.True(t, strings.HasPrefix(html, "<!doctype html>"))
	assert.Contains(t, html, "<title>openai-image-gen</title>")
	assert.Contains(t, html, `<a href="01-whale.png"><img class="output" src="01-whale.png"></a>`)
	assert.Contains(t, html, "a &lt;glass&gt; whale &amp; friends")
	assert.NotContains(t, html, "Input Images")
	assert.Equal(t, 2, strings.Count(html, `<div class="card">`))
}

func TestWriteIndex_EditWithInputs(t *testing.T) {
	dir := t.TempDir()
	items := []Item{{File: "edited-01-hat.png", Prompt: "Add a hat"}}
	require.NoError(t, WriteIndex(dir, "openai-image-edit", items, []string{"input-a.png", "input-b.jpg"}))

	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	html := string(data)

	assert.Contains(t, html, "<h2>Input Images</h2>")
	assert.Contains(t, html, `<img src="input-a.png" title="input-a.png">`)
	assert.Contains(t, html, `<img src="input-b.jpg" title="input-b.jpg">`)
	assert.Less(t, strings.Index(html, "Input Images"), strings.Index(html, "Results"))
}

func TestWritePrompts(t *testing.T) {
	dir := t.TempDir()
	items := []Item{{File: "01-k.png", Prompt: "Käse & <Brot>", Size: "1024x1024", Quality: "high", Format: "png"}}
	require.NoError(t, WritePrompts(dir, items))

	data, err := os.ReadFile(filepath.Join(dir, PromptsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Käse & <Brot>")
	assert.Contains(t, string(data), "\n  {\n    \"file\": \"01-k.png\"")

	var got []Item
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, items, got)

	require.NoError(t, WritePrompts(dir, nil))
	data, err = os.ReadFile(filepath.Join(dir, PromptsFile))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestWriteEditMetadata(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, WriteEditMetadata(dir, &EditMetadata{
		Model:       "gpt-image-1",
		Prompt:      "Add a hat",
		InputImages: []string{"a.png"},
	}))
	var raw map[string]any
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "mask")
	assert.Nil(t, raw["mask"])
	assert.Equal(t, []any{}, raw["results"])

	mask := "mask.png"
	require.NoError(t, WriteEditMetadata(dir, &EditMetadata{Model: "gpt-image-1", Mask: &mask}))
	data, err = os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mask": "mask.png"`)
}

func TestEnsureDir(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "a", "b")

	existed, err := EnsureDir(dir)
	require.NoError(t, err)
	assert.False(t, existed)

	existed, err = EnsureDir(dir)
	require.NoError(t, err)
	assert.True(t, existed)

	file := filepath.Join(base, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = EnsureDir(file)
	assert.Error(t, err)
}
