// Package gallery lays out an output directory of generated images: file
// names, a prompts or metadata JSON file and a browsable index.html.
package gallery

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AltairaLabs/mediakit/metrics"
)

// StampLayout formats run timestamps, e.g. 2025-01-31-235959.
const StampLayout = "2006-01-02-150405"

// DefaultSlugLen caps slugs built from prompts.
const DefaultSlugLen = 60

// Output file names.
const (
	IndexFile    = "index.html"
	PromptsFile  = "prompts.json"
	MetadataFile = "metadata.json"
)

//go:embed templates/index.html.tmpl
var indexTemplate string

var indexTmpl = template.Must(template.New("index").Parse(indexTemplate))

// Item is one written image.
type Item struct {
	File    string `json:"file"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	Format  string `json:"format"`
}

// EditMetadata describes one edit run.
type EditMetadata struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	InputImages []string `json:"input_images"`
	// Mask is null when no mask was used.
	Mask    *string `json:"mask"`
	Results []Item  `json:"results"`
}

// Stamp formats t with StampLayout.
func Stamp(t time.Time) string {
	return t.Format(StampLayout)
}

// Slug lowercases text, turns every run of characters outside [a-z0-9]
// into one hyphen and cuts the result to maxLen. fallback is used when
// nothing is left.
func Slug(text string, maxLen int, fallback string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}

	s := b.String()
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return fallback
	}
	return s
}

// DefaultOutDir returns ~/Projects/tmp/<tool>-<stamp> when ~/Projects/tmp
// exists, otherwise ./tmp/<tool>-<stamp> under the working directory.
func DefaultOutDir(tool string, now time.Time) (string, error) {
	name := tool + "-" + Stamp(now)
	if home, err := os.UserHomeDir(); err == nil {
		projects := filepath.Join(home, "Projects", "tmp")
		if info, err := os.Stat(projects); err == nil && info.IsDir() {
			return filepath.Join(projects, name), nil
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return filepath.Join(wd, "tmp", name), nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// WriteImage writes one image into dir and counts it.
func WriteImage(dir, name string, data []byte) error {
	if err := WriteFileAtomic(filepath.Join(dir, name), data); err != nil {
		return err
	}
	metrics.RecordFileWritten(metrics.FileImage)
	return nil
}

// CopyInput copies a source image into dir as input-<basename> and returns
// the new name.
func CopyInput(dir, src string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read input %s: %w", src, err)
	}
	name := "input-" + filepath.Base(src)
	if err := WriteFileAtomic(filepath.Join(dir, name), data); err != nil {
		return "", err
	}
	metrics.RecordFileWritten(metrics.FileInput)
	return name, nil
}

// WriteIndex renders index.html. inputs lists file names relative to dir;
// the input section is omitted when it is empty.
func WriteIndex(dir, title string, items []Item, inputs []string) error {
	var buf bytes.Buffer
	err := indexTmpl.Execute(&buf, struct {
		Title  string
		Items  []Item
		Inputs []string
	}{title, items, inputs})
	if err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	if err := WriteFileAtomic(filepath.Join(dir, IndexFile), buf.Bytes()); err != nil {
		return err
	}
	metrics.RecordFileWritten(metrics.FileIndex)
	return nil
}

// WritePrompts writes the generation items to prompts.json.
func WritePrompts(dir string, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	return writeJSON(filepath.Join(dir, PromptsFile), items)
}

// WriteEditMetadata writes metadata.json for an edit run.
func WriteEditMetadata(dir string, meta *EditMetadata) error {
	if meta.Results == nil {
		meta.Results = []Item{}
	}
	return writeJSON(filepath.Join(dir, MetadataFile), meta)
}

// writeJSON keeps non-ASCII text and HTML characters in prompts readable.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := WriteFileAtomic(path, buf.Bytes()); err != nil {
		return err
	}
	metrics.RecordFileWritten(metrics.FileMetadata)
	return nil
}

// EnsureDir creates dir if needed and reports whether it already existed.
func EnsureDir(dir string) (existed bool, err error) {
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return true, nil
	case err == nil:
		return false, fmt.Errorf("%s exists and is not a directory", dir)
	case !errors.Is(err, fs.ErrNotExist):
		return false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", dir, err)
	}
	return false, nil
}
