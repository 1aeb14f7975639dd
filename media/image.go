// Package media identifies and prepares image files for upload.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	_ "image/gif" // Register GIF decoder

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Image format constants.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatWebP = "webp"
)

// MIME type constants.
const (
	MIMETypeJPEG   = "image/jpeg"
	MIMETypePNG    = "image/png"
	MIMETypeGIF    = "image/gif"
	MIMETypeWebP   = "image/webp"
	MIMETypeBinary = "application/octet-stream"
)

// ErrEmptyImage is returned when image data is empty.
var ErrEmptyImage = errors.New("empty image data")

var extensionTypes = map[string]string{
	".png":  MIMETypePNG,
	".jpg":  MIMETypeJPEG,
	".jpeg": MIMETypeJPEG,
	".webp": MIMETypeWebP,
	".gif":  MIMETypeGIF,
}

// DetectContentType returns the image MIME type for a file. The extension
// decides first, then the system MIME table (image types only), then the
// leading bytes of data. Anything else is application/octet-stream.
func DetectContentType(path string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := extensionTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); strings.HasPrefix(ct, "image/") {
		if base, _, err := mime.ParseMediaType(ct); err == nil {
			return base
		}
	}
	if len(data) > 0 {
		if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
			return ct
		}
	}
	return MIMETypeBinary
}

// Info describes a decoded image header.
type Info struct {
	Format   string
	MIMEType string
	Width    int
	Height   int
}

// Probe reads the image header without decoding pixel data.
func Probe(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, ErrEmptyImage
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("failed to decode image header: %w", err)
	}
	return Info{
		Format:   format,
		MIMEType: FormatToMIMEType(format),
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

// FormatToMIMEType converts a decoder format name to a MIME type.
func FormatToMIMEType(format string) string {
	switch format {
	case FormatJPEG, "jpg":
		return MIMETypeJPEG
	case FormatPNG:
		return MIMETypePNG
	case FormatGIF:
		return MIMETypeGIF
	case FormatWebP:
		return MIMETypeWebP
	default:
		return MIMETypeBinary
	}
}

// FitResult is the outcome of FitWithin.
type FitResult struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
	Resized  bool
}

// FitWithin downscales an image so neither side exceeds maxSide, keeping
// the aspect ratio. Images already within bounds, or maxSide <= 0, are
// returned unchanged. PNG input stays PNG (preserving transparency, which
// edit masks depend on); every other format is re-encoded as JPEG.
func FitWithin(data []byte, maxSide int) (*FitResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	b := img.Bounds()
	w, h := targetDimensions(b.Dx(), b.Dy(), maxSide)
	if w == b.Dx() && h == b.Dy() {
		return &FitResult{Data: data, MIMEType: FormatToMIMEType(format), Width: w, Height: h}, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	mimeType := MIMETypeJPEG
	if format == FormatPNG {
		mimeType = MIMETypePNG
		err = png.Encode(&buf, dst)
	} else {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &FitResult{Data: buf.Bytes(), MIMEType: mimeType, Width: w, Height: h, Resized: true}, nil
}

func targetDimensions(w, h, maxSide int) (tw, th int) {
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return w, h
	}
	if w >= h {
		tw, th = maxSide, h*maxSide/w
	} else {
		tw, th = w*maxSide/h, maxSide
	}
	return max(tw, 1), max(th, 1)
}
