package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 128})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func TestDetectContentType(t *testing.T) {
	pngData := encodePNG(t, 2, 2)
	jpegData := encodeJPEG(t, 2, 2)

	tests := []struct {
		name string
		path string
		data []byte
		want string
	}{
		{"png extension", "photo.png", nil, MIMETypePNG},
		{"upper-case jpg", "PHOTO.JPG", nil, MIMETypeJPEG},
		{"jpeg", "a.jpeg", nil, MIMETypeJPEG},
		{"webp", "a.webp", nil, MIMETypeWebP},
		{"extension beats bytes", "a.png", jpegData, MIMETypePNG},
		{"sniff png without extension", "upload", pngData, MIMETypePNG},
		{"sniff jpeg with odd extension", "upload.dat", jpegData, MIMETypeJPEG},
		{"unknown", "notes.txt", []byte("hello"), MIMETypeBinary},
		{"nothing to go on", "blob", nil, MIMETypeBinary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectContentType(tt.path, tt.data))
		})
	}
}

func TestProbe(t *testing.T) {
	info, err := Probe(encodePNG(t, 30, 20))
	require.NoError(t, err)
	assert.Equal(t, Info{Format: FormatPNG, MIMEType: MIMETypePNG, Width: 30, Height: 20}, info)

	info, err = Probe(encodeJPEG(t, 8, 9))
	require.NoError(t, err)
	assert.Equal(t, MIMETypeJPEG, info.MIMEType)

	_, err = Probe(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Probe([]byte("not an image"))
	assert.Error(t, err)
}

func TestFitWithin(t *testing.T) {
	original := encodePNG(t, 400, 100)

	res, err := FitWithin(original, 1000)
	require.NoError(t, err)
	assert.False(t, res.Resized)
	assert.Equal(t, original, res.Data)

	res, err = FitWithin(original, 200)
	require.NoError(t, err)
	assert.True(t, res.Resized)
	assert.Equal(t, MIMETypePNG, res.MIMEType)
	assert.Equal(t, 200, res.Width)
	assert.Equal(t, 50, res.Height)

	info, err := Probe(res.Data)
	require.NoError(t, err)
	assert.Equal(t, 200, info.Width)

	res, err = FitWithin(encodeJPEG(t, 100, 300), 150)
	require.NoError(t, err)
	assert.Equal(t, MIMETypeJPEG, res.MIMEType)
	assert.Equal(t, 50, res.Width)
	assert.Equal(t, 150, res.Height)

	_, err = FitWithin(nil, 10)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestTargetDimensions(t *testing.T) {
	w, h := targetDimensions(10, 5000, 100)
	assert.Equal(t, 1, w)
	assert.Equal(t, 100, h)

	w, h = targetDimensions(640, 480, 0)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}
