package images

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Models used for each operation.
const (
	GenerateModel = "gpt-image-1.5"
	EditModel     = "gpt-image-1"
)

// Request limits.
const (
	MaxInputImages = 16
	MaxCompression = 100
)

// Valid parameter values per the OpenAI Images API.
var (
	ValidSizes           = []string{"1024x1024", "1536x1024", "1024x1536", "auto"}
	ValidQualities       = []string{"low", "medium", "high", "auto"}
	ValidBackgrounds     = []string{"transparent", "opaque", "auto"}
	ValidOutputFormats   = []string{"png", "jpeg", "webp"}
	ValidModerations     = []string{"low", "auto"}
	ValidInputFidelities = []string{"low", "high"}
)

// ErrInvalidRequest is returned when a request fails validation.
var ErrInvalidRequest = errors.New("invalid image request")

// FileExtension maps an output format to the file extension used on disk.
func FileExtension(outputFormat string) string {
	switch outputFormat {
	case "jpeg":
		return "jpg"
	case "webp":
		return "webp"
	default:
		return "png"
	}
}

// Options holds the knobs shared by generation and edit requests.
// Empty strings and nil pointers mean "use the API default" and are not sent.
type Options struct {
	Size         string
	Quality      string
	Background   string
	OutputFormat string
	Compression  *int
}

// Validate checks Options against the valid value sets.
func (o *Options) Validate() error {
	if err := oneOf("size", o.Size, ValidSizes); err != nil {
		return err
	}
	if err := oneOf("quality", o.Quality, ValidQualities); err != nil {
		return err
	}
	if err := oneOf("background", o.Background, ValidBackgrounds); err != nil {
		return err
	}
	if err := oneOf("output format", o.OutputFormat, ValidOutputFormats); err != nil {
		return err
	}
	if o.Compression != nil {
		if *o.Compression < 0 || *o.Compression > MaxCompression {
			return fmt.Errorf("%w: compression must be 0-100", ErrInvalidRequest)
		}
		if o.OutputFormat == "" || o.OutputFormat == "png" {
			return fmt.Errorf("%w: compression is only valid for jpeg/webp", ErrInvalidRequest)
		}
	}
	return nil
}

// oneOf accepts an empty value, meaning "not set".
func oneOf(name, value string, valid []string) error {
	if value == "" || slices.Contains(valid, value) {
		return nil
	}
	return fmt.Errorf("%w: %s %q is not one of %s", ErrInvalidRequest, name, value, strings.Join(valid, ", "))
}
