// Package multipart builds multipart/form-data request bodies (RFC 7578)
// for uploading text values and binary files to HTTP APIs.
//
// The encoder is a pure transformation: it performs no I/O, holds no shared
// state and may be called concurrently. Field content is copied byte for
// byte, so binary image data survives untouched.
package multipart

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

const crlf = "\r\n"

// Field is one form-data part. A Field with a Filename is a file part;
// without one it is a plain value part and ContentType is ignored.
type Field struct {
	Name        string
	Filename    string
	Content     []byte
	ContentType string
}

// TextField returns a value part holding the UTF-8 bytes of value.
func TextField(name, value string) Field {
	return Field{Name: name, Content: []byte(value)}
}

// FileField returns a file part.
func FileField(name, filename string, content []byte, contentType string) Field {
	return Field{Name: name, Filename: filename, Content: content, ContentType: contentType}
}

// IsFile reports whether f is a file part.
func (f Field) IsFile() bool { return f.Filename != "" }

// EncodedBody is a finished multipart payload and its Content-Type header value.
type EncodedBody struct {
	Body        []byte
	ContentType string
	Boundary    string
}

// Reader returns a fresh reader over the body.
func (e *EncodedBody) Reader() io.Reader { return bytes.NewReader(e.Body) }

// ContentLength returns the body length in bytes.
func (e *EncodedBody) ContentLength() int64 { return int64(len(e.Body)) }

// Encoder serializes fields into a multipart body. The zero value is not
// usable; construct with NewEncoder.
type Encoder struct {
	boundary        func() (string, error)
	strictHeaders   bool
	collisionChecks int
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithBoundaryGenerator replaces the random boundary source.
func WithBoundaryGenerator(gen func() (string, error)) Option {
	return func(e *Encoder) {
		e.boundary = gen
	}
}

// WithStrictHeaders rejects names, filenames and content types containing
// a double quote, CR or LF.
func WithStrictHeaders() Option {
	return func(e *Encoder) {
		e.strictHeaders = true
	}
}

// WithCollisionCheck scans field content for the delimiter and draws a new
// boundary on a hit, giving up after maxAttempts boundaries.
func WithCollisionCheck(maxAttempts int) Option {
	return func(e *Encoder) {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		e.collisionChecks = maxAttempts
	}
}

// NewEncoder returns an Encoder with random boundaries and no extra checks.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{boundary: NewBoundary}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEncoder = NewEncoder()

// Encode serializes fields with the default encoder.
func Encode(fields []Field) (*EncodedBody, error) {
	return defaultEncoder.Encode(fields)
}

// Encode serializes fields, in order, into a multipart/form-data body.
func (e *Encoder) Encode(fields []Field) (*EncodedBody, error) {
	if err := e.validate(fields); err != nil {
		return nil, err
	}

	boundary, err := e.pickBoundary(fields)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(encodedSize(fields, boundary))
	for _, f := range fields {
		buf.WriteString("--" + boundary + crlf)
		buf.WriteString(`Content-Disposition: form-data; name="` + f.Name + `"`)
		if f.IsFile() {
			buf.WriteString(`; filename="` + f.Filename + `"`)
		}
		buf.WriteString(crlf)
		if f.IsFile() && f.ContentType != "" {
			buf.WriteString("Content-Type: " + f.ContentType + crlf)
		}
		buf.WriteString(crlf)
		buf.Write(f.Content)
		buf.WriteString(crlf)
	}
	buf.WriteString("--" + boundary + "--" + crlf)

	return &EncodedBody{
		Body:        buf.Bytes(),
		ContentType: "multipart/form-data; boundary=" + boundary,
		Boundary:    boundary,
	}, nil
}

func (e *Encoder) validate(fields []Field) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidInput)
	}
	for i, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field %d has an empty name", ErrInvalidInput, i)
		}
		if !e.strictHeaders {
			continue
		}
		for _, v := range []string{f.Name, f.Filename, f.ContentType} {
			if strings.ContainsAny(v, "\"\r\n") {
				return fmt.Errorf("%w: field %d header value %q contains a quote or line break",
					ErrInvalidInput, i, v)
			}
		}
	}
	return nil
}

func (e *Encoder) pickBoundary(fields []Field) (string, error) {
	attempts := max(e.collisionChecks, 1)
	for range attempts {
		b, err := e.boundary()
		if err != nil {
			return "", err
		}
		if err := ValidateBoundary(b); err != nil {
			return "", err
		}
		if e.collisionChecks == 0 || !collides(fields, b) {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrBoundaryCollision, attempts)
}

func collides(fields []Field, boundary string) bool {
	delim := []byte("--" + boundary)
	for _, f := range fields {
		if bytes.Contains(f.Content, delim) {
			return true
		}
	}
	return false
}

// encodedSize is the exact body length, used to size the buffer once.
func encodedSize(fields []Field, boundary string) int {
	n := 0
	for _, f := range fields {
		n += 2 + len(boundary) + 2
		n += len(`Content-Disposition: form-data; name=""`) + len(f.Name) + 2
		if f.IsFile() {
			n += len(`; filename=""`) + len(f.Filename)
			if f.ContentType != "" {
				n += len("Content-Type: ") + len(f.ContentType) + 2
			}
		}
		n += 2 + len(f.Content) + 2
	}
	return n + 2 + len(boundary) + 2 + 2
}
