package multipart

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// BoundaryPrefix is the literal prefix of every generated boundary.
const BoundaryPrefix = "----MediakitBoundary"

// maxBoundaryLen is the RFC 2046 section 5.1.1 limit.
const maxBoundaryLen = 70

// NewBoundary returns BoundaryPrefix followed by 32 lowercase hex digits of
// randomness taken from a version 4 UUID.
func NewBoundary() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate boundary: %w", err)
	}
	return BoundaryPrefix + strings.ReplaceAll(id.String(), "-", ""), nil
}

// ValidateBoundary reports whether b is a legal multipart boundary. The
// allowed characters are the RFC 2046 bchars that are also RFC 2045 token
// characters, since the boundary parameter is emitted unquoted.
func ValidateBoundary(b string) error {
	if b == "" || len(b) > maxBoundaryLen {
		return fmt.Errorf("%w: length %d", ErrInvalidBoundary, len(b))
	}
	for _, r := range b {
		if 'A' <= r && r <= 'Z' || 'a' <= r && r <= 'z' || '0' <= r && r <= '9' {
			continue
		}
		switch r {
		case '\'', '+', '_', '-', '.':
			continue
		}
		return fmt.Errorf("%w: character %q", ErrInvalidBoundary, r)
	}
	return nil
}
