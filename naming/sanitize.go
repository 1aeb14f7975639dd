package naming

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Fallback is used when a description sanitizes to nothing.
const Fallback = "speech"

// Sanitize lowercases s, replaces anything outside [a-z-] with a hyphen,
// collapses hyphen runs and trims them from both ends.
func Sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	out := strings.Trim(b.String(), "-")
	if out == "" {
		return Fallback
	}
	return out
}

// UniquePath returns dir/base.ext, or dir/base-N.ext with the smallest
// N >= 1 that does not exist yet.
func UniquePath(dir, base, ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	candidate := filepath.Join(dir, base+"."+ext)
	for n := 1; ; n++ {
		_, err := os.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d.%s", base, n, ext))
	}
}
