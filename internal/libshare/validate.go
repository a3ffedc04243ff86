package libshare

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// normalizeDirPath cleans a directory path and guarantees a trailing
// separator, the canonical form for directory links and upload links.
func normalizeDirPath(p string) (string, error) {
	p, err := normalizePath(p)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p, nil
}

// normalizePath rejects relative or escaping paths and guarantees a
// leading separator.
func normalizePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: path must be absolute: %s", ErrInvalidArgument, p)
	}
	if strings.Contains(p, "..") {
		return "", fmt.Errorf("%w: path must not contain '..': %s", ErrInvalidArgument, p)
	}
	return p, nil
}

// isRootPath reports whether p addresses the repo root.
func isRootPath(p string) bool {
	return p == "/" || p == ""
}

// pathWithin reports whether p lies at or under dir. dir is expected in
// trailing-slash form except for the root.
func pathWithin(p, dir string) bool {
	if isRootPath(dir) {
		return true
	}
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return p == strings.TrimSuffix(dir, "/") || strings.HasPrefix(p, dir)
}
