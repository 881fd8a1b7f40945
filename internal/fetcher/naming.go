package fetcher

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// hashLen is the number of hex characters of the identifier hash appended
// to every directory name.
const hashLen = 10

// LocalDirName derives the working copy directory name for an identifier.
// It is a pure function: the readable part is the sanitized last path
// segment without ".git", and a short SHA-256 suffix keeps distinct
// identifiers with the same last segment apart
// (github.com/a/tools and github.com/b/tools).
func LocalDirName(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	suffix := hex.EncodeToString(sum[:])[:hashLen]

	base := lastSegment(identifier)
	if base == "" {
		return "repo-" + suffix
	}
	return base + "-" + suffix
}

// lastSegment returns the sanitized final path element of a URL or
// scp-like address (git@host:owner/name.git).
func lastSegment(identifier string) string {
	s := strings.TrimSpace(identifier)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/\\")
	if i := strings.LastIndexAny(s, "/\\:"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ".git")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), ".")
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

// sshURL rewrites an https GitHub URL to its SSH form.
// Other identifiers are returned unchanged.
func sshURL(identifier string) string {
	const prefix = "https://github.com/"
	if !strings.HasPrefix(identifier, prefix) {
		return identifier
	}
	u := "git@github.com:" + strings.TrimSuffix(strings.TrimPrefix(identifier, prefix), "/")
	if !strings.HasSuffix(u, ".git") {
		u += ".git"
	}
	return u
}
