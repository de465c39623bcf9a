package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Namespace derives the vector index partition for a document locator.
// URLs map to their lowercased host and path with every run of
// non-alphanumeric characters collapsed to a single underscore, so
// "https://Example.com/A/B!" becomes "example_com_a_b". The result is a
// pure function of the locator.
func Namespace(locator string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	ns := sanitize(u.Hostname() + "_" + u.EscapedPath())
	if ns == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return ns, nil
}

// TextNamespace derives a namespace for inline text, which has no URL.
// Identical text always maps to the same namespace.
func TextNamespace(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "text_" + hex.EncodeToString(sum[:8])
}

// sanitize lowercases s and replaces every run of characters outside
// [a-z0-9] with one underscore, trimming underscores at both ends.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
