package cardhash

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize joins the front and back of a card after cleaning each part.
// Whitespace runs collapse to a single space, case is folded and line endings
// are normalized so cosmetic differences in generator output do not matter.
func Normalize(front, back string) string {
	normalizePart := func(part string) string {
		p := strings.ReplaceAll(part, "\r\n", "\n")
		p = strings.ToLower(p)
		return strings.Join(strings.Fields(p), " ")
	}

	// A newline keeps "ab"+"c" distinct from "a"+"bc".
	return normalizePart(front) + "\n" + normalizePart(back)
}

// Fingerprint returns the SHA-256 of the normalized card as a hex string.
func Fingerprint(front, back string) string {
	sum := sha256.Sum256([]byte(Normalize(front, back)))
	return fmt.Sprintf("%x", sum)
}

// Set tracks fingerprints that have already been seen.
type Set map[string]struct{}

// Add records the card and reports whether it was not already present.
func (s Set) Add(front, back string) bool {
	fp := Fingerprint(front, back)
	if _, ok := s[fp]; ok {
		return false
	}
	s[fp] = struct{}{}
	return true
}
