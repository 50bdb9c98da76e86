// Package cardcode generates human-transcribable card codes.
package cardcode

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

// Prefix is the fixed card code prefix.
const Prefix = "CC"

// alphabet excludes visually confusable glyphs (0/O, 1/I).
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var codePattern = regexp.MustCompile(`^CC_[A-HJ-NP-Z2-9]{4}_[A-HJ-NP-Z2-9]{4}_[A-HJ-NP-Z2-9]{4}$`)

// Generate returns a random code in the form CC_XXXX_XXXX_XXXX drawn from a
// cryptographically strong source. Uniqueness is not guaranteed here; callers
// must check the code against the store and retry on collision.
func Generate() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cardcode: read random: %w", err)
	}
	out := make([]byte, 12)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return fmt.Sprintf("%s_%s_%s_%s", Prefix, out[0:4], out[4:8], out[8:12]), nil
}

// Valid reports whether code matches the card code format.
func Valid(code string) bool {
	return codePattern.MatchString(code)
}
