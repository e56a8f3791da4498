// Package refcode generates short human-readable booking reference codes.
package refcode

import (
	"crypto/rand"
	"fmt"
)

// Crockford-style alphabet without ambiguous characters (0/O, 1/I/L).
const alphabet = "23456789ABCDEFGHJKMNPQRSTVWXYZ"

const codeLen = 8

// New returns a code like "CB-7XK2M9QA". Collision handling is left to the
// unique constraint on bookings.reference_code.
func New() (string, error) {
	buf := make([]byte, codeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return "CB-" + string(buf), nil
}
