// Package token generates the opaque identifiers that key registrant records
// and seed the scannable code payloads.
package token

import (
	"crypto/rand"
	"fmt"
)

// Alphabet is the fixed symbol set used for generated tokens.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultLength is the token length used when callers do not override it.
const DefaultLength = 16

// Generate returns a random token of the requested length drawn from Alphabet.
// Randomness comes from crypto/rand only; if the secure source fails the call
// fails, it never falls back to a weaker generator. Uniqueness is not checked
// here; the store's create-if-absent semantics enforce it.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: secure random source unavailable: %w", err)
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(out), nil
}
