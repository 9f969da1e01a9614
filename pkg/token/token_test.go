package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateLengthAndAlphabet(t *testing.T) {
	tok, err := Generate(16)
	require.NoError(t, err)
	require.Len(t, tok, 16)

	for _, r := range tok {
		require.True(t, strings.ContainsRune(Alphabet, r), "unexpected symbol %q", r)
	}
}

func TestGenerateDefaultsLength(t *testing.T) {
	tok, err := Generate(0)
	require.NoError(t, err)
	require.Len(t, tok, DefaultLength)

	tok, err = Generate(-5)
	require.NoError(t, err)
	require.Len(t, tok, DefaultLength)
}

func TestGenerateUniqueness(t *testing.T) {
	const trials = 2000

	seen := make(map[string]struct{}, trials)
	for i := 0; i < trials; i++ {
		tok, err := Generate(16)
		require.NoError(t, err)

		_, dup := seen[tok]
		require.False(t, dup, "duplicate token after %d trials", i)
		seen[tok] = struct{}{}
	}
}
