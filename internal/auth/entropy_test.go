package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntropyBits(t *testing.T) {
	t.Run("empty string has zero entropy", func(t *testing.T) {
		assert.Equal(t, 0.0, EntropyBits(""))
	})

	t.Run("repeated character has zero entropy", func(t *testing.T) {
		assert.Equal(t, 0.0, EntropyBits(strings.Repeat("a", 64)))
	})

	t.Run("entropy scales with length", func(t *testing.T) {
		short := EntropyBits("abcd")
		long := EntropyBits("abcdabcd")
		assert.Greater(t, long, short)
	})

	t.Run("uniform alphabet approaches log2 of alphabet size per char", func(t *testing.T) {
		// 16 distinct characters, each once: 4 bits per char, 64 bits total
		s := "0123456789abcdef"
		assert.InDelta(t, 64.0, EntropyBits(s), 0.01)
	})
}

func TestValidateSecretStrength(t *testing.T) {
	t.Run("rejects empty secret", func(t *testing.T) {
		err := ValidateSecretStrength("", 16, 128)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrWeakSecret)
	})

	t.Run("rejects short secret", func(t *testing.T) {
		err := ValidateSecretStrength("abc123", 16, 128)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrWeakSecret)
	})

	t.Run("rejects low-entropy secret of sufficient length", func(t *testing.T) {
		err := ValidateSecretStrength("aaaaaaaaaaaaaaaa", 16, 128)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrWeakSecret)
	})

	t.Run("accepts random hex secret at 128-bit threshold", func(t *testing.T) {
		b := make([]byte, 32)
		_, err := rand.Read(b)
		require.NoError(t, err)

		err = ValidateSecretStrength(hex.EncodeToString(b), 16, 128)
		assert.NoError(t, err)
	})
}
