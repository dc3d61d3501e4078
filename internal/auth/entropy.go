package auth

import (
	"errors"
	"fmt"
	"math"
)

// ErrWeakSecret indicates a secret failed the strength checks. At startup
// this is fatal: the server must refuse to boot rather than sign tokens with
// a guessable secret.
var ErrWeakSecret = errors.New("secret does not meet strength requirements")

// EntropyBits computes the Shannon entropy of s over its character-frequency
// distribution, scaled by length: bits = -sum(p*log2(p)) * len(s).
func EntropyBits(s string) float64 {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}

	freq := make(map[rune]int, len(runes))
	for _, r := range runes {
		freq[r]++
	}

	n := float64(len(runes))
	var perChar float64
	for _, count := range freq {
		p := float64(count) / n
		perChar -= p * math.Log2(p)
	}

	return perChar * n
}

// ValidateSecretStrength rejects secrets that are empty, shorter than
// minLength, or below minEntropyBits of estimated entropy. All failures
// wrap ErrWeakSecret.
func ValidateSecretStrength(secret string, minLength int, minEntropyBits float64) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is empty", ErrWeakSecret)
	}
	if len(secret) < minLength {
		return fmt.Errorf("%w: secret must be at least %d characters", ErrWeakSecret, minLength)
	}
	if bits := EntropyBits(secret); bits < minEntropyBits {
		return fmt.Errorf("%w: secret entropy %.1f bits is below the required %.1f bits",
			ErrWeakSecret, bits, minEntropyBits)
	}
	return nil
}
