// Package util provides utility functions for the Academy Shell engine.
package util

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const alphaNumericChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// GenerateNonce generates a cryptographically random alphanumeric nonce of
// the given length, suitable for federated sign-in (ID token) flows.
func GenerateNonce(length int) string {
	if length <= 0 {
		return ""
	}

	var builder strings.Builder
	builder.Grow(length)

	max := big.NewInt(int64(len(alphaNumericChars)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing means the platform RNG is broken; there is
			// no meaningful fallback for an auth nonce.
			panic(err)
		}
		builder.WriteByte(alphaNumericChars[n.Int64()])
	}

	return builder.String()
}
