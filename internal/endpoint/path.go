package endpoint

import (
	"crypto/rand"
	"fmt"
)

const (
	// PathLength is the number of characters in a generated endpoint path
	PathLength = 10

	pathAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
)

// NewPath returns a random URL-safe endpoint path.
// The alphabet has 64 symbols so masking a random byte to 6 bits is unbiased.
func NewPath() (string, error) {
	buf := make([]byte, PathLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = pathAlphabet[b&63]
	}
	return string(buf), nil
}
