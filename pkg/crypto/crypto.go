package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateToken returns a random URL-safe token of the requested byte length.
// 32 bytes yields 256 bits of entropy, comfortably above the uniqueness
// requirements for badge session tokens.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
