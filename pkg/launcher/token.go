package launcher

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenGenerator produces the shared secret handed to a freshly launched server.
type TokenGenerator interface {
	Generate() (string, error)
}

// RandomTokens generates 128-bit hex tokens from crypto/rand.
type RandomTokens struct{}

func (RandomTokens) Generate() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
