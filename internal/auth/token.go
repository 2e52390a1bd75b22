package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// NewToken returns an opaque, URL-safe session token. Both session kinds
// use the same shape; only the row they land in differs.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
