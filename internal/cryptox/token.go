package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
)

// TokenDigest is the one-way digest of a session token, unpadded base64url
// of its SHA-256. Only the digest is ever stored.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
