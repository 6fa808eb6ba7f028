// Package cryptox holds the digest helpers of the upload pipeline: a
// resumable MD5 whose state survives between requests, and the one-way
// token digest used as the session lookup key.
package cryptox

import (
	"crypto/md5"
	"encoding"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
)

// hashStateVersion prefixes every exported state. Bump it if the encoding
// of the state or the digest algorithm changes.
const hashStateVersion byte = 1

var ErrBadHashState = errors.New("bad hash state")

// Hasher computes the MD5 of content that arrives in several requests.
type Hasher struct {
	h hash.Hash
}

func NewHasher() *Hasher {
	return &Hasher{h: md5.New()}
}

// Write feeds p into the digest. It never returns an error.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the digest of everything written so far. The running state
// is not affected.
func (h *Hasher) Sum() []byte {
	return h.h.Sum(nil)
}

// SumHex is Sum in lower-case hex, the form stored in the catalog.
func (h *Hasher) SumHex() string {
	return hex.EncodeToString(h.Sum())
}

// Export serializes the running state using the digest's own
// encoding.BinaryMarshaler (block buffer, chaining values and length),
// prefixed by a version byte and base64url encoded.
func (h *Hasher) Export() (string, error) {
	m, ok := h.h.(encoding.BinaryMarshaler)
	if !ok {
		return "", fmt.Errorf("%w: digest cannot be marshaled", ErrBadHashState)
	}

	b, err := m.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadHashState, err)
	}

	out := make([]byte, 0, len(b)+1)
	out = append(out, hashStateVersion)
	out = append(out, b...)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// RestoreHasher rebuilds a Hasher from a string produced by Export.
// Writing to the result continues exactly where the exported one stopped.
func RestoreHasher(state string) (*Hasher, error) {
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHashState, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadHashState)
	}
	if raw[0] != hashStateVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadHashState, raw[0])
	}

	h := md5.New()
	u, ok := h.(encoding.BinaryUnmarshaler)
	if !ok {
		return nil, fmt.Errorf("%w: digest cannot be unmarshaled", ErrBadHashState)
	}
	if err := u.UnmarshalBinary(raw[1:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHashState, err)
	}

	return &Hasher{h: h}, nil
}
