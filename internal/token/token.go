// Package token generates the opaque identifiers the platform hands out:
// purchase tokens and pet QR tokens. Tokens are capability-style, so they
// must be unguessable; crypto/rand is the only acceptable entropy source.
package token

import (
	"crypto/rand"
	"encoding/hex"
)

// HexSource generates prefix + 32 random hex bytes (64 hex chars).
type HexSource struct {
	// Prefix is prepended to generated tokens, e.g. "tok_" or "qr_".
	Prefix string
}

// NewHexSource creates a HexSource with the given prefix.
func NewHexSource(prefix string) *HexSource {
	return &HexSource{Prefix: prefix}
}

// NewToken returns a fresh cryptographically secure token. crypto/rand
// only fails when the OS entropy source is broken, in which case the
// process cannot safely mint capabilities at all.
func (s *HexSource) NewToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("token: crypto/rand unavailable: " + err.Error())
	}
	return s.Prefix + hex.EncodeToString(b)
}
