// Package oracle provides randomness adapters for the room state machine: a local
// ed25519-based VRF and an HTTP client for a remote VRF gateway speaking the same
// protocol that Gateway serves.
package oracle

import (
	"crypto/ed25519"
	"errors"

	"coinflip_escrow/internal/domain"
)

var (
	ErrSeedInUse   = errors.New("seed already requested")
	ErrUnknownSeed = errors.New("seed was never requested")
	ErrBadProof    = errors.New("randomness does not verify against oracle key")
)

// StatusResponse is the gateway's view of one request.
type StatusResponse struct {
	Seed       string `json:"seed"`
	Fulfilled  bool   `json:"fulfilled"`
	Randomness string `json:"randomness,omitempty"`
	PublicKey  string `json:"public_key,omitempty"`
}

type requestBody struct {
	Seed string `json:"seed"`
}

// Verify checks that value is the oracle's signature over seed.
func Verify(pub ed25519.PublicKey, seed domain.Seed, value domain.Randomness) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, seed[:], value[:])
}
