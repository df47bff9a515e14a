package domain

import (
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of base units in one SOL.
const LamportsPerSOL = 1_000_000_000

// escrowSeedPrefix namespaces escrow account derivation.
const escrowSeedPrefix = "coinflip"

var ErrInvalidAccount = errors.New("invalid account id")

// AccountID is the base58 text of a 32-byte public key.
type AccountID string

// ParseAccountID validates s as a base58-encoded 32-byte key.
func ParseAccountID(s string) (AccountID, error) {
	b, err := base58.Decode(s)
	if err != nil || len(b) != 32 {
		return "", ErrInvalidAccount
	}
	return AccountID(s), nil
}

// AccountFromKey encodes a raw 32-byte key.
func AccountFromKey(key [32]byte) AccountID {
	return AccountID(base58.Encode(key[:]))
}

func (a AccountID) IsZero() bool { return a == "" }

func (a AccountID) String() string { return string(a) }

// DeriveEscrowAccount maps a room id to the account holding its escrow.
func DeriveEscrowAccount(roomID string) AccountID {
	h := sha256.New()
	h.Write([]byte(escrowSeedPrefix))
	h.Write([]byte(roomID))
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return AccountFromKey(key)
}

// FormatSOL renders a lamport amount as SOL.
func FormatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).
		Div(decimal.NewFromInt(LamportsPerSOL)).String()
}

// ParseSOL converts a SOL amount ("0.05") to lamports.
func ParseSOL(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	l := d.Mul(decimal.NewFromInt(LamportsPerSOL))
	if l.IsNegative() || !l.Equal(l.Truncate(0)) {
		return 0, errors.New("amount must be a non-negative multiple of one lamport")
	}
	if !l.BigInt().IsUint64() {
		return 0, errors.New("amount out of range")
	}
	return l.BigInt().Uint64(), nil
}
