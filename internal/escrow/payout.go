package escrow

import (
	"math"

	"coinflip_escrow/internal/domain"
)

// PickWinner selects player one on an even value and player two on an odd one.
func PickWinner(value domain.Randomness, one, two domain.AccountID) domain.AccountID {
	if value.Uint64()%2 == 0 {
		return one
	}
	return two
}

// Payout is the whole pot, 2*stake, with overflow checking.
func Payout(stake uint64) (uint64, error) {
	if stake > math.MaxUint64/2 {
		return 0, ErrOverflow
	}
	return stake * 2, nil
}

// CheckedAdd adds two balances or fails with ErrOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}
