package escrow

import (
	"errors"
	"fmt"

	"coinflip_escrow/internal/domain"
)

var (
	// validation
	ErrInvalidAmount  = errors.New("stake must be at least 0.05 SOL")
	ErrInvalidRoomID  = domain.ErrInvalidRoomID
	ErrInvalidSeed    = domain.ErrInvalidSeed
	ErrInvalidAccount = domain.ErrInvalidAccount
	ErrUnauthorized   = errors.New("only the room creator can start the flip")
	ErrSelfJoin       = errors.New("room creator cannot join their own room")
	ErrPlayerMismatch = errors.New("players do not match the room")
	ErrSeedMismatch   = errors.New("seed does not match the room")

	// state
	ErrRoomNotFound    = errors.New("room not found")
	ErrAlreadyExists   = errors.New("room already exists")
	ErrAlreadyFinished = errors.New("room already finished")
	ErrRoomFull        = errors.New("room already has two players")
	ErrRoomNotReady    = errors.New("room is waiting for a second player")
	ErrInvalidState    = errors.New("operation not allowed in current room state")

	// not yet ready; retry later
	ErrStillProcessing = errors.New("randomness is still being fulfilled")

	// adapters
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTransferFailed    = errors.New("transfer failed")
	ErrOracleFailed      = errors.New("randomness request failed")

	ErrOverflow = errors.New("payout overflows currency range")
)

// TransferError wraps a ledger failure. errors.Is(err, ErrTransferFailed) holds.
type TransferError struct {
	Op      string
	Account domain.AccountID
	Amount  uint64
	Err     error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed: %s %d for %s: %v", e.Op, e.Amount, e.Account, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *TransferError) Is(target error) bool { return target == ErrTransferFailed }

// OracleError wraps a randomness adapter failure. errors.Is(err, ErrOracleFailed) holds.
type OracleError struct {
	Seed domain.Seed
	Err  error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("randomness request failed for seed %s: %v", e.Seed, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

func (e *OracleError) Is(target error) bool { return target == ErrOracleFailed }
