package domain

import "time"

// LedgerKind - reason a balance moved
type LedgerKind string

const (
	LedgerStakeDebit   LedgerKind = "stake_debit"
	LedgerEscrowCredit LedgerKind = "escrow_credit"
	LedgerPayoutDebit  LedgerKind = "payout_debit"
	LedgerPayoutCredit LedgerKind = "payout_credit"
	LedgerDeposit      LedgerKind = "deposit"
)

// LedgerEntry is one append-only balance movement. Amount is signed: debits are negative.
type LedgerEntry struct {
	ID        int64      `db:"id" json:"id"`
	AccountID AccountID  `db:"account_id" json:"account_id"`
	RoomID    string     `db:"room_id" json:"room_id,omitempty"`
	Kind      LedgerKind `db:"kind" json:"kind"`
	Amount    int64      `db:"amount" json:"amount"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// TransferRef tags a ledger movement with the room and reason.
type TransferRef struct {
	RoomID string
	Kind   LedgerKind
}
