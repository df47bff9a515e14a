package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
)

// LedgerRepository keeps account balances and the append-only entry log.
type LedgerRepository struct {
	db DBTX
}

func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Debit removes amount from account. A missing account has a zero balance.
func (r *LedgerRepository) Debit(ctx context.Context, account domain.AccountID, amount uint64, ref domain.TransferRef) error {
	amt, err := toBigint(amount)
	if err != nil {
		return err
	}

	// Lock and check balance
	var balance int64
	err = r.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE account_id = $1 FOR UPDATE`, account).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if amt == 0 {
				return r.insertEntry(ctx, account, 0, ref)
			}
			return escrow.ErrInsufficientFunds
		}
		return err
	}
	if balance < amt {
		return escrow.ErrInsufficientFunds
	}

	if _, err := r.db.Exec(ctx,
		`UPDATE accounts SET balance = balance - $1, updated_at = now() WHERE account_id = $2`,
		amt, account,
	); err != nil {
		return err
	}
	return r.insertEntry(ctx, account, -amt, ref)
}

// Credit adds amount to account, opening it on first use.
func (r *LedgerRepository) Credit(ctx context.Context, account domain.AccountID, amount uint64, ref domain.TransferRef) error {
	amt, err := toBigint(amount)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx,
		`INSERT INTO accounts (account_id, balance) VALUES ($1, $2)
		 ON CONFLICT (account_id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = now()`,
		account, amt,
	); err != nil {
		return mapPgError(err)
	}
	return r.insertEntry(ctx, account, amt, ref)
}

// Balance returns the account balance; unknown accounts hold zero.
func (r *LedgerRepository) Balance(ctx context.Context, account domain.AccountID) (uint64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE account_id = $1`, account).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return uint64(balance), nil
}

// Entries returns recent entries for account, newest first.
func (r *LedgerRepository) Entries(ctx context.Context, account domain.AccountID, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, account_id, room_id, kind, amount, created_at
		 FROM ledger_entries
		 WHERE account_id = $1
		 ORDER BY id DESC
		 LIMIT $2`,
		account, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.RoomID, &e.Kind, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *LedgerRepository) insertEntry(ctx context.Context, account domain.AccountID, amount int64, ref domain.TransferRef) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ledger_entries (account_id, room_id, kind, amount) VALUES ($1, $2, $3, $4)`,
		account, ref.RoomID, ref.Kind, amount,
	)
	return err
}
