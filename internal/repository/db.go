package repository

import (
	"context"
	"errors"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"coinflip_escrow/internal/escrow"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so every repository works both
// standalone and inside Store.Atomic.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const pgNumericOutOfRange = "22003"

// toBigint converts a lamport amount to the BIGINT column range.
func toBigint(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, escrow.ErrOverflow
	}
	return int64(v), nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgNumericOutOfRange {
		return escrow.ErrOverflow
	}
	return err
}
