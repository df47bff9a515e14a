package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
)

// Store is the Postgres escrow.Store. Atomic runs in one pgx transaction and room rows
// are locked with SELECT ... FOR UPDATE, so concurrent calls on one room serialize.
type Store struct {
	db     *pgxpool.Pool
	rooms  *RoomRepository
	ledger *LedgerRepository
}

var _ escrow.Store = (*Store)(nil)

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		db:     db,
		rooms:  NewRoomRepository(db),
		ledger: NewLedgerRepository(db),
	}
}

type pgTx struct {
	rooms  *RoomRepository
	ledger *LedgerRepository
}

func (t *pgTx) Rooms() escrow.RoomStore { return t.rooms }
func (t *pgTx) Ledger() escrow.Ledger   { return t.ledger }

// Atomic implements escrow.UnitOfWork.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx escrow.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{rooms: NewRoomRepository(tx), ledger: NewLedgerRepository(tx)}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// Deposit credits account outside of any room.
func (s *Store) Deposit(ctx context.Context, account domain.AccountID, amount uint64) (uint64, error) {
	var balance uint64
	err := s.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
		l := tx.Ledger().(*LedgerRepository)
		if err := l.Credit(ctx, account, amount, domain.TransferRef{Kind: domain.LedgerDeposit}); err != nil {
			return err
		}
		b, err := l.Balance(ctx, account)
		balance = b
		return err
	})
	return balance, err
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return s.rooms.GetByID(ctx, roomID)
}

func (s *Store) ListRooms(ctx context.Context, f escrow.RoomFilter) ([]*domain.Room, error) {
	return s.rooms.List(ctx, f)
}

func (s *Store) Balance(ctx context.Context, account domain.AccountID) (uint64, error) {
	return s.ledger.Balance(ctx, account)
}

// Entries returns recent ledger entries for account.
func (s *Store) Entries(ctx context.Context, account domain.AccountID, limit int) ([]domain.LedgerEntry, error) {
	return s.ledger.Entries(ctx, account, limit)
}

// Ping checks the connection for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
