// Package memory is an in-process escrow.Store. Each Atomic call holds the store lock
// and works on a staged overlay that is merged only when the callback succeeds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
)

type Store struct {
	mu       sync.Mutex
	rooms    map[string]*domain.Room
	balances map[domain.AccountID]uint64
	entries  []domain.LedgerEntry
	seq      int64
	now      func() time.Time
}

var _ escrow.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		rooms:    make(map[string]*domain.Room),
		balances: make(map[domain.AccountID]uint64),
		now:      time.Now,
	}
}

// Deposit credits account outside of any room, for funding dev and test accounts.
func (s *Store) Deposit(ctx context.Context, account domain.AccountID, amount uint64) (uint64, error) {
	var balance uint64
	err := s.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
		if err := tx.Ledger().Credit(ctx, account, amount, domain.TransferRef{Kind: domain.LedgerDeposit}); err != nil {
			return err
		}
		balance = tx.(*memTx).balance(account)
		return nil
	})
	return balance, err
}

// Atomic implements escrow.UnitOfWork.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx escrow.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:    s,
		rooms:    make(map[string]*domain.Room),
		balances: make(map[domain.AccountID]uint64),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, r := range tx.rooms {
		s.rooms[id] = r
	}
	for acct, b := range tx.balances {
		s.balances[acct] = b
	}
	for _, e := range tx.entries {
		s.seq++
		e.ID = s.seq
		s.entries = append(s.entries, e)
	}
	return nil
}

// GetRoom implements escrow.Reader.
func (s *Store) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, escrow.ErrRoomNotFound
	}
	return r.Clone(), nil
}

// ListRooms implements escrow.Reader. Newest rooms come first.
func (s *Store) ListRooms(ctx context.Context, f escrow.RoomFilter) ([]*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []*domain.Room
	for _, r := range s.rooms {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Player != "" && r.PlayerOne != f.Player && r.PlayerTwo != f.Player {
			continue
		}
		res = append(res, r.Clone())
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// Balance implements escrow.Reader. Unknown accounts hold zero.
func (s *Store) Balance(ctx context.Context, account domain.AccountID) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[account], nil
}

// Entries returns the latest ledger entries for account, newest first.
func (s *Store) Entries(ctx context.Context, account domain.AccountID, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res []domain.LedgerEntry
	for i := len(s.entries) - 1; i >= 0 && len(res) < limit; i-- {
		if s.entries[i].AccountID == account {
			res = append(res, s.entries[i])
		}
	}
	return res, nil
}

type memTx struct {
	store    *Store
	rooms    map[string]*domain.Room
	balances map[domain.AccountID]uint64
	entries  []domain.LedgerEntry
}

func (tx *memTx) Rooms() escrow.RoomStore { return tx }
func (tx *memTx) Ledger() escrow.Ledger   { return tx }

func (tx *memTx) lookup(roomID string) (*domain.Room, bool) {
	if r, ok := tx.rooms[roomID]; ok {
		return r, true
	}
	r, ok := tx.store.rooms[roomID]
	return r, ok
}

func (tx *memTx) CreateIfAbsent(ctx context.Context, room *domain.Room) error {
	if _, ok := tx.lookup(room.ID); ok {
		return escrow.ErrAlreadyExists
	}
	tx.rooms[room.ID] = room.Clone()
	return nil
}

func (tx *memTx) GetForUpdate(ctx context.Context, roomID string) (*domain.Room, error) {
	r, ok := tx.lookup(roomID)
	if !ok {
		return nil, escrow.ErrRoomNotFound
	}
	return r.Clone(), nil
}

func (tx *memTx) Save(ctx context.Context, room *domain.Room) error {
	if _, ok := tx.lookup(room.ID); !ok {
		return escrow.ErrRoomNotFound
	}
	tx.rooms[room.ID] = room.Clone()
	return nil
}

func (tx *memTx) balance(account domain.AccountID) uint64 {
	if b, ok := tx.balances[account]; ok {
		return b
	}
	return tx.store.balances[account]
}

func (tx *memTx) Debit(ctx context.Context, account domain.AccountID, amount uint64, ref domain.TransferRef) error {
	b := tx.balance(account)
	if b < amount {
		return escrow.ErrInsufficientFunds
	}
	tx.balances[account] = b - amount
	tx.record(account, -int64(amount), ref)
	return nil
}

func (tx *memTx) Credit(ctx context.Context, account domain.AccountID, amount uint64, ref domain.TransferRef) error {
	nb, err := escrow.CheckedAdd(tx.balance(account), amount)
	if err != nil {
		return err
	}
	tx.balances[account] = nb
	tx.record(account, int64(amount), ref)
	return nil
}

func (tx *memTx) record(account domain.AccountID, amount int64, ref domain.TransferRef) {
	tx.entries = append(tx.entries, domain.LedgerEntry{
		AccountID: account,
		RoomID:    ref.RoomID,
		Kind:      ref.Kind,
		Amount:    amount,
		CreatedAt: tx.store.now().UTC(),
	})
}
