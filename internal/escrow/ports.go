package escrow

import (
	"context"

	"coinflip_escrow/internal/domain"
)

// RoomStore persists rooms. It is only reachable through a Tx.
type RoomStore interface {
	// CreateIfAbsent inserts room or fails with ErrAlreadyExists.
	CreateIfAbsent(ctx context.Context, room *domain.Room) error
	// GetForUpdate loads and locks a room or fails with ErrRoomNotFound.
	GetForUpdate(ctx context.Context, roomID string) (*domain.Room, error)
	Save(ctx context.Context, room *domain.Room) error
}

// Ledger moves currency between accounts inside a Tx.
type Ledger interface {
	Debit(ctx context.Context, account domain.AccountID, amount uint64, ref domain.TransferRef) error
	Credit(ctx context.Context, account domain.AccountID, amount uint64, ref domain.TransferRef) error
}

// Tx is one all-or-nothing unit of work.
type Tx interface {
	Rooms() RoomStore
	Ledger() Ledger
}

// UnitOfWork runs fn atomically. Any error from fn discards every change made through tx.
type UnitOfWork interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// RoomFilter narrows ListRooms.
type RoomFilter struct {
	Status domain.RoomStatus
	Player domain.AccountID
	Limit  int
}

// Reader is the read-only projection over rooms and balances.
type Reader interface {
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	ListRooms(ctx context.Context, f RoomFilter) ([]*domain.Room, error)
	Balance(ctx context.Context, account domain.AccountID) (uint64, error)
}

// Store is a complete backend.
type Store interface {
	UnitOfWork
	Reader
}

// Oracle requests and reads verifiable randomness.
type Oracle interface {
	// Request schedules fulfillment for seed. A seed can be requested once.
	Request(ctx context.Context, seed domain.Seed) error
	// Poll returns the fulfilled value, or ok=false while pending.
	Poll(ctx context.Context, seed domain.Seed) (value domain.Randomness, ok bool, err error)
}

// Observer is told about committed transitions.
type Observer interface {
	RoomChanged(ctx context.Context, evt domain.RoomEvent, actor domain.AccountID, room *domain.Room)
}

// KeyFunc derives the escrow account for a room id.
type KeyFunc func(roomID string) domain.AccountID
