// Package escrow implements the coin-flip room state machine: stakes are escrowed on
// create and join, play requests randomness for the room's seed, and resolve reads the
// fulfilled value once and pays the whole pot to the winner.
//
// Every operation runs inside one UnitOfWork so the room mutation and its transfers
// commit together or not at all. The machine holds no locks of its own; per-room
// serialization is the store's job.
package escrow

import (
	"context"
	"errors"
	"time"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/logger"
	"coinflip_escrow/internal/metrics"
)

// Machine runs room transitions against a store and an oracle.
type Machine struct {
	uow       UnitOfWork
	oracle    Oracle
	keyFunc   KeyFunc
	minStake  uint64
	observers []Observer
	now       func() time.Time
}

type Option func(*Machine)

// WithKeyFunc replaces the escrow account derivation.
func WithKeyFunc(f KeyFunc) Option {
	return func(m *Machine) {
		if f != nil {
			m.keyFunc = f
		}
	}
}

// WithMinStake raises the minimum stake. Values below domain.MinStake are ignored.
func WithMinStake(v uint64) Option {
	return func(m *Machine) {
		if v > domain.MinStake {
			m.minStake = v
		}
	}
}

func WithObservers(obs ...Observer) Option {
	return func(m *Machine) { m.observers = append(m.observers, obs...) }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// New creates a state machine.
func New(uow UnitOfWork, oracle Oracle, opts ...Option) *Machine {
	m := &Machine{
		uow:      uow,
		oracle:   oracle,
		keyFunc:  domain.DeriveEscrowAccount,
		minStake: domain.MinStake,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MinStake returns the effective minimum stake.
func (m *Machine) MinStake() uint64 { return m.minStake }

// Create opens a room and escrows the creator's stake.
func (m *Machine) Create(ctx context.Context, roomID string, stake uint64, caller domain.AccountID) (*domain.Room, error) {
	if err := domain.ValidateRoomID(roomID); err != nil {
		return nil, err
	}
	if err := validateAccount(caller); err != nil {
		return nil, err
	}
	if stake < m.minStake {
		return nil, ErrInvalidAmount
	}

	return m.run(ctx, domain.EventCreate, caller, func(ctx context.Context, tx Tx) (*domain.Room, error) {
		status, err := domain.NextStatus("", domain.EventCreate)
		if err != nil {
			return nil, err
		}
		now := m.now().UTC()
		room := &domain.Room{
			ID:        roomID,
			Escrow:    m.keyFunc(roomID),
			PlayerOne: caller,
			Stake:     stake,
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Rooms().CreateIfAbsent(ctx, room); err != nil {
			return nil, err
		}
		if err := transfer(ctx, tx, caller, room.Escrow, stake, roomID, domain.LedgerStakeDebit, domain.LedgerEscrowCredit); err != nil {
			return nil, err
		}
		return room, nil
	})
}

// Join seats the caller as player two and escrows the room's stake. The room stays
// Waiting until the creator calls Play.
func (m *Machine) Join(ctx context.Context, roomID string, caller domain.AccountID) (*domain.Room, error) {
	if err := domain.ValidateRoomID(roomID); err != nil {
		return nil, err
	}
	if err := validateAccount(caller); err != nil {
		return nil, err
	}

	return m.run(ctx, domain.EventJoin, caller, func(ctx context.Context, tx Tx) (*domain.Room, error) {
		room, err := tx.Rooms().GetForUpdate(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if err := requireStatus(room, domain.RoomStatusWaiting); err != nil {
			return nil, err
		}
		if room.HasSecondPlayer() {
			return nil, ErrRoomFull
		}
		if caller == room.PlayerOne {
			return nil, ErrSelfJoin
		}
		status, err := domain.NextStatus(room.Status, domain.EventJoin)
		if err != nil {
			return nil, err
		}
		if err := transfer(ctx, tx, caller, room.Escrow, room.Stake, roomID, domain.LedgerStakeDebit, domain.LedgerEscrowCredit); err != nil {
			return nil, err
		}

		room.PlayerTwo = caller
		room.Status = status
		room.UpdatedAt = m.now().UTC()
		if err := tx.Rooms().Save(ctx, room); err != nil {
			return nil, err
		}
		return room, nil
	})
}

// Play requests randomness for seed and moves the room to Processing. Only the creator
// may call it, and only once a second player has joined.
func (m *Machine) Play(ctx context.Context, roomID string, seed domain.Seed, caller domain.AccountID) (*domain.Room, error) {
	if err := domain.ValidateRoomID(roomID); err != nil {
		return nil, err
	}
	if err := validateAccount(caller); err != nil {
		return nil, err
	}
	if seed.IsZero() {
		return nil, ErrInvalidSeed
	}

	return m.run(ctx, domain.EventPlay, caller, func(ctx context.Context, tx Tx) (*domain.Room, error) {
		room, err := tx.Rooms().GetForUpdate(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if caller != room.PlayerOne {
			return nil, ErrUnauthorized
		}
		if err := requireStatus(room, domain.RoomStatusWaiting); err != nil {
			return nil, err
		}
		if !room.HasSecondPlayer() {
			return nil, ErrRoomNotReady
		}
		status, err := domain.NextStatus(room.Status, domain.EventPlay)
		if err != nil {
			return nil, err
		}

		if err := m.oracle.Request(ctx, seed); err != nil {
			return nil, &OracleError{Seed: seed, Err: err}
		}

		room.Seed = seed
		room.Status = status
		room.UpdatedAt = m.now().UTC()
		if err := tx.Rooms().Save(ctx, room); err != nil {
			return nil, err
		}
		return room, nil
	})
}

// ResolveInput carries the caller's view of the room; it is checked, not trusted.
type ResolveInput struct {
	RoomID    string
	Seed      domain.Seed
	PlayerOne domain.AccountID
	PlayerTwo domain.AccountID
}

// Resolve reads the fulfilled randomness and pays 2*stake to the winner. Before the
// oracle fulfills the seed it returns ErrStillProcessing and changes nothing.
func (m *Machine) Resolve(ctx context.Context, in ResolveInput) (*domain.Room, error) {
	if err := domain.ValidateRoomID(in.RoomID); err != nil {
		return nil, err
	}

	room, err := m.run(ctx, domain.EventResolve, "", func(ctx context.Context, tx Tx) (*domain.Room, error) {
		room, err := tx.Rooms().GetForUpdate(ctx, in.RoomID)
		if err != nil {
			return nil, err
		}
		if err := requireStatus(room, domain.RoomStatusProcessing); err != nil {
			return nil, err
		}
		if in.PlayerOne != room.PlayerOne || in.PlayerTwo != room.PlayerTwo {
			return nil, ErrPlayerMismatch
		}
		if in.Seed.IsZero() {
			return nil, ErrInvalidSeed
		}
		if in.Seed != room.Seed {
			return nil, ErrSeedMismatch
		}

		value, ok, err := m.oracle.Poll(ctx, room.Seed)
		if err != nil {
			return nil, &OracleError{Seed: room.Seed, Err: err}
		}
		if !ok {
			return nil, ErrStillProcessing
		}

		payout, err := Payout(room.Stake)
		if err != nil {
			return nil, err
		}
		status, err := domain.NextStatus(room.Status, domain.EventResolve)
		if err != nil {
			return nil, err
		}
		winner := PickWinner(value, room.PlayerOne, room.PlayerTwo)

		if err := transfer(ctx, tx, room.Escrow, winner, payout, room.ID, domain.LedgerPayoutDebit, domain.LedgerPayoutCredit); err != nil {
			return nil, err
		}

		room.Winner = winner
		room.Randomness = value
		room.Status = status
		room.UpdatedAt = m.now().UTC()
		if err := tx.Rooms().Save(ctx, room); err != nil {
			return nil, err
		}
		return room, nil
	})
	if err != nil {
		return nil, err
	}

	seat := "player_one"
	if room.Winner == room.PlayerTwo {
		seat = "player_two"
	}
	metrics.RecordPayout(room.Stake*2, seat)
	return room, nil
}

func (m *Machine) run(ctx context.Context, evt domain.RoomEvent, actor domain.AccountID, fn func(ctx context.Context, tx Tx) (*domain.Room, error)) (*domain.Room, error) {
	started := time.Now()
	var room *domain.Room
	err := m.uow.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		r, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		room = r
		return nil
	})
	metrics.RecordRoomOp(string(evt), outcome(err), started)

	log := logger.WithContext(ctx)
	if err != nil {
		if errors.Is(err, ErrStillProcessing) {
			log.Debugw("room still processing", "event", evt)
		} else {
			log.Debugw("room operation rejected", "event", evt, "error", err)
		}
		return nil, err
	}

	log.Infow("room "+string(evt),
		"room_id", room.ID,
		"status", room.Status,
		"stake", room.Stake,
		"winner", room.Winner,
	)

	for _, o := range m.observers {
		o.RoomChanged(ctx, evt, actor, room.Clone())
	}
	return room.Clone(), nil
}

func transfer(ctx context.Context, tx Tx, from, to domain.AccountID, amount uint64, roomID string, debitKind, creditKind domain.LedgerKind) error {
	if err := tx.Ledger().Debit(ctx, from, amount, domain.TransferRef{RoomID: roomID, Kind: debitKind}); err != nil {
		return &TransferError{Op: "debit", Account: from, Amount: amount, Err: err}
	}
	if err := tx.Ledger().Credit(ctx, to, amount, domain.TransferRef{RoomID: roomID, Kind: creditKind}); err != nil {
		return &TransferError{Op: "credit", Account: to, Amount: amount, Err: err}
	}
	return nil
}

func requireStatus(room *domain.Room, want domain.RoomStatus) error {
	if room.Status == want {
		return nil
	}
	if room.Status == domain.RoomStatusFinished {
		return ErrAlreadyFinished
	}
	return ErrInvalidState
}

func validateAccount(a domain.AccountID) error {
	_, err := domain.ParseAccountID(string(a))
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrStillProcessing):
		return "pending"
	case isRejection(err):
		return "rejected"
	default:
		return "error"
	}
}

// isRejection reports caller errors: bad input or a room in the wrong state.
func isRejection(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidRoomID, ErrInvalidSeed, ErrInvalidAccount,
		ErrUnauthorized, ErrSelfJoin, ErrPlayerMismatch, ErrSeedMismatch,
		ErrRoomNotFound, ErrAlreadyExists, ErrAlreadyFinished, ErrRoomFull,
		ErrRoomNotReady, ErrInvalidState,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
