package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
)

const roomColumns = `room_id, escrow_account, player_one, player_two, stake, seed, status, winner, randomness, created_at, updated_at`

type RoomRepository struct {
	db DBTX
}

func NewRoomRepository(db DBTX) *RoomRepository {
	return &RoomRepository{db: db}
}

// CreateIfAbsent inserts room, failing with escrow.ErrAlreadyExists on a taken id.
func (r *RoomRepository) CreateIfAbsent(ctx context.Context, room *domain.Room) error {
	stake, err := toBigint(room.Stake)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		`INSERT INTO rooms (room_id, escrow_account, player_one, player_two, stake, seed, status, winner, randomness, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (room_id) DO NOTHING`,
		room.ID, room.Escrow, room.PlayerOne, room.PlayerTwo, stake,
		nullableBytes(room.Seed[:]), room.Status, room.Winner, nullableBytes(room.Randomness[:]),
		room.CreatedAt, room.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return escrow.ErrAlreadyExists
	}
	return nil
}

// GetForUpdate loads a room and holds its row lock until the transaction ends.
func (r *RoomRepository) GetForUpdate(ctx context.Context, roomID string) (*domain.Room, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE room_id = $1 FOR UPDATE`, roomID)
	return scanRoom(row)
}

// GetByID loads a room without locking it.
func (r *RoomRepository) GetByID(ctx context.Context, roomID string) (*domain.Room, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE room_id = $1`, roomID)
	return scanRoom(row)
}

func (r *RoomRepository) Save(ctx context.Context, room *domain.Room) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE rooms
		 SET player_two = $2, seed = $3, status = $4, winner = $5, randomness = $6, updated_at = $7
		 WHERE room_id = $1`,
		room.ID, room.PlayerTwo, nullableBytes(room.Seed[:]), room.Status, room.Winner,
		nullableBytes(room.Randomness[:]), room.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return escrow.ErrRoomNotFound
	}
	return nil
}

// List returns rooms matching f, newest first.
func (r *RoomRepository) List(ctx context.Context, f escrow.RoomFilter) ([]*domain.Room, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Player != "" {
		args = append(args, f.Player)
		where = append(where, fmt.Sprintf("(player_one = $%d OR player_two = $%d)", len(args), len(args)))
	}
	args = append(args, limit)

	q := `SELECT ` + roomColumns + ` FROM rooms`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC, room_id LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, room)
	}
	return result, rows.Err()
}

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var (
		room       domain.Room
		stake      int64
		seed       []byte
		randomness []byte
	)
	err := row.Scan(&room.ID, &room.Escrow, &room.PlayerOne, &room.PlayerTwo, &stake, &seed,
		&room.Status, &room.Winner, &randomness, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, escrow.ErrRoomNotFound
		}
		return nil, err
	}
	room.Stake = uint64(stake)
	copy(room.Seed[:], seed)
	copy(room.Randomness[:], randomness)
	return &room, nil
}

// nullableBytes stores all-zero arrays as NULL.
func nullableBytes(b []byte) []byte {
	for _, v := range b {
		if v != 0 {
			return b
		}
	}
	return nil
}
