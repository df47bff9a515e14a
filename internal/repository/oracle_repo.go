package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/oracle"
)

// OracleRequestRepository is the durable request log of the local oracle, so requests
// made before a restart can still be fulfilled.
type OracleRequestRepository struct {
	db DBTX
}

var _ oracle.RequestLog = (*OracleRequestRepository)(nil)

func NewOracleRequestRepository(db DBTX) *OracleRequestRepository {
	return &OracleRequestRepository{db: db}
}

func (r *OracleRequestRepository) Insert(ctx context.Context, req *oracle.Request) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO oracle_requests (seed, requested_at) VALUES ($1, $2)
		 ON CONFLICT (seed) DO NOTHING`,
		req.Seed[:], req.RequestedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return oracle.ErrSeedInUse
	}
	return nil
}

func (r *OracleRequestRepository) Get(ctx context.Context, seed domain.Seed) (*oracle.Request, error) {
	var (
		req         = oracle.Request{Seed: seed}
		fulfilledAt *time.Time
		value       []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT requested_at, fulfilled_at, randomness FROM oracle_requests WHERE seed = $1`,
		seed[:],
	).Scan(&req.RequestedAt, &fulfilledAt, &value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oracle.ErrUnknownSeed
		}
		return nil, err
	}
	if fulfilledAt != nil {
		req.Fulfilled = true
		req.FulfilledAt = *fulfilledAt
		copy(req.Value[:], value)
	}
	return &req, nil
}

// MarkFulfilled stores value once; later calls keep the first value.
func (r *OracleRequestRepository) MarkFulfilled(ctx context.Context, seed domain.Seed, value domain.Randomness, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE oracle_requests
		 SET fulfilled_at = COALESCE(fulfilled_at, $2), randomness = COALESCE(randomness, $3)
		 WHERE seed = $1`,
		seed[:], at, value[:],
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return oracle.ErrUnknownSeed
	}
	return nil
}

func (r *OracleRequestRepository) Pending(ctx context.Context) ([]domain.Seed, error) {
	rows, err := r.db.Query(ctx,
		`SELECT seed FROM oracle_requests WHERE fulfilled_at IS NULL ORDER BY requested_at, seed`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []domain.Seed{}
	for rows.Next() {
		var (
			b    []byte
			seed domain.Seed
		)
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		copy(seed[:], b)
		res = append(res, seed)
	}
	return res, rows.Err()
}
