package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"coinflip_escrow/internal/domain"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db DBTX
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	detailsJSON, err := json.Marshal(log.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	return r.db.QueryRow(ctx, `
		INSERT INTO audit_logs (account_id, room_id, action, category, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, log.AccountID, log.RoomID, log.Action, log.Category, detailsJSON).Scan(&log.ID, &log.CreatedAt)
}

// GetByRoom returns the audit trail of one room, oldest first
func (r *AuditRepository) GetByRoom(ctx context.Context, roomID string) ([]*domain.AuditLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, room_id, action, category, details, created_at
		FROM audit_logs
		WHERE room_id = $1
		ORDER BY id
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditLogs(rows)
}

// GetByAccount returns audit logs for an account
func (r *AuditRepository) GetByAccount(ctx context.Context, account domain.AccountID, limit int) ([]*domain.AuditLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, room_id, action, category, details, created_at
		FROM audit_logs
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditLogs(rows)
}

func scanAuditLogs(rows pgx.Rows) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	for rows.Next() {
		var log domain.AuditLog
		var detailsJSON []byte
		if err := rows.Scan(&log.ID, &log.AccountID, &log.RoomID, &log.Action, &log.Category, &detailsJSON, &log.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(detailsJSON, &log.Details); err != nil {
			log.Details = make(map[string]interface{})
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}
