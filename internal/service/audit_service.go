package service

import (
	"context"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
	"coinflip_escrow/internal/logger"
)

// AuditSink stores and reads audit entries. *repository.AuditRepository and
// *memory.AuditLog implement it.
type AuditSink interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	GetByRoom(ctx context.Context, roomID string) ([]*domain.AuditLog, error)
	GetByAccount(ctx context.Context, account domain.AccountID, limit int) ([]*domain.AuditLog, error)
}

// AuditService handles audit logging
type AuditService struct {
	repo AuditSink
}

var _ escrow.Observer = (*AuditService)(nil)

// NewAuditService creates a new audit service
func NewAuditService(repo AuditSink) *AuditService {
	return &AuditService{repo: repo}
}

// Log creates a new audit log entry
func (s *AuditService) Log(ctx context.Context, account domain.AccountID, roomID, action, category string, details map[string]interface{}) {
	log := &domain.AuditLog{
		AccountID: account,
		RoomID:    roomID,
		Action:    action,
		Category:  category,
		Details:   details,
	}

	if err := s.repo.Create(ctx, log); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", action, "account", account)
	}
}

// RoomChanged records a committed room transition.
func (s *AuditService) RoomChanged(ctx context.Context, evt domain.RoomEvent, actor domain.AccountID, room *domain.Room) {
	details := map[string]interface{}{
		"status": room.Status,
		"stake":  room.Stake,
	}
	switch evt {
	case domain.EventPlay:
		details["seed"] = room.Seed.String()
	case domain.EventResolve:
		details["winner"] = room.Winner
		details["randomness"] = room.Randomness.String()
		details["payout"] = room.Stake * 2
	}

	s.Log(ctx, actor, room.ID, domain.AuditActionFor(evt), domain.AuditCategoryRoom, details)
}

// LogDeposit logs a deposit action
func (s *AuditService) LogDeposit(ctx context.Context, account domain.AccountID, amount, balance uint64) {
	details := map[string]interface{}{
		"amount":  amount,
		"balance": balance,
	}

	s.Log(ctx, account, "", domain.AuditActionDeposit, domain.AuditCategoryBalance, details)
}

// RoomTrail returns every audit entry of a room, oldest first
func (s *AuditService) RoomTrail(ctx context.Context, roomID string) ([]*domain.AuditLog, error) {
	return s.repo.GetByRoom(ctx, roomID)
}

// AccountTrail returns the latest audit entries of an account, newest first
func (s *AuditService) AccountTrail(ctx context.Context, account domain.AccountID, limit int) ([]*domain.AuditLog, error) {
	if _, err := domain.ParseAccountID(string(account)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.GetByAccount(ctx, account, limit)
}
