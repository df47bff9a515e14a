package memory

import (
	"context"
	"sync"
	"time"

	"coinflip_escrow/internal/domain"
)

// AuditLog keeps audit entries in process, for STORE=memory.
type AuditLog struct {
	mu   sync.Mutex
	logs []domain.AuditLog
	now  func() time.Time
}

func NewAuditLog() *AuditLog {
	return &AuditLog{now: time.Now}
}

// Create appends log and assigns its id and timestamp.
func (a *AuditLog) Create(ctx context.Context, log *domain.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	log.ID = int64(len(a.logs) + 1)
	log.CreatedAt = a.now().UTC()
	a.logs = append(a.logs, *log)
	return nil
}

// GetByRoom returns the audit trail of one room, oldest first.
func (a *AuditLog) GetByRoom(ctx context.Context, roomID string) ([]*domain.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var res []*domain.AuditLog
	for i := range a.logs {
		if a.logs[i].RoomID == roomID {
			l := a.logs[i]
			res = append(res, &l)
		}
	}
	return res, nil
}

// GetByAccount returns up to limit entries for account, newest first.
func (a *AuditLog) GetByAccount(ctx context.Context, account domain.AccountID, limit int) ([]*domain.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var res []*domain.AuditLog
	for i := len(a.logs) - 1; i >= 0 && len(res) < limit; i-- {
		if a.logs[i].AccountID == account {
			l := a.logs[i]
			res = append(res, &l)
		}
	}
	return res, nil
}
