package service

import (
	"context"
	"errors"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/logger"
)

var ErrInvalidAmount = errors.New("invalid amount")

// AccountStore is the part of a store that funds and reads accounts. Both the memory
// and the Postgres stores implement it.
type AccountStore interface {
	Deposit(ctx context.Context, account domain.AccountID, amount uint64) (uint64, error)
	Balance(ctx context.Context, account domain.AccountID) (uint64, error)
	Entries(ctx context.Context, account domain.AccountID, limit int) ([]domain.LedgerEntry, error)
}

// BalanceService handles balance operations outside of rooms
type BalanceService struct {
	store AccountStore
	audit *AuditService
}

// NewBalanceService creates a new balance service. audit may be nil.
func NewBalanceService(store AccountStore, audit *AuditService) *BalanceService {
	return &BalanceService{store: store, audit: audit}
}

// GetBalance returns the account's current balance
func (s *BalanceService) GetBalance(ctx context.Context, account domain.AccountID) (uint64, error) {
	if _, err := domain.ParseAccountID(string(account)); err != nil {
		return 0, err
	}
	return s.store.Balance(ctx, account)
}

// Deposit credits amount to account and returns the new balance
func (s *BalanceService) Deposit(ctx context.Context, account domain.AccountID, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	if _, err := domain.ParseAccountID(string(account)); err != nil {
		return 0, err
	}

	balance, err := s.store.Deposit(ctx, account, amount)
	if err != nil {
		return 0, err
	}

	logger.Info("deposit credited", "account", account, "amount", amount, "balance", balance)
	if s.audit != nil {
		s.audit.LogDeposit(ctx, account, amount, balance)
	}
	return balance, nil
}

// Entries returns the account's latest ledger movements, newest first
func (s *BalanceService) Entries(ctx context.Context, account domain.AccountID, limit int) ([]domain.LedgerEntry, error) {
	if _, err := domain.ParseAccountID(string(account)); err != nil {
		return nil, err
	}
	return s.store.Entries(ctx, account, limit)
}
