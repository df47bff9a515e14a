package oracle

import (
	"context"
	"sort"
	"sync"
	"time"

	"coinflip_escrow/internal/domain"
)

// Request is one randomness request as the oracle records it.
type Request struct {
	Seed        domain.Seed
	RequestedAt time.Time
	Fulfilled   bool
	FulfilledAt time.Time
	Value       domain.Randomness
}

// RequestLog stores requests for Local.
type RequestLog interface {
	// Insert records a new request, failing with ErrSeedInUse for a known seed.
	Insert(ctx context.Context, req *Request) error
	// Get returns ErrUnknownSeed for a seed never inserted.
	Get(ctx context.Context, seed domain.Seed) (*Request, error)
	MarkFulfilled(ctx context.Context, seed domain.Seed, value domain.Randomness, at time.Time) error
	// Pending lists unfulfilled seeds, oldest request first.
	Pending(ctx context.Context) ([]domain.Seed, error)
}

// MemoryLog is a RequestLog that forgets everything when the process exits.
type MemoryLog struct {
	mu       sync.Mutex
	requests map[domain.Seed]Request
}

var _ RequestLog = (*MemoryLog)(nil)

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{requests: make(map[domain.Seed]Request)}
}

func (l *MemoryLog) Insert(ctx context.Context, req *Request) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.requests[req.Seed]; ok {
		return ErrSeedInUse
	}
	l.requests[req.Seed] = *req
	return nil
}

func (l *MemoryLog) Get(ctx context.Context, seed domain.Seed) (*Request, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, ok := l.requests[seed]
	if !ok {
		return nil, ErrUnknownSeed
	}
	return &req, nil
}

func (l *MemoryLog) MarkFulfilled(ctx context.Context, seed domain.Seed, value domain.Randomness, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, ok := l.requests[seed]
	if !ok {
		return ErrUnknownSeed
	}
	if req.Fulfilled {
		return nil
	}
	req.Fulfilled = true
	req.FulfilledAt = at
	req.Value = value
	l.requests[seed] = req
	return nil
}

func (l *MemoryLog) Pending(ctx context.Context) ([]domain.Seed, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var pending []Request
	for _, r := range l.requests {
		if !r.Fulfilled {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].RequestedAt.Before(pending[j].RequestedAt)
	})

	res := make([]domain.Seed, 0, len(pending))
	for _, r := range pending {
		res = append(res, r.Seed)
	}
	return res, nil
}
