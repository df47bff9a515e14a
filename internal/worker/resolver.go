// Package worker runs background jobs. The resolver settles Processing rooms once their
// randomness is fulfilled, so rooms finish even when no client calls resolve.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
	"coinflip_escrow/internal/logger"
	"coinflip_escrow/internal/metrics"
)

const defaultBatch = 50

// Resolver periodically calls Resolve for every Processing room.
type Resolver struct {
	machine *escrow.Machine
	reader  escrow.Reader
	batch   int
	timeout time.Duration

	cron *cron.Cron
	mu   sync.Mutex // one sweep at a time
}

func NewResolver(m *escrow.Machine, reader escrow.Reader) *Resolver {
	return &Resolver{
		machine: m,
		reader:  reader,
		batch:   defaultBatch,
		timeout: 10 * time.Second,
		cron:    cron.New(),
	}
}

// Start schedules sweeps on spec ("@every 5s", "*/1 * * * *", ...).
func (r *Resolver) Start(spec string) error {
	if _, err := r.cron.AddFunc(spec, func() { r.Sweep(context.Background()) }); err != nil {
		return err
	}
	r.cron.Start()
	logger.Info("resolver started", "spec", spec)
	return nil
}

// Stop waits for a running sweep to finish.
func (r *Resolver) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep tries to resolve each Processing room once and returns how many finished.
func (r *Resolver) Sweep(ctx context.Context) int {
	if !r.mu.TryLock() {
		return 0
	}
	defer r.mu.Unlock()

	rooms, err := r.reader.ListRooms(ctx, escrow.RoomFilter{Status: domain.RoomStatusProcessing, Limit: r.batch})
	if err != nil {
		logger.Error("resolver list rooms", "error", err)
		metrics.RecordResolverAttempt("error")
		return 0
	}

	resolved := 0
	for _, room := range rooms {
		if r.resolve(ctx, room) {
			resolved++
		}
	}
	if resolved > 0 {
		logger.Info("resolver sweep", "processing", len(rooms), "resolved", resolved)
	}
	return resolved
}

func (r *Resolver) resolve(ctx context.Context, room *domain.Room) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.machine.Resolve(ctx, escrow.ResolveInput{
		RoomID:    room.ID,
		Seed:      room.Seed,
		PlayerOne: room.PlayerOne,
		PlayerTwo: room.PlayerTwo,
	})
	switch {
	case err == nil:
		metrics.RecordResolverAttempt("resolved")
		return true
	case errors.Is(err, escrow.ErrStillProcessing):
		metrics.RecordResolverAttempt("pending")
	case errors.Is(err, escrow.ErrAlreadyFinished):
		// a client resolved it between list and lock
		metrics.RecordResolverAttempt("skipped")
	default:
		metrics.RecordResolverAttempt("error")
		logger.Warn("resolver failed", "room_id", room.ID, "error", err)
	}
	return false
}
