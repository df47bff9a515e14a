package oracle

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"time"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
)

// Local fulfills requests in-process. The value for a seed is the ed25519 signature of
// the seed under the oracle key, so it is deterministic per key, unpredictable without
// the private key, and checkable with Verify.
//
// With a non-negative delay a request is fulfilled on the first Poll after the delay has
// passed. With a negative delay requests stay pending until Fulfill is called.
//
// Requests live in a RequestLog. A Local restarted with the same key and a durable log
// answers every request made before the restart.
type Local struct {
	mu    sync.Mutex
	priv  ed25519.PrivateKey
	delay time.Duration
	now   func() time.Time
	log   RequestLog
}

var _ escrow.Oracle = (*Local)(nil)

type LocalOption func(*Local)

// WithRequestLog replaces the in-memory request log.
func WithRequestLog(l RequestLog) LocalOption {
	return func(o *Local) { o.log = l }
}

// NewLocal creates a local oracle. A nil key generates a fresh one.
func NewLocal(priv ed25519.PrivateKey, delay time.Duration, opts ...LocalOption) *Local {
	if len(priv) != ed25519.PrivateKeySize {
		_, priv, _ = ed25519.GenerateKey(rand.Reader)
	}
	o := &Local{
		priv:  priv,
		delay: delay,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = NewMemoryLog()
	}
	return o
}

// PublicKey returns the key values verify against.
func (o *Local) PublicKey() ed25519.PublicKey {
	return o.priv.Public().(ed25519.PublicKey)
}

func (o *Local) Request(ctx context.Context, seed domain.Seed) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.log.Insert(ctx, &Request{Seed: seed, RequestedAt: o.now().UTC()})
}

func (o *Local) Poll(ctx context.Context, seed domain.Seed) (domain.Randomness, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Randomness{}, false, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	req, err := o.log.Get(ctx, seed)
	if err != nil {
		return domain.Randomness{}, false, err
	}
	if !req.Fulfilled && o.delay >= 0 && o.now().Sub(req.RequestedAt) >= o.delay {
		if err := o.fulfill(ctx, req); err != nil {
			return domain.Randomness{}, false, err
		}
	}
	return req.Value, req.Fulfilled, nil
}

// Fulfill completes a pending request immediately.
func (o *Local) Fulfill(ctx context.Context, seed domain.Seed) (domain.Randomness, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	req, err := o.log.Get(ctx, seed)
	if err != nil {
		return domain.Randomness{}, err
	}
	if !req.Fulfilled {
		if err := o.fulfill(ctx, req); err != nil {
			return domain.Randomness{}, err
		}
	}
	return req.Value, nil
}

// Pending returns the seeds not yet fulfilled.
func (o *Local) Pending(ctx context.Context) ([]domain.Seed, error) {
	return o.log.Pending(ctx)
}

func (o *Local) fulfill(ctx context.Context, req *Request) error {
	var value domain.Randomness
	copy(value[:], ed25519.Sign(o.priv, req.Seed[:]))
	if err := o.log.MarkFulfilled(ctx, req.Seed, value, o.now().UTC()); err != nil {
		return err
	}
	req.Value = value
	req.Fulfilled = true
	return nil
}
