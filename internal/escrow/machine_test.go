package escrow_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
	"coinflip_escrow/internal/oracle"
	"coinflip_escrow/internal/store/memory"
)

type fakeOracle struct {
	mu         sync.Mutex
	requested  map[domain.Seed]bool
	fulfilled  map[domain.Seed]domain.Randomness
	requestErr error
	pollErr    error
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		requested: make(map[domain.Seed]bool),
		fulfilled: make(map[domain.Seed]domain.Randomness),
	}
}

func (o *fakeOracle) Request(ctx context.Context, seed domain.Seed) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.requestErr != nil {
		return o.requestErr
	}
	if o.requested[seed] {
		return errors.New("seed in use")
	}
	o.requested[seed] = true
	return nil
}

func (o *fakeOracle) Poll(ctx context.Context, seed domain.Seed) (domain.Randomness, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pollErr != nil {
		return domain.Randomness{}, false, o.pollErr
	}
	v, ok := o.fulfilled[seed]
	return v, ok, nil
}

func (o *fakeOracle) fulfill(seed domain.Seed, value domain.Randomness) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fulfilled[seed] = value
}

type recordingObserver struct {
	mu     sync.Mutex
	events []domain.RoomEvent
}

func (r *recordingObserver) RoomChanged(ctx context.Context, evt domain.RoomEvent, actor domain.AccountID, room *domain.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

const (
	stake   = domain.MinStake
	funding = 10 * domain.MinStake
)

func account(n byte) domain.AccountID {
	var k [32]byte
	k[0] = n
	k[31] = 0xAA
	return domain.AccountFromKey(k)
}

func seed(n byte) domain.Seed {
	var s domain.Seed
	s[0] = n
	s[31] = 1
	return s
}

func oddValue() domain.Randomness {
	var r domain.Randomness
	r[0] = 7
	return r
}

type fixture struct {
	store  *memory.Store
	oracle *fakeOracle
	m      *escrow.Machine
	alice  domain.AccountID
	bob    domain.AccountID
}

func newFixture(t *testing.T, opts ...escrow.Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.New(),
		oracle: newFakeOracle(),
		alice:  account(1),
		bob:    account(2),
	}
	f.m = escrow.New(f.store, f.oracle, opts...)

	ctx := context.Background()
	for _, a := range []domain.AccountID{f.alice, f.bob} {
		_, err := f.store.Deposit(ctx, a, funding)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) balance(t *testing.T, a domain.AccountID) uint64 {
	t.Helper()
	b, err := f.store.Balance(context.Background(), a)
	require.NoError(t, err)
	return b
}

// played brings room r1 to Processing with seed(1).
func (f *fixture) played(t *testing.T) *domain.Room {
	t.Helper()
	ctx := context.Background()
	_, err := f.m.Create(ctx, "r1", stake, f.alice)
	require.NoError(t, err)
	_, err = f.m.Join(ctx, "r1", f.bob)
	require.NoError(t, err)
	room, err := f.m.Play(ctx, "r1", seed(1), f.alice)
	require.NoError(t, err)
	return room
}

func (f *fixture) resolveInput() escrow.ResolveInput {
	return escrow.ResolveInput{RoomID: "r1", Seed: seed(1), PlayerOne: f.alice, PlayerTwo: f.bob}
}

func TestCreate_EscrowsStake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.m.Create(ctx, "r1", stake, f.alice)
	require.NoError(t, err)

	assert.Equal(t, domain.RoomStatusWaiting, room.Status)
	assert.Equal(t, f.alice, room.PlayerOne)
	assert.True(t, room.PlayerTwo.IsZero())
	assert.Equal(t, domain.DeriveEscrowAccount("r1"), room.Escrow)
	assert.Equal(t, funding-stake, f.balance(t, f.alice))
	assert.Equal(t, stake, f.balance(t, room.Escrow))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.Create(ctx, "r1", stake-1, f.alice)
	assert.ErrorIs(t, err, escrow.ErrInvalidAmount)

	_, err = f.m.Create(ctx, "", stake, f.alice)
	assert.ErrorIs(t, err, escrow.ErrInvalidRoomID)

	_, err = f.m.Create(ctx, strings.Repeat("x", domain.MaxRoomIDLen+1), stake, f.alice)
	assert.ErrorIs(t, err, escrow.ErrInvalidRoomID)

	_, err = f.m.Create(ctx, "r1", stake, "not-base58-0OIl")
	assert.ErrorIs(t, err, escrow.ErrInvalidAccount)

	_, err = f.m.Create(ctx, strings.Repeat("x", domain.MaxRoomIDLen), stake, f.alice)
	assert.NoError(t, err)

	assert.Equal(t, funding-stake, f.balance(t, f.alice))
}

func TestCreate_DuplicateLeavesBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.Create(ctx, "r1", stake, f.alice)
	require.NoError(t, err)

	_, err = f.m.Create(ctx, "r1", stake, f.bob)
	assert.ErrorIs(t, err, escrow.ErrAlreadyExists)
	assert.Equal(t, funding, f.balance(t, f.bob))
	assert.Equal(t, stake, f.balance(t, domain.DeriveEscrowAccount("r1")))
}

func TestCreate_TransferFailureCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	poor := account(9)

	_, err := f.m.Create(ctx, "r1", stake, poor)
	assert.ErrorIs(t, err, escrow.ErrTransferFailed)
	assert.ErrorIs(t, err, escrow.ErrInsufficientFunds)

	_, err = f.store.GetRoom(ctx, "r1")
	assert.ErrorIs(t, err, escrow.ErrRoomNotFound)
}

func TestCreate_CustomKeyFunc(t *testing.T) {
	vault := account(42)
	f := newFixture(t, escrow.WithKeyFunc(func(string) domain.AccountID { return vault }))

	room, err := f.m.Create(context.Background(), "r1", stake, f.alice)
	require.NoError(t, err)
	assert.Equal(t, vault, room.Escrow)
	assert.Equal(t, stake, f.balance(t, vault))
}

func TestWithMinStake(t *testing.T) {
	f := newFixture(t, escrow.WithMinStake(2*stake))
	assert.Equal(t, 2*stake, f.m.MinStake())

	_, err := f.m.Create(context.Background(), "r1", stake, f.alice)
	assert.ErrorIs(t, err, escrow.ErrInvalidAmount)

	lower := newFixture(t, escrow.WithMinStake(1))
	assert.Equal(t, domain.MinStake, lower.m.MinStake())
}

func TestJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.Create(ctx, "r1", stake, f.alice)
	require.NoError(t, err)

	room, err := f.m.Join(ctx, "r1", f.bob)
	require.NoError(t, err)
	assert.Equal(t, f.bob, room.PlayerTwo)
	assert.Equal(t, domain.RoomStatusWaiting, room.Status)
	assert.Equal(t, funding-stake, f.balance(t, f.bob))
	assert.Equal(t, 2*stake, f.balance(t, room.Escrow))
}

func TestJoin_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	carol := account(3)
	_, err := f.store.Deposit(ctx, carol, funding)
	require.NoError(t, err)

	_, err = f.m.Join(ctx, "missing", f.bob)
	assert.ErrorIs(t, err, escrow.ErrRoomNotFound)

	_, err = f.m.Create(ctx, "r1", stake, f.alice)
	require.NoError(t, err)

	_, err = f.m.Join(ctx, "r1", f.alice)
	assert.ErrorIs(t, err, escrow.ErrSelfJoin)

	_, err = f.m.Join(ctx, "r1", f.bob)
	require.NoError(t, err)

	_, err = f.m.Join(ctx, "r1", carol)
	assert.ErrorIs(t, err, escrow.ErrRoomFull)
	assert.Equal(t, funding, f.balance(t, carol))
}

func TestJoin_InsufficientFundsLeavesRoomOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	poor := account(9)
	_, err := f.store.Deposit(ctx, poor, stake-1)
	require.NoError(t, err)

	_, err = f.m.Create(ctx, "r1", stake, f.alice)
	require.NoError(t, err)

	_, err = f.m.Join(ctx, "r1", poor)
	assert.ErrorIs(t, err, escrow.ErrTransferFailed)

	room, err := f.store.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, room.PlayerTwo.IsZero())
	assert.Equal(t, stake-1, f.balance(t, poor))

	_, err = f.m.Join(ctx, "r1", f.bob)
	assert.NoError(t, err)
}

func TestJoin_ConcurrentOnlyOneSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Create(ctx, "r1", stake, f.alice)
	require.NoError(t, err)

	var joiners []domain.AccountID
	for i := byte(10); i < 30; i++ {
		a := account(i)
		_, err := f.store.Deposit(ctx, a, funding)
		require.NoError(t, err)
		joiners = append(joiners, a)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, a := range joiners {
		wg.Add(1)
		go func(a domain.AccountID) {
			defer wg.Done()
			if _, err := f.m.Join(ctx, "r1", a); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, escrow.ErrRoomFull)
			}
		}(a)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 2*stake, f.balance(t, domain.DeriveEscrowAccount("r1")))
}

func TestPlay(t *testing.T) {
	f := newFixture(t)
	room := f.played(t)

	assert.Equal(t, domain.RoomStatusProcessing, room.Status)
	assert.Equal(t, seed(1), room.Seed)
	assert.True(t, f.oracle.requested[seed(1)])
	assert.Equal(t, 2*stake, f.balance(t, room.Escrow))
}

func TestPlay_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.Play(ctx, "r1", domain.Seed{}, f.alice)
	assert.ErrorIs(t, err, escrow.ErrInvalidSeed)

	_, err = f.m.Create(ctx, "r1", stake, f.alice)
	require.NoError(t, err)

	_, err = f.m.Play(ctx, "r1", seed(1), f.alice)
	assert.ErrorIs(t, err, escrow.ErrRoomNotReady)

	_, err = f.m.Join(ctx, "r1", f.bob)
	require.NoError(t, err)

	_, err = f.m.Play(ctx, "r1", seed(1), f.bob)
	assert.ErrorIs(t, err, escrow.ErrUnauthorized)

	_, err = f.m.Play(ctx, "r1", seed(1), f.alice)
	require.NoError(t, err)

	_, err = f.m.Play(ctx, "r1", seed(2), f.alice)
	assert.ErrorIs(t, err, escrow.ErrInvalidState)

	_, err = f.m.Join(ctx, "r1", account(3))
	assert.ErrorIs(t, err, escrow.ErrInvalidState)

	assert.Len(t, f.oracle.requested, 1)
}

func TestPlay_OracleFailureKeepsWaiting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.m.Create(ctx, "r1", stake, f.alice)
	require.NoError(t, err)
	_, err = f.m.Join(ctx, "r1", f.bob)
	require.NoError(t, err)

	f.oracle.requestErr = errors.New("gateway down")
	_, err = f.m.Play(ctx, "r1", seed(1), f.alice)
	assert.ErrorIs(t, err, escrow.ErrOracleFailed)

	var oe *escrow.OracleError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, seed(1), oe.Seed)

	room, err := f.store.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusWaiting, room.Status)
	assert.True(t, room.Seed.IsZero())

	f.oracle.requestErr = nil
	_, err = f.m.Play(ctx, "r1", seed(1), f.alice)
	assert.NoError(t, err)
}

func TestResolve_StillProcessing(t *testing.T) {
	f := newFixture(t)
	f.played(t)
	ctx := context.Background()

	_, err := f.m.Resolve(ctx, f.resolveInput())
	assert.ErrorIs(t, err, escrow.ErrStillProcessing)

	room, err := f.store.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusProcessing, room.Status)
	assert.True(t, room.Winner.IsZero())
	assert.Equal(t, 2*stake, f.balance(t, room.Escrow))
}

func TestResolve_EvenPaysPlayerOne(t *testing.T) {
	f := newFixture(t)
	f.played(t)
	f.oracle.fulfill(seed(1), domain.Randomness{})

	room, err := f.m.Resolve(context.Background(), f.resolveInput())
	require.NoError(t, err)

	assert.Equal(t, domain.RoomStatusFinished, room.Status)
	assert.Equal(t, f.alice, room.Winner)
	assert.Equal(t, funding+stake, f.balance(t, f.alice))
	assert.Equal(t, funding-stake, f.balance(t, f.bob))
	assert.Zero(t, f.balance(t, room.Escrow))
}

func TestResolve_OddPaysPlayerTwo(t *testing.T) {
	f := newFixture(t)
	f.played(t)
	f.oracle.fulfill(seed(1), oddValue())

	room, err := f.m.Resolve(context.Background(), f.resolveInput())
	require.NoError(t, err)

	assert.Equal(t, f.bob, room.Winner)
	assert.Equal(t, oddValue(), room.Randomness)
	assert.Equal(t, funding-stake, f.balance(t, f.alice))
	assert.Equal(t, funding+stake, f.balance(t, f.bob))
}

func TestResolve_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	f.played(t)
	f.oracle.fulfill(seed(1), oddValue())
	ctx := context.Background()

	_, err := f.m.Resolve(ctx, f.resolveInput())
	require.NoError(t, err)

	_, err = f.m.Resolve(ctx, f.resolveInput())
	assert.ErrorIs(t, err, escrow.ErrAlreadyFinished)
	assert.Equal(t, funding+stake, f.balance(t, f.bob))

	// a finished room wins over any claimed input
	_, err = f.m.Resolve(ctx, escrow.ResolveInput{RoomID: "r1"})
	assert.ErrorIs(t, err, escrow.ErrAlreadyFinished)

	_, err = f.m.Join(ctx, "r1", account(3))
	assert.ErrorIs(t, err, escrow.ErrAlreadyFinished)
	_, err = f.m.Play(ctx, "r1", seed(2), f.alice)
	assert.ErrorIs(t, err, escrow.ErrAlreadyFinished)
}

func TestResolve_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.Create(ctx, "r1", stake, f.alice)
	require.NoError(t, err)
	_, err = f.m.Join(ctx, "r1", f.bob)
	require.NoError(t, err)

	_, err = f.m.Resolve(ctx, f.resolveInput())
	assert.ErrorIs(t, err, escrow.ErrInvalidState)

	_, err = f.m.Play(ctx, "r1", seed(1), f.alice)
	require.NoError(t, err)
	f.oracle.fulfill(seed(1), domain.Randomness{})

	in := f.resolveInput()
	in.PlayerOne, in.PlayerTwo = f.bob, f.alice
	_, err = f.m.Resolve(ctx, in)
	assert.ErrorIs(t, err, escrow.ErrPlayerMismatch)

	in = f.resolveInput()
	in.Seed = seed(2)
	_, err = f.m.Resolve(ctx, in)
	assert.ErrorIs(t, err, escrow.ErrSeedMismatch)

	in = f.resolveInput()
	in.Seed = domain.Seed{}
	_, err = f.m.Resolve(ctx, in)
	assert.ErrorIs(t, err, escrow.ErrInvalidSeed)

	room, err := f.store.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusProcessing, room.Status)
}

func TestResolve_PollFailure(t *testing.T) {
	f := newFixture(t)
	f.played(t)
	f.oracle.pollErr = errors.New("timeout")

	_, err := f.m.Resolve(context.Background(), f.resolveInput())
	assert.ErrorIs(t, err, escrow.ErrOracleFailed)
}

func TestResolve_AfterOracleRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	requests := oracle.NewMemoryLog()

	before := escrow.New(f.store, oracle.NewLocal(key, -1, oracle.WithRequestLog(requests)))
	_, err := before.Create(ctx, "r1", stake, f.alice)
	require.NoError(t, err)
	_, err = before.Join(ctx, "r1", f.bob)
	require.NoError(t, err)
	_, err = before.Play(ctx, "r1", seed(1), f.alice)
	require.NoError(t, err)

	// an oracle that lost its requests cannot settle the room, and nothing moves
	amnesiac := escrow.New(f.store, oracle.NewLocal(key, 0))
	_, err = amnesiac.Resolve(ctx, f.resolveInput())
	assert.ErrorIs(t, err, escrow.ErrOracleFailed)
	assert.ErrorIs(t, err, oracle.ErrUnknownSeed)
	assert.Equal(t, 2*stake, f.balance(t, domain.DeriveEscrowAccount("r1")))

	// same key and request log after the restart: the room settles
	after := escrow.New(f.store, oracle.NewLocal(key, 0, oracle.WithRequestLog(requests)))
	room, err := after.Resolve(ctx, f.resolveInput())
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusFinished, room.Status)
	assert.True(t, oracle.Verify(key.Public().(ed25519.PublicKey), seed(1), room.Randomness))
	assert.Zero(t, f.balance(t, domain.DeriveEscrowAccount("r1")))
	assert.Equal(t, funding+stake, f.balance(t, room.Winner))
}

func TestConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrowAcct := domain.DeriveEscrowAccount("r1")
	total := func() uint64 {
		return f.balance(t, f.alice) + f.balance(t, f.bob) + f.balance(t, escrowAcct)
	}
	before := total()

	f.played(t)
	assert.Equal(t, before, total())

	f.oracle.fulfill(seed(1), oddValue())
	_, err := f.m.Resolve(ctx, f.resolveInput())
	require.NoError(t, err)
	assert.Equal(t, before, total())

	var sum int64
	for _, a := range []domain.AccountID{f.alice, f.bob, escrowAcct} {
		entries, err := f.store.Entries(ctx, a, 100)
		require.NoError(t, err)
		for _, e := range entries {
			if e.Kind != domain.LedgerDeposit {
				sum += e.Amount
			}
		}
	}
	assert.Zero(t, sum)
}

func TestObserversSeeCommittedTransitions(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(t, escrow.WithObservers(obs))
	ctx := context.Background()

	f.played(t)
	_, err := f.m.Resolve(ctx, f.resolveInput())
	require.ErrorIs(t, err, escrow.ErrStillProcessing)

	f.oracle.fulfill(seed(1), domain.Randomness{})
	_, err = f.m.Resolve(ctx, f.resolveInput())
	require.NoError(t, err)

	assert.Equal(t, []domain.RoomEvent{
		domain.EventCreate, domain.EventJoin, domain.EventPlay, domain.EventResolve,
	}, obs.events)
}

func TestReturnedRoomIsACopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.m.Create(ctx, "r1", stake, f.alice)
	require.NoError(t, err)
	room.Status = domain.RoomStatusFinished

	stored, err := f.store.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusWaiting, stored.Status)
}
