package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/store/memory"
)

type fakeSink struct {
	logs []*domain.AuditLog
	err  error
}

func (f *fakeSink) Create(ctx context.Context, log *domain.AuditLog) error {
	if f.err != nil {
		return f.err
	}
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeSink) GetByRoom(ctx context.Context, roomID string) ([]*domain.AuditLog, error) {
	var res []*domain.AuditLog
	for _, l := range f.logs {
		if l.RoomID == roomID {
			res = append(res, l)
		}
	}
	return res, f.err
}

func (f *fakeSink) GetByAccount(ctx context.Context, account domain.AccountID, limit int) ([]*domain.AuditLog, error) {
	var res []*domain.AuditLog
	for i := len(f.logs) - 1; i >= 0 && len(res) < limit; i-- {
		if f.logs[i].AccountID == account {
			res = append(res, f.logs[i])
		}
	}
	return res, f.err
}

func testAccount(n byte) domain.AccountID {
	var k [32]byte
	k[0] = n
	return domain.AccountFromKey(k)
}

func TestJWT_RoundTrip(t *testing.T) {
	InitJWT("test-secret")
	acct := testAccount(1)

	token, err := GenerateJWT(acct, time.Hour)
	require.NoError(t, err)

	got, err := ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, acct, got)
}

func TestJWT_Rejects(t *testing.T) {
	InitJWT("test-secret")

	claims := jwt.RegisteredClaims{
		Subject:   testAccount(1).String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = ParseJWT(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	InitJWT("other-secret")
	token, err := GenerateJWT(testAccount(1), time.Hour)
	require.NoError(t, err)
	InitJWT("test-secret")
	_, err = ParseJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	bad, err := GenerateJWT("not-an-account", time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(bad)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseJWT("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuditService_RoomChanged(t *testing.T) {
	sink := &fakeSink{}
	s := NewAuditService(sink)
	actor := testAccount(1)
	room := &domain.Room{ID: "r1", Stake: domain.MinStake, Status: domain.RoomStatusFinished, Winner: actor}

	s.RoomChanged(context.Background(), domain.EventResolve, actor, room)

	require.Len(t, sink.logs, 1)
	l := sink.logs[0]
	assert.Equal(t, domain.AuditActionRoomResolved, l.Action)
	assert.Equal(t, domain.AuditCategoryRoom, l.Category)
	assert.Equal(t, "r1", l.RoomID)
	assert.Equal(t, actor, l.Details["winner"])
	assert.Equal(t, 2*domain.MinStake, l.Details["payout"])
}

func TestAuditService_SinkFailureIsSwallowed(t *testing.T) {
	s := NewAuditService(&fakeSink{err: errors.New("db down")})
	assert.NotPanics(t, func() {
		s.LogDeposit(context.Background(), testAccount(1), 1, 1)
	})
}

func TestBalanceService_Deposit(t *testing.T) {
	sink := &fakeSink{}
	svc := NewBalanceService(memory.New(), NewAuditService(sink))
	ctx := context.Background()
	acct := testAccount(2)

	b, err := svc.Deposit(ctx, acct, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), b)

	b, err = svc.GetBalance(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), b)
	assert.Len(t, sink.logs, 1)

	_, err = svc.Deposit(ctx, acct, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Deposit(ctx, "bad", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)
}

func TestBalanceService_EntriesAndTrail(t *testing.T) {
	sink := &fakeSink{}
	audit := NewAuditService(sink)
	svc := NewBalanceService(memory.New(), audit)
	ctx := context.Background()
	acct := testAccount(3)

	_, err := svc.Deposit(ctx, acct, 100)
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, acct, 50)
	require.NoError(t, err)

	entries, err := svc.Entries(ctx, acct, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(50), entries[0].Amount)

	trail, err := audit.AccountTrail(ctx, acct, 0)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, uint64(150), trail[0].Details["balance"])

	_, err = svc.Entries(ctx, "bad", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)
	_, err = audit.AccountTrail(ctx, "bad", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)
}
