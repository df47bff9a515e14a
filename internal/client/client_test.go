package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinflip_escrow/internal/client"
	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
	httpserver "coinflip_escrow/internal/http"
	"coinflip_escrow/internal/http/handlers"
	"coinflip_escrow/internal/oracle"
	"coinflip_escrow/internal/service"
	"coinflip_escrow/internal/store/memory"
	"coinflip_escrow/internal/ws"
)

func acct(n byte) domain.AccountID {
	var k [32]byte
	k[0] = n
	return domain.AccountFromKey(k)
}

type env struct {
	url    string
	oracle *oracle.Local
	store  *memory.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service.InitJWT("client-test-secret")

	st := memory.New()
	orc := oracle.NewLocal(nil, -1)
	m := escrow.New(st, orc)

	r := gin.New()
	httpserver.RegisterRoutes(r, httpserver.Deps{
		Handler:   handlers.NewHandler(m, st, service.NewBalanceService(st, nil), service.NewAuditService(memory.NewAuditLog())),
		Health:    handlers.NewHealthHandler("test", nil),
		Hub:       ws.NewHub(),
		RateLimit: 1000,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &env{url: srv.URL, oracle: orc, store: st}
}

func (e *env) clientFor(t *testing.T, a domain.AccountID) *client.Client {
	t.Helper()
	_, err := e.store.Deposit(context.Background(), a, 10*domain.MinStake)
	require.NoError(t, err)
	tok, err := service.GenerateJWT(a, time.Hour)
	require.NoError(t, err)
	return client.New(e.url, tok)
}

func TestClient_RoomLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, bob := acct(1), acct(2)
	ca, cb := e.clientFor(t, alice), e.clientFor(t, bob)

	room, err := ca.CreateRoom(ctx, "lobby", "0.1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusWaiting, room.Status)
	assert.Equal(t, uint64(100_000_000), room.Stake)

	_, err = cb.JoinRoom(ctx, "lobby")
	require.NoError(t, err)

	var seed domain.Seed
	seed[0] = 7
	room, err = ca.PlayRoom(ctx, "lobby", seed)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusProcessing, room.Status)

	_, err = cb.ResolveRoom(ctx, room)
	assert.ErrorIs(t, err, client.ErrPending)

	_, err = e.oracle.Fulfill(context.Background(), seed)
	require.NoError(t, err)

	final, err := cb.WaitResolved(ctx, room, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusFinished, final.Status)
	assert.Contains(t, []domain.AccountID{alice, bob}, final.Winner)

	bal, err := ca.Balance(ctx, final.Winner)
	require.NoError(t, err)
	// funded 0.5, staked 0.1, won the 0.2 pot
	assert.Equal(t, uint64(600_000_000), bal.Balance)
	assert.Equal(t, "0.6", bal.BalanceSOL)

	list, err := ca.ListRooms(ctx, client.ListOptions{Status: domain.RoomStatusFinished, Player: alice})
	require.NoError(t, err)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, "lobby", list.Rooms[0].ID)
	assert.Equal(t, domain.MinStake, list.MinStake)
}

func TestClient_APIError(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.clientFor(t, acct(1))

	_, err := c.GetRoom(ctx, "missing")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not_found", apiErr.Code)

	_, err = c.CreateRoom(ctx, "cheap", "0.01")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "validation", apiErr.Code)

	anon := client.New(e.url, "")
	_, err = anon.JoinRoom(ctx, "cheap")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}
