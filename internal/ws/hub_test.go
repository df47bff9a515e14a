package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
	"coinflip_escrow/internal/oracle"
	"coinflip_escrow/internal/store/memory"
)

func acct(n byte) domain.AccountID {
	var k [32]byte
	k[0] = n
	return domain.AccountFromKey(k)
}

type wsFixture struct {
	hub   *Hub
	store *memory.Store
	m     *escrow.Machine
	url   string
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &wsFixture{hub: NewHub(), store: memory.New()}
	f.m = escrow.New(f.store, oracle.NewLocal(nil, -1), escrow.WithObservers(f.hub))

	r := gin.New()
	r.GET("/ws", HandleWS(f.hub, f.store, ""))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	f.url = strings.Replace(srv.URL, "http", "ws", 1) + "/ws"

	ctx := context.Background()
	for _, a := range []domain.AccountID{acct(1), acct(2)} {
		_, err := f.store.Deposit(ctx, a, domain.MinStake)
		require.NoError(t, err)
	}
	return f
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var obj map[string]any
	require.NoError(t, json.Unmarshal(msg, &obj))
	return obj
}

func waitSubscribed(t *testing.T, h *Hub, roomID string) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Subscribers(roomID) > 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWS_RoomEvents(t *testing.T) {
	f := newWSFixture(t)
	ctx := context.Background()

	_, err := f.m.Create(ctx, "r1", domain.MinStake, acct(1))
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(f.url+"?room=r1", nil)
	require.NoError(t, err)
	defer conn.Close()

	state := readJSON(t, conn)
	assert.Equal(t, MsgState, state["type"])
	// subscribed before the snapshot was taken
	assert.Equal(t, 1, f.hub.Subscribers("r1"))

	_, err = f.m.Join(ctx, "r1", acct(2))
	require.NoError(t, err)

	evt := readJSON(t, conn)
	assert.Equal(t, MsgEvent, evt["type"])
	assert.Equal(t, string(domain.EventJoin), evt["event"])
	room := evt["room"].(map[string]any)
	assert.Equal(t, acct(2).String(), room["player_two"])
}

func TestWS_AllRoomsAndPing(t *testing.T) {
	f := newWSFixture(t)
	ctx := context.Background()

	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	defer conn.Close()
	waitSubscribed(t, f.hub, AllRooms)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, MsgPong, readJSON(t, conn)["type"])

	_, err = f.m.Create(ctx, "r2", domain.MinStake, acct(1))
	require.NoError(t, err)

	evt := readJSON(t, conn)
	assert.Equal(t, string(domain.EventCreate), evt["event"])
}

// racyReader commits a join right after the first room read, the window between the
// existence check and the subscription.
type racyReader struct {
	escrow.Reader
	once   sync.Once
	commit func()
}

func (r *racyReader) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := r.Reader.GetRoom(ctx, roomID)
	r.once.Do(r.commit)
	return room, err
}

func TestWS_SnapshotIncludesTransitionDuringConnect(t *testing.T) {
	f := newWSFixture(t)
	ctx := context.Background()

	_, err := f.m.Create(ctx, "r1", domain.MinStake, acct(1))
	require.NoError(t, err)

	reader := &racyReader{Reader: f.store, commit: func() {
		_, err := f.m.Join(ctx, "r1", acct(2))
		assert.NoError(t, err)
	}}
	r := gin.New()
	r.GET("/ws", HandleWS(f.hub, reader, ""))
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(strings.Replace(srv.URL, "http", "ws", 1)+"/ws?room=r1", nil)
	require.NoError(t, err)
	defer conn.Close()

	state := readJSON(t, conn)
	require.Equal(t, MsgState, state["type"])
	room := state["room"].(map[string]any)
	assert.Equal(t, acct(2).String(), room["player_two"])
}

func TestWS_UnknownRoom(t *testing.T) {
	f := newWSFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.url+"?room=missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestHub_UnsubscribeOnClose(t *testing.T) {
	f := newWSFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	waitSubscribed(t, f.hub, AllRooms)

	conn.Close()
	require.Eventually(t, func() bool { return f.hub.Subscribers(AllRooms) == 0 }, 2*time.Second, 10*time.Millisecond)
}
