package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 64
)

// Client is one websocket connection watching a room (or AllRooms).
type Client struct {
	Account domain.AccountID
	RoomID  string
	Conn    *websocket.Conn
	Send    chan []byte
	Hub     *Hub

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(account domain.AccountID, roomID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		Account: account,
		RoomID:  roomID,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Hub:     hub,
		done:    make(chan struct{}),
	}
}

// Run pumps messages until the connection ends. The client must already be
// subscribed to the hub; Run unsubscribes it on exit.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) trySend(msg []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// Close stops the pumps; safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

//read
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unsubscribe(c)
		c.Close()
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read error", "room_id", c.RoomID, "error", err)
			}
			return
		}

		var in InboundMessage
		if err := json.Unmarshal(msg, &in); err != nil {
			c.trySend(mustJSON(ErrorPayload{Type: MsgError, Message: "bad message"}))
			continue
		}
		switch in.Type {
		case MsgPing:
			c.trySend(mustJSON(map[string]string{"type": MsgPong}))
		default:
			c.trySend(mustJSON(ErrorPayload{Type: MsgError, Message: "unknown message type"}))
		}
	}
}

//write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write error", "room_id", c.RoomID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
