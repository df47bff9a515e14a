package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
	"coinflip_escrow/internal/logger"
	"coinflip_escrow/internal/service"
)

// HandleWS upgrades GET /ws?room=<id>[&token=<jwt>]. Without a room the client gets
// every room's events. The token is optional and only labels the subscriber.
func HandleWS(hub *Hub, reader escrow.Reader, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		var account domain.AccountID
		if token := c.Query("token"); token != "" {
			a, err := service.ParseJWT(token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "unauthorized"})
				return
			}
			account = a
		}

		roomID := c.Query("room")
		if roomID == "" {
			roomID = AllRooms
		} else if _, err := loadRoom(c.Request.Context(), reader, roomID); err != nil {
			if errors.Is(err, escrow.ErrRoomNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		client := NewClient(account, roomID, conn, hub)
		hub.Subscribe(client)

		// snapshot only after subscribing: anything committed later arrives as an event
		if roomID != AllRooms {
			room, err := loadRoom(c.Request.Context(), reader, roomID)
			if err != nil {
				logger.Warn("ws snapshot failed", "room_id", roomID, "error", err)
				hub.Unsubscribe(client)
				_ = conn.Close()
				return
			}
			client.trySend(mustJSON(StatePayload{Type: MsgState, Room: room.View()}))
		}
		go client.Run()
	}
}

func loadRoom(ctx context.Context, reader escrow.Reader, roomID string) (*domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return reader.GetRoom(ctx, roomID)
}
