package ws

import (
	"context"
	"encoding/json"
	"sync"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
	"coinflip_escrow/internal/logger"
)

// Hub fans committed room events out to websocket subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Client]struct{}
}

var _ escrow.Observer = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Subscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[c.RoomID]
	if !ok {
		set = make(map[*Client]struct{})
		h.subs[c.RoomID] = set
	}
	set[c] = struct{}{}
	logger.Debug("ws subscribed", "room_id", c.RoomID, "account", c.Account)
}

func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[c.RoomID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, c.RoomID)
		}
	}
}

// Subscribers returns the number of clients watching roomID.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[roomID])
}

// RoomChanged implements escrow.Observer.
func (h *Hub) RoomChanged(ctx context.Context, evt domain.RoomEvent, actor domain.AccountID, room *domain.Room) {
	msg, err := json.Marshal(EventPayload{Type: MsgEvent, Event: evt, Actor: actor, Room: room.View()})
	if err != nil {
		logger.Error("ws marshal event", "error", err)
		return
	}

	h.mu.RLock()
	var targets []*Client
	for _, key := range []string{room.ID, AllRooms} {
		for c := range h.subs[key] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.trySend(msg) {
			logger.Warn("ws client too slow, dropping", "room_id", c.RoomID, "account", c.Account)
			h.Unsubscribe(c)
			c.Close()
		}
	}
}
