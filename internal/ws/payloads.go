package ws

import "coinflip_escrow/internal/domain"

// client → server
type InboundMessage struct {
	Type string `json:"type"`
}

// server → client
type StatePayload struct {
	Type string          `json:"type"`
	Room domain.RoomView `json:"room"`
}

type EventPayload struct {
	Type  string           `json:"type"`
	Event domain.RoomEvent `json:"event"`
	Actor domain.AccountID `json:"actor,omitempty"`
	Room  domain.RoomView  `json:"room"`
}

type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
