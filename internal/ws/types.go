package ws

const (
	// client - server
	MsgPing = "ping"

	// server - client
	MsgState = "state"
	MsgEvent = "event"
	MsgPong  = "pong"
	MsgError = "error"
)

// AllRooms subscribes a client to every room.
const AllRooms = "*"
