package domain

import "time"

// AuditLog represents an audit log entry for tracking room actions
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	AccountID AccountID              `db:"account_id" json:"account_id"`
	RoomID    string                 `db:"room_id" json:"room_id"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Audit action categories
const (
	AuditCategoryRoom    = "room"
	AuditCategoryBalance = "balance"
)

// Audit actions
const (
	AuditActionRoomCreated  = "room_created"
	AuditActionRoomJoined   = "room_joined"
	AuditActionRoomPlayed   = "room_played"
	AuditActionRoomResolved = "room_resolved"
	AuditActionDeposit      = "deposit"
)

// AuditActionFor maps a room event to its audit action.
func AuditActionFor(evt RoomEvent) string {
	switch evt {
	case EventCreate:
		return AuditActionRoomCreated
	case EventJoin:
		return AuditActionRoomJoined
	case EventPlay:
		return AuditActionRoomPlayed
	case EventResolve:
		return AuditActionRoomResolved
	}
	return string(evt)
}
