package domain

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const (
	// MinStake is the smallest stake a room accepts, in base units (0.05 SOL).
	MinStake uint64 = 50_000_000

	// MaxRoomIDLen bounds room ids; they double as a 32-byte address seed.
	MaxRoomIDLen = 32
)

var (
	ErrInvalidRoomID = errors.New("invalid room id")
	ErrInvalidSeed   = errors.New("invalid seed")
)

// RoomStatus - room lifecycle state
type RoomStatus string

const (
	RoomStatusWaiting    RoomStatus = "waiting"
	RoomStatusProcessing RoomStatus = "processing"
	RoomStatusFinished   RoomStatus = "finished"
)

// Valid reports whether s is a known status.
func (s RoomStatus) Valid() bool {
	switch s {
	case RoomStatusWaiting, RoomStatusProcessing, RoomStatusFinished:
		return true
	}
	return false
}

// RoomEvent - operation applied to a room
type RoomEvent string

const (
	EventCreate  RoomEvent = "created"
	EventJoin    RoomEvent = "joined"
	EventPlay    RoomEvent = "played"
	EventResolve RoomEvent = "resolved"
)

// NextStatus returns the status after applying evt to cur, or an error for an illegal
// transition. Join keeps the room in Waiting until play is called.
func NextStatus(cur RoomStatus, evt RoomEvent) (RoomStatus, error) {
	switch cur {
	case "":
		if evt == EventCreate {
			return RoomStatusWaiting, nil
		}
	case RoomStatusWaiting:
		switch evt {
		case EventJoin:
			return RoomStatusWaiting, nil
		case EventPlay:
			return RoomStatusProcessing, nil
		}
	case RoomStatusProcessing:
		if evt == EventResolve {
			return RoomStatusFinished, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}

// Seed is the 32-byte randomness request seed chosen at play time.
type Seed [32]byte

// ParseSeed decodes a 64-char hex seed. The all-zero seed is rejected.
func ParseSeed(s string) (Seed, error) {
	var seed Seed
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(seed) {
		return seed, ErrInvalidSeed
	}
	copy(seed[:], b)
	if seed.IsZero() {
		return seed, ErrInvalidSeed
	}
	return seed, nil
}

func (s Seed) IsZero() bool { return s == Seed{} }

func (s Seed) String() string { return hex.EncodeToString(s[:]) }

// Randomness is a fulfilled oracle value.
type Randomness [64]byte

func (r Randomness) IsZero() bool { return r == Randomness{} }

func (r Randomness) String() string { return hex.EncodeToString(r[:]) }

// Uint64 interprets the first 8 bytes as a little-endian integer.
func (r Randomness) Uint64() uint64 {
	return binary.LittleEndian.Uint64(r[:8])
}

// ParseRandomness decodes a 128-char hex value.
func ParseRandomness(s string) (Randomness, error) {
	var r Randomness
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(r) {
		return r, fmt.Errorf("invalid randomness: want %d hex bytes", len(r))
	}
	copy(r[:], b)
	return r, nil
}

// Room is one coin-flip session between two players.
type Room struct {
	ID         string     `db:"room_id" json:"room_id"`
	Escrow     AccountID  `db:"escrow_account" json:"escrow_account"`
	PlayerOne  AccountID  `db:"player_one" json:"player_one"`
	PlayerTwo  AccountID  `db:"player_two" json:"player_two,omitempty"`
	Stake      uint64     `db:"stake" json:"stake"`
	Seed       Seed       `db:"seed" json:"-"`
	Status     RoomStatus `db:"status" json:"status"`
	Winner     AccountID  `db:"winner" json:"winner,omitempty"`
	Randomness Randomness `db:"randomness" json:"-"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// ValidateRoomID checks the id fits the address seed limit.
func ValidateRoomID(id string) error {
	if len(id) == 0 || len(id) > MaxRoomIDLen {
		return ErrInvalidRoomID
	}
	return nil
}

// HasSecondPlayer reports whether join has happened.
func (r *Room) HasSecondPlayer() bool { return !r.PlayerTwo.IsZero() }

// Pot is the amount held in escrow for the current state.
func (r *Room) Pot() uint64 {
	switch {
	case r.Status == RoomStatusFinished:
		return 0
	case r.HasSecondPlayer():
		return r.Stake * 2
	default:
		return r.Stake
	}
}

// Clone returns a copy safe to mutate.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// RoomView is the public JSON shape of a room.
type RoomView struct {
	ID         string     `json:"room_id"`
	Escrow     AccountID  `json:"escrow_account"`
	PlayerOne  AccountID  `json:"player_one"`
	PlayerTwo  AccountID  `json:"player_two,omitempty"`
	Stake      uint64     `json:"stake"`
	StakeSOL   string     `json:"stake_sol"`
	Pot        uint64     `json:"pot"`
	Seed       string     `json:"seed,omitempty"`
	Status     RoomStatus `json:"status"`
	Winner     AccountID  `json:"winner,omitempty"`
	Randomness string     `json:"randomness,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// View renders r for API and websocket clients.
func (r *Room) View() RoomView {
	v := RoomView{
		ID:        r.ID,
		Escrow:    r.Escrow,
		PlayerOne: r.PlayerOne,
		PlayerTwo: r.PlayerTwo,
		Stake:     r.Stake,
		StakeSOL:  FormatSOL(r.Stake),
		Pot:       r.Pot(),
		Status:    r.Status,
		Winner:    r.Winner,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if !r.Seed.IsZero() {
		v.Seed = r.Seed.String()
	}
	if !r.Randomness.IsZero() {
		v.Randomness = r.Randomness.String()
	}
	return v
}
