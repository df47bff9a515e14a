package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
)

const opTimeout = 10 * time.Second

type createRoomRequest struct {
	RoomID   string `json:"room_id"`
	Stake    uint64 `json:"stake"`
	StakeSOL string `json:"stake_sol"`
}

type playRequest struct {
	Seed string `json:"seed"`
}

type resolveRequest struct {
	Seed      string `json:"seed"`
	PlayerOne string `json:"player_one"`
	PlayerTwo string `json:"player_two"`
}

// CreateRoom handles POST /rooms
func (h *Handler) CreateRoom(c *gin.Context) {
	account, ok := caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
		return
	}

	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}

	stake := req.Stake
	if req.StakeSOL != "" {
		s, err := domain.ParseSOL(req.StakeSOL)
		if err != nil {
			badRequest(c, "invalid stake_sol: "+err.Error())
			return
		}
		stake = s
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), opTimeout)
	defer cancel()

	room, err := h.Machine.Create(ctx, req.RoomID, stake, account)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room.View())
}

// JoinRoom handles POST /rooms/:id/join
func (h *Handler) JoinRoom(c *gin.Context) {
	account, ok := caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), opTimeout)
	defer cancel()

	room, err := h.Machine.Join(ctx, c.Param("id"), account)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room.View())
}

// PlayRoom handles POST /rooms/:id/play
func (h *Handler) PlayRoom(c *gin.Context) {
	account, ok := caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
		return
	}

	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}
	seed, err := domain.ParseSeed(req.Seed)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), opTimeout)
	defer cancel()

	room, err := h.Machine.Play(ctx, c.Param("id"), seed, account)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room.View())
}

// ResolveRoom handles POST /rooms/:id/resolve. Anyone may resolve; the body must
// restate the room's players and seed.
func (h *Handler) ResolveRoom(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}
	seed, err := domain.ParseSeed(req.Seed)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), opTimeout)
	defer cancel()

	room, err := h.Machine.Resolve(ctx, escrow.ResolveInput{
		RoomID:    c.Param("id"),
		Seed:      seed,
		PlayerOne: domain.AccountID(req.PlayerOne),
		PlayerTwo: domain.AccountID(req.PlayerTwo),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room.View())
}

// GetRoom handles GET /rooms/:id
func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.Reader.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room.View())
}

// GetRoomAudit handles GET /rooms/:id/audit
func (h *Handler) GetRoomAudit(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")
	if _, err := h.Reader.GetRoom(ctx, roomID); err != nil {
		writeError(c, err)
		return
	}

	logs, err := h.Audit.RoomTrail(ctx, roomID)
	if err != nil {
		writeError(c, err)
		return
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "audit": logs})
}

// ListRooms handles GET /rooms?status=&player=&limit=
func (h *Handler) ListRooms(c *gin.Context) {
	f := escrow.RoomFilter{
		Status: domain.RoomStatus(c.Query("status")),
		Player: domain.AccountID(c.Query("player")),
	}
	if f.Status != "" && !f.Status.Valid() {
		badRequest(c, "invalid status")
		return
	}
	limit, ok := queryLimit(c, 0)
	if !ok {
		return
	}
	f.Limit = limit

	rooms, err := h.Reader.ListRooms(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}

	views := make([]domain.RoomView, 0, len(rooms))
	for _, r := range rooms {
		views = append(views, r.View())
	}
	c.JSON(http.StatusOK, gin.H{"rooms": views, "min_stake": h.Machine.MinStake()})
}
