package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"coinflip_escrow/internal/domain"
)

// GetBalance handles GET /accounts/:id/balance
func (h *Handler) GetBalance(c *gin.Context) {
	account := domain.AccountID(c.Param("id"))

	balance, err := h.Balances.GetBalance(c.Request.Context(), account)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":     account,
		"balance":     balance,
		"balance_sol": domain.FormatSOL(balance),
	})
}

// GetEntries handles GET /accounts/:id/entries?limit=
func (h *Handler) GetEntries(c *gin.Context) {
	limit, ok := queryLimit(c, 100)
	if !ok {
		return
	}

	entries, err := h.Balances.Entries(c.Request.Context(), domain.AccountID(c.Param("id")), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// GetAccountAudit handles GET /accounts/:id/audit?limit=
func (h *Handler) GetAccountAudit(c *gin.Context) {
	limit, ok := queryLimit(c, 50)
	if !ok {
		return
	}

	logs, err := h.Audit.AccountTrail(c.Request.Context(), domain.AccountID(c.Param("id")), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	c.JSON(http.StatusOK, gin.H{"audit": logs})
}

// queryLimit reads ?limit=, 1..500. It writes the 400 itself.
func queryLimit(c *gin.Context, def int) (int, bool) {
	v := c.Query("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 500 {
		badRequest(c, "limit must be between 1 and 500")
		return 0, false
	}
	return n, true
}
