package handlers

import (
	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/escrow"
	"coinflip_escrow/internal/http/middleware"
	"coinflip_escrow/internal/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Machine  *escrow.Machine
	Reader   escrow.Reader
	Balances *service.BalanceService
	Audit    *service.AuditService
}

func NewHandler(m *escrow.Machine, reader escrow.Reader, balances *service.BalanceService, audit *service.AuditService) *Handler {
	return &Handler{
		Machine:  m,
		Reader:   reader,
		Balances: balances,
		Audit:    audit,
	}
}

// caller returns the account set by the JWT middleware
func caller(c *gin.Context) (domain.AccountID, bool) {
	return middleware.AccountFrom(c)
}
