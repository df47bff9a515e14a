package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"coinflip_escrow/internal/escrow"
	"coinflip_escrow/internal/logger"
)

// retryAfterSeconds is sent with 202 while randomness is pending.
const retryAfterSeconds = "2"

type errorMapping struct {
	status int
	code   string
	errs   []error
}

var errorMappings = []errorMapping{
	{http.StatusBadRequest, "validation", []error{escrow.ErrInvalidAmount, escrow.ErrInvalidRoomID, escrow.ErrInvalidSeed, escrow.ErrInvalidAccount}},
	{http.StatusBadRequest, "mismatch", []error{escrow.ErrPlayerMismatch, escrow.ErrSeedMismatch}},
	{http.StatusForbidden, "unauthorized", []error{escrow.ErrUnauthorized, escrow.ErrSelfJoin}},
	{http.StatusNotFound, "not_found", []error{escrow.ErrRoomNotFound}},
	{http.StatusConflict, "conflict", []error{escrow.ErrAlreadyExists, escrow.ErrAlreadyFinished, escrow.ErrRoomFull, escrow.ErrInvalidState, escrow.ErrRoomNotReady}},
	{http.StatusAccepted, "still_processing", []error{escrow.ErrStillProcessing}},
	{http.StatusPaymentRequired, "transfer_failed", []error{escrow.ErrTransferFailed}},
	{http.StatusBadGateway, "oracle_failed", []error{escrow.ErrOracleFailed}},
}

// StatusFor maps an error to its HTTP status and code.
func StatusFor(err error) (int, string) {
	for _, m := range errorMappings {
		for _, target := range m.errs {
			if errors.Is(err, target) {
				return m.status, m.code
			}
		}
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(c *gin.Context, err error) {
	status, code := StatusFor(err)

	msg := err.Error()
	switch status {
	case http.StatusAccepted:
		c.Header("Retry-After", retryAfterSeconds)
	case http.StatusInternalServerError:
		logger.WithContext(c.Request.Context()).Errorw("request failed", "path", c.FullPath(), "error", err)
		msg = "internal error"
	case http.StatusPaymentRequired, http.StatusBadGateway:
		logger.WithContext(c.Request.Context()).Warnw("adapter failure", "path", c.FullPath(), "error", err)
	}

	c.JSON(status, gin.H{"error": msg, "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "validation"})
}
