package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/service"
)

const accountKey = "account"

// JWT requires a bearer token and stores the caller account in the context.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "code": "unauthorized"})
			return
		}

		account, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "unauthorized"})
			return
		}

		c.Set(accountKey, account)
		c.Next()
	}
}

// AccountFrom returns the caller set by JWT.
func AccountFrom(c *gin.Context) (domain.AccountID, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return "", false
	}
	a, ok := v.(domain.AccountID)
	return a, ok
}
