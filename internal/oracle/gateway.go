package oracle

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/logger"
)

// Gateway serves a Local oracle over HTTP for Client.
type Gateway struct {
	oracle *Local
	apiKey string
}

func NewGateway(o *Local, apiKey string) *Gateway {
	return &Gateway{oracle: o, apiKey: apiKey}
}

// Register mounts the gateway routes on r.
func (g *Gateway) Register(r gin.IRouter) {
	v1 := r.Group("/v1", g.auth)
	v1.POST("/randomness", g.Request)
	v1.GET("/randomness/:seed", g.Status)
	v1.GET("/public-key", g.PublicKey)
}

func (g *Gateway) auth(c *gin.Context) {
	if g.apiKey == "" {
		c.Next()
		return
	}
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(g.apiKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	c.Next()
}

// Request handles POST /v1/randomness
func (g *Gateway) Request(c *gin.Context) {
	var req requestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	seed, err := domain.ParseSeed(req.Seed)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := g.oracle.Request(c.Request.Context(), seed); err != nil {
		if errors.Is(err, ErrSeedInUse) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.Error("randomness request failed", "seed", seed.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	logger.Info("randomness requested", "seed", seed.String())
	c.JSON(http.StatusCreated, StatusResponse{Seed: seed.String()})
}

// Status handles GET /v1/randomness/:seed
func (g *Gateway) Status(c *gin.Context) {
	seed, err := domain.ParseSeed(c.Param("seed"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	value, ok, err := g.oracle.Poll(c.Request.Context(), seed)
	if err != nil {
		if errors.Is(err, ErrUnknownSeed) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := StatusResponse{
		Seed:      seed.String(),
		Fulfilled: ok,
		PublicKey: hex.EncodeToString(g.oracle.PublicKey()),
	}
	if ok {
		resp.Randomness = value.String()
	}
	c.JSON(http.StatusOK, resp)
}

// PublicKey handles GET /v1/public-key
func (g *Gateway) PublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"public_key": hex.EncodeToString(g.oracle.PublicKey())})
}
