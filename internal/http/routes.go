package http

import (
	"time"

	"coinflip_escrow/internal/http/handlers"
	"coinflip_escrow/internal/http/middleware"
	"coinflip_escrow/internal/ws"

	"github.com/gin-gonic/gin"
)

// Deps carries everything the routes need.
type Deps struct {
	Handler       *handlers.Handler
	Health        *handlers.HealthHandler
	Hub           *ws.Hub
	RateLimit     int
	RateWindow    time.Duration
	AllowedOrigin string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.RequestID(), middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", d.Health.Health)
	r.GET("/healthz", d.Health.Liveness)
	r.GET("/readyz", d.Health.Readiness)

	rateLimit := d.RateLimit
	if rateLimit <= 0 {
		rateLimit = 120
	}
	rateWindow := d.RateWindow
	if rateWindow <= 0 {
		rateWindow = time.Minute
	}

	v1 := r.Group("/api/v1")
	registerAPIRoutes(v1, d.Handler, rateLimit, rateWindow)

	// Room event stream
	r.GET("/ws", ws.HandleWS(d.Hub, d.Handler.Reader, d.AllowedOrigin))
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler, rateLimit int, rateWindow time.Duration) {
	// Public reads, limited per IP
	public := api.Group("")
	public.Use(middleware.RateLimit(rateLimit, rateWindow))
	public.GET("/rooms", h.ListRooms)
	public.GET("/rooms/:id", h.GetRoom)
	public.GET("/rooms/:id/audit", h.GetRoomAudit)
	public.GET("/accounts/:id/balance", h.GetBalance)
	public.GET("/accounts/:id/entries", h.GetEntries)
	public.GET("/accounts/:id/audit", h.GetAccountAudit)

	// Room mutations need a bearer token and are limited per account.
	// Resolve accepts any authenticated caller.
	rooms := api.Group("/rooms")
	rooms.Use(middleware.JWT(), middleware.RateLimit(rateLimit, rateWindow))
	{
		rooms.POST("", h.CreateRoom)
		rooms.POST("/:id/join", h.JoinRoom)
		rooms.POST("/:id/play", h.PlayRoom)
		rooms.POST("/:id/resolve", h.ResolveRoom)
	}
}
