package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coinflip_escrow/internal/config"
	"coinflip_escrow/internal/db"
	"coinflip_escrow/internal/escrow"
	httpServer "coinflip_escrow/internal/http"
	"coinflip_escrow/internal/http/handlers"
	"coinflip_escrow/internal/http/middleware"
	"coinflip_escrow/internal/logger"
	"coinflip_escrow/internal/oracle"
	"coinflip_escrow/internal/repository"
	"coinflip_escrow/internal/service"
	"coinflip_escrow/internal/store/memory"
	"coinflip_escrow/internal/worker"
	"coinflip_escrow/internal/ws"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_JSON") == "true")
	defer logger.Sync()

	cfg := config.Load()
	service.InitJWT(cfg.JWTSecret)

	hub := ws.NewHub()
	observers := []escrow.Observer{hub}
	checks := map[string]handlers.Check{}

	var (
		store    escrow.Store
		accounts service.AccountStore
		audit    *service.AuditService
		requests oracle.RequestLog
	)
	switch cfg.Store {
	case config.StorePostgres:
		pool := db.Connect(cfg.DatabaseURL)
		defer pool.Close()

		requests = repository.NewOracleRequestRepository(pool)

		pg := repository.NewStore(pool)
		store, accounts = pg, pg
		audit = service.NewAuditService(repository.NewAuditRepository(pool))
		checks["database"] = pg.Ping
	default:
		mem := memory.New()
		store, accounts = mem, mem
		audit = service.NewAuditService(memory.NewAuditLog())
		logger.Warn("using in-memory store; state is lost on restart")
	}
	observers = append(observers, audit)

	var orc escrow.Oracle
	switch cfg.OracleMode {
	case config.OracleHTTP:
		var pub ed25519.PublicKey
		if cfg.OraclePublicKey != "" {
			b, err := hex.DecodeString(cfg.OraclePublicKey)
			if err != nil || len(b) != ed25519.PublicKeySize {
				logger.Fatal("ORACLE_PUBLIC_KEY must be 64 hex chars")
			}
			pub = b
		}
		orc = oracle.NewClient(cfg.OracleURL, cfg.OracleAPIKey, pub)
	default:
		var opts []oracle.LocalOption
		if requests != nil {
			opts = append(opts, oracle.WithRequestLog(requests))
		}
		local := oracle.NewLocal(cfg.OracleKey, cfg.OracleLocalDelay, opts...)
		logger.Info("using local oracle", "public_key", hex.EncodeToString(local.PublicKey()), "delay", cfg.OracleLocalDelay.String())
		orc = local
	}

	machine := escrow.New(store, orc,
		escrow.WithMinStake(cfg.MinStake),
		escrow.WithObservers(observers...),
	)

	var resolver *worker.Resolver
	if cfg.ResolverEnabled {
		resolver = worker.NewResolver(machine, store)
		if err := resolver.Start(cfg.ResolverSpec); err != nil {
			logger.Fatal("invalid RESOLVER_SPEC", "spec", cfg.ResolverSpec, "error", err)
		}
	}

	middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if cfg.RedisAddr != "" {
		checks["redis"] = middleware.RedisPing
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for browser clients on another origin
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Handler:       handlers.NewHandler(machine, store, service.NewBalanceService(accounts, audit), audit),
		Health:        handlers.NewHealthHandler(version, checks),
		Hub:           hub,
		RateLimit:     cfg.APIRateLimit,
		RateWindow:    cfg.APIRateWindow,
		AllowedOrigin: cfg.AllowedOrigin,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "store", cfg.Store, "oracle", cfg.OracleMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if resolver != nil {
		resolver.Stop()
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
