package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"coinflip_escrow/internal/logger"
	"coinflip_escrow/internal/oracle"
)

// oracle_dev serves a local ed25519 oracle over the gateway protocol.
func main() {
	addr := flag.String("addr", ":9090", "listen address")
	delay := flag.Duration("delay", 2*time.Second, "fulfillment delay; negative keeps requests pending")
	flag.Parse()

	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_JSON") == "true")
	defer logger.Sync()

	// ORACLE_KEY_SEED: 32-byte hex seed for a stable key across restarts
	var priv ed25519.PrivateKey
	if s := os.Getenv("ORACLE_KEY_SEED"); s != "" {
		b, err := hex.DecodeString(s)
		if err != nil || len(b) != ed25519.SeedSize {
			logger.Fatal("ORACLE_KEY_SEED must be 64 hex chars")
		}
		priv = ed25519.NewKeyFromSeed(b)
	}

	local := oracle.NewLocal(priv, *delay)
	logger.Info("oracle key", "public_key", hex.EncodeToString(local.PublicKey()))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	oracle.NewGateway(local, os.Getenv("ORACLE_API_KEY")).Register(r)

	srv := &http.Server{Addr: *addr, Handler: r}
	go func() {
		logger.Info("oracle gateway started", "addr", *addr, "delay", delay.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("oracle shutdown", "error", err)
	}
}
