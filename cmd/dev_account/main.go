package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"coinflip_escrow/internal/db"
	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/logger"
	"coinflip_escrow/internal/repository"
	"coinflip_escrow/internal/service"
)

// dev_account funds an account in the Postgres ledger and prints a bearer token for it.
func main() {
	account := flag.String("account", "", "base58 account id (random when empty)")
	amount := flag.String("sol", "10", "amount to deposit, in SOL")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	logger.Init(os.Getenv("LOG_LEVEL"), false)

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET not set")
	}

	acct := domain.AccountID(*account)
	if acct != "" {
		if _, err := domain.ParseAccountID(*account); err != nil {
			logger.Fatal("invalid account", "account", *account)
		}
	} else {
		var key [32]byte
		if _, err := rand.Read(key[:]); err != nil {
			logger.Fatal("generate account", "error", err)
		}
		acct = domain.AccountFromKey(key)
	}

	lamports, err := domain.ParseSOL(*amount)
	if err != nil {
		logger.Fatal("invalid amount", "error", err)
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	store := repository.NewStore(pool)
	audit := service.NewAuditService(repository.NewAuditRepository(pool))
	balances := service.NewBalanceService(store, audit)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	balance, err := balances.Deposit(ctx, acct, lamports)
	if err != nil {
		logger.Fatal("deposit failed", "account", acct, "error", err)
	}

	service.InitJWT(secret)
	token, err := service.GenerateJWT(acct, *ttl)
	if err != nil {
		logger.Fatal("failed to generate token", "error", err)
	}

	fmt.Printf("account=%s\nbalance=%s SOL\ntoken=%s\n", acct, domain.FormatSOL(balance), token)
}
