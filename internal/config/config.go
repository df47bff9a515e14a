package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"coinflip_escrow/internal/domain"
	"coinflip_escrow/internal/logger"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	OracleHTTP  = "http"
	OracleLocal = "local"
)

type Config struct {
	AppPort     string
	Store       string
	DatabaseURL string
	JWTSecret   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OracleMode       string
	OracleURL        string
	OracleAPIKey     string
	OraclePublicKey  string // hex ed25519 key; when set, remote values are verified
	OracleLocalDelay time.Duration
	// OracleKey signs local oracle values. From ORACLE_KEY_SEED; nil means a key per run.
	OracleKey ed25519.PrivateKey

	MinStake uint64

	ResolverEnabled bool
	ResolverSpec    string

	APIRateLimit  int
	APIRateWindow time.Duration
	AllowedOrigin string
}

// Load reads .env (if any) and the environment, exiting on invalid configuration.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// FromEnv builds a Config from the environment without exiting.
func FromEnv() (*Config, error) {
	cfg := &Config{
		AppPort:          getenv("APP_PORT", "8080"),
		Store:            strings.ToLower(getenv("STORE", StorePostgres)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getenvInt("REDIS_DB", 0),
		OracleMode:       strings.ToLower(getenv("ORACLE_MODE", OracleLocal)),
		OracleURL:        os.Getenv("ORACLE_URL"),
		OracleAPIKey:     os.Getenv("ORACLE_API_KEY"),
		OraclePublicKey:  os.Getenv("ORACLE_PUBLIC_KEY"),
		OracleLocalDelay: time.Duration(getenvInt("ORACLE_LOCAL_DELAY_MS", 2000)) * time.Millisecond,
		MinStake:         domain.MinStake,
		ResolverEnabled:  getenv("RESOLVER_ENABLED", "true") == "true",
		ResolverSpec:     getenv("RESOLVER_SPEC", "@every 5s"),
		APIRateLimit:     getenvInt("API_RATE_LIMIT", 120),
		APIRateWindow:    time.Duration(getenvInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,
		AllowedOrigin:    os.Getenv("ALLOWED_ORIGIN"),
	}

	if v := os.Getenv("MIN_STAKE"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("MIN_STAKE: %w", err)
		}
		if n < domain.MinStake {
			return nil, fmt.Errorf("MIN_STAKE must be at least %d", domain.MinStake)
		}
		cfg.MinStake = n
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is not set")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	switch cfg.OracleMode {
	case OracleHTTP:
		if cfg.OracleURL == "" {
			return nil, errors.New("ORACLE_URL is not set")
		}
	case OracleLocal:
		if v := os.Getenv("ORACLE_KEY_SEED"); v != "" {
			b, err := hex.DecodeString(v)
			if err != nil || len(b) != ed25519.SeedSize {
				return nil, errors.New("ORACLE_KEY_SEED must be 64 hex chars")
			}
			cfg.OracleKey = ed25519.NewKeyFromSeed(b)
		}
		// rooms outlive the process, so the key that signs their values must too
		if cfg.Store == StorePostgres && cfg.OracleKey == nil {
			return nil, errors.New("ORACLE_KEY_SEED is required with STORE=postgres and ORACLE_MODE=local")
		}
	default:
		return nil, fmt.Errorf("unknown ORACLE_MODE %q", cfg.OracleMode)
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
