package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coinflip_escrow/internal/domain"
)

var (
	jwtSecret []byte

	ErrInvalidToken = errors.New("invalid token")
)

const defaultTokenTTL = 24 * time.Hour

func InitJWT(secret string) {
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	jwtSecret = []byte(secret)
}

// GenerateJWT issues a token whose subject is the caller account.
func GenerateJWT(account domain.AccountID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   account.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseJWT validates the token and returns the account in its subject.
func ParseJWT(tokenString string) (domain.AccountID, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	account, err := domain.ParseAccountID(claims.Subject)
	if err != nil {
		return "", ErrInvalidToken
	}
	return account, nil
}
