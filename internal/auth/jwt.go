// Package auth verifies the bearer credential a client presents when
// joining a space. The credential is an HS256 JWT whose userId claim
// carries the authenticated user id; minting is done by the account
// backend, this side only verifies.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
)

type claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(token string) (domain.UserID, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", errors.Join(core.ErrAuth, err)
	}
	if c.UserID == "" || len(c.UserID) > domain.MaxUserIDLen {
		return "", core.ErrAuth
	}
	return domain.UserID(c.UserID), nil
}

// Mint issues a credential for the given user id. Used by tests and the
// dev tooling; production tokens come from the account backend.
func Mint(secret string, id domain.UserID, ttl time.Duration) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: string(id),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	return t.SignedString([]byte(secret))
}
