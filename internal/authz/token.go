package authz

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pulsar-relay/relay/internal/domain"
)

// claims is the token payload: {sub, username, permissions, iat, exp}.
type claims struct {
	Username    string              `json:"username"`
	Permissions []domain.Permission `json:"permissions"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies bearer tokens signed with a process-wide
// HMAC secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Mint signs a token for user, expiring after the issuer's configured ttl.
func (t *TokenIssuer) Mint(user *domain.User) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(t.ttl)

	c := claims{
		Username:    user.Username,
		Permissions: user.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("authz: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify rejects tampered, expired, or malformed tokens and returns the
// decoded payload otherwise.
func (t *TokenIssuer) Verify(tokenString string) (*domain.TokenPayload, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(tokenString, &c, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return &domain.TokenPayload{
		Subject:     c.Subject,
		Username:    c.Username,
		Permissions: c.Permissions,
		IssuedAt:    c.IssuedAt.Unix(),
		ExpiresAt:   c.ExpiresAt.Unix(),
	}, nil
}
