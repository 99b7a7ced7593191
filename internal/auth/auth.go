package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	docshare_errors "docshare/pkg/errors"
)

// Authenticator is the authentication collaborator consumed by the
// conversation core: it resolves the current user and ends a session.
// Session issuance itself lives outside this module.
type Authenticator interface {
	CurrentUserID(ctx context.Context, token string) (string, error)
	SignOut(ctx context.Context, token string) error
}

const denylistPrefix = "auth:denylist:"

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Verifier checks bearer tokens minted by the authentication service.
// Signed-out tokens are tracked in a Redis denylist keyed by jti until
// they expire on their own.
type Verifier struct {
	secret   []byte
	denylist *redis.Client
}

func NewVerifier(secret string, denylist *redis.Client) *Verifier {
	return &Verifier{secret: []byte(secret), denylist: denylist}
}

func (v *Verifier) CurrentUserID(ctx context.Context, token string) (string, error) {
	claims, err := v.parse(token)
	if err != nil {
		return "", err
	}

	if v.denylist != nil && claims.ID != "" {
		n, err := v.denylist.Exists(ctx, denylistPrefix+claims.ID).Result()
		if err != nil {
			return "", fmt.Errorf("check denylist: %w", err)
		}
		if n > 0 {
			return "", docshare_errors.ErrUnauthorized
		}
	}
	return claims.UserID, nil
}

func (v *Verifier) SignOut(ctx context.Context, token string) error {
	claims, err := v.parse(token)
	if err != nil {
		return err
	}
	if v.denylist == nil || claims.ID == "" {
		return nil
	}

	ttl := time.Hour
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}
	if err := v.denylist.Set(ctx, denylistPrefix+claims.ID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("denylist token: %w", err)
	}
	return nil
}

// Mint issues a signed token for userID. Used by tooling and tests;
// production tokens come from the authentication service sharing the
// same secret.
func (v *Verifier) Mint(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *Verifier) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, docshare_errors.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, docshare_errors.ErrUnauthorized
	}
	return claims, nil
}
