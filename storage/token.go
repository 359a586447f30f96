package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrNoToken is returned by Load when nothing has been saved.
var ErrNoToken = errors.New("no saved token")

// TokenStore persists the bearer token between runs.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// TokenInfo is what the client can learn from a token without verifying it.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token carried an exp claim that has passed.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// InspectToken reads the claims of a JWT without checking its signature; the
// backend is the only party able to verify it. Strapi tokens carry a numeric
// "id" claim instead of "sub".
func InspectToken(token string) (TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, err
	}
	var info TokenInfo
	if sub, ok := claims["sub"].(string); ok {
		info.Subject = sub
	} else if id, ok := claims["id"].(float64); ok {
		info.Subject = strconv.FormatFloat(id, 'f', -1, 64)
	}
	if exp, ok := claims["exp"].(float64); ok {
		info.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return info, nil
}
