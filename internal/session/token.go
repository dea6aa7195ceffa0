package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired inspects the access token's exp claim without verifying the
// signature; verification is the server's job. No refresh-exchange endpoint
// exists, so an expired token is equivalent to an unauthorized response.
// Opaque tokens (not JWTs, or without exp) are assumed live until the
// server says otherwise.
func tokenExpired(token string) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(time.Now())
}
