/*
auth.go - Bearer token authentication

PURPOSE:
  Resolves the calling user from a signed JWT. The token only establishes
  WHO is calling; WHAT they may do on a given farm is decided per request
  by the role guard, against a fresh binding read. Tokens carry no roles.

SEE ALSO:
  - ../engine/authz.go: Per-farm authorization
  - handlers.go: Reads the caller from the request context
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/acrefield/farm-engine/engine"
)

type contextKey string

const callerKey contextKey = "caller"

// Claims is the token payload. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenManager signs and validates HS256 tokens.
type TokenManager struct {
	secret []byte
	issuer string
}

func NewTokenManager(secret, issuer string) *TokenManager {
	if issuer == "" {
		issuer = "farm-engine"
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer}
}

// Issue creates a token for a user id.
func (tm *TokenManager) Issue(userID engine.UserID, expiresIn time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id required")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// Validate parses a token and returns the user id it was issued to.
func (tm *TokenManager) Validate(tokenString string) (engine.UserID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid token claims")
	}
	return engine.UserID(claims.Subject), nil
}

// Middleware authenticates every request and stores the caller in the
// request context. Requests without a valid bearer token get 401.
func (tm *TokenManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := extractBearer(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Missing or malformed bearer token", nil)
			return
		}
		caller, err := tm.Validate(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
	})
}

func withCaller(ctx context.Context, caller engine.UserID) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// callerFrom returns the authenticated user for the request.
func callerFrom(ctx context.Context) engine.UserID {
	caller, _ := ctx.Value(callerKey).(engine.UserID)
	return caller
}

func extractBearer(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
