// Package auth issues and checks session tokens.
//
// SESSION FLOW:
//  1. Sign-up, sign-in or the GitHub callback resolves an account ID.
//  2. TokenService.Issue signs a JWT whose "sub" claim is that ID.
//  3. The token goes into the HttpOnly "session" cookie (SetSessionCookie).
//  4. RequireAuth validates the cookie on every /api request and puts the
//     account ID in the request context (UserIDFromContext).
//
// Tokens are stateless: signing out clears the cookie, and a copied token
// stays valid until it expires. SESSION_TTL bounds that window.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "reading-challenge"

// ErrInvalidToken is returned by Validate for any token that must not be
// trusted: bad signature, wrong issuer, expired, or no subject.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService signs and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService needs a secret of at least 32 bytes and a positive TTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth: JWT secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is how long an issued token stays valid.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for userID and returns it with its expiry time.
func (s *TokenService) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("auth: cannot issue a token without a user id")
	}

	now := s.now()
	expires := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, expires, nil
}

// Validate returns the user ID carried by a valid token.
//
// jwt.WithValidMethods pins HS256 so a token claiming "none" or an
// asymmetric algorithm is rejected before the key is used.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: expired", ErrInvalidToken)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return c.Subject, nil
}
