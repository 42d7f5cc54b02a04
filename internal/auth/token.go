// ABOUTME: Session tokens for the chat endpoint: HS256 JWTs scoped to one user id
// ABOUTME: Signer issues and verifies them for the backend; Inspect reads expiry on the client

package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Audience is the aud claim every session token carries. A token issued for
// another service is rejected even when the signature checks out.
const Audience = "nexus-chat"

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Verifier resolves a bearer token to the user id it may open a session for.
type Verifier interface {
	Verify(token string) (userID string, err error)
}

// Signer issues and verifies session tokens with a shared HS256 secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer for secret.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret, now: time.Now}
}

// Issue creates a token letting userID open /ws/{userID} for ttl.
func (s *Signer) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		Audience:  jwt.ClaimStrings{Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature, audience and expiry, and returns the token's
// user id. Tokens without exp or sub are refused: a session token must be
// bounded and name exactly one user.
func (s *Signer) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "", fmt.Errorf("%w: %v", ErrMissingClaim, err)
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return claims.Subject, nil
}

// TokenInfo is what the client can learn from a token without its secret.
type TokenInfo struct {
	Subject string
	// ExpiresAt is zero when the token carries no exp claim.
	ExpiresAt time.Time
	// Session is true when the token is scoped to the chat endpoint.
	Session bool
}

// Expired reports whether the token's exp claim is before now.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// Inspect parses a JWT without verifying its signature. The client only
// uses it to warn about an expired or misdirected token before dialing; the
// backend is the one that verifies.
func Inspect(token string) (TokenInfo, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	info := TokenInfo{
		Subject: claims.Subject,
		Session: slices.Contains(claims.Audience, Audience),
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
