package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind is declared by the route, never by the token itself.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Claims is the payload of both halves of a token pair.
type Claims struct {
	UserID               string `json:"id"`
	Email                string `json:"email"`
	jwt.RegisteredClaims        // jti, iat, exp, iss, sub
}

// TokenPair is what sign-in style operations hand back to the client.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	JTI              string    `json:"-"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Session is an authenticated request: the live user plus the token that proved it.
type Session struct {
	User   *User
	Claims *Claims
	Role   Role
	Kind   TokenKind
}

// SignInResult carries either tokens or the two-factor pending marker.
type SignInResult struct {
	Tokens            *TokenPair `json:"tokens,omitempty"`
	TwoFactorRequired bool       `json:"twoFactorRequired"`
}
