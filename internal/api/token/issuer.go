package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-identity-authority/config"
	"github.com/FACorreiaa/go-identity-authority/internal/api"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

// Timestamps travel with nanosecond digits so decoding never truncates away
// the microsecond the float round trip lands just below. IssuedAt rounds the
// decoded value back to Resolution.
func init() {
	jwt.TimePrecision = time.Nanosecond
}

// Resolution is the granularity of issued-at and changeCredentials comparisons.
// It matches what a timestamptz column stores.
const Resolution = time.Microsecond

// Now returns the current time at Resolution. changeCredentials bumps must use
// the same clock granularity as issued tokens.
func Now() time.Time { return time.Now().Truncate(Resolution) }

type Issuer struct {
	keys       *KeyTable
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(keys *KeyTable, cfg config.JWTConfig) *Issuer {
	accessTTL, refreshTTL := cfg.AccessTokenTTL, cfg.RefreshTokenTTL
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 365 * 24 * time.Hour
	}
	return &Issuer{
		keys:       keys,
		issuer:     cfg.Issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source. Tests only.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) Keys() *KeyTable { return i.keys }

// IssuePair mints an access and a refresh token that share one fresh jti, so
// revoking the jti kills both halves.
func (i *Issuer) IssuePair(userID uuid.UUID, email string, role types.Role) (*types.TokenPair, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("cannot issue tokens for role %q", role)
	}
	jti := uuid.NewString()
	iat := i.now().Truncate(Resolution)

	access, accessExp, err := i.sign(types.AccessToken, role, userID, email, jti, iat, i.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := i.sign(types.RefreshToken, role, userID, email, jti, iat, i.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &types.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		JTI:              jti,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) sign(kind types.TokenKind, role types.Role, userID uuid.UUID, email, jti string, iat time.Time, ttl time.Duration) (string, time.Time, error) {
	key, err := i.keys.key(kind, role)
	if err != nil {
		return "", time.Time{}, err
	}
	exp := iat.Add(ttl)
	claims := types.Claims{
		UserID: userID.String(),
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error signing %s token: %w", kind, err)
	}
	return signed, exp, nil
}

// Parse verifies raw against the key selected by (kind, prefix). It returns
// api.ErrUnknownSignature for an unmapped prefix and api.ErrInvalidToken for
// any signature, format, claim or expiry failure.
func (i *Issuer) Parse(raw string, kind types.TokenKind, prefix string) (*types.Claims, types.Role, error) {
	key, role, err := i.keys.Resolve(kind, prefix)
	if err != nil {
		return nil, "", err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)

	claims := &types.Claims{}
	_, err = parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", api.ErrInvalidToken, describe(err))
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return nil, "", fmt.Errorf("%w: missing jti", api.ErrInvalidToken)
	}
	if _, err := uuid.Parse(claims.UserID); err != nil || claims.Subject != claims.UserID {
		return nil, "", fmt.Errorf("%w: bad subject", api.ErrInvalidToken)
	}
	if claims.IssuedAt == nil {
		return nil, "", fmt.Errorf("%w: missing iat", api.ErrInvalidToken)
	}
	return claims, role, nil
}

func describe(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "invalid token signature"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "invalid token issuer"
	default:
		return "token rejected"
	}
}

// IssuedAt is the token's issue instant at Resolution.
func IssuedAt(c *types.Claims) time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return atResolution(c.IssuedAt.Time)
}

// ExpiresAt is the token's expiry, used as the revocation row lifetime.
func ExpiresAt(c *types.Claims) time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return atResolution(c.ExpiresAt.Time)
}

// atResolution undoes the float error a decoded NumericDate carries.
func atResolution(t time.Time) time.Time {
	return t.Add(Resolution / 2).Truncate(Resolution)
}

// JTI parses the token id.
func JTI(c *types.Claims) (uuid.UUID, error) {
	return uuid.Parse(c.ID)
}
