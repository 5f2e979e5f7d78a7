package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-identity-authority/config"
	"github.com/FACorreiaa/go-identity-authority/internal/api"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

type slot struct {
	kind types.TokenKind
	role types.Role
}

// KeyTable is the closed {access, refresh} x {user, admin} signing-key matrix
// plus the header prefix that selects each role's key space.
type KeyTable struct {
	keys     map[slot][]byte
	roles    map[string]types.Role // lowercased prefix -> role
	prefixes map[types.Role]string
}

// NewKeyTable validates every secret and prefix up front so a misconfigured
// deployment refuses to start instead of failing per request.
func NewKeyTable(cfg config.JWTConfig) (*KeyTable, error) {
	secrets := map[slot]string{
		{types.AccessToken, types.RoleUser}:   cfg.Secrets.AccessUser,
		{types.AccessToken, types.RoleAdmin}:  cfg.Secrets.AccessAdmin,
		{types.RefreshToken, types.RoleUser}:  cfg.Secrets.RefreshUser,
		{types.RefreshToken, types.RoleAdmin}: cfg.Secrets.RefreshAdmin,
	}
	prefixes := map[types.Role]string{
		types.RoleUser:  strings.TrimSpace(cfg.Prefixes.User),
		types.RoleAdmin: strings.TrimSpace(cfg.Prefixes.Admin),
	}

	var errs []error
	t := &KeyTable{
		keys:     make(map[slot][]byte, len(secrets)),
		roles:    make(map[string]types.Role, len(prefixes)),
		prefixes: prefixes,
	}

	seen := make(map[string]slot, len(secrets))
	for s, secret := range secrets {
		if secret == "" {
			errs = append(errs, fmt.Errorf("jwt secret for %s/%s is missing", s.kind, s.role))
			continue
		}
		if other, dup := seen[secret]; dup {
			errs = append(errs, fmt.Errorf("jwt secrets for %s/%s and %s/%s must differ", s.kind, s.role, other.kind, other.role))
		}
		seen[secret] = s
		t.keys[s] = []byte(secret)
	}

	for role, prefix := range prefixes {
		if prefix == "" || strings.ContainsAny(prefix, " \t") {
			errs = append(errs, fmt.Errorf("authorization prefix for %s must be a single non-empty word", role))
			continue
		}
		key := strings.ToLower(prefix)
		if _, dup := t.roles[key]; dup {
			errs = append(errs, errors.New("authorization prefixes for user and admin must differ"))
		}
		t.roles[key] = role
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

// Resolve maps the header prefix and the route's token kind to a key.
func (t *KeyTable) Resolve(kind types.TokenKind, prefix string) ([]byte, types.Role, error) {
	role, ok := t.roles[strings.ToLower(prefix)]
	if !ok {
		return nil, "", api.ErrUnknownSignature
	}
	key, ok := t.keys[slot{kind, role}]
	if !ok {
		return nil, "", api.ErrUnknownSignature
	}
	return key, role, nil
}

// Prefix is the header prefix clients must use for tokens of role.
func (t *KeyTable) Prefix(role types.Role) string {
	return t.prefixes[role]
}

func (t *KeyTable) key(kind types.TokenKind, role types.Role) ([]byte, error) {
	key, ok := t.keys[slot{kind, role}]
	if !ok {
		return nil, fmt.Errorf("no signing key for %s/%s", kind, role)
	}
	return key, nil
}
