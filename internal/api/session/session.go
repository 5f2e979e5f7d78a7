package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-identity-authority/internal/api"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

type contextKey string

const sessionKey contextKey = "session"

// Resolver turns a raw Authorization header into a verified session.
type Resolver interface {
	Resolve(ctx context.Context, header string, kind types.TokenKind) (*types.Session, error)
}

func WithSession(ctx context.Context, s *types.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func FromContext(ctx context.Context) (*types.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*types.Session)
	return s, ok && s != nil && s.User != nil
}

// GetUserIDFromContext returns the authenticated user's id.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return s.User.ID, true
}

// SplitHeader separates "<prefix> <token>". Both parts must be present.
func SplitHeader(header string) (prefix, raw string, err error) {
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", "", api.ErrMalformedHeader
	}
	return parts[0], parts[1], nil
}

// Authenticate resolves the Authorization header as a token of the given
// kind and stores the session in the request context.
func Authenticate(resolver Resolver, kind types.TokenKind, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"), slog.String("kind", string(kind)))

			s, err := resolver.Resolve(ctx, r.Header.Get("Authorization"), kind)
			if err != nil {
				if api.StatusFor(err) == http.StatusInternalServerError {
					l.ErrorContext(ctx, "Session resolution failed", slog.Any("error", err))
				} else {
					l.WarnContext(ctx, "Request rejected", slog.String("reason", err.Error()))
				}
				// Identity lookups after a valid signature answer 401, not 404.
				if errors.Is(err, api.ErrUserNotFound) {
					api.ErrorResponse(w, r, http.StatusUnauthorized, err.Error())
					return
				}
				api.HandleError(w, r, err)
				return
			}

			l.DebugContext(ctx, "Authentication successful", slog.String("userID", s.User.ID.String()))
			next.ServeHTTP(w, r.WithContext(WithSession(ctx, s)))
		})
	}
}

// RequireRole runs after Authenticate: 401 without a session, 403 when the
// session's role is not listed.
func RequireRole(logger *slog.Logger, roles ...types.Role) func(next http.Handler) http.Handler {
	allowed := make(map[types.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			s, ok := FromContext(ctx)
			if !ok {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if _, ok := allowed[s.Role]; !ok {
				logger.WarnContext(ctx, "Role check failed", slog.String("role", string(s.Role)), slog.Any("allowed", roles))
				api.ErrorResponse(w, r, http.StatusForbidden, api.ErrUnauthorized.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
