package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-identity-authority/app/observability/metrics"
	"github.com/FACorreiaa/go-identity-authority/internal/api"
	"github.com/FACorreiaa/go-identity-authority/internal/api/revocation"
	"github.com/FACorreiaa/go-identity-authority/internal/api/session"
	"github.com/FACorreiaa/go-identity-authority/internal/api/token"
	"github.com/FACorreiaa/go-identity-authority/internal/api/user"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

var _ session.Resolver = (*SessionResolver)(nil)

// SessionResolver authenticates a request. Every call re-reads the ledger and
// the user row; nothing is cached between requests.
type SessionResolver struct {
	issuer  *token.Issuer
	users   user.UserRepo
	ledger  revocation.Ledger
	logger  *slog.Logger
	metrics *metrics.AppMetrics
}

func NewSessionResolver(issuer *token.Issuer, users user.UserRepo, ledger revocation.Ledger, logger *slog.Logger, m *metrics.AppMetrics) *SessionResolver {
	return &SessionResolver{
		issuer:  issuer,
		users:   users,
		ledger:  ledger,
		logger:  logger,
		metrics: m,
	}
}

// Resolve checks, in order: header shape, key space, signature and expiry,
// revocation, user liveness and the changeCredentials high-water mark.
func (r *SessionResolver) Resolve(ctx context.Context, header string, kind types.TokenKind) (s *types.Session, err error) {
	ctx, span := otel.Tracer("SessionResolver").Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("token.kind", string(kind)),
	))
	defer span.End()
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, failureReason(err))
			r.metrics.AuthFailuresTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("reason", failureReason(err)),
				attribute.String("kind", string(kind)),
			))
			return
		}
		span.SetStatus(codes.Ok, "")
	}()

	prefix, raw, err := session.SplitHeader(header)
	if err != nil {
		return nil, err
	}

	claims, role, err := r.issuer.Parse(raw, kind, prefix)
	if err != nil {
		return nil, err
	}
	jti, err := token.JTI(claims)
	if err != nil {
		return nil, fmt.Errorf("%w: bad jti", api.ErrInvalidToken)
	}
	span.SetAttributes(attribute.String("token.jti", jti.String()))

	revoked, err := r.ledger.IsRevoked(ctx, jti)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if revoked {
		return nil, api.ErrTokenRevoked
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", api.ErrInvalidToken)
	}
	u, err := r.users.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, api.ErrUserNotFound) {
			span.RecordError(err)
		}
		return nil, err
	}

	// A token signed in the admin space must belong to an admin and vice versa.
	if u.Role != role {
		r.logger.WarnContext(ctx, "Token key space does not match user role",
			slog.String("userID", u.ID.String()),
			slog.String("tokenRole", string(role)),
			slog.String("userRole", string(u.Role)))
		return nil, api.ErrUnknownSignature
	}

	if u.ChangeCredentials != nil && token.IssuedAt(claims).Before(*u.ChangeCredentials) {
		return nil, api.ErrCredentialsChanged
	}

	span.SetAttributes(attribute.String("user.id", u.ID.String()), attribute.String("user.role", string(role)))
	return &types.Session{User: u, Claims: claims, Role: role, Kind: kind}, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, api.ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, api.ErrUnknownSignature):
		return "unknown_signature"
	case errors.Is(err, api.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, api.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, api.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, api.ErrCredentialsChanged):
		return "credentials_changed"
	default:
		return "error"
	}
}
