package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-identity-authority/app/observability/metrics"
	"github.com/FACorreiaa/go-identity-authority/config"
	"github.com/FACorreiaa/go-identity-authority/internal/api"
	"github.com/FACorreiaa/go-identity-authority/internal/api/notify"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

// Engine issues and verifies hashed, time-boxed one-time codes for every
// challenge purpose.
type Engine struct {
	store    ChallengeRepo
	notifier notify.Notifier
	ttl      time.Duration
	cost     int
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.AppMetrics
}

func NewEngine(store ChallengeRepo, notifier notify.Notifier, cfg config.OTPConfig, bcryptCost int, logger *slog.Logger, m *metrics.AppMetrics) *Engine {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Engine{
		store:    store,
		notifier: notifier,
		ttl:      ttl,
		cost:     bcryptCost,
		now:      time.Now,
		logger:   logger,
		metrics:  m,
	}
}

// WithClock replaces the time source. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) TTL() time.Duration { return e.ttl }

func (e *Engine) generate() (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(api.CodeLength), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("error generating code: %w", err)
	}
	return fmt.Sprintf("%0*d", api.CodeLength, n), nil
}

// Issue stores a fresh challenge for (user, purpose), superseding any earlier
// one, and hands the plaintext to the notifier. An empty recipient means the
// user's current email.
func (e *Engine) Issue(ctx context.Context, user *types.User, purpose types.ChallengePurpose, recipient string) error {
	ctx, span := otel.Tracer("OTPEngine").Start(ctx, "Issue", trace.WithAttributes(
		attribute.String("user.id", user.ID.String()),
		attribute.String("otp.purpose", string(purpose)),
	))
	defer span.End()

	l := e.logger.With(slog.String("method", "Issue"), slog.String("userID", user.ID.String()), slog.String("purpose", string(purpose)))

	if !purpose.Valid() {
		err := fmt.Errorf("unknown challenge purpose %q", purpose)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if recipient == "" {
		recipient = user.Email
	}

	code, err := e.generate()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "code generation failed")
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), e.cost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "hashing failed")
		return fmt.Errorf("error hashing code: %w", err)
	}

	now := e.now()
	err = e.store.Save(ctx, types.Challenge{
		UserID:    user.ID,
		Purpose:   purpose,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(e.ttl),
		CreatedAt: now,
	})
	if err != nil {
		l.ErrorContext(ctx, "Failed to store challenge", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return err
	}

	if err := e.dispatch(ctx, purpose, recipient, code); err != nil {
		l.ErrorContext(ctx, "Failed to deliver code", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		return fmt.Errorf("error delivering code: %w", err)
	}

	e.metrics.OTPIssuedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", string(purpose))))
	l.DebugContext(ctx, "Challenge issued")
	span.SetStatus(codes.Ok, "")
	return nil
}

func (e *Engine) dispatch(ctx context.Context, purpose types.ChallengePurpose, to, code string) error {
	switch purpose {
	case types.PurposeConfirmEmail:
		return e.notifier.SendConfirmEmail(ctx, to, code)
	case types.PurposeResetPassword:
		return e.notifier.SendPasswordReset(ctx, to, code)
	case types.PurposeChangeEmail:
		return e.notifier.SendEmailChange(ctx, to, code)
	case types.PurposeTwoFactorSetup:
		return e.notifier.SendTwoFactorSetup(ctx, to, code)
	case types.PurposeTwoFactorLogin:
		return e.notifier.SendTwoFactorLogin(ctx, to, code)
	}
	return fmt.Errorf("unknown challenge purpose %q", purpose)
}

// Verify checks code against the pending challenge and consumes it on
// success. A code can be used once; a second attempt gets
// api.ErrNoPendingChallenge.
func (e *Engine) Verify(ctx context.Context, userID uuid.UUID, purpose types.ChallengePurpose, code string) (err error) {
	ctx, span := otel.Tracer("OTPEngine").Start(ctx, "Verify", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("otp.purpose", string(purpose)),
	))
	defer span.End()
	defer func() { e.recordOutcome(ctx, purpose, err) }()

	c, err := e.store.Get(ctx, userID, purpose)
	if err != nil {
		span.SetStatus(codes.Error, "no challenge")
		return err
	}
	if !e.now().Before(c.ExpiresAt) {
		span.SetStatus(codes.Error, "expired")
		return api.ErrChallengeExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)) != nil {
		span.SetStatus(codes.Error, "mismatch")
		return api.ErrInvalidCode
	}

	consumed, err := e.store.Consume(ctx, userID, purpose, c.CodeHash)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "consume failed")
		return err
	}
	if !consumed {
		// A concurrent verify or a newer issue got there first.
		span.SetStatus(codes.Error, "already consumed")
		return api.ErrNoPendingChallenge
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (e *Engine) recordOutcome(ctx context.Context, purpose types.ChallengePurpose, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, api.ErrNoPendingChallenge):
		outcome = "none"
	case errors.Is(err, api.ErrChallengeExpired):
		outcome = "expired"
	case errors.Is(err, api.ErrInvalidCode):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	e.metrics.OTPVerifiedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", string(purpose)),
		attribute.String("outcome", outcome),
	))
}
