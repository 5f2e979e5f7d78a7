package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/go-identity-authority/app/db"
	"github.com/FACorreiaa/go-identity-authority/internal/api"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

var _ ChallengeRepo = (*PostgresChallengeRepo)(nil)

// ChallengeRepo stores at most one pending challenge per (user, purpose).
type ChallengeRepo interface {
	// Save replaces any earlier challenge for the same purpose.
	Save(ctx context.Context, c types.Challenge) error
	// Get returns api.ErrNoPendingChallenge when nothing is stored.
	Get(ctx context.Context, userID uuid.UUID, purpose types.ChallengePurpose) (*types.Challenge, error)
	// Consume deletes the challenge only if it still carries codeHash.
	Consume(ctx context.Context, userID uuid.UUID, purpose types.ChallengePurpose, codeHash string) (bool, error)
}

type PostgresChallengeRepo struct {
	logger *slog.Logger
	db     database.DBTX
}

func NewPostgresChallengeRepo(db database.DBTX, logger *slog.Logger) *PostgresChallengeRepo {
	return &PostgresChallengeRepo{logger: logger, db: db}
}

func startSpan(ctx context.Context, name, operation string, userID uuid.UUID, purpose types.ChallengePurpose) (context.Context, trace.Span) {
	return otel.Tracer("ChallengeRepo").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		semconv.DBOperationNameKey.String(operation),
		attribute.String("db.sql.table", "user_challenges"),
		attribute.String("user.id", userID.String()),
		attribute.String("otp.purpose", string(purpose)),
	))
}

func (r *PostgresChallengeRepo) Save(ctx context.Context, c types.Challenge) error {
	ctx, span := startSpan(ctx, "Save", "INSERT", c.UserID, c.Purpose)
	defer span.End()

	_, err := r.db.Exec(ctx, `
		INSERT INTO user_challenges (user_id, purpose, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, purpose)
		DO UPDATE SET code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`,
		c.UserID, string(c.Purpose), c.CodeHash, c.ExpiresAt, c.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to store challenge", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return fmt.Errorf("error storing challenge: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *PostgresChallengeRepo) Get(ctx context.Context, userID uuid.UUID, purpose types.ChallengePurpose) (*types.Challenge, error) {
	ctx, span := startSpan(ctx, "Get", "SELECT", userID, purpose)
	defer span.End()

	c := types.Challenge{UserID: userID, Purpose: purpose}
	var expiresAt, createdAt time.Time
	err := r.db.QueryRow(ctx, `
		SELECT code_hash, expires_at, created_at
		FROM user_challenges
		WHERE user_id = $1 AND purpose = $2`, userID, string(purpose),
	).Scan(&c.CodeHash, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "no pending challenge")
			return nil, api.ErrNoPendingChallenge
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("error fetching challenge: %w", err)
	}
	c.ExpiresAt, c.CreatedAt = expiresAt, createdAt

	span.SetStatus(codes.Ok, "")
	return &c, nil
}

func (r *PostgresChallengeRepo) Consume(ctx context.Context, userID uuid.UUID, purpose types.ChallengePurpose, codeHash string) (bool, error) {
	ctx, span := startSpan(ctx, "Consume", "DELETE", userID, purpose)
	defer span.End()

	tag, err := r.db.Exec(ctx, `
		DELETE FROM user_challenges
		WHERE user_id = $1 AND purpose = $2 AND code_hash = $3`, userID, string(purpose), codeHash,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return false, fmt.Errorf("error consuming challenge: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected() == 1, nil
}
