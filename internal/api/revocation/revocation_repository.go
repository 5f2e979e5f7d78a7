package revocation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/go-identity-authority/app/db"
)

var _ Ledger = (*PostgresLedger)(nil)

// Ledger records token ids that must no longer be accepted.
type Ledger interface {
	// Revoke is idempotent: revoking the same jti twice keeps the first row.
	// The bool reports whether this call was the one that inserted it.
	Revoke(ctx context.Context, jti, userID uuid.UUID, expireAt time.Time) (bool, error)
	// IsRevoked ignores rows whose expireAt has passed.
	IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error)
	// PurgeExpired deletes dead rows and returns how many went.
	PurgeExpired(ctx context.Context) (int64, error)
}

type PostgresLedger struct {
	logger *slog.Logger
	db     database.DBTX
}

func NewPostgresLedger(db database.DBTX, logger *slog.Logger) *PostgresLedger {
	return &PostgresLedger{logger: logger, db: db}
}

func startSpan(ctx context.Context, name, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		semconv.DBSystemPostgreSQL,
		semconv.DBOperationNameKey.String(operation),
		attribute.String("db.sql.table", "revoked_tokens"),
	)
	return otel.Tracer("RevocationLedger").Start(ctx, name, trace.WithAttributes(attrs...))
}

func (l *PostgresLedger) Revoke(ctx context.Context, jti, userID uuid.UUID, expireAt time.Time) (bool, error) {
	ctx, span := startSpan(ctx, "Revoke", "INSERT", attribute.String("token.jti", jti.String()))
	defer span.End()

	tag, err := l.db.Exec(ctx, `
		INSERT INTO revoked_tokens (jti, user_id, expire_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING`, jti, userID, expireAt)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to revoke token", slog.String("jti", jti.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return false, fmt.Errorf("error revoking token: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected() == 1, nil
}

func (l *PostgresLedger) IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	ctx, span := startSpan(ctx, "IsRevoked", "SELECT", attribute.String("token.jti", jti.String()))
	defer span.End()

	var revoked bool
	err := l.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1 AND expire_at > now())`, jti,
	).Scan(&revoked)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return false, fmt.Errorf("error checking revocation: %w", err)
	}
	span.SetAttributes(attribute.Bool("token.revoked", revoked))
	span.SetStatus(codes.Ok, "")
	return revoked, nil
}

func (l *PostgresLedger) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, span := startSpan(ctx, "PurgeExpired", "DELETE")
	defer span.End()

	tag, err := l.db.Exec(ctx, `DELETE FROM revoked_tokens WHERE expire_at <= now()`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return 0, fmt.Errorf("error purging revoked tokens: %w", err)
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected(), nil
}
