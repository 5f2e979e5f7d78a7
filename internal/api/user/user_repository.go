package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

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

var _ UserRepo = (*PostgresUserRepo)(nil)

// ErrEmptyFilter guards against statements that would touch every row.
var ErrEmptyFilter = errors.New("user filter must identify a user")

// UserRepo is the Credential Store. Every method hides frozen users unless
// WithDeleted or OnlyDeleted is passed.
type UserRepo interface {
	FindByEmail(ctx context.Context, email string, opts ...QueryOption) (*types.User, error)
	FindByID(ctx context.Context, id uuid.UUID, opts ...QueryOption) (*types.User, error)
	FindOne(ctx context.Context, f Filter, opts ...QueryOption) (*types.User, error)
	// Create inserts a user. Any user with the same email, frozen or not, yields api.ErrDuplicateIdentity.
	Create(ctx context.Context, u *types.User) (*types.User, error)
	// UpdateOne reports whether a row matched.
	UpdateOne(ctx context.Context, f Filter, u *Update, opts ...QueryOption) (bool, error)
	// FindOneAndUpdate applies u atomically and returns the updated row, or api.ErrUserNotFound.
	FindOneAndUpdate(ctx context.Context, f Filter, u *Update, opts ...QueryOption) (*types.User, error)
	// DeleteOne physically removes the row.
	DeleteOne(ctx context.Context, f Filter, opts ...QueryOption) (bool, error)
}

const userColumns = `id, email, password_hash, role, provider, confirmed, first_name, last_name, age, phone,
	address, gender, new_email, new_email_requested_at, two_factor_enabled, change_credentials,
	deleted_at, deleted_by, restored_at, restored_by, profile_image, created_at, updated_at`

type PostgresUserRepo struct {
	logger *slog.Logger
	db     database.DBTX
}

func NewPostgresUserRepo(db database.DBTX, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		db:     db,
	}
}

func startSpan(ctx context.Context, name, operation string) (context.Context, trace.Span) {
	return otel.Tracer("UserRepo").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		semconv.DBOperationNameKey.String(operation),
		attribute.String("db.sql.table", "users"),
	))
}

func scanUser(row pgx.Row) (*types.User, error) {
	var (
		u        types.User
		role     string
		provider string
		gender   *string
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &role, &provider, &u.Confirmed, &u.FirstName, &u.LastName, &u.Age, &u.Phone,
		&u.Address, &gender, &u.NewEmail, &u.NewEmailRequestedAt, &u.TwoFactorEnabled, &u.ChangeCredentials,
		&u.DeletedAt, &u.DeletedBy, &u.RestoredAt, &u.RestoredBy, &u.ProfileImage, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = types.Role(role)
	u.Provider = types.Provider(provider)
	if gender != nil {
		g := types.Gender(*gender)
		u.Gender = &g
	}
	return &u, nil
}

func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string, opts ...QueryOption) (*types.User, error) {
	return r.FindOne(ctx, ByEmail(email), opts...)
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, id uuid.UUID, opts ...QueryOption) (*types.User, error) {
	return r.FindOne(ctx, ByID(id), opts...)
}

func (r *PostgresUserRepo) FindOne(ctx context.Context, f Filter, opts ...QueryOption) (*types.User, error) {
	ctx, span := startSpan(ctx, "FindOne", "SELECT")
	defer span.End()

	if f.Empty() {
		span.SetStatus(codes.Error, "empty filter")
		return nil, ErrEmptyFilter
	}

	where, args := f.where(buildOptions(opts), 1)
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s LIMIT 1", userColumns, where)

	u, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "user not found")
			return nil, api.ErrUserNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", u.ID.String()))
	span.SetStatus(codes.Ok, "")
	return u, nil
}

func (r *PostgresUserRepo) Create(ctx context.Context, u *types.User) (*types.User, error) {
	ctx, span := startSpan(ctx, "Create", "INSERT")
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"))

	var gender *string
	if u.Gender != nil {
		g := string(*u.Gender)
		gender = &g
	}

	query := `
		INSERT INTO users (email, password_hash, role, provider, confirmed, first_name, last_name, age, phone, address, gender)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + userColumns

	created, err := scanUser(r.db.QueryRow(ctx, query,
		u.Email, u.PasswordHash, string(u.Role), string(u.Provider), u.Confirmed,
		u.FirstName, u.LastName, u.Age, u.Phone, u.Address, gender,
	))
	if err != nil {
		if database.IsUniqueViolation(err) {
			l.WarnContext(ctx, "Duplicate email on insert", slog.String("email", u.Email))
			span.SetStatus(codes.Error, "duplicate identity")
			return nil, api.ErrDuplicateIdentity
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", created.ID.String()))
	span.SetStatus(codes.Ok, "")
	return created, nil
}

func (r *PostgresUserRepo) UpdateOne(ctx context.Context, f Filter, u *Update, opts ...QueryOption) (bool, error) {
	ctx, span := startSpan(ctx, "UpdateOne", "UPDATE")
	defer span.End()

	query, args, err := r.updateStatement(f, u, opts, "")
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			span.SetStatus(codes.Error, "duplicate identity")
			return false, api.ErrDuplicateIdentity
		}
		r.logger.ErrorContext(ctx, "Failed to update user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, fmt.Errorf("error updating user: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresUserRepo) FindOneAndUpdate(ctx context.Context, f Filter, u *Update, opts ...QueryOption) (*types.User, error) {
	ctx, span := startSpan(ctx, "FindOneAndUpdate", "UPDATE")
	defer span.End()

	query, args, err := r.updateStatement(f, u, opts, " RETURNING "+userColumns)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	updated, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			span.SetStatus(codes.Error, "user not found")
			return nil, api.ErrUserNotFound
		case database.IsUniqueViolation(err):
			span.SetStatus(codes.Error, "duplicate identity")
			return nil, api.ErrDuplicateIdentity
		}
		r.logger.ErrorContext(ctx, "Failed to update user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, fmt.Errorf("error updating user: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", updated.ID.String()))
	span.SetStatus(codes.Ok, "")
	return updated, nil
}

func (r *PostgresUserRepo) DeleteOne(ctx context.Context, f Filter, opts ...QueryOption) (bool, error) {
	ctx, span := startSpan(ctx, "DeleteOne", "DELETE")
	defer span.End()

	if f.Empty() {
		span.SetStatus(codes.Error, "empty filter")
		return false, ErrEmptyFilter
	}

	where, args := f.where(buildOptions(opts), 1)
	tag, err := r.db.Exec(ctx, "DELETE FROM users WHERE "+where, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return false, fmt.Errorf("error deleting user: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresUserRepo) updateStatement(f Filter, u *Update, opts []QueryOption, suffix string) (string, []any, error) {
	if f.Empty() {
		return "", nil, ErrEmptyFilter
	}
	if u.Empty() {
		return "", nil, errors.New("update has no assignments")
	}

	set, args, next := u.set(1)
	where, whereArgs := f.where(buildOptions(opts), next)

	var b strings.Builder
	b.WriteString("UPDATE users SET ")
	b.WriteString(set)
	b.WriteString(" WHERE ")
	b.WriteString(where)
	b.WriteString(suffix)

	return b.String(), append(args, whereArgs...), nil
}
