package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-identity-authority/app/observability/metrics"
	"github.com/FACorreiaa/go-identity-authority/internal/api"
	"github.com/FACorreiaa/go-identity-authority/internal/api/storage"
	"github.com/FACorreiaa/go-identity-authority/internal/api/token"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

// Ensure implementation satisfies the interface
var _ UserService = (*UserServiceImpl)(nil)

// UserService defines the account operations available to a signed-in user
// and to admins acting on other accounts.
type UserService interface {
	// Profile Management
	GetUserProfile(ctx context.Context, userID uuid.UUID) (*types.User, error)
	UpdateUserProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.User, error)
	CreateProfileImageUpload(ctx context.Context, userID uuid.UUID, fileName, contentType string) (*api.ProfileImageResponse, error)

	// Account lifecycle
	Freeze(ctx context.Context, actor *types.Session, targetID uuid.UUID) (*types.User, error)
	Unfreeze(ctx context.Context, actor *types.Session, targetID uuid.UUID) (*types.User, error)
	Delete(ctx context.Context, actor *types.Session, targetID uuid.UUID) error
}

// UserServiceImpl provides the implementation for UserService.
type UserServiceImpl struct {
	logger   *slog.Logger
	repo     UserRepo
	uploader storage.Uploader
	now      func() time.Time
	metrics  *metrics.AppMetrics
}

// NewUserService creates a new user service instance.
func NewUserService(repo UserRepo, uploader storage.Uploader, logger *slog.Logger, m *metrics.AppMetrics) *UserServiceImpl {
	return &UserServiceImpl{
		logger:   logger,
		repo:     repo,
		uploader: uploader,
		now:      token.Now,
		metrics:  m,
	}
}

// WithClock replaces the freeze and restore clock. Tests only.
func (s *UserServiceImpl) WithClock(now func() time.Time) *UserServiceImpl {
	s.now = now
	return s
}

func startServiceSpan(ctx context.Context, name string, userID uuid.UUID) (context.Context, trace.Span) {
	return otel.Tracer("UserService").Start(ctx, name, trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
}

// selfOrAdmin allows acting on one's own account, or on any account as admin.
func selfOrAdmin(actor *types.Session, targetID uuid.UUID) error {
	if actor.User.ID == targetID || actor.Role == types.RoleAdmin {
		return nil
	}
	return api.ErrUnauthorized
}

// GetUserProfile retrieves a user's profile by ID.
func (s *UserServiceImpl) GetUserProfile(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	l := s.logger.With(slog.String("method", "GetUserProfile"), slog.String("userID", userID.String()))
	l.DebugContext(ctx, "Fetching user profile")

	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch user profile", slog.Any("error", err))
		return nil, fmt.Errorf("error fetching user profile: %w", err)
	}
	return u, nil
}

// UpdateUserProfile updates the self-service profile fields.
func (s *UserServiceImpl) UpdateUserProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.User, error) {
	ctx, span := startServiceSpan(ctx, "UpdateUserProfile", userID)
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateUserProfile"), slog.String("userID", userID.String()))
	l.DebugContext(ctx, "Updating user profile")

	update := ProfileUpdate(params)
	if update.Empty() {
		span.SetStatus(codes.Error, "nothing to update")
		return nil, fmt.Errorf("%w: no profile fields given", api.ErrValidation)
	}

	u, err := s.repo.FindOneAndUpdate(ctx, ByID(userID), update)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update user profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update user profile")
		return nil, fmt.Errorf("error updating user profile: %w", err)
	}

	l.InfoContext(ctx, "User profile updated successfully")
	span.SetStatus(codes.Ok, "User profile updated successfully")
	return u, nil
}

// CreateProfileImageUpload presigns an upload target and records its key as
// the user's profile image.
func (s *UserServiceImpl) CreateProfileImageUpload(ctx context.Context, userID uuid.UUID, fileName, contentType string) (*api.ProfileImageResponse, error) {
	ctx, span := startServiceSpan(ctx, "CreateProfileImageUpload", userID)
	defer span.End()

	key := s.uploader.ProfileImageKey(userID, fileName)
	upload, err := s.uploader.PresignUpload(ctx, key, contentType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "presign failed")
		return nil, err
	}

	ok, err := s.repo.UpdateOne(ctx, ByID(userID), NewUpdate().Set(ColProfileImage, key))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, fmt.Errorf("error saving profile image key: %w", err)
	}
	if !ok {
		span.SetStatus(codes.Error, "user gone")
		return nil, api.ErrUserNotFound
	}

	span.SetStatus(codes.Ok, "")
	return &api.ProfileImageResponse{UploadURL: upload.URL, Key: key, Method: upload.Method}, nil
}

// Freeze soft-deletes the target and invalidates every token it holds.
func (s *UserServiceImpl) Freeze(ctx context.Context, actor *types.Session, targetID uuid.UUID) (*types.User, error) {
	ctx, span := startServiceSpan(ctx, "Freeze", targetID)
	defer span.End()

	l := s.logger.With(slog.String("method", "Freeze"), slog.String("targetID", targetID.String()), slog.String("actorID", actor.User.ID.String()))

	if err := selfOrAdmin(actor, targetID); err != nil {
		l.WarnContext(ctx, "Freeze denied")
		span.SetStatus(codes.Error, "forbidden")
		return nil, err
	}

	now := s.now()
	u, err := s.repo.FindOneAndUpdate(ctx, ByID(targetID), NewUpdate().
		Set(ColDeletedAt, now).
		Set(ColDeletedBy, actor.User.ID).
		Unset(ColRestoredAt).
		Unset(ColRestoredBy).
		BumpCredentials(now))
	if err != nil {
		if errors.Is(err, api.ErrUserNotFound) {
			span.SetStatus(codes.Error, "not found")
			return nil, api.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, fmt.Errorf("error freezing user: %w", err)
	}

	s.metrics.CredentialBumps.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "freeze")))
	l.InfoContext(ctx, "User frozen")
	span.SetStatus(codes.Ok, "")
	return u, nil
}

// Unfreeze restores a frozen account. The restorer must be an admin other
// than the one who froze it.
func (s *UserServiceImpl) Unfreeze(ctx context.Context, actor *types.Session, targetID uuid.UUID) (*types.User, error) {
	ctx, span := startServiceSpan(ctx, "Unfreeze", targetID)
	defer span.End()

	if actor.Role != types.RoleAdmin {
		span.SetStatus(codes.Error, "forbidden")
		return nil, api.ErrUnauthorized
	}

	restorer := actor.User.ID
	u, err := s.repo.FindOneAndUpdate(ctx,
		Filter{ID: &targetID, DeletedByNot: &restorer},
		NewUpdate().
			Unset(ColDeletedAt).
			Unset(ColDeletedBy).
			Set(ColRestoredAt, s.now()).
			Set(ColRestoredBy, restorer),
		OnlyDeleted())
	if err == nil {
		s.logger.InfoContext(ctx, "User unfrozen", slog.String("targetID", targetID.String()), slog.String("actorID", restorer.String()))
		span.SetStatus(codes.Ok, "")
		return u, nil
	}
	if !errors.Is(err, api.ErrUserNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, fmt.Errorf("error unfreezing user: %w", err)
	}

	// No match: either nothing frozen with that id, or the actor froze it.
	frozen, findErr := s.repo.FindByID(ctx, targetID, OnlyDeleted())
	switch {
	case findErr == nil && frozen.DeletedBy != nil && *frozen.DeletedBy == restorer:
		span.SetStatus(codes.Error, "same actor")
		return nil, api.ErrUnauthorized
	case findErr == nil, errors.Is(findErr, api.ErrUserNotFound):
		span.SetStatus(codes.Error, "not found")
		return nil, api.ErrNotFound
	default:
		span.RecordError(findErr)
		return nil, fmt.Errorf("error unfreezing user: %w", findErr)
	}
}

// Delete removes the account row permanently, frozen or not.
func (s *UserServiceImpl) Delete(ctx context.Context, actor *types.Session, targetID uuid.UUID) error {
	ctx, span := startServiceSpan(ctx, "Delete", targetID)
	defer span.End()

	if err := selfOrAdmin(actor, targetID); err != nil {
		span.SetStatus(codes.Error, "forbidden")
		return err
	}

	ok, err := s.repo.DeleteOne(ctx, ByID(targetID), WithDeleted())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return fmt.Errorf("error deleting user: %w", err)
	}
	if !ok {
		span.SetStatus(codes.Error, "not found")
		return api.ErrNotFound
	}

	s.logger.InfoContext(ctx, "User deleted", slog.String("targetID", targetID.String()), slog.String("actorID", actor.User.ID.String()))
	span.SetStatus(codes.Ok, "")
	return nil
}
