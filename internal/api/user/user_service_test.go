package user_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-identity-authority/app/observability/metrics"
	"github.com/FACorreiaa/go-identity-authority/internal/api"
	"github.com/FACorreiaa/go-identity-authority/internal/api/storage"
	"github.com/FACorreiaa/go-identity-authority/internal/api/user"
	"github.com/FACorreiaa/go-identity-authority/internal/api/user/usertest"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) ProfileImageKey(userID uuid.UUID, fileName string) string {
	return m.Called(userID, fileName).String(0)
}

func (m *MockUploader) PresignUpload(ctx context.Context, key, contentType string) (*storage.PresignedUpload, error) {
	args := m.Called(ctx, key, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PresignedUpload), args.Error(1)
}

type fixture struct {
	svc      *user.UserServiceImpl
	repo     *usertest.MemoryRepo
	uploader *MockUploader
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	metrics.InitAppMetrics()
	f := &fixture{
		repo:     usertest.NewMemoryRepo(),
		uploader: new(MockUploader),
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = user.NewUserService(f.repo, f.uploader, slog.Default(), metrics.Get()).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) seed(t *testing.T, email string, role types.Role) *types.Session {
	t.Helper()
	u, err := f.repo.Create(context.Background(), &types.User{Email: email, Role: role, Provider: types.ProviderSystem, Confirmed: true})
	require.NoError(t, err)
	return &types.Session{User: u, Role: role, Kind: types.AccessToken}
}

func TestFreeze(t *testing.T) {
	ctx := context.Background()

	t.Run("self freeze hides the user and bumps credentials", func(t *testing.T) {
		f := newFixture(t)
		me := f.seed(t, "me@x.com", types.RoleUser)

		frozen, err := f.svc.Freeze(ctx, me, me.User.ID)
		require.NoError(t, err)
		require.NotNil(t, frozen.DeletedAt)
		assert.Equal(t, me.User.ID, *frozen.DeletedBy)
		require.NotNil(t, frozen.ChangeCredentials)
		assert.Equal(t, f.now, *frozen.ChangeCredentials)

		_, err = f.repo.FindByID(ctx, me.User.ID)
		assert.ErrorIs(t, err, api.ErrUserNotFound)
		_, err = f.repo.FindByID(ctx, me.User.ID, user.WithDeleted())
		assert.NoError(t, err)

		_, err = f.svc.Freeze(ctx, me, me.User.ID)
		assert.ErrorIs(t, err, api.ErrNotFound, "already frozen")
	})

	t.Run("other user requires admin", func(t *testing.T) {
		f := newFixture(t)
		me := f.seed(t, "me@x.com", types.RoleUser)
		other := f.seed(t, "other@x.com", types.RoleUser)
		admin := f.seed(t, "admin@x.com", types.RoleAdmin)

		_, err := f.svc.Freeze(ctx, me, other.User.ID)
		assert.ErrorIs(t, err, api.ErrUnauthorized)

		_, err = f.svc.Freeze(ctx, admin, other.User.ID)
		assert.NoError(t, err)
	})

	t.Run("unknown target", func(t *testing.T) {
		f := newFixture(t)
		admin := f.seed(t, "admin@x.com", types.RoleAdmin)
		_, err := f.svc.Freeze(ctx, admin, uuid.New())
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestUnfreeze(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	target := f.seed(t, "target@x.com", types.RoleUser)
	freezer := f.seed(t, "freezer@x.com", types.RoleAdmin)
	restorer := f.seed(t, "restorer@x.com", types.RoleAdmin)

	_, err := f.svc.Unfreeze(ctx, restorer, target.User.ID)
	assert.ErrorIs(t, err, api.ErrNotFound, "live users cannot be unfrozen")

	_, err = f.svc.Freeze(ctx, freezer, target.User.ID)
	require.NoError(t, err)

	_, err = f.svc.Unfreeze(ctx, target, target.User.ID)
	assert.ErrorIs(t, err, api.ErrUnauthorized, "non-admin")
	_, err = f.svc.Unfreeze(ctx, freezer, target.User.ID)
	assert.ErrorIs(t, err, api.ErrUnauthorized, "restorer must differ from deleter")

	f.now = f.now.Add(time.Hour)
	restored, err := f.svc.Unfreeze(ctx, restorer, target.User.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)
	assert.Nil(t, restored.DeletedBy)
	require.NotNil(t, restored.RestoredBy)
	assert.Equal(t, restorer.User.ID, *restored.RestoredBy)
	assert.Equal(t, f.now, *restored.RestoredAt)

	_, err = f.repo.FindByID(ctx, target.User.ID)
	assert.NoError(t, err)
}

func TestFrozenAccountKeepsEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	target := f.seed(t, "target@x.com", types.RoleUser)
	admin := f.seed(t, "admin@x.com", types.RoleAdmin)
	other := f.seed(t, "other@x.com", types.RoleAdmin)

	_, err := f.svc.Freeze(ctx, admin, target.User.ID)
	require.NoError(t, err)

	_, err = f.repo.Create(ctx, &types.User{Email: "TARGET@x.com", Role: types.RoleUser, Provider: types.ProviderSystem})
	assert.ErrorIs(t, err, api.ErrDuplicateIdentity)

	restored, err := f.svc.Unfreeze(ctx, other, target.User.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)
	assert.Equal(t, "target@x.com", restored.Email)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	me := f.seed(t, "me@x.com", types.RoleUser)
	other := f.seed(t, "other@x.com", types.RoleUser)
	admin := f.seed(t, "admin@x.com", types.RoleAdmin)

	assert.ErrorIs(t, f.svc.Delete(ctx, me, other.User.ID), api.ErrUnauthorized)

	_, err := f.svc.Freeze(ctx, other, other.User.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, admin, other.User.ID), "frozen accounts can be deleted")
	_, err = f.repo.FindByID(ctx, other.User.ID, user.WithDeleted())
	assert.ErrorIs(t, err, api.ErrUserNotFound)

	require.NoError(t, f.svc.Delete(ctx, me, me.User.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, admin, me.User.ID), api.ErrNotFound)
}

func TestUpdateUserProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	me := f.seed(t, "me@x.com", types.RoleUser)

	name, age, gender := "Jane", 30, types.GenderFemale
	u, err := f.svc.UpdateUserProfile(ctx, me.User.ID, types.UpdateProfileParams{FirstName: &name, Age: &age, Gender: &gender})
	require.NoError(t, err)
	assert.Equal(t, "Jane", *u.FirstName)
	assert.Equal(t, 30, *u.Age)
	assert.Equal(t, types.GenderFemale, *u.Gender)
	assert.Nil(t, u.LastName)

	_, err = f.svc.UpdateUserProfile(ctx, me.User.ID, types.UpdateProfileParams{})
	assert.ErrorIs(t, err, api.ErrValidation)

	_, err = f.svc.UpdateUserProfile(ctx, uuid.New(), types.UpdateProfileParams{FirstName: &name})
	assert.ErrorIs(t, err, api.ErrUserNotFound)
}

func TestCreateProfileImageUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the key", func(t *testing.T) {
		f := newFixture(t)
		me := f.seed(t, "me@x.com", types.RoleUser)
		key := "identity-authority/users/" + me.User.ID.String() + "/k_avatar.png"

		f.uploader.On("ProfileImageKey", me.User.ID, "avatar.png").Return(key).Once()
		f.uploader.On("PresignUpload", mock.Anything, key, "image/png").
			Return(&storage.PresignedUpload{URL: "https://s3/put", Method: "PUT", Key: key}, nil).Once()

		resp, err := f.svc.CreateProfileImageUpload(ctx, me.User.ID, "avatar.png", "image/png")
		require.NoError(t, err)
		assert.Equal(t, "https://s3/put", resp.UploadURL)
		assert.Equal(t, key, resp.Key)

		stored, err := f.repo.FindByID(ctx, me.User.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.ProfileImage)
		assert.Equal(t, key, *stored.ProfileImage)
		f.uploader.AssertExpectations(t)
	})

	t.Run("presign failure leaves the profile untouched", func(t *testing.T) {
		f := newFixture(t)
		me := f.seed(t, "me@x.com", types.RoleUser)
		f.uploader.On("ProfileImageKey", me.User.ID, "avatar.png").Return("k").Once()
		f.uploader.On("PresignUpload", mock.Anything, "k", "image/png").Return(nil, errors.New("no credentials")).Once()

		_, err := f.svc.CreateProfileImageUpload(ctx, me.User.ID, "avatar.png", "image/png")
		require.Error(t, err)

		stored, err := f.repo.FindByID(ctx, me.User.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.ProfileImage)
	})
}
