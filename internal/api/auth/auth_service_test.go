package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-identity-authority/app/observability/metrics"
	"github.com/FACorreiaa/go-identity-authority/config"
	"github.com/FACorreiaa/go-identity-authority/internal/api"
	"github.com/FACorreiaa/go-identity-authority/internal/api/notify"
	"github.com/FACorreiaa/go-identity-authority/internal/api/oauth"
	"github.com/FACorreiaa/go-identity-authority/internal/api/otp"
	"github.com/FACorreiaa/go-identity-authority/internal/api/token"
	"github.com/FACorreiaa/go-identity-authority/internal/api/user/usertest"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

const testPassword = "Str0ngPass"

type challengeKey struct {
	userID  uuid.UUID
	purpose types.ChallengePurpose
}

type memoryChallenges struct {
	mu   sync.Mutex
	rows map[challengeKey]types.Challenge
}

func (m *memoryChallenges) Save(_ context.Context, c types.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[challengeKey{c.UserID, c.Purpose}] = c
	return nil
}

func (m *memoryChallenges) Get(_ context.Context, userID uuid.UUID, purpose types.ChallengePurpose) (*types.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[challengeKey{userID, purpose}]
	if !ok {
		return nil, api.ErrNoPendingChallenge
	}
	return &c, nil
}

func (m *memoryChallenges) Consume(_ context.Context, userID uuid.UUID, purpose types.ChallengePurpose, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := challengeKey{userID, purpose}
	if c, ok := m.rows[k]; !ok || c.CodeHash != codeHash {
		return false, nil
	}
	delete(m.rows, k)
	return true, nil
}

type memoryLedger struct {
	mu   sync.Mutex
	rows map[uuid.UUID]time.Time
	now  func() time.Time
}

func (m *memoryLedger) Revoke(_ context.Context, jti, _ uuid.UUID, expireAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[jti]; ok {
		return false, nil
	}
	m.rows[jti] = expireAt
	return true, nil
}

func (m *memoryLedger) IsRevoked(_ context.Context, jti uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.rows[jti]
	return ok && exp.After(m.now()), nil
}

func (m *memoryLedger) PurgeExpired(context.Context) (int64, error) { return 0, nil }

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, accessToken string) (*oauth.Identity, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth.Identity), args.Error(1)
}

type harness struct {
	svc      *AuthServiceImpl
	resolver *SessionResolver
	users    *usertest.MemoryRepo
	ledger   *memoryLedger
	mailbox  *notify.MemoryNotifier
	google   *MockVerifier
	clock    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	metrics.InitAppMetrics()

	h := &harness{
		users:   usertest.NewMemoryRepo(),
		mailbox: notify.NewMemoryNotifier(time.Hour),
		google:  new(MockVerifier),
		clock:   time.Now().Truncate(token.Resolution),
	}
	now := func() time.Time { return h.clock }
	h.ledger = &memoryLedger{rows: make(map[uuid.UUID]time.Time), now: now}
	h.users.Now = now

	jwtCfg := config.JWTConfig{
		Issuer: "test-issuer",
		Secrets: config.JWTSecrets{
			AccessUser:   "access-user-secret",
			AccessAdmin:  "access-admin-secret",
			RefreshUser:  "refresh-user-secret",
			RefreshAdmin: "refresh-admin-secret",
		},
		Prefixes: config.JWTPrefixes{User: "Bearer", Admin: "Admin"},
	}
	keys, err := token.NewKeyTable(jwtCfg)
	require.NoError(t, err)
	issuer := token.NewIssuer(keys, jwtCfg).WithClock(now)

	engine := otp.NewEngine(&memoryChallenges{rows: make(map[challengeKey]types.Challenge)}, h.mailbox,
		config.OTPConfig{TTL: 10 * time.Minute}, bcrypt.MinCost, slog.Default(), metrics.Get()).
		WithClock(now)

	h.svc = NewAuthService(h.users, issuer, h.ledger, engine, h.google, bcrypt.MinCost, slog.Default(), metrics.Get()).
		WithClock(now)
	h.resolver = NewSessionResolver(issuer, h.users, h.ledger, slog.Default(), metrics.Get())
	return h
}

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

func (h *harness) code(t *testing.T, purpose types.ChallengePurpose, to string) string {
	t.Helper()
	code, ok := h.mailbox.LastCode(string(purpose), to)
	require.True(t, ok, "no %s code for %s", purpose, to)
	return code
}

func (h *harness) resolve(pair *types.TokenPair, kind types.TokenKind) (*types.Session, error) {
	raw := pair.AccessToken
	if kind == types.RefreshToken {
		raw = pair.RefreshToken
	}
	return h.resolver.Resolve(context.Background(), "Bearer "+raw, kind)
}

// signedIn registers, confirms and signs in a user.
func (h *harness) signedIn(t *testing.T, email string) (*types.User, *types.TokenPair) {
	t.Helper()
	ctx := context.Background()
	u, err := h.svc.SignUp(ctx, api.SignUpRequest{Email: email, Password: testPassword, ConfirmPassword: testPassword})
	require.NoError(t, err)
	require.NoError(t, h.svc.ConfirmEmail(ctx, email, h.code(t, types.PurposeConfirmEmail, email)))
	res, err := h.svc.SignIn(ctx, email, testPassword)
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	return u, res.Tokens
}

func TestSignUpConfirmSignIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.svc.SignUp(ctx, api.SignUpRequest{Email: "  Jane@Example.com ", Password: testPassword, ConfirmPassword: testPassword})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.False(t, u.Confirmed)
	assert.Equal(t, types.RoleUser, u.Role)
	assert.Equal(t, types.ProviderSystem, u.Provider)
	require.NotNil(t, u.PasswordHash)
	assert.NotEqual(t, testPassword, *u.PasswordHash)

	_, err = h.svc.SignIn(ctx, "jane@example.com", testPassword)
	assert.ErrorIs(t, err, api.ErrUserNotFound, "unconfirmed users cannot sign in")

	assert.ErrorIs(t, h.svc.ConfirmEmail(ctx, "jane@example.com", "000000"), api.ErrInvalidCode)

	code := h.code(t, types.PurposeConfirmEmail, "jane@example.com")
	require.NoError(t, h.svc.ConfirmEmail(ctx, "JANE@example.com", code))
	assert.ErrorIs(t, h.svc.ConfirmEmail(ctx, "jane@example.com", code), api.ErrUserNotFound)

	_, err = h.svc.SignIn(ctx, "jane@example.com", "WrongPass1")
	assert.ErrorIs(t, err, api.ErrInvalidCredential)

	res, err := h.svc.SignIn(ctx, "jane@example.com", testPassword)
	require.NoError(t, err)
	assert.False(t, res.TwoFactorRequired)
	require.NotNil(t, res.Tokens)

	s, err := h.resolve(res.Tokens, types.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, s.User.ID)
	assert.Equal(t, types.RoleUser, s.Role)
	assert.Equal(t, res.Tokens.JTI, s.Claims.ID)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := api.SignUpRequest{Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword}

	_, err := h.svc.SignUp(ctx, req)
	require.NoError(t, err)

	_, err = h.svc.SignUp(ctx, req)
	assert.ErrorIs(t, err, api.ErrDuplicateIdentity)

	req.Email = "A@X.COM"
	_, err = h.svc.SignUp(ctx, req)
	assert.ErrorIs(t, err, api.ErrDuplicateIdentity)
}

type brokenChallenger struct{}

func (brokenChallenger) Issue(context.Context, *types.User, types.ChallengePurpose, string) error {
	return errors.New("smtp down")
}

func (brokenChallenger) Verify(context.Context, uuid.UUID, types.ChallengePurpose, string) error {
	return api.ErrNoPendingChallenge
}

func TestSignUpRollsBackWhenCodeCannotBeSent(t *testing.T) {
	h := newHarness(t)
	h.svc.challenges = brokenChallenger{}

	_, err := h.svc.SignUp(context.Background(), api.SignUpRequest{Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword})
	require.Error(t, err)
	assert.Equal(t, 500, api.StatusFor(err))

	_, err = h.users.FindByEmail(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, api.ErrUserNotFound)
}

func TestResendConfirmation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.SignUp(ctx, api.SignUpRequest{Email: "a@x.com", Password: testPassword, ConfirmPassword: testPassword})
	require.NoError(t, err)
	first := h.code(t, types.PurposeConfirmEmail, "a@x.com")

	h.advance(time.Second)
	require.NoError(t, h.svc.ResendConfirmation(ctx, "a@x.com"))
	second := h.code(t, types.PurposeConfirmEmail, "a@x.com")

	if first != second {
		assert.ErrorIs(t, h.svc.ConfirmEmail(ctx, "a@x.com", first), api.ErrInvalidCode, "superseded code")
	}
	require.NoError(t, h.svc.ConfirmEmail(ctx, "a@x.com", second))
	assert.ErrorIs(t, h.svc.ResendConfirmation(ctx, "a@x.com"), api.ErrUserNotFound)
}

func TestTokenAcceptedIffIssuedAfterCredentialChange(t *testing.T) {
	h := newHarness(t)
	u, pair := h.signedIn(t, "a@x.com")

	stored, ok := h.users.Get(u.ID)
	require.True(t, ok)

	atIssue := h.clock
	stored.ChangeCredentials = &atIssue
	h.users.Put(stored)
	_, err := h.resolve(pair, types.AccessToken)
	assert.NoError(t, err, "iat equal to changeCredentials is accepted")

	later := h.clock.Add(token.Resolution)
	stored.ChangeCredentials = &later
	h.users.Put(stored)
	_, err = h.resolve(pair, types.AccessToken)
	assert.ErrorIs(t, err, api.ErrCredentialsChanged)
	_, err = h.resolve(pair, types.RefreshToken)
	assert.ErrorIs(t, err, api.ErrCredentialsChanged)
}

func TestLogoutAllWithinSameMillisecond(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.clock = time.Date(2025, 6, 1, 12, 0, 0, 100_000_000, time.UTC)
	_, pair := h.signedIn(t, "a@x.com")

	s, err := h.resolve(pair, types.AccessToken)
	require.NoError(t, err)
	h.advance(300 * time.Microsecond)
	require.NoError(t, h.svc.Logout(ctx, s, true))

	_, err = h.resolve(pair, types.AccessToken)
	assert.ErrorIs(t, err, api.ErrCredentialsChanged)
	_, err = h.resolve(pair, types.RefreshToken)
	assert.ErrorIs(t, err, api.ErrCredentialsChanged)

	h.advance(time.Microsecond)
	fresh, err := h.svc.SignIn(ctx, "a@x.com", testPassword)
	require.NoError(t, err)
	_, err = h.resolve(fresh.Tokens, types.AccessToken)
	assert.NoError(t, err)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("single device", func(t *testing.T) {
		h := newHarness(t)
		_, pair := h.signedIn(t, "a@x.com")
		other, err := h.svc.SignIn(ctx, "a@x.com", testPassword)
		require.NoError(t, err)

		s, err := h.resolve(pair, types.AccessToken)
		require.NoError(t, err)
		require.NoError(t, h.svc.Logout(ctx, s, false))
		require.NoError(t, h.svc.Logout(ctx, s, false), "double revoke is harmless")

		_, err = h.resolve(pair, types.AccessToken)
		assert.ErrorIs(t, err, api.ErrTokenRevoked)
		_, err = h.resolve(pair, types.RefreshToken)
		assert.ErrorIs(t, err, api.ErrTokenRevoked, "both halves share the jti")

		_, err = h.resolve(other.Tokens, types.AccessToken)
		assert.NoError(t, err)
	})

	t.Run("all devices", func(t *testing.T) {
		h := newHarness(t)
		_, pair := h.signedIn(t, "a@x.com")
		other, err := h.svc.SignIn(ctx, "a@x.com", testPassword)
		require.NoError(t, err)

		s, err := h.resolve(pair, types.AccessToken)
		require.NoError(t, err)
		h.advance(time.Second)
		require.NoError(t, h.svc.Logout(ctx, s, true))

		for _, p := range []*types.TokenPair{pair, other.Tokens} {
			_, err = h.resolve(p, types.AccessToken)
			assert.ErrorIs(t, err, api.ErrCredentialsChanged)
		}
		assert.Empty(t, h.ledger.rows, "no jti enumeration needed")

		fresh, err := h.svc.SignIn(ctx, "a@x.com", testPassword)
		require.NoError(t, err)
		_, err = h.resolve(fresh.Tokens, types.AccessToken)
		assert.NoError(t, err)
	})
}

func TestRefreshIsOneTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, pair := h.signedIn(t, "a@x.com")

	_, err := h.resolve(pair, types.RefreshToken)
	require.NoError(t, err)
	_, err = h.resolver.Resolve(ctx, "Bearer "+pair.AccessToken, types.RefreshToken)
	assert.ErrorIs(t, err, api.ErrInvalidToken, "access token is not a refresh token")

	s, err := h.resolve(pair, types.RefreshToken)
	require.NoError(t, err)
	next, err := h.svc.Refresh(ctx, s)
	require.NoError(t, err)
	assert.NotEqual(t, pair.JTI, next.JTI)

	_, err = h.resolve(pair, types.RefreshToken)
	assert.ErrorIs(t, err, api.ErrTokenRevoked)
	_, err = h.svc.Refresh(ctx, s)
	assert.ErrorIs(t, err, api.ErrTokenRevoked, "a racing second refresh loses")

	_, err = h.resolve(next, types.RefreshToken)
	assert.NoError(t, err)
}

func TestTwoFactorFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, pair := h.signedIn(t, "a@x.com")

	s, err := h.resolve(pair, types.AccessToken)
	require.NoError(t, err)
	require.NoError(t, h.svc.EnableTwoFactor(ctx, s))
	assert.ErrorIs(t, h.svc.ConfirmTwoFactor(ctx, s, "000000"), api.ErrInvalidCode)

	h.advance(time.Second)
	require.NoError(t, h.svc.ConfirmTwoFactor(ctx, s, h.code(t, types.PurposeTwoFactorSetup, "a@x.com")))
	_, err = h.resolve(pair, types.AccessToken)
	assert.ErrorIs(t, err, api.ErrCredentialsChanged)

	res, err := h.svc.SignIn(ctx, "a@x.com", testPassword)
	require.NoError(t, err)
	assert.True(t, res.TwoFactorRequired)
	assert.Nil(t, res.Tokens)

	code := h.code(t, types.PurposeTwoFactorLogin, "a@x.com")
	tokens, err := h.svc.ConfirmTwoFactorLogin(ctx, "a@x.com", code)
	require.NoError(t, err)
	_, err = h.resolve(tokens, types.AccessToken)
	require.NoError(t, err)

	_, err = h.svc.ConfirmTwoFactorLogin(ctx, "a@x.com", code)
	assert.ErrorIs(t, err, api.ErrNoPendingChallenge, "login code is single-use")

	t.Run("expired login code", func(t *testing.T) {
		_, err := h.svc.SignIn(ctx, "a@x.com", testPassword)
		require.NoError(t, err)
		code := h.code(t, types.PurposeTwoFactorLogin, "a@x.com")
		h.advance(11 * time.Minute)
		_, err = h.svc.ConfirmTwoFactorLogin(ctx, "a@x.com", code)
		assert.ErrorIs(t, err, api.ErrChallengeExpired)
	})

	t.Run("disable", func(t *testing.T) {
		s, err := h.resolve(tokens, types.AccessToken)
		require.NoError(t, err)
		assert.ErrorIs(t, h.svc.DisableTwoFactor(ctx, s, "WrongPass1"), api.ErrInvalidCredential)

		h.advance(time.Second)
		require.NoError(t, h.svc.DisableTwoFactor(ctx, s, testPassword))
		res, err := h.svc.SignIn(ctx, "a@x.com", testPassword)
		require.NoError(t, err)
		assert.False(t, res.TwoFactorRequired)
	})
}

func TestPasswordReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, pair := h.signedIn(t, "a@x.com")

	assert.ErrorIs(t, h.svc.ResetPassword(ctx, "a@x.com", "123456", "N3wStr0ngPass"), api.ErrNoPendingChallenge)
	assert.ErrorIs(t, h.svc.ForgetPassword(ctx, "nobody@x.com"), api.ErrUserNotFound)

	require.NoError(t, h.svc.ForgetPassword(ctx, "a@x.com"))
	h.advance(time.Second)
	require.NoError(t, h.svc.ResetPassword(ctx, "a@x.com", h.code(t, types.PurposeResetPassword, "a@x.com"), "N3wStr0ngPass"))

	_, err := h.resolve(pair, types.AccessToken)
	assert.ErrorIs(t, err, api.ErrCredentialsChanged)
	_, err = h.svc.SignIn(ctx, "a@x.com", testPassword)
	assert.ErrorIs(t, err, api.ErrInvalidCredential)
	_, err = h.svc.SignIn(ctx, "a@x.com", "N3wStr0ngPass")
	assert.NoError(t, err)
}

func TestUpdatePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, pair := h.signedIn(t, "a@x.com")

	s, err := h.resolve(pair, types.AccessToken)
	require.NoError(t, err)
	assert.ErrorIs(t, h.svc.UpdatePassword(ctx, s, "WrongPass1", "N3wStr0ngPass"), api.ErrInvalidCredential)

	h.advance(time.Second)
	require.NoError(t, h.svc.UpdatePassword(ctx, s, testPassword, "N3wStr0ngPass"))

	jti, err := uuid.Parse(pair.JTI)
	require.NoError(t, err)
	assert.Contains(t, h.ledger.rows, jti)
	_, err = h.resolve(pair, types.AccessToken)
	assert.Error(t, err)

	_, err = h.svc.SignIn(ctx, "a@x.com", "N3wStr0ngPass")
	assert.NoError(t, err)
}

func TestEmailChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signedIn(t, "taken@x.com")
	u, pair := h.signedIn(t, "a@x.com")

	s, err := h.resolve(pair, types.AccessToken)
	require.NoError(t, err)

	assert.ErrorIs(t, h.svc.UpdateEmail(ctx, s, "WrongPass1", "b@x.com"), api.ErrInvalidCredential)
	assert.ErrorIs(t, h.svc.UpdateEmail(ctx, s, testPassword, "Taken@x.com"), api.ErrDuplicateIdentity)
	_, err = h.svc.ConfirmNewEmail(ctx, s, "123456")
	assert.ErrorIs(t, err, api.ErrNoPendingChallenge)

	require.NoError(t, h.svc.UpdateEmail(ctx, s, testPassword, "B@x.com"))
	code := h.code(t, types.PurposeChangeEmail, "b@x.com")

	// The session must be re-read to see the pending address.
	s, err = h.resolve(pair, types.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, s.User.NewEmail)

	h.advance(time.Second)
	updated, err := h.svc.ConfirmNewEmail(ctx, s, code)
	require.NoError(t, err)
	assert.Equal(t, u.ID, updated.ID)
	assert.Equal(t, "b@x.com", updated.Email)
	assert.Nil(t, updated.NewEmail)
	assert.Nil(t, updated.NewEmailRequestedAt)

	_, err = h.resolve(pair, types.AccessToken)
	assert.Error(t, err)

	_, err = h.svc.SignIn(ctx, "a@x.com", testPassword)
	assert.ErrorIs(t, err, api.ErrUserNotFound)
	_, err = h.svc.SignIn(ctx, "b@x.com", testPassword)
	assert.NoError(t, err)
}

func TestSignInWithGoogle(t *testing.T) {
	ctx := context.Background()

	t.Run("first sign-in creates a confirmed google user", func(t *testing.T) {
		h := newHarness(t)
		h.google.On("Verify", mock.Anything, "tok").Return(&oauth.Identity{Email: "g@gmail.com", EmailVerified: true, Name: "Gina"}, nil).Twice()

		pair, err := h.svc.SignInWithGoogle(ctx, "tok")
		require.NoError(t, err)
		s, err := h.resolve(pair, types.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, types.ProviderGoogle, s.User.Provider)
		assert.True(t, s.User.Confirmed)
		require.NotNil(t, s.User.FirstName)
		assert.Equal(t, "Gina", *s.User.FirstName)

		again, err := h.svc.SignInWithGoogle(ctx, "tok")
		require.NoError(t, err)
		s2, err := h.resolve(again, types.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, s.User.ID, s2.User.ID)

		_, err = h.svc.SignIn(ctx, "g@gmail.com", testPassword)
		assert.ErrorIs(t, err, api.ErrUserNotFound, "google accounts have no password sign-in")
		h.google.AssertExpectations(t)
	})

	t.Run("password account is refused", func(t *testing.T) {
		h := newHarness(t)
		h.signedIn(t, "a@gmail.com")
		h.google.On("Verify", mock.Anything, "tok").Return(&oauth.Identity{Email: "a@gmail.com", EmailVerified: true}, nil).Once()

		_, err := h.svc.SignInWithGoogle(ctx, "tok")
		assert.ErrorIs(t, err, api.ErrInvalidCredential)
	})

	t.Run("unverified email is refused", func(t *testing.T) {
		h := newHarness(t)
		h.google.On("Verify", mock.Anything, "tok").Return(&oauth.Identity{Email: "g@gmail.com"}, nil).Once()

		_, err := h.svc.SignInWithGoogle(ctx, "tok")
		assert.ErrorIs(t, err, api.ErrInvalidCredential)
		assert.ErrorIs(t, err, oauth.ErrUnverifiedEmail)
		_, err = h.users.FindByEmail(ctx, "g@gmail.com")
		assert.ErrorIs(t, err, api.ErrUserNotFound)
	})

	t.Run("frozen account cannot be re-registered", func(t *testing.T) {
		h := newHarness(t)
		h.google.On("Verify", mock.Anything, "tok").Return(&oauth.Identity{Email: "g@gmail.com", EmailVerified: true}, nil).Twice()

		_, err := h.svc.SignInWithGoogle(ctx, "tok")
		require.NoError(t, err)
		u, err := h.users.FindByEmail(ctx, "g@gmail.com")
		require.NoError(t, err)

		frozenAt := h.clock
		u.DeletedAt = &frozenAt
		u.DeletedBy = &u.ID
		h.users.Put(u)

		_, err = h.svc.SignInWithGoogle(ctx, "tok")
		assert.ErrorIs(t, err, api.ErrDuplicateIdentity)
		_, err = h.svc.SignUp(ctx, api.SignUpRequest{Email: "G@gmail.com", Password: testPassword, ConfirmPassword: testPassword})
		assert.ErrorIs(t, err, api.ErrDuplicateIdentity)

		_, err = h.users.FindByEmail(ctx, "g@gmail.com")
		assert.ErrorIs(t, err, api.ErrUserNotFound, "no second live account")
		h.google.AssertExpectations(t)
	})

	t.Run("provider rejects token", func(t *testing.T) {
		h := newHarness(t)
		h.google.On("Verify", mock.Anything, "bad").Return(nil, api.ErrInvalidCredential).Once()

		_, err := h.svc.SignInWithGoogle(ctx, "bad")
		assert.ErrorIs(t, err, api.ErrInvalidCredential)
	})
}
