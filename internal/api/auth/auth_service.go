package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-identity-authority/app/observability/metrics"
	"github.com/FACorreiaa/go-identity-authority/internal/api"
	"github.com/FACorreiaa/go-identity-authority/internal/api/oauth"
	"github.com/FACorreiaa/go-identity-authority/internal/api/revocation"
	"github.com/FACorreiaa/go-identity-authority/internal/api/token"
	"github.com/FACorreiaa/go-identity-authority/internal/api/user"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService sequences sign-in and every credential change together with
// its side effects on tokens.
type AuthService interface {
	SignUp(ctx context.Context, req api.SignUpRequest) (*types.User, error)
	ConfirmEmail(ctx context.Context, email, code string) error
	ResendConfirmation(ctx context.Context, email string) error
	SignIn(ctx context.Context, email, password string) (*types.SignInResult, error)
	ConfirmTwoFactorLogin(ctx context.Context, email, code string) (*types.TokenPair, error)
	SignInWithGoogle(ctx context.Context, accessToken string) (*types.TokenPair, error)

	// Logout revokes the session's jti, or with all=true bumps changeCredentials.
	Logout(ctx context.Context, s *types.Session, all bool) error
	// Refresh issues a new pair and revokes the jti that authorized it.
	Refresh(ctx context.Context, s *types.Session) (*types.TokenPair, error)

	ForgetPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, password string) error
	UpdatePassword(ctx context.Context, s *types.Session, oldPassword, newPassword string) error
	UpdateEmail(ctx context.Context, s *types.Session, password, newEmail string) error
	ConfirmNewEmail(ctx context.Context, s *types.Session, code string) (*types.User, error)

	EnableTwoFactor(ctx context.Context, s *types.Session) error
	ConfirmTwoFactor(ctx context.Context, s *types.Session, code string) error
	DisableTwoFactor(ctx context.Context, s *types.Session, password string) error
}

// Challenger issues and verifies one-time codes. *otp.Engine implements it.
type Challenger interface {
	Issue(ctx context.Context, u *types.User, purpose types.ChallengePurpose, recipient string) error
	Verify(ctx context.Context, userID uuid.UUID, purpose types.ChallengePurpose, code string) error
}

type AuthServiceImpl struct {
	logger     *slog.Logger
	users      user.UserRepo
	issuer     *token.Issuer
	ledger     revocation.Ledger
	challenges Challenger
	google     oauth.IdentityVerifier
	bcryptCost int
	now        func() time.Time
	metrics    *metrics.AppMetrics
}

func NewAuthService(
	users user.UserRepo,
	issuer *token.Issuer,
	ledger revocation.Ledger,
	challenges Challenger,
	google oauth.IdentityVerifier,
	bcryptCost int,
	logger *slog.Logger,
	m *metrics.AppMetrics,
) *AuthServiceImpl {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthServiceImpl{
		logger:     logger,
		users:      users,
		issuer:     issuer,
		ledger:     ledger,
		challenges: challenges,
		google:     google,
		bcryptCost: bcryptCost,
		now:        token.Now,
		metrics:    m,
	}
}

// WithClock replaces the changeCredentials clock. Tests only.
func (s *AuthServiceImpl) WithClock(now func() time.Time) *AuthServiceImpl {
	s.now = now
	return s
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("AuthService").Start(ctx, name, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error, msg string) error {
	if api.StatusFor(err) == http.StatusInternalServerError {
		span.RecordError(err)
	}
	span.SetStatus(codes.Error, msg)
	return err
}

func (s *AuthServiceImpl) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(h), nil
}

func checkPassword(u *types.User, password string) error {
	if u.PasswordHash == nil || bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)) != nil {
		return api.ErrInvalidCredential
	}
	return nil
}

func (s *AuthServiceImpl) issuePair(ctx context.Context, u *types.User) (*types.TokenPair, error) {
	pair, err := s.issuer.IssuePair(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, fmt.Errorf("error issuing tokens: %w", err)
	}
	s.metrics.TokensIssuedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("role", string(u.Role))))
	return pair, nil
}

// revoke writes the session's jti to the ledger. It reports whether this call
// was the first to revoke it.
func (s *AuthServiceImpl) revoke(ctx context.Context, sess *types.Session, reason string) (bool, error) {
	jti, err := token.JTI(sess.Claims)
	if err != nil {
		return false, fmt.Errorf("%w: bad jti", api.ErrInvalidToken)
	}
	first, err := s.ledger.Revoke(ctx, jti, sess.User.ID, token.ExpiresAt(sess.Claims))
	if err != nil {
		return false, err
	}
	if first {
		s.metrics.TokensRevokedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
	return first, nil
}

func (s *AuthServiceImpl) bumped(ctx context.Context, reason string) {
	s.metrics.CredentialBumps.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func confirmedSystemUser(email string) user.Filter {
	confirmed := true
	provider := types.ProviderSystem
	return user.Filter{Email: &email, Confirmed: &confirmed, Provider: &provider}
}

func unconfirmedUser(email string) user.Filter {
	confirmed := false
	return user.Filter{Email: &email, Confirmed: &confirmed}
}

func (s *AuthServiceImpl) SignUp(ctx context.Context, req api.SignUpRequest) (*types.User, error) {
	email := api.NormalizeEmail(req.Email)
	ctx, span := startSpan(ctx, "SignUp", attribute.String("user.email", email))
	defer span.End()

	l := s.logger.With(slog.String("method", "SignUp"), slog.String("email", email))
	l.DebugContext(ctx, "Registering user")

	// Fast path only; the unique index decides races. Frozen accounts still
	// own their email.
	if _, err := s.users.FindByEmail(ctx, email, user.WithDeleted()); err == nil {
		return nil, fail(span, api.ErrDuplicateIdentity, "email taken")
	} else if !errors.Is(err, api.ErrUserNotFound) {
		return nil, fail(span, err, "lookup failed")
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, fail(span, err, "hash failed")
	}

	created, err := s.users.Create(ctx, &types.User{
		Email:        email,
		PasswordHash: &hash,
		Role:         types.RoleUser,
		Provider:     types.ProviderSystem,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Age:          req.Age,
		Phone:        req.Phone,
		Address:      req.Address,
		Gender:       req.Gender,
	})
	if err != nil {
		return nil, fail(span, err, "create failed")
	}

	if err := s.challenges.Issue(ctx, created, types.PurposeConfirmEmail, ""); err != nil {
		l.ErrorContext(ctx, "Confirmation code not delivered, rolling back sign-up", slog.Any("error", err))
		if _, delErr := s.users.DeleteOne(ctx, user.ByID(created.ID), user.WithDeleted()); delErr != nil {
			l.ErrorContext(ctx, "Failed to roll back sign-up", slog.Any("error", delErr))
		}
		return nil, fail(span, fmt.Errorf("error sending confirmation code: %w", err), "otp failed")
	}

	s.metrics.SignUpsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", string(types.ProviderSystem))))
	l.InfoContext(ctx, "User registered", slog.String("userID", created.ID.String()))
	span.SetStatus(codes.Ok, "")
	return created, nil
}

func (s *AuthServiceImpl) ConfirmEmail(ctx context.Context, email, code string) error {
	email = api.NormalizeEmail(email)
	ctx, span := startSpan(ctx, "ConfirmEmail", attribute.String("user.email", email))
	defer span.End()

	u, err := s.users.FindOne(ctx, unconfirmedUser(email))
	if err != nil {
		return fail(span, err, "no unconfirmed user")
	}
	if err := s.challenges.Verify(ctx, u.ID, types.PurposeConfirmEmail, code); err != nil {
		return fail(span, err, "verify failed")
	}

	confirmed := false
	ok, err := s.users.UpdateOne(ctx,
		user.Filter{ID: &u.ID, Confirmed: &confirmed},
		user.NewUpdate().Set(user.ColConfirmed, true))
	if err != nil {
		return fail(span, err, "update failed")
	}
	if !ok {
		return fail(span, api.ErrUserNotFound, "user changed")
	}

	s.logger.InfoContext(ctx, "Email confirmed", slog.String("userID", u.ID.String()))
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *AuthServiceImpl) ResendConfirmation(ctx context.Context, email string) error {
	email = api.NormalizeEmail(email)
	ctx, span := startSpan(ctx, "ResendConfirmation", attribute.String("user.email", email))
	defer span.End()

	u, err := s.users.FindOne(ctx, unconfirmedUser(email))
	if err != nil {
		return fail(span, err, "no unconfirmed user")
	}
	if err := s.challenges.Issue(ctx, u, types.PurposeConfirmEmail, ""); err != nil {
		return fail(span, err, "issue failed")
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *AuthServiceImpl) SignIn(ctx context.Context, email, password string) (*types.SignInResult, error) {
	email = api.NormalizeEmail(email)
	ctx, span := startSpan(ctx, "SignIn", attribute.String("user.email", email))
	defer span.End()

	u, err := s.users.FindOne(ctx, confirmedSystemUser(email))
	if err != nil {
		return nil, fail(span, err, "no confirmed user")
	}
	if err := checkPassword(u, password); err != nil {
		s.logger.WarnContext(ctx, "Sign-in with wrong password", slog.String("userID", u.ID.String()))
		return nil, fail(span, err, "bad password")
	}

	if u.TwoFactorEnabled {
		if err := s.challenges.Issue(ctx, u, types.PurposeTwoFactorLogin, ""); err != nil {
			return nil, fail(span, err, "issue failed")
		}
		span.SetAttributes(attribute.Bool("auth.two_factor_pending", true))
		span.SetStatus(codes.Ok, "")
		return &types.SignInResult{TwoFactorRequired: true}, nil
	}

	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, fail(span, err, "issue failed")
	}
	span.SetStatus(codes.Ok, "")
	return &types.SignInResult{Tokens: pair}, nil
}

func (s *AuthServiceImpl) ConfirmTwoFactorLogin(ctx context.Context, email, code string) (*types.TokenPair, error) {
	email = api.NormalizeEmail(email)
	ctx, span := startSpan(ctx, "ConfirmTwoFactorLogin", attribute.String("user.email", email))
	defer span.End()

	f := confirmedSystemUser(email)
	f.TwoFactorOnly = true
	u, err := s.users.FindOne(ctx, f)
	if err != nil {
		return nil, fail(span, err, "no two-factor user")
	}
	if err := s.challenges.Verify(ctx, u.ID, types.PurposeTwoFactorLogin, code); err != nil {
		return nil, fail(span, err, "verify failed")
	}

	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, fail(span, err, "issue failed")
	}
	span.SetStatus(codes.Ok, "")
	return pair, nil
}

func (s *AuthServiceImpl) SignInWithGoogle(ctx context.Context, accessToken string) (*types.TokenPair, error) {
	ctx, span := startSpan(ctx, "SignInWithGoogle")
	defer span.End()

	l := s.logger.With(slog.String("method", "SignInWithGoogle"))

	id, err := s.google.Verify(ctx, accessToken)
	if err != nil {
		return nil, fail(span, err, "verify failed")
	}
	if !id.EmailVerified {
		return nil, fail(span, fmt.Errorf("%w: %w", api.ErrInvalidCredential, oauth.ErrUnverifiedEmail), "unverified email")
	}

	// Frozen rows keep their email; they are looked up too so a frozen user
	// cannot mint a second account through Google.
	u, err := s.users.FindByEmail(ctx, id.Email, user.WithDeleted())
	if errors.Is(err, api.ErrUserNotFound) {
		u, err = s.createGoogleUser(ctx, id)
		if errors.Is(err, api.ErrDuplicateIdentity) {
			// Lost a race with a concurrent first sign-in.
			u, err = s.users.FindByEmail(ctx, id.Email, user.WithDeleted())
		}
	}
	if err != nil {
		return nil, fail(span, err, "lookup failed")
	}
	if u.DeletedAt != nil {
		l.WarnContext(ctx, "Google sign-in for a frozen account", slog.String("userID", u.ID.String()))
		return nil, fail(span, fmt.Errorf("%w: account is frozen", api.ErrDuplicateIdentity), "frozen account")
	}

	if u.Provider == types.ProviderSystem {
		l.WarnContext(ctx, "Google sign-in for a password account", slog.String("userID", u.ID.String()))
		return nil, fail(span, fmt.Errorf("%w: account signs in with a password", api.ErrInvalidCredential), "system account")
	}

	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, fail(span, err, "issue failed")
	}
	span.SetStatus(codes.Ok, "")
	return pair, nil
}

// createGoogleUser stores a confirmed account with a random password hash
// that no one knows.
func (s *AuthServiceImpl) createGoogleUser(ctx context.Context, id *oauth.Identity) (*types.User, error) {
	hash, err := s.hash(uuid.NewString())
	if err != nil {
		return nil, err
	}
	u := &types.User{
		Email:        id.Email,
		PasswordHash: &hash,
		Role:         types.RoleUser,
		Provider:     types.ProviderGoogle,
		Confirmed:    true,
	}
	if id.Name != "" {
		name := id.Name
		u.FirstName = &name
	}

	created, err := s.users.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	s.metrics.SignUpsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", string(types.ProviderGoogle))))
	s.logger.InfoContext(ctx, "Google user created", slog.String("userID", created.ID.String()))
	return created, nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context, sess *types.Session, all bool) error {
	ctx, span := startSpan(ctx, "Logout",
		attribute.String("user.id", sess.User.ID.String()),
		attribute.Bool("auth.logout_all", all))
	defer span.End()

	if all {
		ok, err := s.users.UpdateOne(ctx, user.ByID(sess.User.ID), user.NewUpdate().BumpCredentials(s.now()))
		if err != nil {
			return fail(span, err, "bump failed")
		}
		if !ok {
			return fail(span, api.ErrUserNotFound, "user gone")
		}
		s.bumped(ctx, "logout_all")
		span.SetStatus(codes.Ok, "")
		return nil
	}

	if _, err := s.revoke(ctx, sess, "logout"); err != nil {
		return fail(span, err, "revoke failed")
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *AuthServiceImpl) Refresh(ctx context.Context, sess *types.Session) (*types.TokenPair, error) {
	ctx, span := startSpan(ctx, "Refresh", attribute.String("user.id", sess.User.ID.String()))
	defer span.End()

	// Revoke first so two concurrent refreshes with one token cannot both win.
	first, err := s.revoke(ctx, sess, "refresh")
	if err != nil {
		return nil, fail(span, err, "revoke failed")
	}
	if !first {
		return nil, fail(span, api.ErrTokenRevoked, "already refreshed")
	}

	pair, err := s.issuePair(ctx, sess.User)
	if err != nil {
		return nil, fail(span, err, "issue failed")
	}
	span.SetStatus(codes.Ok, "")
	return pair, nil
}

func (s *AuthServiceImpl) ForgetPassword(ctx context.Context, email string) error {
	email = api.NormalizeEmail(email)
	ctx, span := startSpan(ctx, "ForgetPassword", attribute.String("user.email", email))
	defer span.End()

	u, err := s.users.FindOne(ctx, confirmedSystemUser(email))
	if err != nil {
		return fail(span, err, "no confirmed user")
	}
	if err := s.challenges.Issue(ctx, u, types.PurposeResetPassword, ""); err != nil {
		return fail(span, err, "issue failed")
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *AuthServiceImpl) ResetPassword(ctx context.Context, email, code, password string) error {
	email = api.NormalizeEmail(email)
	ctx, span := startSpan(ctx, "ResetPassword", attribute.String("user.email", email))
	defer span.End()

	u, err := s.users.FindOne(ctx, confirmedSystemUser(email))
	if err != nil {
		return fail(span, err, "no confirmed user")
	}
	if err := s.challenges.Verify(ctx, u.ID, types.PurposeResetPassword, code); err != nil {
		return fail(span, err, "verify failed")
	}

	hash, err := s.hash(password)
	if err != nil {
		return fail(span, err, "hash failed")
	}
	ok, err := s.users.UpdateOne(ctx, user.ByID(u.ID),
		user.NewUpdate().Set(user.ColPasswordHash, hash).BumpCredentials(s.now()))
	if err != nil {
		return fail(span, err, "update failed")
	}
	if !ok {
		return fail(span, api.ErrUserNotFound, "user gone")
	}

	s.bumped(ctx, "reset_password")
	s.logger.InfoContext(ctx, "Password reset", slog.String("userID", u.ID.String()))
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *AuthServiceImpl) UpdatePassword(ctx context.Context, sess *types.Session, oldPassword, newPassword string) error {
	ctx, span := startSpan(ctx, "UpdatePassword", attribute.String("user.id", sess.User.ID.String()))
	defer span.End()

	if err := checkPassword(sess.User, oldPassword); err != nil {
		return fail(span, err, "bad password")
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return fail(span, err, "hash failed")
	}

	ok, err := s.users.UpdateOne(ctx, user.ByID(sess.User.ID),
		user.NewUpdate().Set(user.ColPasswordHash, hash).BumpCredentials(s.now()))
	if err != nil {
		return fail(span, err, "update failed")
	}
	if !ok {
		return fail(span, api.ErrUserNotFound, "user gone")
	}
	s.bumped(ctx, "update_password")

	if _, err := s.revoke(ctx, sess, "update_password"); err != nil {
		return fail(span, err, "revoke failed")
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *AuthServiceImpl) UpdateEmail(ctx context.Context, sess *types.Session, password, newEmail string) error {
	newEmail = api.NormalizeEmail(newEmail)
	ctx, span := startSpan(ctx, "UpdateEmail", attribute.String("user.id", sess.User.ID.String()))
	defer span.End()

	if err := checkPassword(sess.User, password); err != nil {
		return fail(span, err, "bad password")
	}
	if _, err := s.users.FindByEmail(ctx, newEmail, user.WithDeleted()); err == nil {
		return fail(span, api.ErrDuplicateIdentity, "email taken")
	} else if !errors.Is(err, api.ErrUserNotFound) {
		return fail(span, err, "lookup failed")
	}

	// The pending address is recorded before the code goes out so a delivered
	// code always has something to confirm.
	ok, err := s.users.UpdateOne(ctx, user.ByID(sess.User.ID), user.NewUpdate().
		Set(user.ColNewEmail, newEmail).
		Set(user.ColNewEmailRequestedAt, time.Now()))
	if err != nil {
		return fail(span, err, "update failed")
	}
	if !ok {
		return fail(span, api.ErrUserNotFound, "user gone")
	}

	if err := s.challenges.Issue(ctx, sess.User, types.PurposeChangeEmail, newEmail); err != nil {
		return fail(span, err, "issue failed")
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *AuthServiceImpl) ConfirmNewEmail(ctx context.Context, sess *types.Session, code string) (*types.User, error) {
	ctx, span := startSpan(ctx, "ConfirmNewEmail", attribute.String("user.id", sess.User.ID.String()))
	defer span.End()

	if sess.User.NewEmail == nil {
		return nil, fail(span, api.ErrNoPendingChallenge, "no pending email")
	}
	pending := *sess.User.NewEmail

	if err := s.challenges.Verify(ctx, sess.User.ID, types.PurposeChangeEmail, code); err != nil {
		return nil, fail(span, err, "verify failed")
	}

	updated, err := s.users.FindOneAndUpdate(ctx,
		user.Filter{ID: &sess.User.ID, PendingEmail: &pending},
		user.NewUpdate().
			Set(user.ColEmail, pending).
			Unset(user.ColNewEmail).
			Unset(user.ColNewEmailRequestedAt).
			BumpCredentials(s.now()))
	if err != nil {
		return nil, fail(span, err, "swap failed")
	}
	s.bumped(ctx, "change_email")

	if _, err := s.revoke(ctx, sess, "change_email"); err != nil {
		return nil, fail(span, err, "revoke failed")
	}

	s.logger.InfoContext(ctx, "Email changed", slog.String("userID", updated.ID.String()))
	span.SetStatus(codes.Ok, "")
	return updated, nil
}

func (s *AuthServiceImpl) EnableTwoFactor(ctx context.Context, sess *types.Session) error {
	ctx, span := startSpan(ctx, "EnableTwoFactor", attribute.String("user.id", sess.User.ID.String()))
	defer span.End()

	if sess.User.TwoFactorEnabled {
		return fail(span, fmt.Errorf("%w: two-factor authentication is already enabled", api.ErrValidation), "already enabled")
	}
	if err := s.challenges.Issue(ctx, sess.User, types.PurposeTwoFactorSetup, ""); err != nil {
		return fail(span, err, "issue failed")
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *AuthServiceImpl) ConfirmTwoFactor(ctx context.Context, sess *types.Session, code string) error {
	ctx, span := startSpan(ctx, "ConfirmTwoFactor", attribute.String("user.id", sess.User.ID.String()))
	defer span.End()

	if err := s.challenges.Verify(ctx, sess.User.ID, types.PurposeTwoFactorSetup, code); err != nil {
		return fail(span, err, "verify failed")
	}
	ok, err := s.users.UpdateOne(ctx, user.ByID(sess.User.ID),
		user.NewUpdate().Set(user.ColTwoFactorEnabled, true).BumpCredentials(s.now()))
	if err != nil {
		return fail(span, err, "update failed")
	}
	if !ok {
		return fail(span, api.ErrUserNotFound, "user gone")
	}

	s.bumped(ctx, "enable_2fa")
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *AuthServiceImpl) DisableTwoFactor(ctx context.Context, sess *types.Session, password string) error {
	ctx, span := startSpan(ctx, "DisableTwoFactor", attribute.String("user.id", sess.User.ID.String()))
	defer span.End()

	if !sess.User.TwoFactorEnabled {
		return fail(span, fmt.Errorf("%w: two-factor authentication is not enabled", api.ErrValidation), "not enabled")
	}
	if err := checkPassword(sess.User, password); err != nil {
		return fail(span, err, "bad password")
	}

	f := user.ByID(sess.User.ID)
	f.TwoFactorOnly = true
	ok, err := s.users.UpdateOne(ctx, f,
		user.NewUpdate().Set(user.ColTwoFactorEnabled, false).BumpCredentials(s.now()))
	if err != nil {
		return fail(span, err, "update failed")
	}
	if !ok {
		return fail(span, api.ErrUserNotFound, "user changed")
	}

	s.bumped(ctx, "disable_2fa")
	span.SetStatus(codes.Ok, "")
	return nil
}
