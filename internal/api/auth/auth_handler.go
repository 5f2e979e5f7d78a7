package auth

import (
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-identity-authority/internal/api"
	"github.com/FACorreiaa/go-identity-authority/internal/api/session"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

type AuthHandler struct {
	service AuthService
	logger  *slog.Logger
}

func NewAuthHandler(service AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		panic("PANIC: Attempting to create AuthHandler with nil logger!")
	}
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

func (h *AuthHandler) start(r *http.Request, name string) (*http.Request, trace.Span, *slog.Logger) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), name, trace.WithAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("http.route", r.URL.Path),
	))
	return r.WithContext(ctx), span, h.logger.With(slog.String("HandlerImpl", name))
}

// currentSession returns the session set by session.Authenticate.
func currentSession(w http.ResponseWriter, r *http.Request, l *slog.Logger) (*types.Session, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		l.ErrorContext(r.Context(), "Session not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return s, true
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, l *slog.Logger, span trace.Span, msg string, err error) {
	span.RecordError(err)
	if api.StatusFor(err) >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), msg, slog.Any("error", err))
	} else {
		l.WarnContext(r.Context(), msg, slog.String("reason", err.Error()))
	}
	api.HandleError(w, r, err)
}

func ok(w http.ResponseWriter, r *http.Request, message string) {
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{Success: true, Message: message})
}

// SignUp godoc
// @Summary      Register a new user
// @Description  Creates an unconfirmed account and emails a confirmation code.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.SignUpRequest true "Registration data"
// @Success      201 {object} types.User "Created user"
// @Failure      400 {object} api.Response "Invalid input"
// @Failure      409 {object} api.Response "Email already registered"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Router       /auth/sign-up [post]
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "SignUp")
	defer span.End()

	var req api.SignUpRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Invalid sign-up request", err)
		return
	}

	u, err := h.service.SignUp(r.Context(), req)
	if err != nil {
		h.fail(w, r, l, span, "Sign-up failed", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, u)
}

// ConfirmEmail godoc
// @Summary      Confirm email address
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.CodeRequest true "Email and code"
// @Success      200 {object} api.Response
// @Failure      400 {object} api.Response "Invalid, expired or missing code"
// @Failure      404 {object} api.Response "No unconfirmed user"
// @Router       /auth/confirm-email [post]
func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "ConfirmEmail")
	defer span.End()

	var req api.CodeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Invalid confirm-email request", err)
		return
	}
	if err := h.service.ConfirmEmail(r.Context(), req.Email, req.Code); err != nil {
		h.fail(w, r, l, span, "Email confirmation failed", err)
		return
	}
	ok(w, r, "Email confirmed")
}

// ResendConfirmation godoc
// @Summary      Resend the email confirmation code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.EmailRequest true "Email"
// @Success      200 {object} api.Response
// @Failure      404 {object} api.Response "No unconfirmed user"
// @Router       /auth/resend-confirmation [post]
func (h *AuthHandler) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "ResendConfirmation")
	defer span.End()

	var req api.EmailRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Invalid resend request", err)
		return
	}
	if err := h.service.ResendConfirmation(r.Context(), req.Email); err != nil {
		h.fail(w, r, l, span, "Resend confirmation failed", err)
		return
	}
	ok(w, r, "Confirmation code sent")
}

// SignIn godoc
// @Summary      Sign in with email and password
// @Description  Returns a token pair, or twoFactorRequired=true when a login code was emailed instead.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.SignInRequest true "Credentials"
// @Success      200 {object} types.SignInResult
// @Failure      400 {object} api.Response "Invalid password"
// @Failure      404 {object} api.Response "Unknown or unconfirmed user"
// @Router       /auth/sign-in [post]
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "SignIn")
	defer span.End()

	var req api.SignInRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Invalid sign-in request", err)
		return
	}
	res, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, l, span, "Sign-in failed", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, res)
}

// ConfirmTwoFactorLogin godoc
// @Summary      Complete a two-factor sign-in
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.CodeRequest true "Email and login code"
// @Success      200 {object} types.TokenPair
// @Failure      400 {object} api.Response "Invalid, expired or missing code"
// @Router       /auth/confirm-2fa-login [post]
func (h *AuthHandler) ConfirmTwoFactorLogin(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "ConfirmTwoFactorLogin")
	defer span.End()

	var req api.CodeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Invalid two-factor login request", err)
		return
	}
	pair, err := h.service.ConfirmTwoFactorLogin(r.Context(), req.Email, req.Code)
	if err != nil {
		h.fail(w, r, l, span, "Two-factor login failed", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, pair)
}

// SignInWithGoogle godoc
// @Summary      Sign in with a Google access token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.GoogleSignInRequest true "Google OAuth access token"
// @Success      200 {object} types.TokenPair
// @Failure      400 {object} api.Response "Token rejected or password account"
// @Router       /auth/google [post]
func (h *AuthHandler) SignInWithGoogle(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "SignInWithGoogle")
	defer span.End()

	var req api.GoogleSignInRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Invalid google sign-in request", err)
		return
	}
	pair, err := h.service.SignInWithGoogle(r.Context(), req.AccessToken)
	if err != nil {
		h.fail(w, r, l, span, "Google sign-in failed", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, pair)
}

// ForgetPassword godoc
// @Summary      Request a password reset code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.EmailRequest true "Email"
// @Success      200 {object} api.Response
// @Failure      404 {object} api.Response "Unknown or unconfirmed user"
// @Router       /auth/forget-password [post]
func (h *AuthHandler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "ForgetPassword")
	defer span.End()

	var req api.EmailRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Invalid forget-password request", err)
		return
	}
	if err := h.service.ForgetPassword(r.Context(), req.Email); err != nil {
		h.fail(w, r, l, span, "Forget password failed", err)
		return
	}
	ok(w, r, "Reset code sent")
}

// ResetPassword godoc
// @Summary      Reset the password with an emailed code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.ResetPasswordRequest true "Email, code and new password"
// @Success      200 {object} api.Response
// @Failure      400 {object} api.Response "Invalid, expired or missing code"
// @Router       /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "ResetPassword")
	defer span.End()

	var req api.ResetPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Invalid reset-password request", err)
		return
	}
	if err := h.service.ResetPassword(r.Context(), req.Email, req.Code, req.Password); err != nil {
		h.fail(w, r, l, span, "Password reset failed", err)
		return
	}
	ok(w, r, "Password reset")
}

// Refresh godoc
// @Summary      Exchange a refresh token for a new pair
// @Description  The refresh token that authorized the call is revoked.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} types.TokenPair
// @Failure      401 {object} api.Response "Invalid, revoked or outdated token"
// @Security     BearerAuth
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "Refresh")
	defer span.End()

	s, found := currentSession(w, r, l)
	if !found {
		return
	}
	pair, err := h.service.Refresh(r.Context(), s)
	if err != nil {
		h.fail(w, r, l, span, "Refresh failed", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, pair)
}

// Logout godoc
// @Summary      Log out
// @Description  Revokes the current token, or every token of the user with all=true.
// @Tags         Auth
// @Produce      json
// @Param        all query bool false "Log out from all devices"
// @Success      200 {object} api.Response
// @Failure      401 {object} api.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "Logout")
	defer span.End()

	s, found := currentSession(w, r, l)
	if !found {
		return
	}

	all := false
	if v := r.URL.Query().Get("all"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "all must be a boolean")
			return
		}
		all = parsed
	}

	if err := h.service.Logout(r.Context(), s, all); err != nil {
		h.fail(w, r, l, span, "Logout failed", err)
		return
	}
	if all {
		ok(w, r, "Logged out from all devices")
		return
	}
	ok(w, r, "Logged out")
}

// UpdatePassword godoc
// @Summary      Change password
// @Description  Every outstanding token of the user stops working.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.UpdatePasswordRequest true "Old and new password"
// @Success      200 {object} api.Response
// @Failure      400 {object} api.Response "Wrong password or invalid input"
// @Security     BearerAuth
// @Router       /auth/password [patch]
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "UpdatePassword")
	defer span.End()

	s, found := currentSession(w, r, l)
	if !found {
		return
	}
	var req api.UpdatePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Invalid update-password request", err)
		return
	}
	if err := h.service.UpdatePassword(r.Context(), s, req.OldPassword, req.Password); err != nil {
		h.fail(w, r, l, span, "Password update failed", err)
		return
	}
	ok(w, r, "Password updated, please sign in again")
}

// UpdateEmail godoc
// @Summary      Start an email change
// @Description  Sends a confirmation code to the new address.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.UpdateEmailRequest true "Password and new email"
// @Success      200 {object} api.Response
// @Failure      400 {object} api.Response "Wrong password or invalid input"
// @Failure      409 {object} api.Response "Email already registered"
// @Security     BearerAuth
// @Router       /auth/email [patch]
func (h *AuthHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "UpdateEmail")
	defer span.End()

	s, found := currentSession(w, r, l)
	if !found {
		return
	}
	var req api.UpdateEmailRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Invalid update-email request", err)
		return
	}
	if err := h.service.UpdateEmail(r.Context(), s, req.Password, req.Email); err != nil {
		h.fail(w, r, l, span, "Email update failed", err)
		return
	}
	ok(w, r, "Confirmation code sent to the new email")
}

// ConfirmNewEmail godoc
// @Summary      Confirm an email change
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.OTPRequest true "Code sent to the new email"
// @Success      200 {object} types.User
// @Failure      400 {object} api.Response "Invalid, expired or missing code"
// @Security     BearerAuth
// @Router       /auth/email/confirm [post]
func (h *AuthHandler) ConfirmNewEmail(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "ConfirmNewEmail")
	defer span.End()

	s, found := currentSession(w, r, l)
	if !found {
		return
	}
	var req api.OTPRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Invalid confirm-email-change request", err)
		return
	}
	u, err := h.service.ConfirmNewEmail(r.Context(), s, req.Code)
	if err != nil {
		h.fail(w, r, l, span, "Email change failed", err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, u)
}

// EnableTwoFactor godoc
// @Summary      Start two-factor enrollment
// @Tags         Auth
// @Produce      json
// @Success      200 {object} api.Response
// @Failure      400 {object} api.Response "Already enabled"
// @Security     BearerAuth
// @Router       /auth/2fa/enable [post]
func (h *AuthHandler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "EnableTwoFactor")
	defer span.End()

	s, found := currentSession(w, r, l)
	if !found {
		return
	}
	if err := h.service.EnableTwoFactor(r.Context(), s); err != nil {
		h.fail(w, r, l, span, "Two-factor enrollment failed", err)
		return
	}
	ok(w, r, "Two-factor setup code sent")
}

// ConfirmTwoFactor godoc
// @Summary      Confirm two-factor enrollment
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.OTPRequest true "Setup code"
// @Success      200 {object} api.Response
// @Failure      400 {object} api.Response "Invalid, expired or missing code"
// @Security     BearerAuth
// @Router       /auth/2fa/confirm [post]
func (h *AuthHandler) ConfirmTwoFactor(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "ConfirmTwoFactor")
	defer span.End()

	s, found := currentSession(w, r, l)
	if !found {
		return
	}
	var req api.OTPRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Invalid two-factor confirm request", err)
		return
	}
	if err := h.service.ConfirmTwoFactor(r.Context(), s, req.Code); err != nil {
		h.fail(w, r, l, span, "Two-factor confirmation failed", err)
		return
	}
	ok(w, r, "Two-factor authentication enabled, please sign in again")
}

// DisableTwoFactor godoc
// @Summary      Turn two-factor authentication off
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.PasswordRequest true "Current password"
// @Success      200 {object} api.Response
// @Failure      400 {object} api.Response "Wrong password or not enabled"
// @Security     BearerAuth
// @Router       /auth/2fa/disable [post]
func (h *AuthHandler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	r, span, l := h.start(r, "DisableTwoFactor")
	defer span.End()

	s, found := currentSession(w, r, l)
	if !found {
		return
	}
	var req api.PasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, span, "Invalid two-factor disable request", err)
		return
	}
	if err := h.service.DisableTwoFactor(r.Context(), s, req.Password); err != nil {
		h.fail(w, r, l, span, "Two-factor disable failed", err)
		return
	}
	ok(w, r, "Two-factor authentication disabled, please sign in again")
}
