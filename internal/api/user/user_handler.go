package user

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-identity-authority/internal/api"
	"github.com/FACorreiaa/go-identity-authority/internal/api/session"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	GetUserProfile(w http.ResponseWriter, r *http.Request)
	UpdateUserProfile(w http.ResponseWriter, r *http.Request)
	CreateProfileImageUpload(w http.ResponseWriter, r *http.Request)
	Freeze(w http.ResponseWriter, r *http.Request)
	Unfreeze(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	userService UserService
	logger      *slog.Logger
}

// NewHandlerImpl creates a new user HandlerImpl instance.
func NewHandlerImpl(userService UserService, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create HandlerImpl with nil logger!")
	}

	return &HandlerImpl{
		userService: userService,
		logger:      logger,
	}
}

func requireSession(w http.ResponseWriter, r *http.Request, l *slog.Logger) (*types.Session, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		l.ErrorContext(r.Context(), "User ID not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return s, true
}

func targetID(w http.ResponseWriter, r *http.Request, l *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		l.WarnContext(r.Context(), "Invalid user ID format", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return id, true
}

func (h *HandlerImpl) fail(w http.ResponseWriter, r *http.Request, l *slog.Logger, msg string, err error) {
	if api.StatusFor(err) >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), msg, slog.Any("error", err))
	} else {
		l.WarnContext(r.Context(), msg, slog.String("reason", err.Error()))
	}
	api.HandleError(w, r, err)
}

// GetUserProfile godoc
// @Summary      Get User Profile
// @Description  Retrieves the authenticated user's profile information.
// @Tags         User
// @Produce      json
// @Success      200 {object} types.User "User Profile"
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /users/me [get]
func (h *HandlerImpl) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "GetUserProfile"))

	s, ok := requireSession(w, r, l)
	if !ok {
		return
	}

	profile, err := h.userService.GetUserProfile(r.Context(), s.User.ID)
	if err != nil {
		h.fail(w, r, l, "Failed to get user profile", err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, profile)
}

// UpdateUserProfile godoc
// @Summary      Update User Profile
// @Description  Updates the authenticated user's profile information.
// @Tags         User
// @Accept       json
// @Produce      json
// @Param        profile body api.UpdateProfileRequest true "Profile Update Parameters"
// @Success      200 {object} types.User "Updated profile"
// @Failure      400 {object} api.Response "Invalid Input"
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /users/me [patch]
func (h *HandlerImpl) UpdateUserProfile(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "UpdateUserProfile"))

	s, ok := requireSession(w, r, l)
	if !ok {
		return
	}

	var req api.UpdateProfileRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, "Failed to decode request", err)
		return
	}

	profile, err := h.userService.UpdateUserProfile(r.Context(), s.User.ID, req.UpdateProfileParams)
	if err != nil {
		h.fail(w, r, l, "Failed to update user profile", err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, profile)
}

// CreateProfileImageUpload godoc
// @Summary      Get a profile image upload URL
// @Description  Returns a presigned PUT URL; the object key becomes the user's profile image.
// @Tags         User
// @Accept       json
// @Produce      json
// @Param        body body api.ProfileImageRequest true "File name and content type"
// @Success      200 {object} api.ProfileImageResponse
// @Failure      400 {object} api.Response "Invalid Input"
// @Failure      401 {object} api.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /users/me/profile-image [post]
func (h *HandlerImpl) CreateProfileImageUpload(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "CreateProfileImageUpload"))

	s, ok := requireSession(w, r, l)
	if !ok {
		return
	}

	var req api.ProfileImageRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		h.fail(w, r, l, "Failed to decode request", err)
		return
	}

	resp, err := h.userService.CreateProfileImageUpload(r.Context(), s.User.ID, req.FileName, req.ContentType)
	if err != nil {
		h.fail(w, r, l, "Failed to create upload URL", err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// Freeze godoc
// @Summary      Freeze an account
// @Description  Soft-deletes the account and signs it out everywhere. Admins may freeze any account.
// @Tags         User
// @Produce      json
// @Param        userID path string true "User ID"
// @Success      200 {object} api.Response
// @Failure      403 {object} api.Response "Not allowed"
// @Failure      404 {object} api.Response "No live account"
// @Security     BearerAuth
// @Router       /users/{userID}/freeze [patch]
func (h *HandlerImpl) Freeze(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "Freeze"))

	s, ok := requireSession(w, r, l)
	if !ok {
		return
	}
	id, ok := targetID(w, r, l)
	if !ok {
		return
	}

	if _, err := h.userService.Freeze(r.Context(), s, id); err != nil {
		h.fail(w, r, l, "Failed to freeze user", err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{Success: true, Message: "Account frozen"})
}

// Unfreeze godoc
// @Summary      Restore a frozen account
// @Description  Admin only; the restorer must differ from whoever froze the account.
// @Tags         User
// @Produce      json
// @Param        userID path string true "User ID"
// @Success      200 {object} types.User
// @Failure      403 {object} api.Response "Not allowed"
// @Failure      404 {object} api.Response "No frozen account"
// @Security     AdminAuth
// @Router       /users/{userID}/unfreeze [patch]
func (h *HandlerImpl) Unfreeze(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "Unfreeze"))

	s, ok := requireSession(w, r, l)
	if !ok {
		return
	}
	id, ok := targetID(w, r, l)
	if !ok {
		return
	}

	u, err := h.userService.Unfreeze(r.Context(), s, id)
	if err != nil {
		h.fail(w, r, l, "Failed to unfreeze user", err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, u)
}

// Delete godoc
// @Summary      Delete an account permanently
// @Tags         User
// @Produce      json
// @Param        userID path string true "User ID"
// @Success      200 {object} api.Response
// @Failure      403 {object} api.Response "Not allowed"
// @Failure      404 {object} api.Response "No account"
// @Security     BearerAuth
// @Router       /users/{userID} [delete]
func (h *HandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "Delete"))

	s, ok := requireSession(w, r, l)
	if !ok {
		return
	}
	id, ok := targetID(w, r, l)
	if !ok {
		return
	}

	if err := h.userService.Delete(r.Context(), s, id); err != nil {
		h.fail(w, r, l, "Failed to delete user", err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{Success: true, Message: fmt.Sprintf("Account %s deleted", id)})
}
