package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

var (
	ErrMalformedHeader    = errors.New("authorization header must be '<prefix> <token>'")
	ErrUnknownSignature   = errors.New("unknown token signature")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrCredentialsChanged = errors.New("credentials changed, please sign in again")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateIdentity  = errors.New("email already registered")
	ErrInvalidCredential  = errors.New("invalid email or password")
	ErrNoPendingChallenge = errors.New("no pending verification code")
	ErrChallengeExpired   = errors.New("verification code expired")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrUnauthorized       = errors.New("not allowed to perform this action")
	ErrNotFound           = errors.New("requested item not found")
	ErrValidation         = errors.New("validation failed")
)

// StatusFor maps a domain error to the HTTP status the transport reports.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMalformedHeader),
		errors.Is(err, ErrUnknownSignature),
		errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrNoPendingChallenge),
		errors.Is(err, ErrChallengeExpired),
		errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrCredentialsChanged):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateIdentity):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes the JSON error body for err. Unclassified errors are
// logged and reported with a generic message.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Unhandled error",
			slog.Any("error", err),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		ErrorResponse(w, r, status, "Internal Server Error")
		return
	}
	ErrorResponse(w, r, status, err.Error())
}
