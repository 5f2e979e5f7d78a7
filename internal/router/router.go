package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/FACorreiaa/go-identity-authority/internal/api/auth"
	"github.com/FACorreiaa/go-identity-authority/internal/api/session"
	"github.com/FACorreiaa/go-identity-authority/internal/api/user"
	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler    *auth.AuthHandler
	UserHandler    user.Handler
	Resolver       session.Resolver
	AllowedOrigins []string
	Logger         *slog.Logger
}

// SetupRouter initializes and configures the API router.
// Server-wide middleware (logger, requestID, recoverer) is applied in main.go
// before this router is mounted.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	withAccess := session.Authenticate(cfg.Resolver, types.AccessToken, cfg.Logger)
	withRefresh := session.Authenticate(cfg.Resolver, types.RefreshToken, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		// --- Public Auth Routes ---
		r.Group(func(r chi.Router) {
			r.Post("/auth/sign-up", cfg.AuthHandler.SignUp)
			r.Post("/auth/confirm-email", cfg.AuthHandler.ConfirmEmail)
			r.Post("/auth/resend-confirmation", cfg.AuthHandler.ResendConfirmation)
			r.Post("/auth/sign-in", cfg.AuthHandler.SignIn)
			r.Post("/auth/confirm-2fa-login", cfg.AuthHandler.ConfirmTwoFactorLogin)
			r.Post("/auth/google", cfg.AuthHandler.SignInWithGoogle)
			r.Post("/auth/forget-password", cfg.AuthHandler.ForgetPassword)
			r.Post("/auth/reset-password", cfg.AuthHandler.ResetPassword)
		})

		// --- Refresh-token Routes ---
		r.Group(func(r chi.Router) {
			r.Use(withRefresh)
			r.Post("/auth/refresh", cfg.AuthHandler.Refresh)
		})

		// --- Protected Routes ---
		r.Group(func(r chi.Router) {
			r.Use(withAccess)

			r.Post("/auth/logout", cfg.AuthHandler.Logout)
			r.Patch("/auth/password", cfg.AuthHandler.UpdatePassword)
			r.Patch("/auth/email", cfg.AuthHandler.UpdateEmail)
			r.Post("/auth/email/confirm", cfg.AuthHandler.ConfirmNewEmail)
			r.Post("/auth/2fa/enable", cfg.AuthHandler.EnableTwoFactor)
			r.Post("/auth/2fa/confirm", cfg.AuthHandler.ConfirmTwoFactor)
			r.Post("/auth/2fa/disable", cfg.AuthHandler.DisableTwoFactor)

			r.Mount("/users", UserRoutes(cfg.UserHandler, cfg.Logger))
		})
	})

	return r
}

// UserRoutes expects an access-token session in the request context.
func UserRoutes(h user.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Get("/me", h.GetUserProfile)
	r.Patch("/me", h.UpdateUserProfile)
	r.Post("/me/profile-image", h.CreateProfileImageUpload)
	r.Patch("/{userID}/freeze", h.Freeze)
	r.Delete("/{userID}", h.Delete)

	// --- Admin Routes ---
	r.Group(func(r chi.Router) {
		r.Use(session.RequireRole(logger, types.RoleAdmin))
		r.Patch("/{userID}/unfreeze", h.Unfreeze)
	})
	return r
}
