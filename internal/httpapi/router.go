// Package httpapi exposes the engine over HTTP with the routes the Webster
// frontend calls.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/babymilooo/webster-backend/middleware"
	"github.com/babymilooo/webster-backend/session"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

// Options configures NewRouter.
type Options struct {
	Logger  *slog.Logger
	Cookies session.Cookies
	// FrontendURL is the only allowed CORS origin and the redirect target
	// after email verification.
	FrontendURL string
	TrustProxy  bool
	// Ready backs /healthz. Nil means always ready.
	Ready func() bool
	// Metrics is mounted at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
}

// NewRouter builds the chi router.
func NewRouter(svc Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Outermost first. Recover sits inside Logging so a recovered panic is
	// logged with its 500.
	root.Use(
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
		middleware.Recover(),
		middleware.ClientIP(opts.TrustProxy),
	)
	if opts.FrontendURL != "" {
		root.Use(cors.New(cors.Options{
			AllowedOrigins:   []string{opts.FrontendURL},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type", middleware.HeaderRequestID},
			ExposedHeaders:   []string{middleware.HeaderRequestID},
			AllowCredentials: true,
		}).Handler)
	}

	root.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready != nil && !opts.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		root.Handle(path, opts.Metrics)
	}

	registerRoutes(root, NewHandlers(svc, opts.Cookies, opts.FrontendURL), svc, opts.Cookies)
	return root
}

func registerRoutes(r chi.Router, h *Handlers, svc Service, cookies session.Cookies) {
	guard := middleware.AccessGuard(svc)
	gate := middleware.RefreshGate(svc, cookies)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.With(guard).Post("/logout", h.Logout)
		r.Post("/refreshToken", h.RefreshToken)
		r.Get("/check-auth", h.CheckAuth)
		r.Post("/verify-email/send-email", h.SendVerificationEmail)
		r.Post("/verify-email/{token}", h.VerifyEmail)
		r.Post("/password-reset/send-email", h.SendPasswordResetEmail)
		r.Post("/password-reset/{token}", h.ResetPassword)
	})

	r.Route("/user", func(r chi.Router) {
		r.Get("/user-info/{userId}", h.PublicUserInfo)
		r.With(guard).Delete("/", h.DeleteUser)

		r.Group(func(r chi.Router) {
			r.Use(guard, gate)
			r.Get("/user-info", h.UserInfo)
			r.Get("/verify-email", h.SendOwnVerificationEmail)
			r.Patch("/edit-password", h.EditPassword)
			r.Patch("/edit-profile", h.EditProfile)
		})
	})
}
