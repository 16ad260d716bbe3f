package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/portfolio-api/internal/application/auth"
	"github.com/portfolio-api/internal/application/code"
	"github.com/portfolio-api/internal/application/contact"
	"github.com/portfolio-api/internal/application/profile"
	"github.com/portfolio-api/internal/application/twofactor"
	"github.com/portfolio-api/internal/config"
	"github.com/portfolio-api/internal/transport/http/handler"
	appmiddleware "github.com/portfolio-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Verifier)

	// 5 requests/second, burst of 10, applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	codeSvc := code.NewService(code.ServiceDeps{
		Store:    deps.CodeRepo,
		Mailer:   deps.Mailer,
		SMS:      deps.SMSSender,
		Identity: deps.Identity,
		TTL:      cfg.CodeTTL,
	})
	twoFactorSvc := twofactor.NewService(twofactor.ServiceDeps{
		Accounts: deps.Identity,
		Sealer:   deps.Sealer,
		Issuer:   cfg.TwoFactorIssuer,
	})
	authSvc := auth.NewService(deps.Identity)
	profileSvc := profile.NewService(deps.Identity, deps.AvatarStore)
	contactSvc := contact.NewService(deps.ContactNotifier, deps.Mailer, cfg.ContactNotifyEmail)

	healthH := handler.NewHealthHandler()
	codeH := handler.NewCodeHandler(codeSvc)
	twoFactorH := handler.NewTwoFactorHandler(twoFactorSvc)
	authH := handler.NewAuthHandler(authSvc)
	profileH := handler.NewProfileHandler(profileSvc)
	contactH := handler.NewContactHandler(contactSvc)

	r.Route("/api", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health", healthH.Check)
		r.With(sensitiveRL.Limit).Post("/send-code", codeH.Send)
		r.With(sensitiveRL.Limit).Post("/verify-code", codeH.Verify)
		r.With(sensitiveRL.Limit).Post("/signup", authH.Signup)
		r.With(sensitiveRL.Limit).Post("/login", authH.Login)
		r.Post("/refresh", authH.Refresh)
		r.With(sensitiveRL.Limit).Post("/password-reset", authH.RequestPasswordReset)
		r.Post("/reset-password", authH.ResetPassword)
		r.Post("/contact", contactH.Submit)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/setup-2fa", twoFactorH.Setup)
			r.Post("/verify-2fa", twoFactorH.Verify)
			r.Delete("/2fa", twoFactorH.Disable)

			r.Get("/profile", profileH.Get)
			r.Put("/profile", profileH.Update)
			r.Post("/avatar", profileH.UploadAvatar)
		})
	})

	return r
}
