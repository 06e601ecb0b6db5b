package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/valid-names/internal/config"
	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/transport/http/handler"
	appmiddleware "github.com/valid-names/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds the
// background sweeper of the per-IP limiter.
func NewRouter(ctx context.Context, cfg *config.Config, svc *Services) http.Handler {
	r := chi.NewRouter()
	// Forwarding headers are client-controlled unless a proxy we run sets them.
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(svc.Verifier)

	// 5 requests/second, burst of 10, applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(svc.Sessions)
	userH := handler.NewUserHandler(svc.Users)
	verifyH := handler.NewEmailVerificationHandler(svc.Auth)
	resetH := handler.NewPasswordResetHandler(svc.Auth)
	appH := handler.NewApplicationHandler(svc.Applications, svc.Reports)
	categoryH := handler.NewCategoryHandler(svc.Categories)
	domainH := handler.NewDomainHandler(svc.Domains, svc.Checks)
	tldH := handler.NewTLDHandler(svc.TLDs)
	notifH := handler.NewNotificationHandler(svc.Notifications)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)
		r.With(sensitiveRL.Limit).Post("/email-verification/confirm", verifyH.Confirm)
		r.With(sensitiveRL.Limit).Post("/password-reset/request", resetH.Request)
		r.With(sensitiveRL.Limit).Get("/password-reset/validate", resetH.Validate)
		r.With(sensitiveRL.Limit).Post("/password-reset/confirm", resetH.Confirm)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)
			r.Post("/users/{id}/password", userH.ChangePassword)
			r.Post("/email-verification/request", verifyH.Request)

			r.Get("/applications", appH.List)
			r.Post("/applications", appH.Create)
			r.Get("/applications/{id}", appH.Get)
			r.Put("/applications/{id}", appH.Update)
			r.Delete("/applications/{id}", appH.Delete)
			r.Post("/applications/{id}/report", appH.Export)
			r.Get("/applications/{id}/categories", categoryH.ListByApplication)
			r.Post("/applications/{id}/categories", categoryH.Create)

			r.Get("/categories/{id}", categoryH.Get)
			r.Put("/categories/{id}", categoryH.Update)
			r.Delete("/categories/{id}", categoryH.Delete)
			r.Get("/categories/{id}/domains", domainH.ListByCategory)
			r.Post("/categories/{id}/domains", domainH.Create)

			r.Get("/domains/{id}", domainH.Get)
			r.Delete("/domains/{id}", domainH.Delete)
			r.Get("/domains/{id}/checks", domainH.ListChecks)
			r.Post("/domains/{id}/checks", domainH.RunChecks)

			r.Get("/tlds", tldH.List)

			r.Get("/notifications", notifH.ListUnread)
			r.Get("/notifications/{id}", notifH.Get)
			r.Put("/notifications/{id}", notifH.MarkAsRead)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/users", userH.List)
				r.Delete("/users/{id}", userH.Delete)

				r.Post("/tlds", tldH.Create)
				r.Put("/tlds/{id}", tldH.Update)
				r.Delete("/tlds/{id}", tldH.Delete)
			})
		})
	})

	return r
}
