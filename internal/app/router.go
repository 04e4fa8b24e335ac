package app

import (
	"net/http"

	"github.com/aliuyar1234/circles/internal/apperrors"
	"github.com/aliuyar1234/circles/internal/audit"
	"github.com/aliuyar1234/circles/internal/auth"
	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/aliuyar1234/circles/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(store Store, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(apperrors.RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.CSRFHeaderName},
		ExposedHeaders:   []string{apperrors.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.AuthMiddleware(cfg.JWTSecret))

	svc := circles.NewService(store)
	auditor := audit.NewWriter(store)
	reader := audit.NewReader(store)

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(svc))

	r.With(NoCacheMiddleware).Get("/api/v1/csrf", handleCSRFToken(!cfg.IsDev()))

	// Invite previews are public; joining needs a session.
	r.Route("/api/v1/invites", func(r chi.Router) {
		r.Use(NoCacheMiddleware)
		r.Use(CSRFMiddleware)

		r.Get("/{code}", circles.HandlePreviewInvite(svc))
		r.With(auth.RequireAuth).Post("/{code}/join", circles.HandleJoin(svc, auditor))
	})

	r.Route("/api/v1/circles", func(r chi.Router) {
		r.Use(CSRFMiddleware)
		r.Use(auth.RequireAuth)

		r.Post("/", circles.HandleCreate(svc, auditor, cfg.BaseURL))
		r.Get("/", circles.HandleList(svc))

		r.Route("/{circle_id}", func(r chi.Router) {
			r.Get("/", circles.HandleGet(svc, cfg.BaseURL))
			r.Delete("/", circles.HandleDelete(svc, auditor))

			r.Patch("/settings", circles.HandleUpdateSettings(svc, auditor))
			r.Post("/invite-code", circles.HandleRegenerateInviteCode(svc, auditor, cfg.BaseURL))

			r.Get("/members/pending", circles.HandleListPending(svc))
			r.Post("/members/{user_id}/approve", circles.HandleApprove(svc, auditor))
			r.Post("/members/{user_id}/reject", circles.HandleReject(svc, auditor))
			r.Delete("/members/{user_id}", circles.HandleRemove(svc, auditor))

			r.Post("/limited-links", circles.HandleCreateLimitedLink(svc, auditor, cfg.BaseURL))
			r.Get("/limited-links", circles.HandleListLimitedLinks(svc, cfg.BaseURL))

			r.Post("/events", circles.HandleCreateEvent(svc, auditor))

			r.Get("/audit", circles.HandleListAudit(svc, reader))
		})
	})

	r.Route("/api/v1/limited-links", func(r chi.Router) {
		r.Use(CSRFMiddleware)
		r.Use(auth.RequireAuth)

		r.Delete("/{link_id}", circles.HandleRevokeLimitedLink(svc, auditor))
	})

	r.Route("/api/v1/memberships/{membership_id}", func(r chi.Router) {
		r.Use(CSRFMiddleware)
		r.Use(auth.RequireAuth)

		r.Post("/approve", circles.HandleApproveMembership(svc, auditor))
		r.Post("/reject", circles.HandleRejectMembership(svc, auditor))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.WriteNotFound(w, r, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperrors.WriteMethodNotAllowed(w, r)
	})

	return r
}

// handleHealthz returns a simple liveness check
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz reports 503 until the store answers a ping
func handleReadyz(svc *circles.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Store connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"store":  "ok",
		})
	}
}

// handleCSRFToken issues a fresh double-submit token for cookie sessions
func handleCSRFToken(secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.GenerateCSRFToken()
		if err != nil {
			apperrors.WriteInternalError(w, r, "Failed to generate CSRF token")
			return
		}
		auth.SetCSRFCookie(w, token, secure)

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"csrf_token": token,
		})
	}
}
