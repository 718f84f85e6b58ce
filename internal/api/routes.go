package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/mailcore/internal/pkg/httputil"
	"github.com/ignite/mailcore/internal/pkg/ratelimit"
)

// RouterOptions carries the cross-cutting pieces of the router.
type RouterOptions struct {
	APIToken    string
	CORSOrigins []string
	Reputations IPReputations
	Limiter     ratelimit.Limiter
}

// SetupRoutes configures all routes. /api requires the bearer token; the send
// endpoints additionally pass the anti-spam checks. Unsubscribe and consent
// links are public since recipients follow them from mail.
func SetupRoutes(h *Handlers, hc *HealthChecker, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health and metrics (no auth required)
	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)
	r.Get("/health/ready", hc.HandleReadiness)
	r.Handle("/metrics", promhttp.Handler())

	// Recipient-facing links
	r.Get("/unsubscribe/{token}", h.HandleUnsubscribeShow)
	r.Post("/unsubscribe/{token}", h.HandleUnsubscribe)
	r.Post("/unsubscribe/one-click/{token}", h.HandleOneClickUnsubscribe)
	r.Post("/consent/grant", h.HandleConsentGrant)
	r.Get("/consent/verify/{token}", h.HandleConsentVerify)
	r.Post("/consent/revoke", h.HandleConsentRevoke)

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireToken(opts.APIToken))

		r.Group(func(r chi.Router) {
			if opts.Reputations != nil && opts.Limiter != nil {
				r.Use(AntiSpam(opts.Reputations, opts.Limiter))
			}
			r.Post("/send", h.HandleSend)
			r.Post("/send/bulk", h.HandleSendBulk)
		})

		r.Route("/compliance", func(r chi.Router) {
			r.Post("/export", h.HandleComplianceExport)
			r.Post("/delete", h.HandleComplianceDelete)
			r.Get("/report/{domainID}", h.HandleComplianceReport)
		})

		r.Post("/complaints", h.HandleComplaint)

		r.Get("/settings", h.HandleListSettings)
		r.Get("/settings/{key}", h.HandleGetSetting)
		r.Put("/settings/{key}", h.HandlePutSetting)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httputil.NotFound(w, "not found")
	})
	return r
}
