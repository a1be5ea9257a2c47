package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autolinkhq/autolink-backend/api/controllers"
	"github.com/autolinkhq/autolink-backend/api/middleware"
	"github.com/autolinkhq/autolink-backend/internal/auth"
	"github.com/autolinkhq/autolink-backend/internal/garage"
	"github.com/autolinkhq/autolink-backend/internal/profiles"
	"github.com/autolinkhq/autolink-backend/pkg/auth/session"
	"github.com/autolinkhq/autolink-backend/pkg/config"
	"github.com/autolinkhq/autolink-backend/pkg/logger"
	"github.com/autolinkhq/autolink-backend/pkg/metrics"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the router mounts. Stub-friendly for tests.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      pinger
	Cache   pinger
	Limiter middleware.RateLimiterStore
	Session session.AccessSessionChecker

	AuthService    auth.Service
	ProfileService profiles.Service
	GarageService  garage.Service
	Selector       *garage.Selector

	HTTPMetrics *metrics.HTTPMetrics
	Registry    prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.App.WebOrigin),
	)

	signInPolicy := middleware.NewRateLimitPolicy(
		"signin",
		cfg.AuthRateLimit.SignInWindow,
		cfg.AuthRateLimit.SignInIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Cache, logg))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(signInPolicy, deps.Limiter, logg)).
			Post("/google/start", controllers.AuthStart(deps.AuthService, logg))
		r.With(middleware.RateLimit(signInPolicy, deps.Limiter, logg)).
			Post("/google/callback", controllers.AuthComplete(deps.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.AuthService, logg))
		r.With(middleware.Auth(cfg.JWT, deps.Session, logg)).
			Post("/logout", controllers.AuthSignOut(deps.AuthService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Session, logg))

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", controllers.ProfileGet(deps.ProfileService, logg))
			r.Patch("/", controllers.ProfileUpdate(deps.ProfileService, logg))
			r.Post("/avatar-upload", controllers.ProfileAvatarUploadURL(deps.ProfileService, logg))
		})

		r.Route("/garage", func(r chi.Router) {
			r.Get("/", controllers.GarageLoad(deps.GarageService, logg))
			r.Get("/primary", controllers.GaragePrimary(deps.GarageService, logg))
			r.Post("/save", controllers.GarageSave(deps.GarageService, logg))
			r.Post("/vehicles", controllers.GarageAdd(deps.GarageService, logg))
			r.Post("/vehicles/{vehicleId}/primary", controllers.GarageSetPrimary(deps.GarageService, logg))
			r.Delete("/vehicles/{vehicleId}", controllers.GarageDelete(deps.GarageService, logg))
		})

		r.Route("/registry", func(r chi.Router) {
			r.Get("/makes", controllers.RegistryMakes(deps.Selector, logg))
			r.Get("/models", controllers.RegistryModels(deps.Selector, logg))
		})
	})

	return r
}
