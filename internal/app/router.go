package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/pack-discount/internal/cartxform"
	"github.com/noah-isme/pack-discount/internal/health"
	"github.com/noah-isme/pack-discount/internal/obs"
	"github.com/noah-isme/pack-discount/internal/ratelimit"
	"github.com/noah-isme/pack-discount/internal/security"
)

// NewRouter assembles the HTTP surface: health probes, metrics and the cart transform endpoint.
func NewRouter(deps Dependencies) (http.Handler, error) {
	cfg := deps.Config
	logger := deps.Logger

	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, deps.registerer())
	}

	evaluator, err := NewEvaluator(cfg, logger)
	if err != nil {
		return nil, err
	}
	limiter, err := NewLimiter(cfg.RateLimit, deps.Redis)
	if err != nil {
		return nil, err
	}
	transform := &cartxform.Handler{Svc: cartxform.NewService(evaluator, logger, cartxform.EntrypointHTTP)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Obs.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Obs.MetricsEnabled {
		httpMetrics := obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), deps.registerer())
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.AppEnv == "production"}.Middleware)

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(deps.gatherer(), promhttp.HandlerOpts{}))
	}

	healthHandler := health.Handler{}
	if deps.Redis != nil {
		healthHandler.Checker = health.RedisChecker{Client: deps.Redis}
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1/cart-transform", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		if limiter != nil {
			v.Use(ratelimit.Handler{
				Limiter: limiter,
				Config: ratelimit.Config{
					Key:    ratelimit.ByClientIP,
					Window: cfg.RateLimit.Window,
					Max:    cfg.RateLimit.Max,
				},
				OnError: func(err error) {
					logger.Warn().Err(err).Msg("rate limiter unavailable")
				},
			}.Middleware)
		}
		v.Post("/run", transform.Run)
	})

	return r, nil
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
