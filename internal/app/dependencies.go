package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pack-discount/internal/config"
	"github.com/noah-isme/pack-discount/internal/obs"
	"github.com/noah-isme/pack-discount/internal/pricing"
	"github.com/noah-isme/pack-discount/internal/ratelimit"
)

// Dependencies enumerates the shared services the HTTP surface is built from.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger
	// Redis is optional. Without it readiness reports redis as disabled and only the
	// fixed window limiter is available.
	Redis *redis.Client
	// Registry receives the HTTP and domain collectors. Nil means the default registry.
	Registry *prometheus.Registry
}

func (d Dependencies) registerer() prometheus.Registerer {
	if d.Registry == nil {
		return prometheus.DefaultRegisterer
	}
	return d.Registry
}

func (d Dependencies) gatherer() prometheus.Gatherer {
	if d.Registry == nil {
		return prometheus.DefaultGatherer
	}
	return d.Registry
}

// NewEvaluator builds the pack discount evaluator for cfg. Metrics are always observed; per-line
// debug logs are added when evaluation logging is enabled.
func NewEvaluator(cfg *config.Config, logger zerolog.Logger) (*pricing.Evaluator, error) {
	observers := []pricing.Observer{obs.MetricsObserver{}}
	if cfg.Obs.LogEvaluations {
		observers = append(observers, obs.EvaluationLogger{Logger: logger})
	}
	ev, err := pricing.NewEvaluator(cfg.Pricing, pricing.Observers(observers...))
	if err != nil {
		return nil, fmt.Errorf("initialise evaluator: %w", err)
	}
	return ev, nil
}

// NewLimiter selects the rate limiter for cfg. It returns nil when rate limiting is disabled.
func NewLimiter(cfg config.RateLimitConfig, rdb *redis.Client) (ratelimit.Allower, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Mode {
	case "sliding":
		if rdb == nil {
			return nil, fmt.Errorf("sliding rate limiter requires redis")
		}
		return ratelimit.SlidingWindow{Client: rdb, Prefix: cfg.Prefix}, nil
	case "fixed":
		return ratelimit.NewFixedWindow(rdb, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unsupported rate limit mode %q", cfg.Mode)
	}
}

// NewRedis connects to url and instruments the client with OpenTelemetry.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
