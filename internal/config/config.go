package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/pack-discount/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string
	BodyLimitBytes     int64
	SecurityHeaders    bool

	Pricing   pricing.Policy
	RateLimit RateLimitConfig
	Obs       ObsConfig
}

// RateLimitConfig controls request throttling on the evaluation endpoint.
type RateLimitConfig struct {
	Enabled bool
	// Mode is "sliding" (redis sorted sets) or "fixed" (ulule limiter).
	Mode   string
	Max    int
	Window time.Duration
	Prefix string
}

// ObsConfig groups logging, metrics and tracing switches.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	LogEvaluations   bool
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	table, err := ParseDiscountTable(valueOrDefault(k.String("PACK_DISCOUNT_TABLE"), "1:10,2:20"))
	if err != nil {
		return nil, fmt.Errorf("PACK_DISCOUNT_TABLE: %w", err)
	}

	defaults := pricing.DefaultPolicy()
	scaleStep, err := parsePolicyInt(k, "PACK_SCALE_STEP_PERCENT", defaults.ScaleStepPercent)
	if err != nil {
		return nil, err
	}
	scaleMax, err := parsePolicyInt(k, "PACK_SCALE_MAX_PERCENT", defaults.ScaleMaxPercent)
	if err != nil {
		return nil, err
	}
	flagMin, err := parsePolicyInt(k, "PACK_FLAG_MIN_QUANTITY", defaults.FlagMinQuantity)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:     int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeaders:    parseBool(k.String("SECURE_HEADERS_ENABLED"), true),
		Pricing: pricing.Policy{
			Strategy:         pricing.Strategy(strings.ToLower(valueOrDefault(k.String("PACK_MATCH_STRATEGY"), string(defaults.Strategy)))),
			QuantityPolicy:   pricing.QuantityPolicy(strings.ToLower(valueOrDefault(k.String("PACK_QUANTITY_POLICY"), string(defaults.QuantityPolicy)))),
			Table:            table,
			ScaleStepPercent: scaleStep,
			ScaleMaxPercent:  scaleMax,
			FlagMinQuantity:  flagMin,
		},
		RateLimit: RateLimitConfig{
			Enabled: parseBool(k.String("RATE_LIMIT_ENABLED"), false),
			Mode:    strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_MODE"), "sliding")),
			Max:     parseInt(k.String("RATE_LIMIT_MAX"), 600),
			Window:  parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
			Prefix:  valueOrDefault(k.String("RATE_LIMIT_PREFIX"), "packdiscount:ratelimit:"),
		},
		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			LogEvaluations:   parseBool(k.String("OBS_LOG_EVALUATIONS"), false),
			MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "packdiscount"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		},
	}

	if err := cfg.Pricing.Validate(); err != nil {
		return nil, err
	}
	switch cfg.RateLimit.Mode {
	case "sliding", "fixed":
	default:
		return nil, fmt.Errorf("RATE_LIMIT_MODE: unsupported mode %q", cfg.RateLimit.Mode)
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.Mode == "sliding" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("RATE_LIMIT_MODE=sliding requires REDIS_URL")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// ParseDiscountTable parses "size:percent" pairs separated by commas, e.g. "1:10,2:20".
// Sizes must be unique. Range checks are left to pricing.Policy.Validate.
func ParseDiscountTable(value string) (map[int]int, error) {
	table := map[int]int{}
	for _, pair := range splitAndTrim(value) {
		sizeRaw, percentRaw, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q: expected size:percent", pair)
		}
		size, err := strconv.Atoi(strings.TrimSpace(sizeRaw))
		if err != nil {
			return nil, fmt.Errorf("entry %q: pack size: %w", pair, err)
		}
		percent, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(percentRaw), "%")))
		if err != nil {
			return nil, fmt.Errorf("entry %q: percent: %w", pair, err)
		}
		if _, dup := table[size]; dup {
			return nil, fmt.Errorf("entry %q: duplicate pack size %d", pair, size)
		}
		table[size] = percent
	}
	return table, nil
}

// FormatDiscountTable renders a table in the form accepted by ParseDiscountTable, sorted by size.
func FormatDiscountTable(table map[int]int) string {
	sizes := make([]int, 0, len(table))
	for size := range table {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	parts := make([]string, 0, len(sizes))
	for _, size := range sizes {
		parts = append(parts, fmt.Sprintf("%d:%d", size, table[size]))
	}
	return strings.Join(parts, ",")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

// parsePolicyInt reads an optional integer pricing key. Unlike parseInt, a value that is set but
// not an integer is an error.
func parsePolicyInt(k *koanf.Koanf, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(k.String(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer: %w", key, raw, err)
	}
	return parsed, nil
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
