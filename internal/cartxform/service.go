package cartxform

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/pack-discount/internal/obs"
	"github.com/noah-isme/pack-discount/internal/pricing"
)

// Entrypoint labels used in logs and metrics.
const (
	EntrypointHTTP  = "http"
	EntrypointStdin = "stdin"
)

// Service runs the pack discount evaluator over host documents.
type Service struct {
	Evaluator  *pricing.Evaluator
	Logger     zerolog.Logger
	Tracer     trace.Tracer
	Entrypoint string
}

// NewService wires an evaluator with the given logger. The tracer comes from the global provider.
func NewService(ev *pricing.Evaluator, logger zerolog.Logger, entrypoint string) *Service {
	return &Service{
		Evaluator:  ev,
		Logger:     logger,
		Tracer:     otel.Tracer("github.com/noah-isme/pack-discount/internal/cartxform"),
		Entrypoint: entrypoint,
	}
}

// Run evaluates the input and returns the operations to apply. It never fails; an input without
// lines, or without qualifying lines, yields NoChanges.
func (s *Service) Run(ctx context.Context, in Input) Result {
	tracer := s.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/noah-isme/pack-discount/internal/cartxform")
	}
	_, span := tracer.Start(ctx, "cartxform.run")
	defer span.End()

	runID := uuid.NewString()
	start := time.Now()
	cart, malformed := in.toPricing()
	for _, line := range malformed {
		s.Logger.Debug().Str("run_id", runID).AnErr("detail", line.Err()).Msg("pack_discount_skipped")
		if obs.CartTransformLinesTotal != nil {
			obs.CartTransformLinesTotal.WithLabelValues("skipped", "malformed").Inc()
		}
	}

	res := fromPricing(s.Evaluator.Evaluate(cart))
	elapsed := time.Since(start)

	lines := len(malformed)
	if cart != nil {
		lines += len(cart.Lines)
	}
	result := "changed"
	if len(res.Operations) == 0 {
		result = "no_changes"
	}
	obs.ObserveRun(s.entrypoint(), result, obs.DurationMillis(elapsed))

	span.SetAttributes(
		attribute.String("cartxform.run_id", runID),
		attribute.Int("cartxform.lines", lines),
		attribute.Int("cartxform.malformed_lines", len(malformed)),
		attribute.Int("cartxform.operations", len(res.Operations)),
	)
	s.Logger.Info().
		Str("run_id", runID).
		Str("entrypoint", s.entrypoint()).
		Int("lines", lines).
		Int("operations", len(res.Operations)).
		Float64("duration_ms", obs.DurationMillis(elapsed)).
		Msg("cart_transform_run")
	return res
}

func (s *Service) entrypoint() string {
	if s.Entrypoint == "" {
		return EntrypointHTTP
	}
	return s.Entrypoint
}
