package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/pack-discount/internal/pricing"
)

var (
	domainOnce sync.Once

	// CartTransformRunsTotal counts cart-transform evaluations by entrypoint.
	CartTransformRunsTotal *prometheus.CounterVec
	// CartTransformLinesTotal counts evaluated cart lines by outcome and skip reason.
	CartTransformLinesTotal *prometheus.CounterVec
	// CartTransformRunDuration records evaluation latency in milliseconds.
	CartTransformRunDuration *prometheus.HistogramVec
	// CartTransformDiscountPercent records the percent applied to discounted lines.
	CartTransformDiscountPercent prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers pricing collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartTransformRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_transform_runs_total",
			Help:      "Count of cart-transform evaluations by entrypoint and result.",
		}, []string{"entrypoint", "result"})
		CartTransformLinesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_transform_lines_total",
			Help:      "Count of evaluated cart lines by outcome and reason.",
		}, []string{"outcome", "reason"})
		CartTransformRunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_transform_run_duration_ms",
			Help:      "Latency of cart-transform evaluations in milliseconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}, []string{"entrypoint"})
		CartTransformDiscountPercent = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_transform_discount_percent",
			Help:      "Distribution of discount percents applied to cart lines.",
			Buckets:   []float64{5, 10, 20, 30, 50, 75, 100},
		})

		mustRegisterCollector(reg, CartTransformRunsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartTransformRunsTotal = v
			}
		})
		mustRegisterCollector(reg, CartTransformLinesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartTransformLinesTotal = v
			}
		})
		mustRegisterCollector(reg, CartTransformRunDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CartTransformRunDuration = v
			}
		})
		mustRegisterCollector(reg, CartTransformDiscountPercent, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CartTransformDiscountPercent = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

// MetricsObserver feeds evaluator outcomes into the domain collectors.
// It is a no-op until MustRegisterDomainMetrics has run.
type MetricsObserver struct{}

// LineSkipped implements pricing.Observer.
func (MetricsObserver) LineSkipped(_ pricing.Line, reason error) {
	if CartTransformLinesTotal == nil {
		return
	}
	CartTransformLinesTotal.WithLabelValues("skipped", pricing.Reason(reason)).Inc()
}

// LineDiscounted implements pricing.Observer.
func (MetricsObserver) LineDiscounted(_ pricing.Line, _ pricing.Operation, percent int) {
	if CartTransformLinesTotal != nil {
		CartTransformLinesTotal.WithLabelValues("discounted", "").Inc()
	}
	if CartTransformDiscountPercent != nil {
		CartTransformDiscountPercent.Observe(float64(percent))
	}
}

// ObserveRun records one evaluation.
func ObserveRun(entrypoint, result string, durationMs float64) {
	if CartTransformRunsTotal != nil {
		CartTransformRunsTotal.WithLabelValues(entrypoint, result).Inc()
	}
	if CartTransformRunDuration != nil {
		CartTransformRunDuration.WithLabelValues(entrypoint).Observe(durationMs)
	}
}
