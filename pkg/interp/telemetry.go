package interp

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	tracer = otel.Tracer("cgv.interp")
	meter  = otel.Meter("cgv.interp")
)

var (
	runsTotal   metric.Int64Counter = noop.Int64Counter{}
	valuesTotal metric.Int64Counter = noop.Int64Counter{}

	metricsOnce sync.Once
)

// initMetrics creates the metric instruments. It is safe to call more than
// once; instruments that fail to be created stay no-ops.
func initMetrics() {
	metricsOnce.Do(func() {
		if c, err := meter.Int64Counter("cgv_interp_runs_total",
			metric.WithDescription("Number of interpretations started")); err == nil {
			runsTotal = c
		} else {
			logger.Println("create metric:", err)
		}
		if c, err := meter.Int64Counter("cgv_interp_values_total",
			metric.WithDescription("Number of values emitted by interpretations")); err == nil {
			valuesTotal = c
		} else {
			logger.Println("create metric:", err)
		}
	})
}
