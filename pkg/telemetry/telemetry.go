// Package telemetry installs OpenTelemetry providers exporting spans and
// metrics as JSON.
//
// The library packages only use the global tracer and meter providers, which
// do nothing until a binary calls Init.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"src.cgv.sh/pkg/buildinfo"
)

// MetricInterval is how often metrics are exported.
var MetricInterval = 10 * time.Second

// Init installs global tracer and meter providers writing to w. The returned
// function flushes and shuts them down.
func Init(w io.Writer) (shutdown func(context.Context) error, err error) {
	res := resource.NewWithAttributes("",
		attribute.String("service.name", "cgv"),
		attribute.String("service.version", buildinfo.Value.Version))

	spans, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}
	metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans),
		sdktrace.WithResource(res))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics,
			sdkmetric.WithInterval(MetricInterval))),
		sdkmetric.WithResource(res))
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
