package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInit(t *testing.T) {
	tp, mp := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})

	var buf bytes.Buffer
	shutdown, err := Init(&buf)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_, span := otel.Tracer("cgv.test").Start(ctx, "test-span")
	span.End()
	counter, err := otel.Meter("cgv.test").Int64Counter("cgv_test_total")
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(ctx, 3)

	if err := shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"test-span", "cgv_test_total", `"service.name"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}
