package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracerProviderExportsSpans(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()

	tp, err := InitTracerProvider(ctx, Options{
		ServiceName:    "consulting-site",
		ServiceVersion: "test",
		SampleRatio:    1,
		Exporter:       exporter,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry-test").Start(ctx, "probe")
	span.End()
	require.NoError(t, tp.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "probe", spans[0].Name)

	var service string
	for _, attr := range spans[0].Resource.Attributes() {
		if attr.Key == "service.name" {
			service = attr.Value.AsString()
		}
	}
	require.Equal(t, "consulting-site", service)
	require.NoError(t, tp.Shutdown(ctx))
}

func TestInitTracerProviderZeroRatioDropsRoots(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()

	tp, err := InitTracerProvider(ctx, Options{ServiceName: "consulting-site", Exporter: exporter})
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry-test").Start(ctx, "dropped")
	span.End()
	require.NoError(t, tp.ForceFlush(ctx))
	require.Empty(t, exporter.GetSpans())
	require.NoError(t, tp.Shutdown(ctx))
}
