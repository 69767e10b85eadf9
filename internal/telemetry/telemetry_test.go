package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitTelemetryDisabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	require.False(t, Enabled())

	shutdown, err := InitTelemetry(context.Background(), "assetpipe", "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestGetMetricsSingleton(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m.BuildsTotal)
	require.NotNil(t, m.ReloadClients)
	require.Same(t, m, GetMetrics())

	// no-op providers accept recordings
	m.BuildsTotal.Add(context.Background(), 1)
	m.BuildDuration.Record(context.Background(), 12.5)
}
