package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/assetpipe"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Build metrics
	BuildsTotal       metric.Int64Counter
	BuildErrorsTotal  metric.Int64Counter
	BuildDuration     metric.Float64Histogram
	BundleBytesTotal  metric.Int64Counter
	AssetsEmitted     metric.Int64Counter
	AssetsInlined     metric.Int64Counter
	AssetsPassthrough metric.Int64Counter

	// Dev server metrics
	ReloadClients    metric.Int64UpDownCounter
	ReloadsTotal     metric.Int64Counter
	WatchEventsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Build metrics
	m.BuildsTotal, _ = meter.Int64Counter(
		"assetpipe.builds.total",
		metric.WithDescription("Total number of builds started"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"assetpipe.builds.errors.total",
		metric.WithDescription("Total number of failed builds"),
		metric.WithUnit("{error}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"assetpipe.builds.duration",
		metric.WithDescription("Duration of builds"),
		metric.WithUnit("ms"),
	)

	m.BundleBytesTotal, _ = meter.Int64Counter(
		"assetpipe.bundles.bytes.total",
		metric.WithDescription("Total bytes of bundles produced"),
		metric.WithUnit("By"),
	)

	m.AssetsEmitted, _ = meter.Int64Counter(
		"assetpipe.assets.emitted.total",
		metric.WithDescription("Total number of asset files emitted"),
		metric.WithUnit("{asset}"),
	)

	m.AssetsInlined, _ = meter.Int64Counter(
		"assetpipe.assets.inlined.total",
		metric.WithDescription("Total number of assets inlined as data URIs"),
		metric.WithUnit("{asset}"),
	)

	m.AssetsPassthrough, _ = meter.Int64Counter(
		"assetpipe.assets.passthrough.total",
		metric.WithDescription("Total number of assets no rule matched"),
		metric.WithUnit("{asset}"),
	)

	// Dev server metrics
	m.ReloadClients, _ = meter.Int64UpDownCounter(
		"assetpipe.devserver.reload_clients",
		metric.WithDescription("Number of connected live reload clients"),
		metric.WithUnit("{client}"),
	)

	m.ReloadsTotal, _ = meter.Int64Counter(
		"assetpipe.devserver.reloads.total",
		metric.WithDescription("Total number of reload notifications broadcast"),
		metric.WithUnit("{reload}"),
	)

	m.WatchEventsTotal, _ = meter.Int64Counter(
		"assetpipe.devserver.watch_events.total",
		metric.WithDescription("Total number of file system events that triggered a rebuild"),
		metric.WithUnit("{event}"),
	)

	return m
}
