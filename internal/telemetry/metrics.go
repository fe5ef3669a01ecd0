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
	BuildsTotal      metric.Int64Counter
	BuildErrorsTotal metric.Int64Counter
	BuildDuration    metric.Float64Histogram

	// Output metrics
	ArtifactsTotal metric.Int64Counter

	// Seed metrics
	SeedFetchesTotal      metric.Int64Counter
	SeedFetchRetriesTotal metric.Int64Counter
	SeedFetchErrorsTotal  metric.Int64Counter
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

	m.BuildsTotal, _ = meter.Int64Counter(
		"assetpipe.builds.total",
		metric.WithDescription("Total number of asset builds"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"assetpipe.builds.errors.total",
		metric.WithDescription("Total number of failed asset builds"),
		metric.WithUnit("{error}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"assetpipe.builds.duration",
		metric.WithDescription("Duration of asset builds including manifest generation"),
		metric.WithUnit("ms"),
	)

	m.ArtifactsTotal, _ = meter.Int64Counter(
		"assetpipe.artifacts.total",
		metric.WithDescription("Total number of artifacts recorded in manifests"),
		metric.WithUnit("{artifact}"),
	)

	m.SeedFetchesTotal, _ = meter.Int64Counter(
		"assetpipe.seed.fetches.total",
		metric.WithDescription("Total number of remote seed manifest fetch attempts"),
		metric.WithUnit("{request}"),
	)

	m.SeedFetchRetriesTotal, _ = meter.Int64Counter(
		"assetpipe.seed.fetches.retries.total",
		metric.WithDescription("Total number of retried remote seed manifest fetches"),
		metric.WithUnit("{retry}"),
	)

	m.SeedFetchErrorsTotal, _ = meter.Int64Counter(
		"assetpipe.seed.fetches.errors.total",
		metric.WithDescription("Total number of remote seed manifest fetches that failed"),
		metric.WithUnit("{error}"),
	)

	return m
}
