// Package observability provides OpenTelemetry metrics (Prometheus or OTLP
// exporters), tracing and trace-aware logging.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	meterScope       = "github.com/fuzzyrestaurants/finder/internal/observability"
	cardinalityLimit = 2000
)

// Exporter names accepted by MeterProviderConfig.Exporter.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
)

// durationHistogramBounds are second-based buckets for *_duration_seconds histograms.
var durationHistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// MeterProviderShutdown is the subset of the SDK MeterProvider needed for shutdown.
type MeterProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// MeterProviderConfig holds configuration for creating the MeterProvider.
type MeterProviderConfig struct {
	// ServiceName is used in the resource (default: fuzzy-restaurants).
	ServiceName string
	// Exporter is "prometheus" (pull, served on /metrics) or "otlp" (push).
	Exporter string
}

// MeterProvider bundles a running SDK MeterProvider with its meter and, for the
// Prometheus exporter, the /metrics handler.
type MeterProvider struct {
	Provider *sdkmetric.MeterProvider
	Meter    metric.Meter
	// Handler is nil unless the Prometheus exporter is used.
	Handler http.Handler
}

// Shutdown flushes and stops the provider.
func (m *MeterProvider) Shutdown(ctx context.Context) error {
	if m == nil || m.Provider == nil {
		return nil
	}

	if err := m.Provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}

	return nil
}

// MeterOrNil returns the meter, or nil when m is nil (metrics disabled).
func (m *MeterProvider) MeterOrNil() metric.Meter {
	if m == nil {
		return nil
	}

	return m.Meter
}

// NewMeterProvider creates a MeterProvider for cfg.Exporter. Returns (nil, nil)
// when the exporter is empty (metrics disabled).
func NewMeterProvider(ctx context.Context, cfg MeterProviderConfig) (*MeterProvider, error) {
	var (
		reader  sdkmetric.Reader
		handler http.Handler
	)

	switch cfg.Exporter {
	case "":
		//nolint:nilnil // intentional: metrics disabled, caller checks for nil
		return nil, nil
	case ExporterPrometheus:
		reg := prometheus.NewRegistry()

		exporter, err := prometheusexporter.New(prometheusexporter.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		reader = exporter
		handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	case ExporterOTLP:
		// SDK reads OTEL_EXPORTER_OTLP_ENDPOINT (and scheme/insecure) from env.
		exp, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("create OTLP metric exporter: %w", err)
		}

		const metricExportInterval = 60 * time.Second

		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(metricExportInterval))
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", cfg.Exporter)
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "finder_*_duration_seconds"},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: durationHistogramBounds}},
		)),
	)

	return &MeterProvider{
		Provider: mp,
		Meter:    mp.Meter(meterScope),
		Handler:  handler,
	}, nil
}

// Metrics holds all metric collectors. When metrics are disabled, all fields are nil;
// every consumer accepts a nil interface.
type Metrics struct {
	Recommend RecommendMetrics
	Cache     CacheMetrics
	Geocoder  GeocoderMetrics
	API       APIMetrics
	Embedding EmbeddingMetrics
}

// NewMetrics creates every collector from meter. Returns an empty Metrics when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		return &Metrics{}, nil
	}

	recommend, err := NewRecommendMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("recommend metrics: %w", err)
	}

	lookups, err := meter.Int64Counter(
		MetricNameCacheLookups,
		metric.WithDescription("In-memory cache lookups by cache (query_embedding, geocode) and result. "+
			"A miss includes callers that waited on another caller's load."),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache lookups counter: %w", err)
	}

	geocoder, err := NewGeocoderMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("geocoder metrics: %w", err)
	}

	api, err := NewAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}

	embedding, err := NewEmbeddingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("embedding metrics: %w", err)
	}

	return &Metrics{
		Recommend: recommend,
		Cache:     cacheLookups{counter: lookups},
		Geocoder:  geocoder,
		API:       api,
		Embedding: embedding,
	}, nil
}

// CacheMetrics counts lookups against the in-memory caches in front of the
// embedder and the geocoder.
type CacheMetrics interface {
	RecordHit(ctx context.Context, cacheName string)
	RecordMiss(ctx context.Context, cacheName string)
}

type cacheLookups struct {
	counter metric.Int64Counter
}

func (c cacheLookups) RecordHit(ctx context.Context, cacheName string) {
	c.record(ctx, cacheName, "hit")
}

func (c cacheLookups) RecordMiss(ctx context.Context, cacheName string) {
	c.record(ctx, cacheName, "miss")
}

func (c cacheLookups) record(ctx context.Context, cacheName, result string) {
	c.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCache, NormalizeCacheName(cacheName)),
		attribute.String(AttrResult, result),
	))
}
