package observability

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Standard OTEL sampler env vars. Read here rather than in config so the
// worker and the CLIs get the same behaviour without extra keys.
const (
	envTracesSampler    = "OTEL_TRACES_SAMPLER"
	envTracesSamplerArg = "OTEL_TRACES_SAMPLER_ARG"
)

// newSpanExporter returns the exporter for name. OTLP reads
// OTEL_EXPORTER_OTLP_ENDPOINT from the environment.
func newSpanExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch name {
	case TraceExporterOTLP:
		exp, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("create OTLP HTTP trace exporter: %w", err)
		}
		return exp, nil
	case TraceExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown traces exporter %q", name)
	}
}

// samplerFromEnv builds a sampler from OTEL_TRACES_SAMPLER(_ARG) via lookup.
// Unknown or empty names fall back to parentbased_always_on.
func samplerFromEnv(lookup func(string) string) sdktrace.Sampler {
	ratio := func() sdktrace.Sampler {
		return sdktrace.TraceIDRatioBased(parseSamplerRatio(lookup(envTracesSamplerArg)))
	}

	switch lookup(envTracesSampler) {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return ratio()
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(ratio())
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

// parseSamplerRatio returns 1 for a missing or out-of-range ratio.
func parseSamplerRatio(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		return 1
	}
	return f
}

func defaultSampler() sdktrace.Sampler {
	return samplerFromEnv(os.Getenv)
}
