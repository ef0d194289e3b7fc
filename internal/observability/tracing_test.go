package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplerFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		sampler string
		arg     string
		want    string
	}{
		{"default", "", "", "ParentBased{root:AlwaysOnSampler"},
		{"unknown", "sometimes", "", "ParentBased{root:AlwaysOnSampler"},
		{"always on", "always_on", "", "AlwaysOnSampler"},
		{"always off", "always_off", "", "AlwaysOffSampler"},
		{"ratio", "traceidratio", "0.25", "TraceIDRatioBased{0.25}"},
		{"ratio out of range", "traceidratio", "2", "AlwaysOnSampler"},
		{"parent ratio", "parentbased_traceidratio", "0.5", "ParentBased{root:TraceIDRatioBased{0.5}"},
		{"parent off", "parentbased_always_off", "", "ParentBased{root:AlwaysOffSampler"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{envTracesSampler: tt.sampler, envTracesSamplerArg: tt.arg}
			s := samplerFromEnv(func(k string) string { return env[k] })
			assert.Contains(t, s.Description(), tt.want)
		})
	}
}

func TestParseSamplerRatio(t *testing.T) {
	assert.InDelta(t, 1.0, parseSamplerRatio(""), 1e-9)
	assert.InDelta(t, 1.0, parseSamplerRatio("abc"), 1e-9)
	assert.InDelta(t, 1.0, parseSamplerRatio("-0.1"), 1e-9)
	assert.InDelta(t, 0.1, parseSamplerRatio("0.1"), 1e-9)
}

func TestNewTracerProvider(t *testing.T) {
	ctx := context.Background()

	tp, err := NewTracerProvider(ctx, "finder-test", "")
	require.NoError(t, err)
	assert.Nil(t, tp)
	require.NoError(t, ShutdownTracerProvider(ctx, tp))

	_, err = NewTracerProvider(ctx, "finder-test", "zipkin")
	require.Error(t, err)

	tp, err = NewTracerProvider(ctx, "finder-test", TraceExporterStdout)
	require.NoError(t, err)
	require.NotNil(t, tp)
	require.NoError(t, ShutdownTracerProvider(ctx, tp))
}
