package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/docflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
)

func keepGlobals(t *testing.T) {
	t.Helper()
	tp, mp := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func shutdownQuick(t *testing.T, p *Providers) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
}

func TestInit_DisabledKeepsNoop(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()

	p, err := Init(config.TelemetryConfig{}, "v1.0.0", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.mp)
	assert.Same(t, before, otel.GetTracerProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_EnabledInstallsSDKProviders(t *testing.T) {
	keepGlobals(t)

	p, err := Init(config.TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "localhost:4317",
		SampleRate:   0.5,
	}, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	shutdownQuick(t, p)

	assert.True(t, p.Enabled())
	assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
	assert.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())
}

func TestInit_RequiresEndpoint(t *testing.T) {
	keepGlobals(t)
	p, err := Init(config.TelemetryConfig{Enabled: true}, "dev", nil)
	assert.ErrorContains(t, err, "otlp_endpoint")
	assert.Nil(t, p)
}

func TestSampleRatio(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 1},
		{-0.3, 1},
		{0.25, 0.25},
		{1, 1},
		{7, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sampleRatio(tt.in), "rate %v", tt.in)
	}
}

func TestProviders_ShutdownNil(t *testing.T) {
	var p *Providers
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}
