package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.IsType(t, noop.MeterProvider{}, p.MeterProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutWriter(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true})
	assert.Error(t, err)
}

func TestNew_ExportsOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(context.Background(), Config{Enabled: true, ServiceName: "aisjump-test", Writer: &buf})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	counter, err := p.MeterProvider().Meter("test").Int64Counter("runner.tracks.processed")
	require.NoError(t, err)
	counter.Add(context.Background(), 7)

	require.NoError(t, p.Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "runner.tracks.processed")
	assert.Contains(t, out, "aisjump-test")
}
