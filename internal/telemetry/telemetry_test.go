package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"

	"cookflow/internal/config"
)

func TestSetupDisabled(t *testing.T) {
	p, err := Setup(context.Background(), config.TelemetryConfig{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.LogHandler())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetupExportsSpans(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prev := otel.GetTracerProvider()
	prevLogs := global.GetLoggerProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		global.SetLoggerProvider(prevLogs)
	})

	ctx := context.Background()
	p, err := Setup(ctx, config.TelemetryConfig{OTLPEndpoint: srv.URL, ServiceName: "cookflow-test"})
	require.NoError(t, err)
	require.True(t, p.Enabled())
	require.NotNil(t, p.LogHandler())

	_, span := otel.Tracer("test").Start(ctx, "op")
	span.End()
	require.NoError(t, p.Shutdown(ctx))
	assert.Positive(t, hits.Load())
}
