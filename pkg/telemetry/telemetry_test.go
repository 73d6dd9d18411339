package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/claimhub/search-service/pkg/telemetry"
)

func TestStartSpanAfterSetup(t *testing.T) {
	shutdown, err := telemetry.SetupTelemetry(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		// export may fail without a collector, shutdown itself must not hang
		_ = shutdown(ctx)
	})

	ctx, span := telemetry.StartSpan(context.Background(), "test-span")
	defer span.End()
	require.True(t, span.SpanContext().IsValid())
	// the span must flow through the returned context
	require.Equal(t, span.SpanContext().SpanID(), trace.SpanContextFromContext(ctx).SpanID())
}

func TestGetInstrumentedHTTPClient(t *testing.T) {
	client := telemetry.GetInstrumentedHTTPClient()
	require.NotNil(t, client.Transport)
}
