package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupTracing_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "", "storm-data-verify")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_ShutdownWithUnreachableEndpoint(t *testing.T) {
	// Non-routable address: no span is exported before shutdown.
	shutdown, err := SetupTracing(context.Background(), "http://192.0.2.1:4318", "storm-data-verify")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
