package tracing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetTracer(t *testing.T) {
	t.Setenv("JAEGER_DISABLED", "true")

	tracer, err := GetTracer("syncdb")
	require.NoError(t, err)
	require.NotNil(t, tracer)

	again, err := GetTracer("syncdb")
	require.NoError(t, err)
	require.Equal(t, tracer, again)

	require.NoError(t, CloseAll())
	require.Len(t, catalog.tracerByService, 0)
}

func TestGetTracer_BadEnv(t *testing.T) {
	t.Setenv("JAEGER_SAMPLER_PARAM", "not a number")

	_, err := GetTracer("bad")
	require.Error(t, err)
	require.Contains(t, err.Error(), "error parsing jaeger configuration from environment: ")
}
