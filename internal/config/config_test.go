package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/censusrm/caseprocessor/internal/config"
)

func Test_Load_UsesDefaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, "caseprocessor", cfg.ServiceName)
	assert.Len(t, cfg.InboundStreams, 10)
	assert.Equal(t,
		config.StreamBinding{Stream: "sample-loaded", Kind: "SAMPLE_LOADED"},
		cfg.InboundStreams[0])
	assert.Equal(t, 4, cfg.WorkersPerStream)
	assert.Equal(t, 2*time.Second, cfg.ExceptionManagerTimeout)
}

func Test_Load_ReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "caseprocessor-test")
	t.Setenv("WORKERS_PER_STREAM", "8")
	t.Setenv("INBOUND_STREAMS", "one:SAMPLE_LOADED, two ,three:RESPONSE_RECEIVED")
	t.Setenv("EXCEPTION_MANAGER_TIMEOUT", "500ms")

	cfg := config.Load()

	assert.Equal(t, "caseprocessor-test", cfg.ServiceName)
	assert.Equal(t, 8, cfg.WorkersPerStream)
	assert.Equal(t, []config.StreamBinding{
		{Stream: "one", Kind: "SAMPLE_LOADED"},
		{Stream: "two"},
		{Stream: "three", Kind: "RESPONSE_RECEIVED"},
	}, cfg.InboundStreams)
	assert.Equal(t, 500*time.Millisecond, cfg.ExceptionManagerTimeout)
}

func Test_Load_FallsBackOnUnparsableValues(t *testing.T) {
	t.Setenv("WORKERS_PER_STREAM", "not-a-number")
	t.Setenv("EXCEPTION_MANAGER_TIMEOUT", "soon")

	cfg := config.Load()

	assert.Equal(t, 4, cfg.WorkersPerStream)
	assert.Equal(t, 2*time.Second, cfg.ExceptionManagerTimeout)
}
