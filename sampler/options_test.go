package sampler

import (
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsValidateAggregatesAllViolations(t *testing.T) {
	opts := Options{
		MaxSamples:                  0,
		MaxInFlightSamplesPerWorker: 0,
		NumWorkers:                  0,
		MaxSamplesPerStream:         0,
		RateLimiterTimeout:          -time.Second,
		FlexibleBatchSize:           0,
	}

	err := opts.Validate()
	require.Error(t, err)

	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	assert.Len(t, merr.Errors, 6)
}

func TestOptionsValidateAcceptsSentinels(t *testing.T) {
	opts := Options{
		MaxSamples:                  UnlimitedMaxSamples,
		MaxInFlightSamplesPerWorker: 4,
		NumWorkers:                  AutoSelectValue,
		MaxSamplesPerStream:         UnlimitedMaxSamples,
		RateLimiterTimeout:          0,
		FlexibleBatchSize:           int32(AutoSelectValue),
	}
	assert.NoError(t, opts.Validate())
}
