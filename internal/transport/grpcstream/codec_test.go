package grpcstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeaudit/reverb-1/internal/reverbpb"
)

func TestGobCodecRoundTrip(t *testing.T) {
	c := gobCodec{}
	req := &reverbpb.SampleStreamRequest{
		Table:                "t",
		NumSamples:           3,
		RateLimiterTimeoutMs: 1000,
		FlexibleBatchSize:    8,
	}

	data, err := c.Marshal(req)
	require.NoError(t, err)

	var out reverbpb.SampleStreamRequest
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, *req, out)
}

func TestGobCodecName(t *testing.T) {
	assert.Equal(t, CodecName, gobCodec{}.Name())
}
