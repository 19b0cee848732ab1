package sampler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeaudit/reverb-1/internal/errkind"
	"github.com/codeaudit/reverb-1/internal/synthetic"
	"github.com/codeaudit/reverb-1/internal/table"
	"github.com/codeaudit/reverb-1/internal/tensor"
)

func defaultOptions(maxSamples int64) Options {
	return Options{
		MaxSamples:                  maxSamples,
		MaxInFlightSamplesPerWorker: 4,
		NumWorkers:                  2,
		MaxSamplesPerStream:         4,
		RateLimiterTimeout:          time.Second,
		FlexibleBatchSize:           int32(AutoSelectValue),
	}
}

func newSeededTable(t *testing.T, n int) *table.MemTable {
	t.Helper()
	mt, err := table.NewMemTable("t", 1000, "fifo", 8)
	require.NoError(t, err)
	require.NoError(t, synthetic.SeedTable(mt, n, rand.New(rand.NewSource(1))))
	return mt
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, defaultOptions(10).Validate())

	bad := defaultOptions(0)
	bad.MaxSamples = 0
	assert.Error(t, bad.Validate())
}

func TestNewLocalDeliversExactlyMaxSamples(t *testing.T) {
	mt := newSeededTable(t, 50)
	s, err := NewLocal(mt, defaultOptions(10), nil, nil)
	require.NoError(t, err)
	defer s.Close()

	var got int
	for {
		_, err := s.GetNextTrajectory()
		if err != nil {
			require.True(t, errkind.IsKind(err, errkind.OutOfRange))
			break
		}
		got++
	}
	assert.Equal(t, 10, got)
}

func TestGetNextTimestepConsumesWholeSample(t *testing.T) {
	mt := newSeededTable(t, 20)
	s, err := NewLocal(mt, defaultOptions(3), nil, nil)
	require.NoError(t, err)
	defer s.Close()

	var endOfSampleCount int
	for i := 0; i < 3*synthetic.MaxSteps+1; i++ {
		_, end, err := s.GetNextTimestep()
		if err != nil {
			require.True(t, errkind.IsKind(err, errkind.OutOfRange))
			break
		}
		if end {
			endOfSampleCount++
		}
	}
	assert.Equal(t, 3, endOfSampleCount)
}

func TestCloseUnblocksConsumer(t *testing.T) {
	mt, err := table.NewMemTable("empty", 10, "fifo", 1)
	require.NoError(t, err)
	s, err := NewLocal(mt, defaultOptions(UnlimitedMaxSamples), nil, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.GetNextTrajectory()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errkind.IsKind(err, errkind.Cancelled))
	case <-time.After(2 * time.Second):
		t.Fatal("GetNextTrajectory never returned after Close")
	}
}

func TestGetNextSampleBatchesTimesteps(t *testing.T) {
	mt := newSeededTable(t, 10)
	s, err := NewLocal(mt, defaultOptions(1), nil, nil)
	require.NoError(t, err)
	defer s.Close()

	out, err := s.GetNextSample()
	require.NoError(t, err)
	require.True(t, len(out) >= 4)
	assert.True(t, out[4].Rank() == 2 || out[4].Rank() == 1)
}

func TestValidateAgainstOutputSpecRejectsWrongDType(t *testing.T) {
	mt := newSeededTable(t, 5)
	signature := []OutputSpec{
		{DType: tensor.Bool, Shape: []int64{-1, 4}},
		{DType: tensor.Bool, Shape: []int64{-1}},
		{DType: tensor.Bool, Shape: []int64{-1}},
	}
	s, err := NewLocal(mt, defaultOptions(1), signature, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetNextTrajectory()
	require.Error(t, err)
	assert.True(t, errkind.IsKind(err, errkind.InvalidArgument))
}

func TestValidateAgainstOutputSpecRejectsScalarInBatchedMode(t *testing.T) {
	data := []tensor.Tensor{
		tensor.Scalar(tensor.Int64, 0),
		tensor.Scalar(tensor.Float64, 0),
		tensor.Scalar(tensor.Int64, 0),
		tensor.Scalar(tensor.Float64, 0),
		tensor.Scalar(tensor.Bool, 1),
	}
	signature := []OutputSpec{{DType: tensor.Bool, Shape: []int64{-1}}}

	err := ValidateAgainstOutputSpec(data, signature, ModeBatchedTimesteps)
	require.Error(t, err)
	assert.True(t, errkind.IsKind(err, errkind.InvalidArgument))
}

func TestNumWorkersCappedByInFlightBudget(t *testing.T) {
	opts := defaultOptions(2)
	opts.NumWorkers = 8
	opts.MaxInFlightSamplesPerWorker = 1
	assert.Equal(t, int64(2), opts.numWorkers())
}

func TestNumWorkersAutoSelectsDefault(t *testing.T) {
	opts := defaultOptions(100)
	opts.NumWorkers = AutoSelectValue
	assert.Equal(t, defaultNumWorkers, opts.numWorkers())
}
