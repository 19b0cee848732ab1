package sampledata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeaudit/reverb-1/internal/errkind"
	"github.com/codeaudit/reverb-1/internal/tensor"
)

func timestepGroup(t0, t1 int64, n int64) ChunkGroup {
	obs := make([]float64, n*2)
	actions := make([]float64, n)
	for i := int64(0); i < n; i++ {
		obs[2*i] = float64(t0 + i)
		obs[2*i+1] = float64(t0+i) * 10
		actions[i] = float64(t1 + i)
	}
	return ChunkGroup{
		tensor.New(tensor.Float64, []int64{n, 2}, obs),
		tensor.New(tensor.Int64, []int64{n}, actions),
	}
}

func TestNewRejectsEmptyGroups(t *testing.T) {
	_, err := New(1, 0.5, 10, 1.0, nil, nil)
	require.Error(t, err)
	assert.True(t, errkind.IsKind(err, errkind.Internal))
}

func TestNewRejectsMismatchedColumnCounts(t *testing.T) {
	g1 := timestepGroup(0, 0, 2)
	g2 := ChunkGroup{g1[0]}
	_, err := New(1, 0.5, 10, 1.0, []ChunkGroup{g1, g2}, []bool{false, false})
	require.Error(t, err)
}

func TestNextTimestepAdvancesAndEnds(t *testing.T) {
	g := timestepGroup(0, 100, 3)
	s, err := New(7, 0.25, 50, 1.0, []ChunkGroup{g}, []bool{false, false})
	require.NoError(t, err)

	require.True(t, s.IsComposedOfTimesteps())

	for i := int64(0); i < 3; i++ {
		assert.False(t, s.IsEndOfSample())
		step, err := s.NextTimestep()
		require.NoError(t, err)
		require.Len(t, step, 6) // 4 header + 2 data columns
		assert.Equal(t, float64(7), step[0].Data[0])
		assert.Equal(t, float64(i), step[4].Data[0])
	}
	assert.True(t, s.IsEndOfSample())

	_, err = s.NextTimestep()
	require.Error(t, err)
	assert.True(t, errkind.IsKind(err, errkind.FailedPrecondition))
}

func TestAsBatchedTimestepsTilesHeader(t *testing.T) {
	g := timestepGroup(0, 0, 4)
	s, err := New(3, 0.5, 20, 2.0, []ChunkGroup{g}, []bool{false, false})
	require.NoError(t, err)

	out, err := s.AsBatchedTimesteps()
	require.NoError(t, err)
	require.Len(t, out, 6)
	assert.Equal(t, []int64{4}, out[0].Shape)
	for _, v := range out[0].Data {
		assert.Equal(t, float64(3), v)
	}
	assert.True(t, s.IsEndOfSample())
}

func TestAsBatchedTimestepsFailsAfterNextTimestep(t *testing.T) {
	g := timestepGroup(0, 0, 2)
	s, err := New(1, 0.5, 10, 1.0, []ChunkGroup{g}, []bool{false, false})
	require.NoError(t, err)

	_, err = s.NextTimestep()
	require.NoError(t, err)

	_, err = s.AsBatchedTimesteps()
	require.Error(t, err)
	assert.True(t, errkind.IsKind(err, errkind.DataLoss))
}

func TestAsTrajectorySingleGroupNoConcat(t *testing.T) {
	g := timestepGroup(0, 0, 3)
	s, err := New(9, 0.1, 5, 1.0, []ChunkGroup{g}, []bool{false, false})
	require.NoError(t, err)

	out, err := s.AsTrajectory()
	require.NoError(t, err)
	require.Len(t, out, 6)
	assert.Equal(t, []int64{3, 2}, out[4].Shape)
}

func TestAsTrajectoryConcatsMultipleGroups(t *testing.T) {
	g1 := timestepGroup(0, 0, 2)
	g2 := timestepGroup(2, 0, 3)
	s, err := New(9, 0.1, 5, 1.0, []ChunkGroup{g1, g2}, []bool{false, false})
	require.NoError(t, err)

	out, err := s.AsTrajectory()
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 2}, out[4].Shape)
}

func TestAsTrajectorySqueezesColumn(t *testing.T) {
	obs := tensor.New(tensor.Float64, []int64{1, 2}, []float64{1, 2})
	action := tensor.New(tensor.Int64, []int64{1}, []float64{9})
	g := ChunkGroup{obs, action}
	s, err := New(1, 0.5, 10, 1.0, []ChunkGroup{g}, []bool{false, true})
	require.NoError(t, err)

	out, err := s.AsTrajectory()
	require.NoError(t, err)
	assert.Equal(t, 0, out[5].Rank()) // squeezed to scalar
}

func TestAsTrajectorySqueezeRejectsBatchGreaterThanOne(t *testing.T) {
	obs := tensor.New(tensor.Float64, []int64{2, 2}, []float64{1, 2, 3, 4})
	action := tensor.New(tensor.Int64, []int64{2}, []float64{9, 10})
	g := ChunkGroup{obs, action}
	s, err := New(1, 0.5, 10, 1.0, []ChunkGroup{g}, []bool{false, true})
	require.NoError(t, err)

	_, err = s.AsTrajectory()
	require.Error(t, err)
	assert.True(t, errkind.IsKind(err, errkind.Internal))
}
