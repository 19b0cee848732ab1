package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceAndSubSlice(t *testing.T) {
	tt := New(Float64, []int64{4, 2}, []float64{0, 1, 2, 3, 4, 5, 6, 7})

	sliced := tt.Slice(1, 3)
	assert.Equal(t, []int64{2, 2}, sliced.Shape)
	assert.Equal(t, []float64{2, 3, 4, 5}, sliced.Data)

	row := tt.SubSlice(2)
	assert.Equal(t, []int64{2}, row.Shape)
	assert.Equal(t, []float64{4, 5}, row.Data)
}

func TestConcat(t *testing.T) {
	a := New(Int64, []int64{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	b := New(Int64, []int64{1, 3}, []float64{7, 8, 9})

	out, err := Concat([]Tensor{a, b})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 3}, out.Shape)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, out.Data)
}

func TestConcatRejectsDtypeMismatch(t *testing.T) {
	a := New(Int64, []int64{1}, []float64{1})
	b := New(Float64, []int64{1}, []float64{2})
	_, err := Concat([]Tensor{a, b})
	assert.Error(t, err)
}

func TestConcatRejectsTailShapeMismatch(t *testing.T) {
	a := New(Int64, []int64{1, 2}, []float64{1, 2})
	b := New(Int64, []int64{1, 3}, []float64{1, 2, 3})
	_, err := Concat([]Tensor{a, b})
	assert.Error(t, err)
}

func TestDeltaDecode(t *testing.T) {
	encoded := New(Float64, []int64{4}, []float64{10, 1, 1, 1})
	decoded := DeltaDecode(encoded)
	assert.Equal(t, []float64{10, 11, 12, 13}, decoded.Data)
}

func TestDeltaDecodeScalarIsNoop(t *testing.T) {
	s := Scalar(Float64, 5)
	decoded := DeltaDecode(s)
	assert.Equal(t, []float64{5}, decoded.Data)
}

func TestDimSizeOnScalar(t *testing.T) {
	s := Scalar(Int64, 7)
	assert.Equal(t, int64(1), s.DimSize(0))
	assert.Equal(t, 0, s.Rank())
}

func TestDeepCopyIsIndependent(t *testing.T) {
	original := New(Float64, []int64{2}, []float64{1, 2})
	copied := original.DeepCopy()
	copied.Data[0] = 99
	assert.Equal(t, float64(1), original.Data[0])
	assert.True(t, copied.IsAligned())
}
