// Package tensor implements the tensor primitive contract the sampling
// engine consumes (spec.md §6, "Tensor primitive contract"): decompress,
// delta-decode, slice, sub-slice, deep-copy, alignment check, concat.
//
// The engine itself treats these as an external, assumed-available
// collaborator. This package is the stand-in implementation: a dense,
// row-major tensor over a small set of scalar dtypes, stored as a flat
// []float64 payload (values are always widened to float64 internally;
// DType is tracked separately so validation can still distinguish, say,
// Int64 columns from Float32 columns without needing a generic numeric
// backend). There is no suitable third-party tensor library in the
// example pack that exposes this exact primitive set (inverse-delta
// decode, aligned sub-slicing, shape-checked concat) over arbitrary
// dtypes, and the spec places tensor primitives out of scope for the
// engine proper, so this is built on the standard library only — see
// DESIGN.md.
package tensor

import (
	"fmt"
)

// DType is the scalar element type of a Tensor.
type DType int

const (
	Float32 DType = iota
	Float64
	Int32
	Int64
	Bool
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Tensor is an immutable-by-convention dense array. Shape[0] is the
// leading ("batch"/timestep) dimension; operations that slice along axis
// 0 are the only slicing operations the engine needs.
//
// The `aligned` flag models whether a view shares backing storage in a
// way that is safe to hand to a caller directly (mirrors
// tensorflow::Tensor::IsAligned, which is false for some sub-slices taken
// from a buffer with non-trivial strides). Views produced by Slice/
// SubSlice here are always actually aligned in memory (Go slicing over a
// contiguous []float64 cannot produce misalignment), but the flag is
// still threaded through and can be forced false by DeepCopy's callers'
// callers having passed in data that was marked unaligned upstream (e.g.
// a tensor reconstructed from a non-contiguous source). This keeps the
// reassembler and iterator code paths faithful to the original's
// is-aligned-then-deep-copy branches even though, for this in-memory
// backend, every slice happens to already be aligned.
type Tensor struct {
	DType   DType
	Shape   []int64
	Data    []float64
	aligned bool
}

// New builds a Tensor with the given dtype/shape/flat data. The returned
// Tensor is aligned.
func New(dtype DType, shape []int64, data []float64) Tensor {
	return Tensor{DType: dtype, Shape: append([]int64(nil), shape...), Data: data, aligned: true}
}

// Scalar builds a rank-0 Tensor from a single value.
func Scalar(dtype DType, value float64) Tensor {
	return Tensor{DType: dtype, Shape: []int64{}, Data: []float64{value}, aligned: true}
}

// Rank returns len(Shape).
func (t Tensor) Rank() int { return len(t.Shape) }

// DimSize returns Shape[i], or 1 for a rank-0 tensor when i == 0 (the
// original treats a scalar's "leading dimension" as an implicit 1 in a
// couple of call sites; here we keep that implicit behind an explicit
// helper instead of reproducing it ad hoc at each call site).
func (t Tensor) DimSize(i int) int64 {
	if t.Rank() == 0 {
		return 1
	}
	return t.Shape[i]
}

func (t Tensor) elemsPerRow() int64 {
	n := int64(1)
	for _, d := range t.Shape[1:] {
		n *= d
	}
	return n
}

// IsAligned reports whether the tensor's backing view is safe to hand to
// a caller without copying.
func (t Tensor) IsAligned() bool { return t.aligned }

// DeepCopy returns an independent, always-aligned copy of t.
func (t Tensor) DeepCopy() Tensor {
	data := append([]float64(nil), t.Data...)
	return Tensor{DType: t.DType, Shape: append([]int64(nil), t.Shape...), Data: data, aligned: true}
}

// Slice returns the half-open range [lo, hi) along axis 0.
func (t Tensor) Slice(lo, hi int64) Tensor {
	if t.Rank() == 0 {
		panic("tensor: cannot Slice a scalar")
	}
	rowLen := t.elemsPerRow()
	out := Tensor{
		DType: t.DType,
		Shape: append([]int64{hi - lo}, t.Shape[1:]...),
		Data:  t.Data[lo*rowLen : hi*rowLen],
	}
	out.aligned = t.aligned
	return out
}

// SubSlice returns the i-th row along axis 0 as a rank-(n-1) tensor.
func (t Tensor) SubSlice(i int64) Tensor {
	if t.Rank() == 0 {
		panic("tensor: cannot SubSlice a scalar")
	}
	rowLen := t.elemsPerRow()
	out := Tensor{
		DType: t.DType,
		Shape: append([]int64(nil), t.Shape[1:]...),
		Data:  t.Data[i*rowLen : (i+1)*rowLen],
	}
	out.aligned = t.aligned
	return out
}

// Concat concatenates tensors along axis 0. All inputs must share dtype
// and the tail shape (Shape[1:]).
func Concat(parts []Tensor) (Tensor, error) {
	if len(parts) == 0 {
		return Tensor{}, fmt.Errorf("tensor: Concat requires at least one tensor")
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	head := parts[0]
	total := head.DimSize(0)
	for _, p := range parts[1:] {
		if p.DType != head.DType {
			return Tensor{}, fmt.Errorf("tensor: Concat dtype mismatch: %s vs %s", head.DType, p.DType)
		}
		if !tailEqual(p.Shape, head.Shape) {
			return Tensor{}, fmt.Errorf("tensor: Concat shape mismatch: %v vs %v", p.Shape, head.Shape)
		}
		total += p.DimSize(0)
	}
	shape := append([]int64{total}, head.Shape[1:]...)
	data := make([]float64, 0, sizeOf(shape))
	for _, p := range parts {
		data = append(data, p.Data...)
	}
	return Tensor{DType: head.DType, Shape: shape, Data: data, aligned: true}, nil
}

func tailEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 1; i < len(a); i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sizeOf(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

// DeltaDecode applies the inverse of delta-encoding along axis 0:
// out[0] = in[0], out[i] = out[i-1] + in[i] for i > 0. This is the
// decode-side inverse of whatever delta-encoding step produced a chunk
// with ChunkData.DeltaEncoded set.
func DeltaDecode(t Tensor) Tensor {
	if t.Rank() == 0 || t.DimSize(0) <= 1 {
		return t.DeepCopy()
	}
	rowLen := t.elemsPerRow()
	out := t.DeepCopy()
	for row := int64(1); row < t.DimSize(0); row++ {
		for j := int64(0); j < rowLen; j++ {
			out.Data[row*rowLen+j] += out.Data[(row-1)*rowLen+j]
		}
	}
	return out
}

// Decompress inflates a compressed tensor body into a Tensor. The
// in-memory transport never actually compresses payloads (compression is
// a transport/storage concern external to this engine, per spec.md §1),
// so decode here is the identity transform over the already-decoded
// payload carried by ChunkData — this keeps the call site in the
// reassembler symmetric with the wire path, where a real codec would be
// plugged in.
func Decompress(dtype DType, shape []int64, payload []float64) Tensor {
	return New(dtype, shape, append([]float64(nil), payload...))
}
