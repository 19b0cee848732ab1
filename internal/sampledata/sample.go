// Package sampledata implements the Sample value type and its stateful
// iterator (spec.md §3, §4.3 — components C2's output and C3).
package sampledata

import (
	"github.com/codeaudit/reverb-1/internal/errkind"
	"github.com/codeaudit/reverb-1/internal/tensor"
)

// ChunkGroup is an ordered sequence of tensors, one per data column, all
// sharing the same leading dimension.
type ChunkGroup []tensor.Tensor

// Sample is one complete trajectory delivered to the consumer, together
// with its metadata (spec.md §3).
type Sample struct {
	Key           uint64
	Probability   float64
	TableSize     int64
	Priority      float64
	SqueezeColumn []bool

	groups          []ChunkGroup
	head            int // index of the first not-yet-popped group
	numDataColumns  int
	numTimesteps    int64
	timestepIndex   int64 // index into groups[head]
	nextTimestepHit bool  // set once NextTimestep has been called
}

// New builds a Sample from its chunk-groups. groups must be non-empty and
// every group must carry the same number of tensors (spec.md §3
// invariants).
func New(key uint64, probability float64, tableSize int64, priority float64, groups []ChunkGroup, squeeze []bool) (*Sample, error) {
	if len(groups) == 0 {
		return nil, errkind.New(errkind.Internal, "sample must have at least one chunk-group")
	}
	if len(groups[0]) == 0 {
		return nil, errkind.New(errkind.Internal, "chunk-group must hold at least one tensor")
	}
	numCols := len(groups[0])
	var total int64
	for _, g := range groups {
		if len(g) != numCols {
			return nil, errkind.New(errkind.Internal, "all chunk-groups must carry the same number of tensors, got %d and %d", numCols, len(g))
		}
		total += g[0].DimSize(0)
	}
	return &Sample{
		Key:            key,
		Probability:    probability,
		TableSize:      tableSize,
		Priority:       priority,
		SqueezeColumn:  squeeze,
		groups:         groups,
		numDataColumns: numCols,
		numTimesteps:   total,
	}, nil
}

// IsEndOfSample reports whether every chunk-group has been consumed.
func (s *Sample) IsEndOfSample() bool { return s.head >= len(s.groups) }

// IsComposedOfTimesteps reports whether every data column has the same
// total leading-dimension sum, i.e. whether NextTimestep can be used.
func (s *Sample) IsComposedOfTimesteps() bool {
	lengths := make([]int64, s.numDataColumns)
	for _, g := range s.groups {
		for i, t := range g {
			lengths[i] += t.DimSize(0)
		}
	}
	for i := 1; i < len(lengths); i++ {
		if lengths[i] != lengths[0] {
			return false
		}
	}
	return true
}

func (s *Sample) header() []tensor.Tensor {
	return []tensor.Tensor{
		tensor.Scalar(tensor.Int64, float64(s.Key)),
		tensor.Scalar(tensor.Float64, s.Probability),
		tensor.Scalar(tensor.Int64, float64(s.TableSize)),
		tensor.Scalar(tensor.Float64, s.Priority),
	}
}

// NextTimestep emits [key, probability, table_size, priority, col0[i],
// col1[i], ...] for the current timestep and advances the iterator.
// Precondition: !IsEndOfSample() && IsComposedOfTimesteps().
func (s *Sample) NextTimestep() ([]tensor.Tensor, error) {
	if s.IsEndOfSample() {
		return nil, errkind.New(errkind.FailedPrecondition, "NextTimestep called on an exhausted sample")
	}
	if !s.IsComposedOfTimesteps() {
		return nil, errkind.New(errkind.InvalidArgument, "sampled trajectory cannot be decomposed into timesteps")
	}

	group := s.groups[s.head]
	out := s.header()
	for _, t := range group {
		slice := t.SubSlice(s.timestepIndex)
		if !slice.IsAligned() {
			slice = slice.DeepCopy()
		}
		out = append(out, slice)
	}

	s.timestepIndex++
	if s.timestepIndex == group[0].DimSize(0) {
		s.groups[s.head] = nil
		s.head++
		s.timestepIndex = 0
	}
	s.nextTimestepHit = true
	return out, nil
}

// AsBatchedTimesteps emits [tile(key, T), tile(prob, T), tile(table_size,
// T), tile(priority, T), concat(col0), ...] and consumes the entire
// sample. Fails with DataLoss if NextTimestep has already been called on
// this sample, and with FailedPrecondition if it is not a timestep
// trajectory.
func (s *Sample) AsBatchedTimesteps() ([]tensor.Tensor, error) {
	if s.nextTimestepHit {
		return nil, errkind.New(errkind.DataLoss, "AsBatchedTimesteps: some timesteps have already been consumed")
	}
	if !s.IsComposedOfTimesteps() {
		return nil, errkind.New(errkind.FailedPrecondition, "AsBatchedTimesteps on a trajectory that cannot be decomposed into timesteps")
	}

	out := make([]tensor.Tensor, 0, s.numDataColumns+4)
	out = append(out,
		tileScalar(tensor.Int64, float64(s.Key), s.numTimesteps),
		tileScalar(tensor.Float64, s.Probability, s.numTimesteps),
		tileScalar(tensor.Int64, float64(s.TableSize), s.numTimesteps),
		tileScalar(tensor.Float64, s.Priority, s.numTimesteps),
	)

	perColumn := make([][]tensor.Tensor, s.numDataColumns)
	for s.head < len(s.groups) {
		for i, t := range s.groups[s.head] {
			perColumn[i] = append(perColumn[i], t)
		}
		s.groups[s.head] = nil
		s.head++
	}
	for _, parts := range perColumn {
		concatenated, err := tensor.Concat(parts)
		if err != nil {
			return nil, err
		}
		out = append(out, concatenated)
	}
	return out, nil
}

// AsTrajectory emits the sample's columns (concatenated if more than one
// chunk-group is present) with scalar header fields and with squeeze
// columns reduced. Fails with DataLoss if NextTimestep has already been
// called.
func (s *Sample) AsTrajectory() ([]tensor.Tensor, error) {
	if s.nextTimestepHit {
		return nil, errkind.New(errkind.DataLoss, "AsTrajectory: some timesteps have already been consumed")
	}

	out := make([]tensor.Tensor, s.numDataColumns+4)
	out[0] = tensor.Scalar(tensor.Int64, float64(s.Key))
	out[1] = tensor.Scalar(tensor.Float64, s.Probability)
	out[2] = tensor.Scalar(tensor.Int64, float64(s.TableSize))
	out[3] = tensor.Scalar(tensor.Float64, s.Priority)

	if len(s.groups)-s.head == 1 {
		for i, t := range s.groups[s.head] {
			out[i+4] = t
		}
		s.head++
	} else {
		perColumn := make([][]tensor.Tensor, s.numDataColumns)
		for s.head < len(s.groups) {
			for i, t := range s.groups[s.head] {
				perColumn[i] = append(perColumn[i], t)
			}
			s.groups[s.head] = nil
			s.head++
		}
		for i, parts := range perColumn {
			concatenated, err := tensor.Concat(parts)
			if err != nil {
				return nil, err
			}
			out[i+4] = concatenated
		}
	}

	for i, squeeze := range s.SqueezeColumn {
		if !squeeze {
			continue
		}
		col := out[i+4]
		if col.DimSize(0) != 1 {
			return nil, errkind.New(errkind.Internal, "tried to squeeze column %d with batch size %d", i, col.DimSize(0))
		}
		sliced := col.SubSlice(0)
		if !sliced.IsAligned() {
			sliced = sliced.DeepCopy()
		}
		out[i+4] = sliced
	}

	return out, nil
}

func tileScalar(dtype tensor.DType, value float64, n int64) tensor.Tensor {
	data := make([]float64, n)
	for i := range data {
		data[i] = value
	}
	return tensor.New(dtype, []int64{n}, data)
}
