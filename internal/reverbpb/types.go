// Package reverbpb defines the wire types exchanged between a sampler and
// a table: the flat trajectory descriptor, chunk payloads and the
// SampleStream request/response pair described in spec.md §6.
//
// These mirror deepmind/reverb's reverb_service.proto and schema.proto
// messages (see original_source/reverb/cc/sampler.cc for the consuming
// code) but are plain Go structs rather than protoc-gen-go output: no
// protobuf compiler is available in this environment, so
// internal/transport/grpcstream carries them over gRPC via a hand-written
// codec instead of generated marshal/unmarshal code. Field names and
// nesting follow the proto messages directly so the mapping stays
// legible against the original.
package reverbpb

import "github.com/codeaudit/reverb-1/internal/tensor"

// ChunkSlice identifies a [start, start+length) range within a chunk
// along axis 0. Its Squeeze flag is carried on the wire but not read by
// the reassembler, which takes squeeze flags from Column.Squeeze.
type ChunkSlice struct {
	ChunkKey uint64
	Offset   int64
	Length   int64
	Squeeze  bool
}

// Column is an ordered list of chunk slices that, concatenated along
// axis 0, form one trajectory column.
type Column struct {
	ChunkSlices []ChunkSlice
	Squeeze     bool
}

// FlatTrajectory is the flat trajectory descriptor (spec.md §3).
type FlatTrajectory struct {
	Columns []Column
}

// ChunkKeys returns the set of distinct chunk keys referenced anywhere in
// the descriptor, in first-seen order.
func (f FlatTrajectory) ChunkKeys() []uint64 {
	seen := make(map[uint64]struct{})
	var keys []uint64
	for _, col := range f.Columns {
		for _, sl := range col.ChunkSlices {
			if _, ok := seen[sl.ChunkKey]; !ok {
				seen[sl.ChunkKey] = struct{}{}
				keys = append(keys, sl.ChunkKey)
			}
		}
	}
	return keys
}

// IsTimestepTrajectory reports whether every column has identical total
// length and aligns on the same chunk boundaries, i.e. whether the
// descriptor can be iterated per-timestep (spec.md §3).
func (f FlatTrajectory) IsTimestepTrajectory() bool {
	if len(f.Columns) == 0 {
		return false
	}
	ref := f.Columns[0].ChunkSlices
	for _, col := range f.Columns[1:] {
		if len(col.ChunkSlices) != len(ref) {
			return false
		}
		for i, sl := range col.ChunkSlices {
			if sl.ChunkKey != ref[i].ChunkKey || sl.Offset != ref[i].Offset || sl.Length != ref[i].Length {
				return false
			}
		}
	}
	return true
}

// Offset returns the leading offset to trim from the first chunk on the
// timestep fast path.
func (f FlatTrajectory) Offset() int64 {
	if len(f.Columns) == 0 || len(f.Columns[0].ChunkSlices) == 0 {
		return 0
	}
	return f.Columns[0].ChunkSlices[0].Offset
}

// Length returns the total timestep length of the descriptor, valid when
// IsTimestepTrajectory is true.
func (f FlatTrajectory) Length() int64 {
	if len(f.Columns) == 0 {
		return 0
	}
	var total int64
	for _, sl := range f.Columns[0].ChunkSlices {
		total += sl.Length
	}
	return total
}

// ItemMetadata identifies one sampled item and its trajectory recipe.
type ItemMetadata struct {
	Key            uint64
	Priority       float64
	FlatTrajectory FlatTrajectory
}

// ChunkData is one immutable chunk payload: a key, the delta-encoding
// flag, and one raw tensor per data column it carries.
type ChunkData struct {
	ChunkKey     uint64
	DeltaEncoded bool
	Tensors      []RawTensor
}

// RawTensor is the wire representation of a compressed tensor body: a
// dtype/shape header plus the payload. Decompress in internal/tensor
// turns this into a tensor.Tensor.
type RawTensor struct {
	DType   tensor.DType
	Shape   []int64
	Payload []float64
}

// SampleInfo is the header portion of a SampleStreamResponse.
type SampleInfo struct {
	Item        ItemMetadata
	Probability float64
	TableSize   int64
}

// SampleStreamRequest is one request message on the SampleStream RPC
// (spec.md §6).
type SampleStreamRequest struct {
	Table               string
	NumSamples          int64
	RateLimiterTimeoutMs int64
	FlexibleBatchSize    int32
}

// SampleStreamResponse is one response message on the SampleStream RPC.
// Info is populated only on the first response of a logical sample; Data
// is absent for a header-only response.
type SampleStreamResponse struct {
	Info     *SampleInfo
	Data     *ChunkData
	HasData  bool
}

// SampledItem is what a local Table.SampleFlexibleBatch call returns per
// item: the metadata plus shared references to the chunks it needs.
type SampledItem struct {
	Item        ItemMetadata
	Probability float64
	TableSize   int64
	Chunks      []*ChunkData
}
