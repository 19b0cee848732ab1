// Package reassemble implements the chunk reassembler (spec.md §4.2,
// component C2): turning a set of streamed/received responses, or a
// locally sampled item, into one sampledata.Sample.
//
// Ported from the general-case / timestep-fast-path split in
// original_source/reverb/cc/sampler.cc (AsSample / TimestepTrajectoryAsSample).
package reassemble

import (
	"github.com/codeaudit/reverb-1/internal/errkind"
	"github.com/codeaudit/reverb-1/internal/reverbpb"
	"github.com/codeaudit/reverb-1/internal/sampledata"
	"github.com/codeaudit/reverb-1/internal/tensor"
)

// decodeColumnChunk decodes the tensor a chunk carries for columnIndex,
// applying inverse-delta if the chunk was delta-encoded.
func decodeColumnChunk(chunk *reverbpb.ChunkData, columnIndex int) (tensor.Tensor, error) {
	if columnIndex >= len(chunk.Tensors) {
		return tensor.Tensor{}, errkind.New(errkind.Internal, "chunk %d does not carry a tensor for column %d", chunk.ChunkKey, columnIndex)
	}
	raw := chunk.Tensors[columnIndex]
	t := tensor.Decompress(raw.DType, raw.Shape, raw.Payload)
	if chunk.DeltaEncoded {
		t = tensor.DeltaDecode(t)
	}
	return t, nil
}

// FromResponses reassembles one Sample from the full set of responses
// that made up a logical sample on the SampleStream RPC (spec.md §6).
// responses[0] must carry Info. On the timestep fast path each
// response's Data is set to nil once it has been decoded, so the caller
// must not reuse responses afterwards.
func FromResponses(responses []reverbpb.SampleStreamResponse) (*sampledata.Sample, error) {
	if len(responses) == 0 || responses[0].Info == nil {
		return nil, errkind.New(errkind.Internal, "reassemble: responses must be non-empty and start with a header")
	}
	info := responses[0].Info
	traj := info.Item.FlatTrajectory

	if traj.IsTimestepTrajectory() {
		return timestepFastPath(responses, info)
	}
	return generalPath(responses, info)
}

// FromSampledItem reassembles one Sample from a local Table.
// SampleFlexibleBatch result (spec.md §6, "local source contract").
func FromSampledItem(item reverbpb.SampledItem) (*sampledata.Sample, error) {
	traj := item.Item.FlatTrajectory
	chunks := make(map[uint64]*reverbpb.ChunkData, len(item.Chunks))
	for _, c := range item.Chunks {
		chunks[c.ChunkKey] = c
	}

	group, err := unpackColumnsGeneral(traj, chunks)
	if err != nil {
		return nil, err
	}

	squeeze := squeezeFlags(traj)
	return sampledata.New(item.Item.Key, item.Probability, item.TableSize, item.Item.Priority,
		[]sampledata.ChunkGroup{group}, squeeze)
}

func squeezeFlags(traj reverbpb.FlatTrajectory) []bool {
	out := make([]bool, len(traj.Columns))
	for i, col := range traj.Columns {
		out[i] = col.Squeeze
	}
	return out
}

// generalPath implements the general (non-timestep) reassembly: for each
// column, decode+slice+concat its referenced chunk ranges into one
// tensor, producing a single chunk-group.
func generalPath(responses []reverbpb.SampleStreamResponse, info *reverbpb.SampleInfo) (*sampledata.Sample, error) {
	chunks := make(map[uint64]*reverbpb.ChunkData)
	for _, r := range responses {
		if r.Data != nil {
			chunks[r.Data.ChunkKey] = r.Data
		}
	}

	group, err := unpackColumnsGeneral(info.Item.FlatTrajectory, chunks)
	if err != nil {
		return nil, err
	}

	squeeze := squeezeFlags(info.Item.FlatTrajectory)
	return sampledata.New(info.Item.Key, info.Probability, info.TableSize, info.Item.Priority,
		[]sampledata.ChunkGroup{group}, squeeze)
}

func unpackColumnsGeneral(traj reverbpb.FlatTrajectory, chunks map[uint64]*reverbpb.ChunkData) (sampledata.ChunkGroup, error) {
	group := make(sampledata.ChunkGroup, 0, len(traj.Columns))
	for colIdx, col := range traj.Columns {
		parts := make([]tensor.Tensor, 0, len(col.ChunkSlices))
		for _, sl := range col.ChunkSlices {
			chunk, ok := chunks[sl.ChunkKey]
			if !ok {
				return nil, errkind.New(errkind.Internal, "chunk %d could not be found when unpacking item", sl.ChunkKey)
			}
			decoded, err := decodeColumnChunk(chunk, colIdx)
			if err != nil {
				return nil, err
			}
			sliced := decoded.Slice(sl.Offset, sl.Offset+sl.Length)
			if !sliced.IsAligned() {
				sliced = sliced.DeepCopy()
			}
			parts = append(parts, sliced)
		}
		concatenated, err := tensor.Concat(parts)
		if err != nil {
			return nil, err
		}
		group = append(group, concatenated)
	}
	return group, nil
}

// timestepFastPath implements the lower-peak-memory reassembly used when
// the descriptor's columns align on chunk boundaries: each response's
// chunks become one chunk-group, trimmed by the descriptor's leading
// offset on the first and its tail on the last. Each response's Data is
// dropped as soon as its tensors are decoded, so this function holds at
// most one response's worth of raw payload at a time.
func timestepFastPath(responses []reverbpb.SampleStreamResponse, info *reverbpb.SampleInfo) (*sampledata.Sample, error) {
	traj := info.Item.FlatTrajectory
	offset := traj.Offset()
	remaining := traj.Length()

	groups := make([]sampledata.ChunkGroup, 0, len(responses))

	for idx, resp := range responses {
		if resp.Data == nil {
			continue
		}
		if remaining <= 0 {
			return nil, errkind.New(errkind.Internal, "timestep fast path: remaining timesteps exhausted before chunks did")
		}

		chunk := resp.Data
		batch := make([]tensor.Tensor, len(chunk.Tensors))
		batchSize := int64(-1)

		for i, raw := range chunk.Tensors {
			t := tensor.Decompress(raw.DType, raw.Shape, raw.Payload)
			if chunk.DeltaEncoded {
				t = tensor.DeltaDecode(t)
			}
			if batchSize < 0 {
				batchSize = t.DimSize(0)
			} else if batchSize != t.DimSize(0) {
				return nil, errkind.New(errkind.Internal,
					"chunks of the same response must have identical batch size, but first chunk has batch size %d while the current chunk has batch size %d",
					batchSize, t.DimSize(0))
			}

			hi := offset + remaining
			if hi > batchSize {
				hi = batchSize
			}
			sliced := t.Slice(offset, hi)
			if !sliced.IsAligned() {
				sliced = sliced.DeepCopy()
			}
			batch[i] = sliced
		}

		groups = append(groups, sampledata.ChunkGroup(batch))
		responses[idx].Data = nil

		consumed := batchSize - offset
		if consumed > remaining {
			consumed = remaining
		}
		remaining -= consumed
		offset = 0
	}

	if remaining != 0 {
		return nil, errkind.New(errkind.Internal, "timestep fast path: %d timesteps unaccounted for after consuming all chunks", remaining)
	}

	squeeze := squeezeFlags(traj)
	return sampledata.New(info.Item.Key, info.Probability, info.TableSize, info.Item.Priority, groups, squeeze)
}
