package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeaudit/reverb-1/internal/reverbpb"
)

func TestSampleIsDoneRequiresEveryChunk(t *testing.T) {
	traj := reverbpb.FlatTrajectory{
		Columns: []reverbpb.Column{
			{ChunkSlices: []reverbpb.ChunkSlice{{ChunkKey: 1}, {ChunkKey: 2}}},
		},
	}
	info := &reverbpb.SampleInfo{Item: reverbpb.ItemMetadata{FlatTrajectory: traj}}

	assert.False(t, sampleIsDone(nil))
	assert.False(t, sampleIsDone([]reverbpb.SampleStreamResponse{{Info: info, Data: &reverbpb.ChunkData{ChunkKey: 1}}}))
	assert.True(t, sampleIsDone([]reverbpb.SampleStreamResponse{
		{Info: info, Data: &reverbpb.ChunkData{ChunkKey: 1}},
		{Data: &reverbpb.ChunkData{ChunkKey: 2}},
	}))
}
