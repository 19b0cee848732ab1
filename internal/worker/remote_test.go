package worker

import (
	"context"
	"io"
	"testing"
	"time"

	"google.golang.org/grpc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeaudit/reverb-1/internal/errkind"
	"github.com/codeaudit/reverb-1/internal/reverbpb"
	"github.com/codeaudit/reverb-1/internal/sampledata"
	"github.com/codeaudit/reverb-1/internal/squeue"
	"github.com/codeaudit/reverb-1/internal/transport/grpcstream"
)

// fakeStream scripts a sequence of responses per request, with no real
// network involved: just enough of grpcstream.ReverbService_SampleStreamClient
// to drive RemoteWorker.FetchSamples.
type fakeStream struct {
	grpc.ClientStream
	responses [][]reverbpb.SampleStreamResponse
	reqIndex  int
	respIndex int
}

func (s *fakeStream) Send(*reverbpb.SampleStreamRequest) error {
	return nil
}

func (s *fakeStream) Recv() (*reverbpb.SampleStreamResponse, error) {
	if s.reqIndex >= len(s.responses) {
		return nil, io.EOF
	}
	batch := s.responses[s.reqIndex]
	if s.respIndex >= len(batch) {
		s.reqIndex++
		s.respIndex = 0
		return s.Recv()
	}
	resp := batch[s.respIndex]
	s.respIndex++
	return &resp, nil
}

type fakeClient struct {
	stream *fakeStream
	err    error
}

func (c *fakeClient) SampleStream(ctx context.Context, opts ...grpc.CallOption) (grpcstream.ReverbService_SampleStreamClient, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

func singleChunkResponse(key uint64, n int64) []reverbpb.SampleStreamResponse {
	chunk := &reverbpb.ChunkData{
		ChunkKey: key,
		Tensors:  []reverbpb.RawTensor{{Shape: []int64{n}, Payload: make([]float64, n)}},
	}
	traj := reverbpb.FlatTrajectory{
		Columns: []reverbpb.Column{{ChunkSlices: []reverbpb.ChunkSlice{{ChunkKey: key, Offset: 0, Length: n}}}},
	}
	info := &reverbpb.SampleInfo{Item: reverbpb.ItemMetadata{Key: key, FlatTrajectory: traj}, Probability: 1, TableSize: 1}
	return []reverbpb.SampleStreamResponse{{Info: info, Data: chunk, HasData: true}}
}

func TestRemoteWorkerFetchSamplesDeliversAll(t *testing.T) {
	stream := &fakeStream{responses: [][]reverbpb.SampleStreamResponse{
		singleChunkResponse(1, 2),
		singleChunkResponse(2, 2),
	}}
	client := &fakeClient{stream: stream}
	w := NewRemoteWorker(client, "tbl", 2, 8)
	q := squeue.New[*sampledata.Sample](4)

	delivered, err := w.FetchSamples(context.Background(), q, 2, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), delivered)

	s1, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(1), s1.Key)
}

func TestRemoteWorkerCancelStopsFetch(t *testing.T) {
	client := &fakeClient{stream: &fakeStream{}}
	w := NewRemoteWorker(client, "tbl", 1, 8)
	w.Cancel()

	q := squeue.New[*sampledata.Sample](4)
	_, err := w.FetchSamples(context.Background(), q, 1, time.Second)
	require.Error(t, err)
	assert.True(t, errkind.IsKind(err, errkind.Cancelled))
}
