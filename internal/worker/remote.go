package worker

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/codeaudit/reverb-1/internal/errkind"
	"github.com/codeaudit/reverb-1/internal/reassemble"
	"github.com/codeaudit/reverb-1/internal/reverbpb"
	"github.com/codeaudit/reverb-1/internal/sampledata"
	"github.com/codeaudit/reverb-1/internal/squeue"
	"github.com/codeaudit/reverb-1/internal/transport/grpcstream"
)

// RemoteWorker pulls samples over a gRPC SampleStream (spec.md §4.4,
// "remote-stream variant").
type RemoteWorker struct {
	client            grpcstream.ReverbServiceClient
	tableName         string
	samplesPerRequest int64
	flexibleBatchSize int32

	mu       sync.Mutex
	cancelFn context.CancelFunc
	closed   bool
}

// NewRemoteWorker builds a worker that opens streams against client for
// table tableName. samplesPerRequest caps how many samples are requested
// per SampleStreamRequest (max_in_flight_samples_per_worker).
func NewRemoteWorker(client grpcstream.ReverbServiceClient, tableName string, samplesPerRequest int64, flexibleBatchSize int32) *RemoteWorker {
	return &RemoteWorker{
		client:            client,
		tableName:         tableName,
		samplesPerRequest: samplesPerRequest,
		flexibleBatchSize: flexibleBatchSize,
	}
}

// Cancel aborts the in-flight stream, if any, and marks the worker
// closed so future FetchSamples calls fail fast.
func (w *RemoteWorker) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.cancelFn != nil {
		w.cancelFn()
	}
}

func (w *RemoteWorker) FetchSamples(ctx context.Context, queue *squeue.Queue[*sampledata.Sample], n int64, rateLimiterTimeout time.Duration) (int64, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return 0, errkind.New(errkind.Cancelled, "`Close` called on Sampler.")
	}
	streamCtx, cancel := context.WithCancel(ctx)
	w.cancelFn = cancel
	w.mu.Unlock()
	defer cancel()

	stream, err := w.client.SampleStream(streamCtx)
	if err != nil {
		return 0, mapGRPCErr(err)
	}

	var delivered int64
	for delivered < n {
		batch := w.samplesPerRequest
		if remaining := n - delivered; batch > remaining {
			batch = remaining
		}

		req := &reverbpb.SampleStreamRequest{
			Table:                w.tableName,
			NumSamples:           batch,
			RateLimiterTimeoutMs: rateLimiterTimeout.Milliseconds(),
			FlexibleBatchSize:    w.flexibleBatchSize,
		}
		if err := stream.Send(req); err != nil {
			return delivered, mapGRPCErr(err)
		}

		for i := int64(0); i < batch; i++ {
			var responses []reverbpb.SampleStreamResponse
			for !sampleIsDone(responses) {
				resp, err := stream.Recv()
				if err != nil {
					return delivered, mapGRPCErr(err)
				}
				responses = append(responses, *resp)
			}

			sample, err := reassemble.FromResponses(responses)
			if err != nil {
				return delivered, err
			}
			if !queue.Push(sample) {
				return delivered, errkind.New(errkind.Cancelled, "`Close` called on Sampler")
			}
			delivered++
		}
	}

	return delivered, nil
}

// mapGRPCErr translates a gRPC status error into the engine's error
// taxonomy (spec.md §7).
func mapGRPCErr(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return errkind.New(errkind.Unknown, "%v", err)
	}
	switch st.Code() {
	case codes.OK:
		return nil
	case codes.Canceled:
		return errkind.New(errkind.Cancelled, "%s", st.Message())
	case codes.DeadlineExceeded:
		return errkind.New(errkind.DeadlineExceeded, "%s", st.Message())
	case codes.OutOfRange:
		return errkind.New(errkind.OutOfRange, "%s", st.Message())
	case codes.InvalidArgument:
		return errkind.New(errkind.InvalidArgument, "%s", st.Message())
	case codes.FailedPrecondition:
		return errkind.New(errkind.FailedPrecondition, "%s", st.Message())
	case codes.DataLoss:
		return errkind.New(errkind.DataLoss, "%s", st.Message())
	case codes.Internal:
		return errkind.New(errkind.Internal, "%s", st.Message())
	case codes.Unavailable:
		return errkind.New(errkind.Unavailable, "%s", st.Message())
	default:
		return errkind.New(errkind.Unknown, "%s", st.Message())
	}
}
