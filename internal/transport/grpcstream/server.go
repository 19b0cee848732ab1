package grpcstream

import (
	"context"
	"errors"
	"io"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/codeaudit/reverb-1/internal/errkind"
	"github.com/codeaudit/reverb-1/internal/reverbpb"
	"github.com/codeaudit/reverb-1/internal/table"
)

// TableServer serves the SampleStream RPC directly off a table.Table,
// one sampled item at a time: a header response carrying Info (plus the
// item's first chunk if it only has one) followed by one response per
// remaining chunk, mirroring how the real reverb server streams an item
// without ever reassembling it server-side (reassembly is entirely a
// client-side concern, see internal/reassemble).
type TableServer struct {
	Table table.Table
}

var _ ReverbServiceServer = (*TableServer)(nil)

func (s *TableServer) SampleStream(stream ReverbService_SampleStreamServer) error {
	for {
		req, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		for i := int64(0); i < req.NumSamples; i++ {
			ctx := stream.Context()
			var cancel context.CancelFunc
			if req.RateLimiterTimeoutMs > 0 {
				ctx, cancel = context.WithTimeout(ctx, time.Duration(req.RateLimiterTimeoutMs)*time.Millisecond)
			}
			items, err := s.Table.SampleFlexibleBatch(ctx, 1)
			if cancel != nil {
				cancel()
			}
			if err != nil {
				return toGRPCError(err)
			}
			if len(items) == 0 {
				return status.Error(codes.Internal, "table returned zero items without error")
			}

			if err := sendItem(stream, items[0]); err != nil {
				return err
			}
		}
	}
}

func sendItem(stream ReverbService_SampleStreamServer, item reverbpb.SampledItem) error {
	info := &reverbpb.SampleInfo{
		Item:        item.Item,
		Probability: item.Probability,
		TableSize:   item.TableSize,
	}

	if len(item.Chunks) == 1 {
		return stream.Send(&reverbpb.SampleStreamResponse{Info: info, Data: item.Chunks[0], HasData: true})
	}

	if err := stream.Send(&reverbpb.SampleStreamResponse{Info: info}); err != nil {
		return err
	}
	for _, chunk := range item.Chunks {
		if err := stream.Send(&reverbpb.SampleStreamResponse{Data: chunk, HasData: true}); err != nil {
			return err
		}
	}
	return nil
}

func toGRPCError(err error) error {
	switch errkind.Of(err) {
	case errkind.DeadlineExceeded:
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errkind.Cancelled:
		return status.Error(codes.Canceled, err.Error())
	case errkind.Unavailable:
		return status.Error(codes.Unavailable, err.Error())
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			return status.Error(codes.DeadlineExceeded, err.Error())
		}
		return status.Error(codes.Internal, err.Error())
	}
}
