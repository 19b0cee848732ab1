package grpcstream

import (
	"context"

	"google.golang.org/grpc"

	"github.com/codeaudit/reverb-1/internal/reverbpb"
)

// ServiceName and SampleStreamMethod name the RPC the way
// protoc-gen-go-grpc would have generated them from a
// "reverb.ReverbService" service with one "SampleStream" method.
const (
	ServiceName        = "reverb.ReverbService"
	SampleStreamMethod = "/reverb.ReverbService/SampleStream"
)

// ReverbServiceServer is implemented by anything that serves the
// SampleStream RPC.
type ReverbServiceServer interface {
	SampleStream(stream ReverbService_SampleStreamServer) error
}

// ReverbService_SampleStreamServer is the server-side typed view over the
// bidirectional stream.
type ReverbService_SampleStreamServer interface {
	Send(*reverbpb.SampleStreamResponse) error
	Recv() (*reverbpb.SampleStreamRequest, error)
	grpc.ServerStream
}

type sampleStreamServer struct{ grpc.ServerStream }

func (x *sampleStreamServer) Send(m *reverbpb.SampleStreamResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *sampleStreamServer) Recv() (*reverbpb.SampleStreamRequest, error) {
	m := new(reverbpb.SampleStreamRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func sampleStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ReverbServiceServer).SampleStream(&sampleStreamServer{stream})
}

// ServiceDesc is the hand-built equivalent of what protoc-gen-go-grpc
// would emit for a service with a single bidirectional-streaming method.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReverbServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SampleStream",
			Handler:       sampleStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "reverb/sampler.proto",
}

// RegisterReverbServiceServer registers srv on s.
func RegisterReverbServiceServer(s *grpc.Server, srv ReverbServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ReverbServiceClient is the client-side entry point for opening a
// SampleStream.
type ReverbServiceClient interface {
	SampleStream(ctx context.Context, opts ...grpc.CallOption) (ReverbService_SampleStreamClient, error)
}

// ReverbService_SampleStreamClient is the client-side typed view over the
// bidirectional stream.
type ReverbService_SampleStreamClient interface {
	Send(*reverbpb.SampleStreamRequest) error
	Recv() (*reverbpb.SampleStreamResponse, error)
	grpc.ClientStream
}

type reverbServiceClient struct {
	cc *grpc.ClientConn
}

// NewReverbServiceClient builds a client bound to cc.
func NewReverbServiceClient(cc *grpc.ClientConn) ReverbServiceClient {
	return &reverbServiceClient{cc: cc}
}

func (c *reverbServiceClient) SampleStream(ctx context.Context, opts ...grpc.CallOption) (ReverbService_SampleStreamClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], SampleStreamMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &sampleStreamClient{stream}, nil
}

type sampleStreamClient struct{ grpc.ClientStream }

func (x *sampleStreamClient) Send(m *reverbpb.SampleStreamRequest) error {
	return x.ClientStream.SendMsg(m)
}

func (x *sampleStreamClient) Recv() (*reverbpb.SampleStreamResponse, error) {
	m := new(reverbpb.SampleStreamResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
