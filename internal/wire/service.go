package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// SyncServiceServer is implemented by the backend.
type SyncServiceServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	SubmitRecord(context.Context, *SubmitRecordRequest) (*SubmitRecordResponse, error)
	RequestUpload(context.Context, *RequestUploadRequest) (*RequestUploadResponse, error)
	ApplyChange(context.Context, *ApplyChangeRequest) (*ApplyChangeResponse, error)
}

// UnimplementedSyncServiceServer can be embedded to satisfy SyncServiceServer.
type UnimplementedSyncServiceServer struct{}

func (UnimplementedSyncServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedSyncServiceServer) SubmitRecord(context.Context, *SubmitRecordRequest) (*SubmitRecordResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SubmitRecord not implemented")
}
func (UnimplementedSyncServiceServer) RequestUpload(context.Context, *RequestUploadRequest) (*RequestUploadResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RequestUpload not implemented")
}
func (UnimplementedSyncServiceServer) ApplyChange(context.Context, *ApplyChangeRequest) (*ApplyChangeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ApplyChange not implemented")
}

func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServiceServer) {
	s.RegisterService(&SyncServiceDesc, srv)
}

// unary adapts a typed server method to a grpc.MethodHandler.
func unary[Req, Resp any](fullMethod string, call func(SyncServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		handler := func(ctx context.Context, req any) (any, error) {
			var typed Req
			if err := FromStruct(req.(*structpb.Struct), &typed); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			resp, err := call(srv.(SyncServiceServer), ctx, &typed)
			if err != nil {
				return nil, err
			}
			out, err := ToStruct(resp)
			if err != nil {
				return nil, status.Error(codes.Internal, err.Error())
			}
			return out, nil
		}

		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, handler)
	}
}

var SyncServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: unary(MethodPing, SyncServiceServer.Ping)},
		{MethodName: "SubmitRecord", Handler: unary(MethodSubmitRecord, SyncServiceServer.SubmitRecord)},
		{MethodName: "RequestUpload", Handler: unary(MethodRequestUpload, SyncServiceServer.RequestUpload)},
		{MethodName: "ApplyChange", Handler: unary(MethodApplyChange, SyncServiceServer.ApplyChange)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fieldsync/v1/sync.proto",
}

// SyncServiceClient is the client side of SyncService.
type SyncServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSyncServiceClient(cc grpc.ClientConnInterface) *SyncServiceClient {
	return &SyncServiceClient{cc: cc}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts ...grpc.CallOption) (*Resp, error) {
	args, err := ToStruct(in)
	if err != nil {
		return nil, err
	}
	reply := new(structpb.Struct)
	if err := cc.Invoke(ctx, method, args, reply, opts...); err != nil {
		return nil, err
	}
	out := new(Resp)
	if err := FromStruct(reply, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SyncServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingRequest, PingResponse](ctx, c.cc, MethodPing, in, opts...)
}

func (c *SyncServiceClient) SubmitRecord(ctx context.Context, in *SubmitRecordRequest, opts ...grpc.CallOption) (*SubmitRecordResponse, error) {
	return invoke[SubmitRecordRequest, SubmitRecordResponse](ctx, c.cc, MethodSubmitRecord, in, opts...)
}

func (c *SyncServiceClient) RequestUpload(ctx context.Context, in *RequestUploadRequest, opts ...grpc.CallOption) (*RequestUploadResponse, error) {
	return invoke[RequestUploadRequest, RequestUploadResponse](ctx, c.cc, MethodRequestUpload, in, opts...)
}

func (c *SyncServiceClient) ApplyChange(ctx context.Context, in *ApplyChangeRequest, opts ...grpc.CallOption) (*ApplyChangeResponse, error) {
	return invoke[ApplyChangeRequest, ApplyChangeResponse](ctx, c.cc, MethodApplyChange, in, opts...)
}
