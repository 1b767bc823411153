package service

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "btc_ledger.FullNodeService"

// FullNodeServiceClient is the client API for the full node service.
type FullNodeServiceClient interface {
	SetBlock(ctx context.Context, in *SetBlockRequest, opts ...grpc.CallOption) (*SetBlockResponse, error)
	SetTransaction(ctx context.Context, in *SetTransactionRequest, opts ...grpc.CallOption) (*SetTransactionResponse, error)
	GetHead(ctx context.Context, in *GetHeadRequest, opts ...grpc.CallOption) (*GetHeadResponse, error)
	GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error)
	GetPendingTransactions(ctx context.Context, in *GetPendingTransactionsRequest, opts ...grpc.CallOption) (*GetPendingTransactionsResponse, error)
}

type fullNodeServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewFullNodeServiceClient(cc grpc.ClientConnInterface) FullNodeServiceClient {
	return &fullNodeServiceClient{cc}
}

func (c *fullNodeServiceClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}

func (c *fullNodeServiceClient) SetBlock(ctx context.Context, in *SetBlockRequest, opts ...grpc.CallOption) (*SetBlockResponse, error) {
	out := new(SetBlockResponse)
	if err := c.invoke(ctx, "SetBlock", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fullNodeServiceClient) SetTransaction(ctx context.Context, in *SetTransactionRequest, opts ...grpc.CallOption) (*SetTransactionResponse, error) {
	out := new(SetTransactionResponse)
	if err := c.invoke(ctx, "SetTransaction", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fullNodeServiceClient) GetHead(ctx context.Context, in *GetHeadRequest, opts ...grpc.CallOption) (*GetHeadResponse, error) {
	out := new(GetHeadResponse)
	if err := c.invoke(ctx, "GetHead", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fullNodeServiceClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error) {
	out := new(GetBalanceResponse)
	if err := c.invoke(ctx, "GetBalance", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fullNodeServiceClient) GetPendingTransactions(ctx context.Context, in *GetPendingTransactionsRequest, opts ...grpc.CallOption) (*GetPendingTransactionsResponse, error) {
	out := new(GetPendingTransactionsResponse)
	if err := c.invoke(ctx, "GetPendingTransactions", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// FullNodeServiceServer is the server API for the full node service.
type FullNodeServiceServer interface {
	SetBlock(context.Context, *SetBlockRequest) (*SetBlockResponse, error)
	SetTransaction(context.Context, *SetTransactionRequest) (*SetTransactionResponse, error)
	GetHead(context.Context, *GetHeadRequest) (*GetHeadResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
	GetPendingTransactions(context.Context, *GetPendingTransactionsRequest) (*GetPendingTransactionsResponse, error)
}

// UnimplementedFullNodeServiceServer can be embedded to have forward compatible implementations.
type UnimplementedFullNodeServiceServer struct{}

func (UnimplementedFullNodeServiceServer) SetBlock(context.Context, *SetBlockRequest) (*SetBlockResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SetBlock not implemented")
}
func (UnimplementedFullNodeServiceServer) SetTransaction(context.Context, *SetTransactionRequest) (*SetTransactionResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SetTransaction not implemented")
}
func (UnimplementedFullNodeServiceServer) GetHead(context.Context, *GetHeadRequest) (*GetHeadResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetHead not implemented")
}
func (UnimplementedFullNodeServiceServer) GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetBalance not implemented")
}
func (UnimplementedFullNodeServiceServer) GetPendingTransactions(context.Context, *GetPendingTransactionsRequest) (*GetPendingTransactionsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetPendingTransactions not implemented")
}

func RegisterFullNodeServiceServer(s grpc.ServiceRegistrar, srv FullNodeServiceServer) {
	s.RegisterService(&fullNodeServiceDesc, srv)
}

// unaryHandler adapts one typed server method to the shape grpc.MethodDesc expects.
func unaryHandler(method string, newReq func() interface{}, call func(FullNodeServiceServer, context.Context, interface{}) (interface{}, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(FullNodeServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + serviceName + "/" + method,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(FullNodeServiceServer), ctx, req)
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var fullNodeServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*FullNodeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("SetBlock", func() interface{} { return new(SetBlockRequest) },
			func(s FullNodeServiceServer, ctx context.Context, in interface{}) (interface{}, error) {
				return s.SetBlock(ctx, in.(*SetBlockRequest))
			}),
		unaryHandler("SetTransaction", func() interface{} { return new(SetTransactionRequest) },
			func(s FullNodeServiceServer, ctx context.Context, in interface{}) (interface{}, error) {
				return s.SetTransaction(ctx, in.(*SetTransactionRequest))
			}),
		unaryHandler("GetHead", func() interface{} { return new(GetHeadRequest) },
			func(s FullNodeServiceServer, ctx context.Context, in interface{}) (interface{}, error) {
				return s.GetHead(ctx, in.(*GetHeadRequest))
			}),
		unaryHandler("GetBalance", func() interface{} { return new(GetBalanceRequest) },
			func(s FullNodeServiceServer, ctx context.Context, in interface{}) (interface{}, error) {
				return s.GetBalance(ctx, in.(*GetBalanceRequest))
			}),
		unaryHandler("GetPendingTransactions", func() interface{} { return new(GetPendingTransactionsRequest) },
			func(s FullNodeServiceServer, ctx context.Context, in interface{}) (interface{}, error) {
				return s.GetPendingTransactions(ctx, in.(*GetPendingTransactionsRequest))
			}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "service.go",
}
