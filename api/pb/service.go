package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "matchbook.v1.OrderService"

type OrderServiceServer interface {
	PlaceOrder(context.Context, *PlaceOrderRequest) (*CommandResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*CommandResponse, error)
	MoveOrder(context.Context, *MoveOrderRequest) (*CommandResponse, error)
	ReduceOrder(context.Context, *ReduceOrderRequest) (*CommandResponse, error)
	OrderBook(context.Context, *OrderBookRequest) (*OrderBookResponse, error)
}

// UnimplementedOrderServiceServer can be embedded to satisfy
// OrderServiceServer while only some methods are implemented.
type UnimplementedOrderServiceServer struct{}

func (UnimplementedOrderServiceServer) PlaceOrder(context.Context, *PlaceOrderRequest) (*CommandResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PlaceOrder not implemented")
}

func (UnimplementedOrderServiceServer) CancelOrder(context.Context, *CancelOrderRequest) (*CommandResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CancelOrder not implemented")
}

func (UnimplementedOrderServiceServer) MoveOrder(context.Context, *MoveOrderRequest) (*CommandResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method MoveOrder not implemented")
}

func (UnimplementedOrderServiceServer) ReduceOrder(context.Context, *ReduceOrderRequest) (*CommandResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ReduceOrder not implemented")
}

func (UnimplementedOrderServiceServer) OrderBook(context.Context, *OrderBookRequest) (*OrderBookResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method OrderBook not implemented")
}

// unary builds a method handler for a request type Req. The pointer
// constraint lets the handler allocate the request before decoding.
func unary[Req any, PReq interface {
	*Req
	Message
}, Resp Message](name string, call func(OrderServiceServer, context.Context, PReq) (Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(OrderServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(PReq))
			})
		},
	}
}

var OrderService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("PlaceOrder", OrderServiceServer.PlaceOrder),
		unary("CancelOrder", OrderServiceServer.CancelOrder),
		unary("MoveOrder", OrderServiceServer.MoveOrder),
		unary("ReduceOrder", OrderServiceServer.ReduceOrder),
		unary("OrderBook", OrderServiceServer.OrderBook),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matchbook/v1/order_service",
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderService_ServiceDesc, srv)
}

type OrderServiceClient interface {
	PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	MoveOrder(ctx context.Context, in *MoveOrderRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	ReduceOrder(ctx context.Context, in *ReduceOrderRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	OrderBook(ctx context.Context, in *OrderBookRequest, opts ...grpc.CallOption) (*OrderBookResponse, error)
}

type orderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) OrderServiceClient {
	return &orderServiceClient{cc}
}

func (c *orderServiceClient) invoke(ctx context.Context, method string, in, out Message, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *orderServiceClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := c.invoke(ctx, "PlaceOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderServiceClient) CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := c.invoke(ctx, "CancelOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderServiceClient) MoveOrder(ctx context.Context, in *MoveOrderRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := c.invoke(ctx, "MoveOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderServiceClient) ReduceOrder(ctx context.Context, in *ReduceOrderRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	if err := c.invoke(ctx, "ReduceOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderServiceClient) OrderBook(ctx context.Context, in *OrderBookRequest, opts ...grpc.CallOption) (*OrderBookResponse, error) {
	out := new(OrderBookResponse)
	if err := c.invoke(ctx, "OrderBook", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
