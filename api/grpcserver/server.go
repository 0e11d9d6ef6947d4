package grpcserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pb "matchbook/api/pb"
	"matchbook/domain/orderbook"
	"matchbook/service"
)

// Engine is the part of service.Engine the server needs.
type Engine interface {
	Submit(ctx context.Context, cmd *orderbook.OrderCommand) (*service.Reply, error)
	L2(ctx context.Context, symbol int32, depth int) (*orderbook.L2MarketData, error)
}

// Server adapts the matching engine to gRPC. Business outcomes travel in
// the response result code; only malformed requests and engine failures
// become gRPC errors.
type Server struct {
	pb.UnimplementedOrderServiceServer
	engine Engine
	log    *zap.Logger
}

func NewServer(engine Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{engine: engine, log: log.Named("grpc")}
}

// -------------------- Commands --------------------

func (s *Server) PlaceOrder(
	ctx context.Context,
	req *pb.PlaceOrderRequest,
) (*pb.CommandResponse, error) {
	action, ok := toAction(req.Action)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown action %d", req.Action)
	}
	otype, ok := toType(req.Type)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown order type %d", req.Type)
	}
	if req.Size <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "size must be positive, got %d", req.Size)
	}
	if req.Price <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "price must be positive, got %d", req.Price)
	}

	return s.submit(ctx, &orderbook.OrderCommand{
		Command:         orderbook.PlaceOrder,
		OrderID:         req.OrderId,
		UID:             req.Uid,
		Symbol:          req.Symbol,
		Action:          action,
		OrderType:       otype,
		Price:           req.Price,
		Size:            req.Size,
		ReserveBidPrice: req.ReserveBidPrice,
	})
}

func (s *Server) CancelOrder(
	ctx context.Context,
	req *pb.CancelOrderRequest,
) (*pb.CommandResponse, error) {
	return s.submit(ctx, &orderbook.OrderCommand{
		Command: orderbook.CancelOrder,
		OrderID: req.OrderId,
		UID:     req.Uid,
		Symbol:  req.Symbol,
	})
}

func (s *Server) MoveOrder(
	ctx context.Context,
	req *pb.MoveOrderRequest,
) (*pb.CommandResponse, error) {
	if req.NewPrice <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "price must be positive, got %d", req.NewPrice)
	}
	return s.submit(ctx, &orderbook.OrderCommand{
		Command: orderbook.MoveOrder,
		OrderID: req.OrderId,
		UID:     req.Uid,
		Symbol:  req.Symbol,
		Price:   req.NewPrice,
	})
}

// ReduceOrder leaves size checks to the book, which answers a non-positive
// reduction with REDUCE_FAILED_WRONG_SIZE.
func (s *Server) ReduceOrder(
	ctx context.Context,
	req *pb.ReduceOrderRequest,
) (*pb.CommandResponse, error) {
	return s.submit(ctx, &orderbook.OrderCommand{
		Command: orderbook.ReduceOrder,
		OrderID: req.OrderId,
		UID:     req.Uid,
		Symbol:  req.Symbol,
		Size:    req.ReduceSize,
	})
}

func (s *Server) submit(ctx context.Context, cmd *orderbook.OrderCommand) (*pb.CommandResponse, error) {
	reply, err := s.engine.Submit(ctx, cmd)
	if err != nil {
		s.log.Warn("command failed",
			zap.Stringer("command", cmd.Command),
			zap.Int64("orderId", cmd.OrderID),
			zap.Error(err))
		return nil, toStatus(err)
	}

	s.log.Debug("command applied",
		zap.Stringer("command", cmd.Command),
		zap.Int64("orderId", cmd.OrderID),
		zap.Uint64("seq", reply.Seq),
		zap.Stringer("result", reply.ResultCode),
		zap.Int("events", len(reply.Events)))

	resp := &pb.CommandResponse{
		Seq:        reply.Seq,
		ResultCode: int32(reply.ResultCode),
		Result:     reply.ResultCode.String(),
		Events:     make([]*pb.Event, 0, len(reply.Events)),
	}
	for i := range reply.Events {
		resp.Events = append(resp.Events, fromEvent(&reply.Events[i]))
	}
	return resp, nil
}

// -------------------- Queries --------------------

// OrderBook returns up to Depth levels per side; a non-positive depth
// returns every level.
func (s *Server) OrderBook(
	ctx context.Context,
	req *pb.OrderBookRequest,
) (*pb.OrderBookResponse, error) {
	depth := int(req.Depth)
	if depth <= 0 {
		depth = -1
	}
	md, err := s.engine.L2(ctx, req.Symbol, depth)
	if errors.Is(err, service.ErrUnknownSymbol) {
		return &pb.OrderBookResponse{ResultCode: int32(orderbook.ResultMatchingInvalidOrderBookID)}, nil
	}
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &pb.OrderBookResponse{
		ResultCode: int32(orderbook.ResultSuccess),
		Seq:        md.Seq,
		Timestamp:  md.Timestamp,
		Asks:       make([]*pb.Level, md.AskSize()),
		Bids:       make([]*pb.Level, md.BidSize()),
	}
	for i := range resp.Asks {
		resp.Asks[i] = &pb.Level{Price: md.AskPrices[i], Volume: md.AskVolumes[i], Orders: md.AskOrders[i]}
	}
	for i := range resp.Bids {
		resp.Bids[i] = &pb.Level{Price: md.BidPrices[i], Volume: md.BidVolumes[i], Orders: md.BidOrders[i]}
	}
	return resp, nil
}

// -------------------- Converters --------------------

func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrEngineClosed), errors.Is(err, service.ErrEngineHalted):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, service.ErrUnknownSymbol):
		return status.Error(codes.NotFound, err.Error())
	}
	if st := status.FromContextError(err); st.Code() != codes.Unknown {
		return st.Err()
	}
	return status.Error(codes.Internal, err.Error())
}

func toAction(a pb.Action) (orderbook.Action, bool) {
	switch a {
	case pb.Action_ASK:
		return orderbook.Ask, true
	case pb.Action_BID:
		return orderbook.Bid, true
	default:
		return 0, false
	}
}

func toType(t pb.OrderType) (orderbook.OrderType, bool) {
	switch t {
	case pb.OrderType_GTC:
		return orderbook.GTC, true
	case pb.OrderType_IOC:
		return orderbook.IOC, true
	case pb.OrderType_IOC_BUDGET:
		return orderbook.IOCBudget, true
	case pb.OrderType_FOK:
		return orderbook.FOK, true
	case pb.OrderType_FOK_BUDGET:
		return orderbook.FOKBudget, true
	default:
		return 0, false
	}
}

func fromEventType(t orderbook.EventType) pb.EventType {
	switch t {
	case orderbook.EventReduce:
		return pb.EventType_REDUCE
	case orderbook.EventReject:
		return pb.EventType_REJECT
	case orderbook.EventBinary:
		return pb.EventType_BINARY
	default:
		return pb.EventType_TRADE
	}
}

func fromEvent(ev *orderbook.Event) *pb.Event {
	return &pb.Event{
		Type:                  fromEventType(ev.Type),
		ActiveOrderCompleted:  ev.ActiveOrderCompleted,
		MatchedOrderId:        ev.MatchedOrderID,
		MatchedOrderUid:       ev.MatchedOrderUID,
		MatchedOrderCompleted: ev.MatchedOrderCompleted,
		Price:                 ev.Price,
		Size:                  ev.Size,
		BidderHoldPrice:       ev.BidderHoldPrice,
		Section:               ev.Section,
	}
}
