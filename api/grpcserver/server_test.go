package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	pb "matchbook/api/pb"
	"matchbook/domain/orderbook"
	"matchbook/service"
)

const symbol = 7

func startServer(t *testing.T) (pb.OrderServiceClient, *service.Engine) {
	t.Helper()
	log := zaptest.NewLogger(t)

	cfg := service.DefaultConfig()
	cfg.QueueSize = 16
	cfg.RetireRingSize = 8
	cfg.EventChains = 4
	cfg.EventChainLen = 4
	engine := service.NewEngine(cfg, nil, nil, nil, log)
	require.NoError(t, engine.AddSymbol(orderbook.SymbolSpec{
		SymbolID:    symbol,
		Type:        orderbook.ExchangePair,
		BaseScaleK:  1,
		QuoteScaleK: 1,
	}))
	engine.Start()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	pb.RegisterOrderServiceServer(srv, NewServer(engine, log))
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		_ = engine.Close()
	})
	return pb.NewOrderServiceClient(conn), engine
}

func placeReq(id int64, action pb.Action, typ pb.OrderType, price, size int64) *pb.PlaceOrderRequest {
	return &pb.PlaceOrderRequest{
		OrderId:         id,
		Uid:             100 + id,
		Symbol:          symbol,
		Action:          action,
		Type:            typ,
		Price:           price,
		Size:            size,
		ReserveBidPrice: price,
	}
}

func TestServer_PlaceMatchAndQuery(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	resp, err := client.PlaceOrder(ctx, placeReq(1, pb.Action_ASK, pb.OrderType_GTC, 1600, 7))
	require.NoError(t, err)
	assert.Equal(t, int32(orderbook.ResultSuccess), resp.ResultCode)
	assert.Equal(t, "SUCCESS", resp.Result)
	assert.Equal(t, uint64(1), resp.Seq)
	assert.Empty(t, resp.Events)

	resp, err = client.PlaceOrder(ctx, placeReq(2, pb.Action_BID, pb.OrderType_IOC, 1600, 3))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), resp.Seq)
	require.Len(t, resp.Events, 1)
	trade := resp.Events[0]
	assert.Equal(t, pb.EventType_TRADE, trade.Type)
	assert.Equal(t, int64(1), trade.MatchedOrderId)
	assert.Equal(t, int64(101), trade.MatchedOrderUid)
	assert.Equal(t, int64(1600), trade.Price)
	assert.Equal(t, int64(3), trade.Size)
	assert.True(t, trade.ActiveOrderCompleted)
	assert.False(t, trade.MatchedOrderCompleted)

	book, err := client.OrderBook(ctx, &pb.OrderBookRequest{Symbol: symbol})
	require.NoError(t, err)
	assert.Equal(t, int32(orderbook.ResultSuccess), book.ResultCode)
	assert.Equal(t, uint64(2), book.Seq)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, pb.Level{Price: 1600, Volume: 4, Orders: 1}, *book.Asks[0])
	assert.Empty(t, book.Bids)
}

func TestServer_CancelMoveReduce(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	_, err := client.PlaceOrder(ctx, placeReq(1, pb.Action_ASK, pb.OrderType_GTC, 1600, 10))
	require.NoError(t, err)

	ref := pb.OrderRef{OrderId: 1, Uid: 101, Symbol: symbol}

	resp, err := client.ReduceOrder(ctx, &pb.ReduceOrderRequest{OrderRef: ref, ReduceSize: 4})
	require.NoError(t, err)
	assert.Equal(t, int32(orderbook.ResultSuccess), resp.ResultCode)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, pb.EventType_REDUCE, resp.Events[0].Type)
	assert.Equal(t, int64(4), resp.Events[0].Size)

	resp, err = client.MoveOrder(ctx, &pb.MoveOrderRequest{OrderRef: ref, NewPrice: 1650})
	require.NoError(t, err)
	assert.Equal(t, int32(orderbook.ResultSuccess), resp.ResultCode)

	book, err := client.OrderBook(ctx, &pb.OrderBookRequest{Symbol: symbol, Depth: 5})
	require.NoError(t, err)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, pb.Level{Price: 1650, Volume: 6, Orders: 1}, *book.Asks[0])

	wrongUID := ref
	wrongUID.Uid = 5
	resp, err = client.CancelOrder(ctx, &pb.CancelOrderRequest{OrderRef: wrongUID})
	require.NoError(t, err)
	assert.Equal(t, int32(orderbook.ResultMatchingUnknownOrderID), resp.ResultCode)

	resp, err = client.CancelOrder(ctx, &pb.CancelOrderRequest{OrderRef: ref})
	require.NoError(t, err)
	assert.Equal(t, int32(orderbook.ResultSuccess), resp.ResultCode)

	book, err = client.OrderBook(ctx, &pb.OrderBookRequest{Symbol: symbol})
	require.NoError(t, err)
	assert.Empty(t, book.Asks)
}

func TestServer_InvalidArguments(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	cases := map[string]*pb.PlaceOrderRequest{
		"zero size":      placeReq(1, pb.Action_ASK, pb.OrderType_GTC, 1600, 0),
		"negative price": placeReq(1, pb.Action_ASK, pb.OrderType_GTC, -1, 5),
		"bad action":     placeReq(1, pb.Action(9), pb.OrderType_GTC, 1600, 5),
		"bad type":       placeReq(1, pb.Action_BID, pb.OrderType(42), 1600, 5),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := client.PlaceOrder(ctx, req)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}

	_, err := client.MoveOrder(ctx, &pb.MoveOrderRequest{
		OrderRef: pb.OrderRef{OrderId: 1, Uid: 1, Symbol: symbol},
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_UnknownSymbolIsInBand(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	req := placeReq(1, pb.Action_ASK, pb.OrderType_GTC, 1600, 5)
	req.Symbol = 99
	resp, err := client.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int32(orderbook.ResultMatchingInvalidOrderBookID), resp.ResultCode)
	assert.Zero(t, resp.Seq)

	book, err := client.OrderBook(ctx, &pb.OrderBookRequest{Symbol: 99})
	require.NoError(t, err)
	assert.Equal(t, int32(orderbook.ResultMatchingInvalidOrderBookID), book.ResultCode)
}

func TestServer_EngineClosed(t *testing.T) {
	client, engine := startServer(t)
	require.NoError(t, engine.Close())

	_, err := client.PlaceOrder(context.Background(), placeReq(1, pb.Action_ASK, pb.OrderType_GTC, 1600, 5))
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.DeadlineExceeded, status.Code(toStatus(context.DeadlineExceeded)))
	assert.Equal(t, codes.Canceled, status.Code(toStatus(context.Canceled)))
	assert.Equal(t, codes.Unavailable, status.Code(toStatus(service.ErrEngineClosed)))
	halted := fmt.Errorf("%w: %w", service.ErrEngineHalted, errors.New("journal sync: disk full"))
	assert.Equal(t, codes.Unavailable, status.Code(toStatus(halted)))
	assert.Equal(t, codes.Internal, status.Code(toStatus(assert.AnError)))
}
