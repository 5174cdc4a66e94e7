package engine

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zsmartex/carbonex/matching"
	"github.com/zsmartex/carbonex/models"
)

const (
	ServiceName = "carbonex.engine.OrderBook"

	fetchOrderBookMethod   = "/" + ServiceName + "/FetchOrderBook"
	fetchMarketPriceMethod = "/" + ServiceName + "/FetchMarketPrice"

	defaultLimit = 100
)

// OrderBookServer exposes the in-memory books to internal services.
// Requests and responses are structpb.Struct values:
//
//	request:  {credit_type, vintage_year, project_id, limit}
//	response: {symbol, sequence, last_price, asks: [[price, quantity]], bids}
type OrderBookServer interface {
	FetchOrderBook(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	FetchMarketPrice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type BookReader interface {
	GetOrderBookSnapshot(instrument models.Instrument, limit int) *matching.Snapshot
}

type EngineServer struct {
	Books BookReader
}

func NewEngineServer(books BookReader) *EngineServer {
	return &EngineServer{Books: books}
}

func instrumentOf(req *structpb.Struct) (models.Instrument, int, error) {
	fields := req.GetFields()

	credit_type := fields["credit_type"].GetStringValue()
	vintage_year := int(fields["vintage_year"].GetNumberValue())
	if len(credit_type) == 0 || vintage_year <= 0 {
		return models.Instrument{}, 0, status.Error(codes.InvalidArgument, "credit_type and vintage_year are required")
	}

	limit := int(fields["limit"].GetNumberValue())
	if limit <= 0 {
		limit = defaultLimit
	}

	return models.NewInstrument(credit_type, vintage_year, fields["project_id"].GetStringValue()), limit, nil
}

func levels(book []matching.BookLevel) []interface{} {
	values := make([]interface{}, 0, len(book))
	for _, level := range book {
		values = append(values, []interface{}{level.Price.String(), level.Quantity.String()})
	}

	return values
}

func (s *EngineServer) FetchOrderBook(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	instrument, limit, err := instrumentOf(req)
	if err != nil {
		return nil, err
	}

	snapshot := s.Books.GetOrderBookSnapshot(instrument, limit)

	response, err := structpb.NewStruct(map[string]interface{}{
		"symbol":     snapshot.Symbol,
		"sequence":   float64(snapshot.Sequence),
		"last_price": snapshot.LastPrice.String(),
		"asks":       levels(snapshot.Asks),
		"bids":       levels(snapshot.Bids),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode order book: %v", err))
	}

	return response, nil
}

func (s *EngineServer) FetchMarketPrice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	instrument, _, err := instrumentOf(req)
	if err != nil {
		return nil, err
	}

	snapshot := s.Books.GetOrderBookSnapshot(instrument, 1)

	return structpb.NewStruct(map[string]interface{}{
		"symbol": snapshot.Symbol,
		"price":  snapshot.LastPrice.String(),
	})
}

func fetchOrderBookHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderBookServer).FetchOrderBook(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fetchOrderBookMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderBookServer).FetchOrderBook(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

func fetchMarketPriceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderBookServer).FetchMarketPrice(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fetchMarketPriceMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderBookServer).FetchMarketPrice(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

var OrderBookServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderBookServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FetchOrderBook", Handler: fetchOrderBookHandler},
		{MethodName: "FetchMarketPrice", Handler: fetchMarketPriceHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "carbonex/engine.proto",
}

func RegisterOrderBookServer(s grpc.ServiceRegistrar, srv OrderBookServer) {
	s.RegisterService(&OrderBookServiceDesc, srv)
}

type OrderBookClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderBookClient(cc grpc.ClientConnInterface) *OrderBookClient {
	return &OrderBookClient{cc: cc}
}

func (c *OrderBookClient) FetchOrderBook(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fetchOrderBookMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *OrderBookClient) FetchMarketPrice(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fetchMarketPriceMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
