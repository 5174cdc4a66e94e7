package engine

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zsmartex/carbonex/matching"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

type registryBooks struct {
	engines *matching.Registry
}

func (r registryBooks) GetOrderBookSnapshot(instrument models.Instrument, limit int) *matching.Snapshot {
	return r.engines.Get(instrument.Key()).Snapshot(limit)
}

func dial(t *testing.T, books BookReader) *OrderBookClient {
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterOrderBookServer(server, NewEngineServer(books))

	go server.Serve(lis)
	t.Cleanup(server.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewOrderBookClient(conn)
}

func TestFetchOrderBook(t *testing.T) {
	engines := matching.NewRegistry()
	engine := engines.Get("VCS:2021")

	for i, price := range []int64{44, 45} {
		engine.Submit(&matching.Order{
			ID:        int64(i + 1),
			MemberID:  1,
			Symbol:    "VCS:2021",
			Side:      types.SideBuy,
			Type:      types.TypeLimit,
			Price:     decimal.NewFromInt(price),
			Quantity:  decimal.NewFromInt(10),
			CreatedAt: time.Now(),
		})
	}

	client := dial(t, registryBooks{engines: engines})

	req, err := structpb.NewStruct(map[string]interface{}{
		"credit_type":  "VCS",
		"vintage_year": 2021,
	})
	require.NoError(t, err)

	res, err := client.FetchOrderBook(context.Background(), req)
	require.NoError(t, err)

	body := res.AsMap()
	assert.Equal(t, "VCS:2021", body["symbol"])
	assert.Equal(t, []interface{}{
		[]interface{}{"45", "10"},
		[]interface{}{"44", "10"},
	}, body["bids"])
	assert.Empty(t, body["asks"])
}

func TestFetchOrderBookRequiresInstrument(t *testing.T) {
	client := dial(t, registryBooks{engines: matching.NewRegistry()})

	req, err := structpb.NewStruct(map[string]interface{}{"credit_type": "VCS"})
	require.NoError(t, err)

	_, err = client.FetchOrderBook(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.FetchMarketPrice(context.Background(), req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
