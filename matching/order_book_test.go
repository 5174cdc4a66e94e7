package matching

import (
	"fmt"
	"io/ioutil"
	"math/rand"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	yaml "gopkg.in/yaml.v2"

	"github.com/zsmartex/carbonex/types"
)

const symbol = "VCS:2021"

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type suiteOrderBookTester struct {
	suite.Suite
}

type OrderBookEntry struct {
	Name   string   `yaml:"name"`
	Orders []string `yaml:"orders"`
	Trades []string `yaml:"trades"`
}

func splitFields(raw string) []string {
	var result []string
	for _, r := range strings.Split(raw, ",") {
		result = append(result, strings.TrimSpace(r))
	}

	return result
}

func parseOrder(raw string) *Order {
	result := splitFields(raw)

	id, _ := strconv.Atoi(result[0])
	member, _ := strconv.Atoi(result[1])

	side := types.SideBuy
	if result[2] == "ASK" {
		side = types.SideSell
	}

	order := &Order{
		ID:        int64(id),
		MemberID:  int64(member),
		Symbol:    symbol,
		Side:      side,
		Type:      types.OrderType(result[3]),
		Price:     decimal.RequireFromString(result[4]),
		Quantity:  decimal.RequireFromString(result[5]),
		CreatedAt: baseTime.Add(time.Duration(id) * time.Second),
	}

	if len(result) >= 7 {
		order.StopPrice = decimal.RequireFromString(result[6])
	}

	return order
}

func formatMatch(m Match) string {
	return fmt.Sprintf("%s, %s, %d, %d", m.Price.String(), m.Quantity.String(), m.MakerOrderID, m.TakerOrderID)
}

func (ode *OrderBookEntry) Test(s *suiteOrderBookTester) {
	s.T().Run(ode.Name, func(t *testing.T) {
		orderBook := NewOrderBook(symbol, decimal.Zero)

		trades := make([]string, 0)
		for _, o := range ode.Orders {
			for _, m := range orderBook.Add(parseOrder(o)) {
				trades = append(trades, formatMatch(m))
			}
		}

		expectedTrades := make([]string, 0)
		for _, raw := range ode.Trades {
			result := splitFields(raw)
			expectedTrades = append(expectedTrades, fmt.Sprintf("%s, %s, %s, %s",
				decimal.RequireFromString(result[0]).String(),
				decimal.RequireFromString(result[1]).String(),
				result[2],
				result[3],
			))
		}

		s.EqualValues(expectedTrades, trades)
	})
}

func (s *suiteOrderBookTester) TestInsertOrder() {
	orderbookFile, err := ioutil.ReadFile("./fixtures/orderbook.yaml")
	s.Require().NoError(err)

	var entries []OrderBookEntry
	s.Require().NoError(yaml.Unmarshal(orderbookFile, &entries))
	s.NotEmpty(entries)

	for _, entry := range entries {
		entry.Test(s)
	}
}

func (s *suiteOrderBookTester) TestInsertLimitOrder() {
	orderBook := NewOrderBook(symbol, decimal.Zero)

	limitOrder := parseOrder("2, 1, BID, limit, 10, 30")

	s.Empty(orderBook.Add(limitOrder))
	s.EqualValues(limitOrder, orderBook.Bids.Right().Value.(*Order))
	s.EqualValues(1, orderBook.Bids.Size())

	snapshot := orderBook.Snapshot(10)
	s.Len(snapshot.Bids, 1)
	s.Empty(snapshot.Asks)
	s.True(snapshot.Bids[0].Price.Equal(decimal.NewFromInt(10)))
	s.True(snapshot.Bids[0].Quantity.Equal(decimal.NewFromInt(30)))
}

func (s *suiteOrderBookTester) TestRestingOrderFilledIsRemoved() {
	orderBook := NewOrderBook(symbol, decimal.Zero)

	orderBook.Add(parseOrder("1, 1, ASK, limit, 45, 60"))
	matches := orderBook.Add(parseOrder("2, 2, BID, limit, 45, 100"))

	s.Len(matches, 1)
	s.Equal(int64(2), matches[0].BuyOrderID)
	s.Equal(int64(1), matches[0].SellOrderID)
	s.Equal(int64(2), matches[0].BuyerID)
	s.Equal(int64(1), matches[0].SellerID)
	s.True(orderBook.Asks.Empty())
	s.Equal(1, orderBook.Bids.Size())

	bid := orderBook.Bids.Right().Value.(*Order)
	s.True(bid.UnfilledQuantity().Equal(decimal.NewFromInt(40)))
	s.True(orderBook.MarketPrice.Equal(decimal.NewFromInt(45)))

	snapshot := orderBook.Snapshot(0)
	s.Empty(snapshot.Asks)
	s.True(snapshot.Bids[0].Quantity.Equal(decimal.NewFromInt(40)))
}

func (s *suiteOrderBookTester) TestMarketOrderIntoEmptyBookIsHeld() {
	orderBook := NewOrderBook(symbol, decimal.Zero)

	market := parseOrder("1, 1, BID, market, 0, 1000")
	s.Empty(orderBook.Add(market))

	held, ok := orderBook.Get(1)
	s.True(ok)
	s.Equal(market, held)
	s.Equal(1, orderBook.HeldBids.Size())
	s.Empty(orderBook.Snapshot(10).Bids)
}

func (s *suiteOrderBookTester) TestStopCrossedAtSubmissionTriggersImmediately() {
	orderBook := NewOrderBook(symbol, decimal.NewFromInt(12))

	orderBook.Add(parseOrder("1, 1, ASK, limit, 12, 5"))
	matches := orderBook.Add(parseOrder("2, 2, BID, stop, 0, 2, 11"))

	s.Len(matches, 1)
	s.Equal([]int64{2}, orderBook.TakeTriggered())
	s.Empty(orderBook.TakeTriggered())
	s.True(orderBook.StopBids.Empty())
}

func (s *suiteOrderBookTester) TestCancelOrder() {
	orderBook := NewOrderBook(symbol, decimal.Zero)

	bidOrder := parseOrder("1, 1, BID, limit, 10, 30")
	askOrder := parseOrder("2, 2, ASK, limit, 11, 30")
	stopOrder := parseOrder("3, 3, ASK, stop, 0, 5, 9")
	marketOrder := parseOrder("4, 2, BID, market, 0, 5")

	orderBook.Add(marketOrder)
	orderBook.Add(bidOrder)
	orderBook.Add(askOrder)
	orderBook.Add(stopOrder)
	s.Equal(4, orderBook.Size())

	cancelled, ok := orderBook.Cancel(1)
	s.True(ok)
	s.Equal(bidOrder, cancelled)
	s.Nil(orderBook.Bids.Right())
	s.EqualValues(0, orderBook.Bids.Size())

	_, ok = orderBook.Cancel(3)
	s.True(ok)
	s.True(orderBook.StopAsks.Empty())

	_, ok = orderBook.Cancel(4)
	s.True(ok)
	s.True(orderBook.HeldBids.Empty())

	_, ok = orderBook.Cancel(1)
	s.False(ok)

	snapshot := orderBook.Snapshot(10)
	s.Empty(snapshot.Bids)
	s.Len(snapshot.Asks, 1)
	s.Equal(1, orderBook.Size())
}

func (s *suiteOrderBookTester) TestAmendKeepsPriority() {
	orderBook := NewOrderBook(symbol, decimal.Zero)

	orderBook.Add(parseOrder("1, 1, ASK, limit, 10, 10"))
	orderBook.Add(parseOrder("2, 2, ASK, limit, 10, 10"))

	s.True(orderBook.Amend(1, decimal.NewFromInt(4)))
	s.False(orderBook.Amend(1, decimal.NewFromInt(20)))
	s.False(orderBook.Amend(99, decimal.NewFromInt(1)))

	matches := orderBook.Add(parseOrder("3, 3, BID, limit, 10, 6"))
	s.Len(matches, 2)
	s.Equal(int64(1), matches[0].MakerOrderID)
	s.True(matches[0].Quantity.Equal(decimal.NewFromInt(4)))
	s.Equal(int64(2), matches[1].MakerOrderID)
	s.True(matches[1].Quantity.Equal(decimal.NewFromInt(2)))

	snapshot := orderBook.Snapshot(10)
	s.True(snapshot.Asks[0].Quantity.Equal(decimal.NewFromInt(8)))
	s.EqualValues(1, snapshot.Asks[0].Count)
}

func (s *suiteOrderBookTester) TestRestoreDoesNotMatch() {
	orderBook := NewOrderBook(symbol, decimal.Zero)

	orderBook.Restore(parseOrder("1, 1, BID, limit, 11, 5"))
	orderBook.Restore(parseOrder("2, 2, ASK, limit, 10, 5"))
	orderBook.Restore(parseOrder("3, 3, BID, stop_limit, 12, 5, 12"))

	s.Equal(1, orderBook.Bids.Size())
	s.Equal(1, orderBook.Asks.Size())
	s.Equal(1, orderBook.StopBids.Size())

	triggered := parseOrder("4, 4, BID, stop_limit, 9, 5, 12")
	triggered.Trigger()
	orderBook.Restore(triggered)
	s.Equal(2, orderBook.Bids.Size())
}

func (s *suiteOrderBookTester) TestSnapshotLimit() {
	orderBook := NewOrderBook(symbol, decimal.Zero)

	for i := 1; i <= 5; i++ {
		orderBook.Add(parseOrder(fmt.Sprintf("%d, %d, ASK, limit, %d, 1", i, i, 10+i)))
	}

	snapshot := orderBook.Snapshot(3)
	s.Len(snapshot.Asks, 3)
	s.True(snapshot.Asks[0].Price.Equal(decimal.NewFromInt(11)))
	s.True(snapshot.Asks[2].Price.Equal(decimal.NewFromInt(13)))
	s.Equal(symbol, snapshot.Symbol)
}

func TestOrderBook(t *testing.T) {
	tester := new(suiteOrderBookTester)
	suite.Run(t, tester)
}

func BenchmarkInsertOrder(b *testing.B) {
	orderBook := NewOrderBook(symbol, decimal.Zero)

	orders := make([]*Order, b.N)
	for n := 0; n < b.N; n++ {
		side := types.SideBuy
		if rand.Intn(2) == 0 {
			side = types.SideSell
		}

		price := rand.Intn(10) + 1
		quantity := rand.Intn(10) + 1

		orders[n] = &Order{
			ID:        int64(n + 1),
			MemberID:  int64(rand.Intn(100)),
			Side:      side,
			Type:      types.TypeLimit,
			Price:     decimal.NewFromInt(int64(price)),
			Quantity:  decimal.NewFromInt(int64(quantity)),
			CreatedAt: baseTime.Add(time.Duration(n) * time.Millisecond),
		}
	}

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		orderBook.Add(orders[n])
	}
}
