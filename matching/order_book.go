package matching

import (
	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/types"
)

// Match is one fill between a resting maker and an incoming taker.
type Match struct {
	Symbol       string
	BuyOrderID   int64
	SellOrderID  int64
	BuyerID      int64
	SellerID     int64
	MakerOrderID int64
	TakerOrderID int64
	Quantity     decimal.Decimal
	Price        decimal.Decimal
}

func (m Match) Total() decimal.Decimal {
	return m.Quantity.Mul(m.Price)
}

// OrderBook holds the resting orders of one instrument. It is not safe for
// concurrent use; Engine serializes access.
type OrderBook struct {
	Symbol      string
	MarketPrice decimal.Decimal
	Depth       *Depth

	Bids     *redblacktree.Tree
	Asks     *redblacktree.Tree
	StopBids *redblacktree.Tree
	StopAsks *redblacktree.Tree
	// HeldBids and HeldAsks keep market order remainders that found no
	// counterparty, in arrival order.
	HeldBids *redblacktree.Tree
	HeldAsks *redblacktree.Tree

	orders             map[int64]*Order
	pendingOrdersQueue *linkedlistqueue.Queue
	triggered          []int64
	sequence           uint64
}

func NewOrderBook(symbol string, marketPrice decimal.Decimal) *OrderBook {
	return &OrderBook{
		Symbol:             symbol,
		MarketPrice:        marketPrice,
		Depth:              NewDepth(symbol),
		Bids:               redblacktree.NewWith(Comparator),
		Asks:               redblacktree.NewWith(Comparator),
		StopBids:           redblacktree.NewWith(StopComparator),
		StopAsks:           redblacktree.NewWith(StopComparator),
		HeldBids:           redblacktree.NewWith(MarketComparator),
		HeldAsks:           redblacktree.NewWith(MarketComparator),
		orders:             make(map[int64]*Order, 1024),
		pendingOrdersQueue: linkedlistqueue.New(),
	}
}

func (ob *OrderBook) Get(id int64) (*Order, bool) {
	o, ok := ob.orders[id]
	return o, ok
}

func (ob *OrderBook) Size() int {
	return len(ob.orders)
}

// Add matches o against the book and rests whatever remains. Stops triggered
// by the resulting trades are executed in the same pass.
func (ob *OrderBook) Add(o *Order) []Match {
	if _, found := ob.orders[o.ID]; found {
		config.Logger.Warnf("[carbonex.orderbook] order %d already in book %s", o.ID, ob.Symbol)
		return []Match{}
	}

	config.Logger.Debugf("[carbonex.orderbook] insert order with id %d - %s * %s, side %s, type %s", o.ID, o.Price, o.Quantity, o.Side, o.Type)

	matches := ob.add(o)

	for !ob.pendingOrdersQueue.Empty() {
		value, _ := ob.pendingOrdersQueue.Dequeue()
		pendingOrder := value.(*Order)

		config.Logger.Debugf("[carbonex.orderbook] insert triggered stop order with id %d - %s * %s, side %s", pendingOrder.ID, pendingOrder.Price, pendingOrder.Quantity, pendingOrder.Side)

		matches = append(matches, ob.match(pendingOrder)...)
	}

	return matches
}

func (ob *OrderBook) add(o *Order) []Match {
	if o.IsPendingStop() {
		if !o.StopCrossed(ob.MarketPrice) {
			ob.assignSequence(o)
			ob.stopBook(o.Side).Put(o.Key(), o)
			ob.orders[o.ID] = o
			return []Match{}
		}

		o.Trigger()
		ob.triggered = append(ob.triggered, o.ID)
	}

	return ob.match(o)
}

func (ob *OrderBook) match(taker *Order) []Match {
	ob.assignSequence(taker)

	matches := make([]Match, 0)
	if !taker.IsMarket() {
		// resting orders priced better than the taker's limit come before
		// held market orders, which trade at that limit
		matches = append(matches, ob.matchBook(taker, true)...)

		if !taker.Filled() {
			matches = append(matches, ob.matchHeld(taker)...)
		}
	}

	if !taker.Filled() {
		matches = append(matches, ob.matchBook(taker, false)...)
	}

	if taker.Filled() {
		delete(ob.orders, taker.ID)
		return matches
	}

	if taker.IsMarket() {
		ob.heldBook(taker.Side).Put(taker.Key(), taker)
	} else {
		ob.book(taker.Side).Put(taker.Key(), taker)
		ob.Depth.UpdatePriceLevel(taker.Side, taker.Price, taker.UnfilledQuantity(), 1)
	}
	ob.orders[taker.ID] = taker

	return matches
}

// matchHeld fills waiting market orders of the opposite side at the taker's
// limit price.
func (ob *OrderBook) matchHeld(taker *Order) []Match {
	held := ob.heldBook(taker.Side.Opposite())
	matches := make([]Match, 0)
	filled := make([]*Order, 0)

	it := held.Iterator()
	it.End()
	for !taker.Filled() && it.Prev() {
		maker := it.Value().(*Order)
		if maker.MemberID == taker.MemberID {
			continue
		}

		quantity := decimal.Min(maker.UnfilledQuantity(), taker.UnfilledQuantity())
		matches = append(matches, ob.fill(maker, taker, quantity, taker.Price))

		if maker.Filled() {
			filled = append(filled, maker)
		}
	}

	for _, maker := range filled {
		held.Remove(maker.Key())
		delete(ob.orders, maker.ID)
	}

	return matches
}

// matchBook walks the opposite side best-first while it stays marketable.
// With strict set it stops at the taker's own limit price. Resting orders of
// the taker's own member are skipped.
func (ob *OrderBook) matchBook(taker *Order, strict bool) []Match {
	offers := ob.book(taker.Side.Opposite())
	matches := make([]Match, 0)
	filled := make([]*Order, 0)

	it := offers.Iterator()
	it.End()
	for !taker.Filled() && it.Prev() {
		maker := it.Value().(*Order)

		if !taker.IsMarket() && !taker.IsCrossed(maker.Price) {
			break
		}

		if strict && maker.Price.Equal(taker.Price) {
			break
		}

		if maker.MemberID == taker.MemberID {
			config.Logger.Debugf("[carbonex.orderbook] skip self trade between %d and %d", taker.ID, maker.ID)
			continue
		}

		quantity := decimal.Min(maker.UnfilledQuantity(), taker.UnfilledQuantity())
		matches = append(matches, ob.fill(maker, taker, quantity, maker.Price))

		var count int32
		if maker.Filled() {
			count = -1
			filled = append(filled, maker)
		}

		ob.Depth.UpdatePriceLevel(maker.Side, maker.Price, quantity.Neg(), count)
	}

	for _, maker := range filled {
		offers.Remove(maker.Key())
		delete(ob.orders, maker.ID)
	}

	return matches
}

func (ob *OrderBook) fill(maker, taker *Order, quantity, price decimal.Decimal) Match {
	maker.Fill(quantity)
	taker.Fill(quantity)

	buy, sell := taker, maker
	if maker.IsBid() {
		buy, sell = maker, taker
	}

	config.Logger.Debugf("[carbonex.orderbook] new trade %s * %s between %d and %d", price, quantity, maker.ID, taker.ID)

	ob.setMarketPrice(price)

	return Match{
		Symbol:       ob.Symbol,
		BuyOrderID:   buy.ID,
		SellOrderID:  sell.ID,
		BuyerID:      buy.MemberID,
		SellerID:     sell.MemberID,
		MakerOrderID: maker.ID,
		TakerOrderID: taker.ID,
		Quantity:     quantity,
		Price:        price,
	}
}

func (ob *OrderBook) setMarketPrice(newPrice decimal.Decimal) {
	ob.MarketPrice = newPrice

	ob.triggerStops(ob.StopBids, newPrice)
	ob.triggerStops(ob.StopAsks, newPrice)
}

func (ob *OrderBook) triggerStops(stops *redblacktree.Tree, price decimal.Decimal) {
	for {
		best := stops.Right()
		if best == nil {
			break
		}

		bestOrder := best.Value.(*Order)
		if !bestOrder.StopCrossed(price) {
			break
		}

		config.Logger.Debugf("[carbonex.orderbook] %s order %d with stop price %s enqueued", bestOrder.Side, bestOrder.ID, bestOrder.StopPrice)

		stops.Remove(best.Key)
		delete(ob.orders, bestOrder.ID)

		bestOrder.Trigger()
		ob.triggered = append(ob.triggered, bestOrder.ID)
		ob.pendingOrdersQueue.Enqueue(bestOrder)
	}
}

// Cancel removes the order from whichever tree holds it.
func (ob *OrderBook) Cancel(id int64) (*Order, bool) {
	o, ok := ob.orders[id]
	if !ok {
		return nil, false
	}

	switch {
	case o.IsPendingStop():
		ob.stopBook(o.Side).Remove(o.Key())
	case o.IsMarket():
		ob.heldBook(o.Side).Remove(o.Key())
	default:
		ob.book(o.Side).Remove(o.Key())
		ob.Depth.UpdatePriceLevel(o.Side, o.Price, o.UnfilledQuantity().Neg(), -1)
	}

	delete(ob.orders, id)

	return o, true
}

// Amend lowers the quantity of a booked order in place, keeping its priority.
// The new quantity must stay above what is already filled.
func (ob *OrderBook) Amend(id int64, quantity decimal.Decimal) bool {
	o, ok := ob.orders[id]
	if !ok {
		return false
	}

	if quantity.GreaterThan(o.Quantity) || quantity.LessThanOrEqual(o.FilledQuantity) {
		return false
	}

	delta := quantity.Sub(o.Quantity)
	o.Quantity = quantity

	if !o.IsPendingStop() && !o.IsMarket() {
		ob.Depth.UpdatePriceLevel(o.Side, o.Price, delta, 0)
	}

	return true
}

// Restore places a recovered order without matching it.
func (ob *OrderBook) Restore(o *Order) {
	if _, found := ob.orders[o.ID]; found || o.Filled() {
		return
	}

	ob.assignSequence(o)

	switch {
	case o.IsPendingStop():
		ob.stopBook(o.Side).Put(o.Key(), o)
	case o.IsMarket():
		ob.heldBook(o.Side).Put(o.Key(), o)
	default:
		ob.book(o.Side).Put(o.Key(), o)
		ob.Depth.UpdatePriceLevel(o.Side, o.Price, o.UnfilledQuantity(), 1)
	}

	ob.orders[o.ID] = o
}

// TakeTriggered returns the ids of stop orders triggered since the last call.
func (ob *OrderBook) TakeTriggered() []int64 {
	triggered := ob.triggered
	ob.triggered = nil
	return triggered
}

func (ob *OrderBook) Snapshot(limit int) *Snapshot {
	return ob.Depth.FetchOrderBook(limit, ob.MarketPrice)
}

func (ob *OrderBook) assignSequence(o *Order) {
	if o.sequence == 0 {
		ob.sequence++
		o.sequence = ob.sequence
	}
}

func (ob *OrderBook) book(side types.OrderSide) *redblacktree.Tree {
	if side == types.SideBuy {
		return ob.Bids
	}

	return ob.Asks
}

func (ob *OrderBook) stopBook(side types.OrderSide) *redblacktree.Tree {
	if side == types.SideBuy {
		return ob.StopBids
	}

	return ob.StopAsks
}

func (ob *OrderBook) heldBook(side types.OrderSide) *redblacktree.Tree {
	if side == types.SideBuy {
		return ob.HeldBids
	}

	return ob.HeldAsks
}
