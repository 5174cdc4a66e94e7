package matching

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/types"
)

// Order is the book's view of an order. It only carries what matching needs.
type Order struct {
	ID             int64
	MemberID       int64
	Symbol         string
	Side           types.OrderSide
	Type           types.OrderType
	Price          decimal.Decimal
	StopPrice      decimal.Decimal
	Quantity       decimal.Decimal
	FilledQuantity decimal.Decimal
	CreatedAt      time.Time
	Triggered      bool

	sequence uint64
}

type OrderKey struct {
	ID        int64
	Side      types.OrderSide
	Price     decimal.Decimal
	StopPrice decimal.Decimal
	CreatedAt time.Time
	Sequence  uint64
}

func (o *Order) Key() *OrderKey {
	return &OrderKey{
		ID:        o.ID,
		Side:      o.Side,
		Price:     o.Price,
		StopPrice: o.StopPrice,
		CreatedAt: o.CreatedAt,
		Sequence:  o.sequence,
	}
}

func (o *Order) IsBid() bool {
	return o.Side == types.SideBuy
}

func (o *Order) IsMarket() bool {
	return o.Type == types.TypeMarket
}

// IsPendingStop reports whether the order still waits for its stop price.
func (o *Order) IsPendingStop() bool {
	return o.Type.RequiresStopPrice() && !o.Triggered
}

func (o *Order) UnfilledQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

func (o *Order) Filled() bool {
	return !o.UnfilledQuantity().IsPositive()
}

func (o *Order) Fill(quantity decimal.Decimal) {
	o.FilledQuantity = o.FilledQuantity.Add(quantity)
}

// IsCrossed reports whether a resting price is acceptable to this limit order.
func (o *Order) IsCrossed(price decimal.Decimal) bool {
	if o.IsBid() {
		return price.LessThanOrEqual(o.Price)
	}

	return price.GreaterThanOrEqual(o.Price)
}

// StopCrossed reports whether marketPrice reaches the stop price.
func (o *Order) StopCrossed(marketPrice decimal.Decimal) bool {
	if !marketPrice.IsPositive() {
		return false
	}

	if o.IsBid() {
		return marketPrice.GreaterThanOrEqual(o.StopPrice)
	}

	return marketPrice.LessThanOrEqual(o.StopPrice)
}

// Trigger converts a stop into a market order and a stop-limit into a limit order.
func (o *Order) Trigger() {
	switch o.Type {
	case types.TypeStop:
		o.Type = types.TypeMarket
	case types.TypeStopLimit:
		o.Type = types.TypeLimit
	}

	o.Triggered = true
}

// Comparator orders the bid and ask trees so that Right() is the best order:
// better price first, then earlier creation, then earlier arrival.
func Comparator(a, b interface{}) (result int) {
	this := a.(*OrderKey)
	that := b.(*OrderKey)

	if this.Side != that.Side {
		config.Logger.Errorf("[carbonex.orderbook] compare order with different sides")
	}

	if this.ID == that.ID {
		return
	}

	switch {
	case this.Side == types.SideSell && this.Price.LessThan(that.Price):
		result = 1

	case this.Side == types.SideSell && this.Price.GreaterThan(that.Price):
		result = -1

	case this.Side == types.SideBuy && this.Price.LessThan(that.Price):
		result = -1

	case this.Side == types.SideBuy && this.Price.GreaterThan(that.Price):
		result = 1

	default:
		result = timeComparator(this, that)
	}

	return
}

// StopComparator orders stop trees so that Right() is the stop that triggers
// first: the lowest buy stop and the highest sell stop.
func StopComparator(a, b interface{}) (result int) {
	this := a.(*OrderKey)
	that := b.(*OrderKey)

	if this.ID == that.ID {
		return
	}

	switch {
	case this.Side == types.SideBuy && this.StopPrice.LessThan(that.StopPrice):
		result = 1

	case this.Side == types.SideBuy && this.StopPrice.GreaterThan(that.StopPrice):
		result = -1

	case this.Side == types.SideSell && this.StopPrice.LessThan(that.StopPrice):
		result = -1

	case this.Side == types.SideSell && this.StopPrice.GreaterThan(that.StopPrice):
		result = 1

	default:
		result = timeComparator(this, that)
	}

	return
}

// MarketComparator orders held market orders by time only.
func MarketComparator(a, b interface{}) int {
	this := a.(*OrderKey)
	that := b.(*OrderKey)

	if this.ID == that.ID {
		return 0
	}

	return timeComparator(this, that)
}

func timeComparator(this, that *OrderKey) int {
	switch {
	case this.CreatedAt.Before(that.CreatedAt):
		return 1
	case this.CreatedAt.After(that.CreatedAt):
		return -1
	case this.Sequence < that.Sequence:
		return 1
	case this.Sequence > that.Sequence:
		return -1
	case this.ID < that.ID:
		return 1
	default:
		return -1
	}
}
