package matching

import (
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/types"
)

type Depth struct {
	Symbol   string
	Asks     *redblacktree.Tree
	Bids     *redblacktree.Tree
	Sequence uint64
}

type BookLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Count    int32           `json:"count"`
}

type Snapshot struct {
	Symbol    string          `json:"symbol"`
	Bids      []BookLevel     `json:"bids"`
	Asks      []BookLevel     `json:"asks"`
	LastPrice decimal.Decimal `json:"last_price"`
	Sequence  uint64          `json:"sequence"`
}

func NewDepth(symbol string) *Depth {
	return &Depth{
		Symbol: symbol,
		Asks:   redblacktree.NewWith(makeComparator),
		Bids:   redblacktree.NewWith(makeComparator),
	}
}

// UpdatePriceLevel applies a quantity and order-count delta to one level,
// dropping the level once it is empty.
func (d *Depth) UpdatePriceLevel(side types.OrderSide, price, quantity decimal.Decimal, count int32) {
	priceLevels := d.Bids
	if side == types.SideSell {
		priceLevels = d.Asks
	}

	d.Sequence++

	pl := NewPriceLevel(side, price)
	value, found := priceLevels.Get(pl.Key())
	if found {
		pl = value.(*PriceLevel)
	} else {
		priceLevels.Put(pl.Key(), pl)
	}

	pl.Update(quantity, count)

	if pl.Empty() {
		priceLevels.Remove(pl.Key())
	}
}

// Levels returns up to limit levels of one side, best price first. A limit of
// zero or less returns every level.
func (d *Depth) Levels(side types.OrderSide, limit int) []BookLevel {
	priceLevels := d.Bids
	if side == types.SideSell {
		priceLevels = d.Asks
	}

	levels := make([]BookLevel, 0)

	it := priceLevels.Iterator()
	it.End()
	for it.Prev() {
		if limit > 0 && len(levels) >= limit {
			break
		}

		pl := it.Value().(*PriceLevel)
		levels = append(levels, BookLevel{
			Price:    pl.Price,
			Quantity: pl.Quantity,
			Count:    pl.Count,
		})
	}

	return levels
}

func (d *Depth) FetchOrderBook(limit int, lastPrice decimal.Decimal) *Snapshot {
	return &Snapshot{
		Symbol:    d.Symbol,
		Bids:      d.Levels(types.SideBuy, limit),
		Asks:      d.Levels(types.SideSell, limit),
		LastPrice: lastPrice,
		Sequence:  d.Sequence,
	}
}

func makeComparator(a, b interface{}) int {
	aPriceLevel := a.(*PriceLevelKey)
	bPriceLevel := b.(*PriceLevelKey)

	switch {
	case aPriceLevel.Side == types.SideSell && aPriceLevel.Price.LessThan(bPriceLevel.Price):
		return 1

	case aPriceLevel.Side == types.SideSell && aPriceLevel.Price.GreaterThan(bPriceLevel.Price):
		return -1

	case aPriceLevel.Side == types.SideBuy && aPriceLevel.Price.LessThan(bPriceLevel.Price):
		return -1

	case aPriceLevel.Side == types.SideBuy && aPriceLevel.Price.GreaterThan(bPriceLevel.Price):
		return 1

	default:
		return 0
	}
}
