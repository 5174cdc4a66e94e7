package matching

import (
	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/types"
)

// PriceLevel aggregates the resting quantity at one price.
type PriceLevel struct {
	Side     types.OrderSide
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Count    int32
}

type PriceLevelKey struct {
	Side  types.OrderSide
	Price decimal.Decimal
}

func NewPriceLevel(side types.OrderSide, price decimal.Decimal) *PriceLevel {
	return &PriceLevel{
		Side:     side,
		Price:    price,
		Quantity: decimal.Zero,
	}
}

func (p *PriceLevel) Key() *PriceLevelKey {
	return &PriceLevelKey{
		Side:  p.Side,
		Price: p.Price,
	}
}

func (p *PriceLevel) Update(quantity decimal.Decimal, count int32) {
	p.Quantity = p.Quantity.Add(quantity)
	p.Count += count
}

func (p *PriceLevel) Empty() bool {
	return p.Count <= 0 || !p.Quantity.IsPositive()
}
