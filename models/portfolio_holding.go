package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/types"
)

// PortfolioHolding is a member's aggregate position in one instrument.
type PortfolioHolding struct {
	ID            int64           `json:"id" gorm:"primaryKey"`
	MemberID      int64           `json:"member_id" gorm:"uniqueIndex:idx_holdings_member_instrument"`
	Instrument    Instrument      `json:"instrument" gorm:"embedded"`
	InstrumentKey string          `json:"instrument_key" gorm:"uniqueIndex:idx_holdings_member_instrument"`
	Quantity      decimal.Decimal `json:"quantity" gorm:"type:numeric(32,16)"`
	Locked        decimal.Decimal `json:"locked" gorm:"type:numeric(32,16)"`
	AverageCost   decimal.Decimal `json:"average_cost" gorm:"type:numeric(32,16)"`
	TotalCost     decimal.Decimal `json:"total_cost" gorm:"type:numeric(32,16)"`
	CurrentPrice  decimal.Decimal `json:"current_price" gorm:"type:numeric(32,16)"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl" gorm:"type:numeric(32,16)"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl" gorm:"type:numeric(32,16)"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func NewPortfolioHolding(memberID int64, instrument Instrument) *PortfolioHolding {
	return &PortfolioHolding{
		MemberID:      memberID,
		Instrument:    instrument,
		InstrumentKey: instrument.Key(),
	}
}

// Available is the quantity not reserved by resting sell orders.
func (h *PortfolioHolding) Available() decimal.Decimal {
	return h.Quantity.Sub(h.Locked)
}

// MarketValue values the position at the last marked price, falling back to cost.
func (h *PortfolioHolding) MarketValue() decimal.Decimal {
	if h.CurrentPrice.IsPositive() {
		return h.Quantity.Mul(h.CurrentPrice)
	}

	return h.TotalCost
}

// AddPosition blends qty bought at price into the average cost.
func (h *PortfolioHolding) AddPosition(qty, price decimal.Decimal) error {
	if !qty.IsPositive() || !price.IsPositive() {
		return types.Errorf(types.KindValidation, "portfolio.holding.invalid_position", "cannot add %s @ %s", qty, price)
	}

	h.Quantity = h.Quantity.Add(qty)
	h.TotalCost = h.TotalCost.Add(qty.Mul(price))
	h.AverageCost = h.TotalCost.Div(h.Quantity)
	h.refreshUnrealized()

	return nil
}

// ReducePosition removes qty sold at price and returns the P&L realized
// against the average cost.
func (h *PortfolioHolding) ReducePosition(qty, price decimal.Decimal) (decimal.Decimal, error) {
	if !qty.IsPositive() || !price.IsPositive() {
		return decimal.Zero, types.Errorf(types.KindValidation, "portfolio.holding.invalid_position", "cannot reduce %s @ %s", qty, price)
	}

	if qty.GreaterThan(h.Quantity) {
		return decimal.Zero, types.Errorf(types.KindInsufficientBalance, "portfolio.holding.insufficient_quantity", "member %d holds %s of %s, cannot reduce by %s", h.MemberID, h.Quantity, h.InstrumentKey, qty)
	}

	realized := price.Sub(h.AverageCost).Mul(qty)
	h.RealizedPnL = h.RealizedPnL.Add(realized)
	h.Quantity = h.Quantity.Sub(qty)

	if h.Quantity.IsZero() {
		h.AverageCost = decimal.Zero
		h.TotalCost = decimal.Zero
	} else {
		h.TotalCost = h.Quantity.Mul(h.AverageCost)
	}
	h.refreshUnrealized()

	return realized, nil
}

func (h *PortfolioHolding) Lock(qty decimal.Decimal) error {
	if !qty.IsPositive() || qty.GreaterThan(h.Available()) {
		return types.Errorf(types.KindInsufficientBalance, "portfolio.holding.insufficient_quantity", "cannot lock %s of %s (quantity: %s, locked: %s)", qty, h.InstrumentKey, h.Quantity, h.Locked)
	}

	h.Locked = h.Locked.Add(qty)
	return nil
}

func (h *PortfolioHolding) Unlock(qty decimal.Decimal) error {
	if !qty.IsPositive() || qty.GreaterThan(h.Locked) {
		return types.Errorf(types.KindInvalidState, "portfolio.holding.invalid_unlock", "cannot unlock %s of %s (locked: %s)", qty, h.InstrumentKey, h.Locked)
	}

	h.Locked = h.Locked.Sub(qty)
	return nil
}

func (h *PortfolioHolding) MarkToMarket(price decimal.Decimal) {
	h.CurrentPrice = price
	h.refreshUnrealized()
}

func (h *PortfolioHolding) refreshUnrealized() {
	if h.Quantity.IsZero() || !h.CurrentPrice.IsPositive() {
		h.UnrealizedPnL = decimal.Zero
		return
	}

	h.UnrealizedPnL = h.CurrentPrice.Sub(h.AverageCost).Mul(h.Quantity)
}
