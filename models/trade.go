package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null"

	"github.com/zsmartex/carbonex/types"
)

type Trade struct {
	ID                  int64             `json:"id" gorm:"primaryKey"`
	UUID                uuid.UUID         `json:"uuid" gorm:"type:uuid;uniqueIndex"`
	BuyOrderID          int64             `json:"buy_order_id" gorm:"index"`
	SellOrderID         int64             `json:"sell_order_id" gorm:"index"`
	BuyerID             int64             `json:"buyer_id" gorm:"index"`
	SellerID            int64             `json:"seller_id" gorm:"index"`
	MakerOrderID        int64             `json:"maker_order_id"`
	TakerOrderID        int64             `json:"taker_order_id"`
	Instrument          Instrument        `json:"instrument" gorm:"embedded"`
	Quantity            decimal.Decimal   `json:"quantity" gorm:"type:numeric(32,16)" validate:"ValidateQuantity"`
	Price               decimal.Decimal   `json:"price" gorm:"type:numeric(32,16)" validate:"ValidatePrice"`
	TotalValue          decimal.Decimal   `json:"total_value" gorm:"type:numeric(32,16)"`
	BuyerFee            decimal.Decimal   `json:"buyer_fee" gorm:"type:numeric(32,16)"`
	SellerFee           decimal.Decimal   `json:"seller_fee" gorm:"type:numeric(32,16)"`
	PlatformFee         decimal.Decimal   `json:"platform_fee" gorm:"type:numeric(32,16)"`
	Status              types.TradeStatus `json:"status" gorm:"index"`
	ExecutedAt          time.Time         `json:"executed_at" gorm:"index"`
	SettledAt           null.Time         `json:"settled_at"`
	SettlementReference null.String       `json:"settlement_reference"`
	FailureReason       null.String       `json:"failure_reason"`
	Attempts            int               `json:"attempts"`
	NextAttemptAt       null.Time         `json:"next_attempt_at" gorm:"index"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func (t Trade) ValidateQuantity(quantity decimal.Decimal) bool {
	return quantity.IsPositive()
}

func (t Trade) ValidatePrice(price decimal.Decimal) bool {
	return price.IsPositive()
}

func (t *Trade) Key() string {
	return t.Instrument.Key()
}

// OrderForMember returns the id of the order memberID traded with, and
// whether memberID is a party to the trade at all.
func (t *Trade) OrderForMember(memberID int64) (int64, bool) {
	switch memberID {
	case t.BuyerID:
		return t.BuyOrderID, true
	case t.SellerID:
		return t.SellOrderID, true
	default:
		return 0, false
	}
}

func (t *Trade) Side(memberID int64) types.OrderSide {
	if memberID == t.BuyerID {
		return types.SideBuy
	}

	return types.SideSell
}

func (t *Trade) IsSettled() bool {
	return t.Status == types.TradeStatusSettled
}

// IsOpen reports whether the trade still awaits settlement.
func (t *Trade) IsOpen() bool {
	return t.Status == types.TradeStatusPending || t.Status == types.TradeStatusConfirmed
}

func (t *Trade) Confirm() error {
	if t.Status != types.TradeStatusPending {
		return types.Errorf(types.KindInvalidState, "market.trade.invalid_transition", "trade %d cannot be confirmed from %s", t.ID, t.Status)
	}

	t.Status = types.TradeStatusConfirmed
	return nil
}

func (t *Trade) MarkSettled(reference string, at time.Time) error {
	if t.Status != types.TradeStatusConfirmed {
		return types.Errorf(types.KindInvalidState, "market.trade.invalid_transition", "trade %d cannot be settled from %s", t.ID, t.Status)
	}

	t.Status = types.TradeStatusSettled
	t.SettlementReference = null.StringFrom(reference)
	t.SettledAt = null.TimeFrom(at)
	t.FailureReason = null.String{}
	t.NextAttemptAt = null.Time{}
	return nil
}

func (t *Trade) MarkFailed(reason string) {
	t.Status = types.TradeStatusFailed
	t.FailureReason = null.StringFrom(reason)
	t.NextAttemptAt = null.Time{}
}

// ScheduleRetry records a failed attempt and the time of the next one. The
// delay doubles with every attempt.
func (t *Trade) ScheduleRetry(reason string, backoff time.Duration, at time.Time) {
	t.Attempts++
	t.FailureReason = null.StringFrom(reason)
	t.NextAttemptAt = null.TimeFrom(at.Add(backoff * time.Duration(1<<uint(t.Attempts-1))))
}
