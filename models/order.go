package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null"

	"github.com/zsmartex/carbonex/matching"
	"github.com/zsmartex/carbonex/types"
)

type Order struct {
	ID                int64               `json:"id" gorm:"primaryKey"`
	UUID              uuid.UUID           `json:"uuid" gorm:"type:uuid;uniqueIndex"`
	ClientOrderID     string              `json:"client_order_id" gorm:"uniqueIndex:idx_orders_member_client_order"`
	MemberID          int64               `json:"member_id" gorm:"uniqueIndex:idx_orders_member_client_order;index"`
	Instrument        Instrument          `json:"instrument" gorm:"embedded"`
	Side              types.OrderSide     `json:"side"`
	Type              types.OrderType     `json:"type"`
	Quantity          decimal.Decimal     `json:"quantity" gorm:"type:numeric(32,16)"`
	FilledQuantity    decimal.Decimal     `json:"filled_quantity" gorm:"type:numeric(32,16)"`
	Price             decimal.NullDecimal `json:"price" gorm:"type:numeric(32,16)"`
	StopPrice         decimal.NullDecimal `json:"stop_price" gorm:"type:numeric(32,16)"`
	Locked            decimal.Decimal     `json:"locked" gorm:"type:numeric(32,16)"`
	Status            types.OrderStatus   `json:"status" gorm:"index"`
	RejectionReason   null.String         `json:"rejection_reason"`
	CancelReason      null.String         `json:"cancel_reason"`
	RiskChecked       bool                `json:"risk_checked"`
	ComplianceChecked bool                `json:"compliance_checked"`
	RiskScore         int                 `json:"risk_score"`
	RequiresReview    bool                `json:"requires_review"`
	ReportingRequired bool                `json:"reporting_required"`
	ExpiresAt         null.Time           `json:"expires_at" gorm:"index"`
	TriggeredAt       null.Time           `json:"triggered_at"`
	RankedAt          time.Time           `json:"ranked_at"`
	SubmittedAt       null.Time           `json:"submitted_at"`
	FirstFillAt       null.Time           `json:"first_fill_at"`
	LastFillAt        null.Time           `json:"last_fill_at"`
	ClosedAt          null.Time           `json:"closed_at"`
	Version           int64               `json:"version"`
	CreatedAt         time.Time           `json:"created_at" gorm:"index"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

var orderTransitions = map[types.OrderStatus][]types.OrderStatus{
	types.StatusPending:         {types.StatusOpen, types.StatusRejected, types.StatusCancelled},
	types.StatusOpen:            {types.StatusPartiallyFilled, types.StatusFilled, types.StatusCancelled, types.StatusExpired},
	types.StatusPartiallyFilled: {types.StatusPartiallyFilled, types.StatusFilled, types.StatusCancelled, types.StatusExpired},
}

func (o *Order) Key() string {
	return o.Instrument.Key()
}

func (o *Order) RemainingQuantity() decimal.Decimal {
	remaining := o.Quantity.Sub(o.FilledQuantity)
	if remaining.IsNegative() {
		return decimal.Zero
	}

	return remaining
}

func (o *Order) IsActive() bool {
	return o.Status.IsActive()
}

func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

func (o *Order) IsBuy() bool {
	return o.Side == types.SideBuy
}

// FillPercentage is the filled share of the order in percent, rounded to 2 places.
func (o *Order) FillPercentage() decimal.Decimal {
	if !o.Quantity.IsPositive() {
		return decimal.Zero
	}

	return o.FilledQuantity.Div(o.Quantity).Mul(decimal.NewFromInt(100)).Round(2)
}

// LimitPrice returns the price bound of the order, if it has one.
func (o *Order) LimitPrice() (decimal.Decimal, bool) {
	if o.Price.Valid && o.Type.RequiresPrice() {
		return o.Price.Decimal, true
	}

	return decimal.Zero, false
}

func (o *Order) NotionalValue(price decimal.Decimal) decimal.Decimal {
	return o.Quantity.Mul(price)
}

// CanTransition reports whether the state machine allows o to move to next.
func (o *Order) CanTransition(next types.OrderStatus) bool {
	for _, allowed := range orderTransitions[o.Status] {
		if allowed == next {
			return true
		}
	}

	return false
}

// Transition moves the order to next, stamping submitted/closed times.
func (o *Order) Transition(next types.OrderStatus, at time.Time) error {
	if !o.CanTransition(next) {
		return types.Errorf(types.KindInvalidState, "market.order.invalid_transition", "order %d cannot move from %s to %s", o.ID, o.Status, next)
	}

	o.Status = next

	if next == types.StatusOpen {
		o.SubmittedAt = null.TimeFrom(at)
	}

	if next.IsTerminal() {
		o.ClosedAt = null.TimeFrom(at)
	}

	return nil
}

func (o *Order) Reject(reason string, at time.Time) error {
	if err := o.Transition(types.StatusRejected, at); err != nil {
		return err
	}

	o.RejectionReason = null.StringFrom(reason)
	return nil
}

// ApplyFill books qty as filled. Orders closed by cancel or expiry after the
// match was computed still accept the fill but keep their terminal status.
func (o *Order) ApplyFill(qty decimal.Decimal, at time.Time) error {
	if !qty.IsPositive() {
		return types.Errorf(types.KindValidation, "market.order.non_positive_fill", "fill quantity %s must be positive", qty)
	}

	if qty.GreaterThan(o.RemainingQuantity()) {
		return types.Errorf(types.KindInvalidState, "market.order.overfill", "order %d remaining %s is less than fill %s", o.ID, o.RemainingQuantity(), qty)
	}

	switch o.Status {
	case types.StatusOpen, types.StatusPartiallyFilled, types.StatusCancelled, types.StatusExpired:
	default:
		return types.Errorf(types.KindInvalidState, "market.order.not_fillable", "order %d in state %s cannot be filled", o.ID, o.Status)
	}

	o.FilledQuantity = o.FilledQuantity.Add(qty)
	if !o.FirstFillAt.Valid {
		o.FirstFillAt = null.TimeFrom(at)
	}
	o.LastFillAt = null.TimeFrom(at)

	if !o.IsActive() {
		return nil
	}

	if o.RemainingQuantity().IsZero() {
		return o.Transition(types.StatusFilled, at)
	}

	return o.Transition(types.StatusPartiallyFilled, at)
}

// ToMatchingAttributes builds the book entry for o. RankedAt is the time
// priority in the book and only moves when the price is modified.
func (o *Order) ToMatchingAttributes() *matching.Order {
	rankedAt := o.RankedAt
	if rankedAt.IsZero() {
		rankedAt = o.CreatedAt
	}

	order := &matching.Order{
		ID:             o.ID,
		MemberID:       o.MemberID,
		Symbol:         o.Key(),
		Side:           o.Side,
		Type:           o.Type,
		Price:          o.Price.Decimal,
		StopPrice:      o.StopPrice.Decimal,
		Quantity:       o.Quantity,
		FilledQuantity: o.FilledQuantity,
		CreatedAt:      rankedAt,
	}

	if o.TriggeredAt.Valid {
		order.Trigger()
	}

	return order
}
