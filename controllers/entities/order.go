package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null"

	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

type OrderEntity struct {
	ID              int64               `json:"id"`
	UUID            uuid.UUID           `json:"uuid"`
	ClientOrderID   string              `json:"client_order_id"`
	Market          string              `json:"market"`
	CreditType      string              `json:"credit_type"`
	VintageYear     int                 `json:"vintage_year"`
	ProjectID       string              `json:"project_id,omitempty"`
	Side            types.OrderSide     `json:"side"`
	OrdType         types.OrderType     `json:"ord_type"`
	Price           decimal.NullDecimal `json:"price"`
	StopPrice       decimal.NullDecimal `json:"stop_price"`
	State           types.OrderStatus   `json:"state"`
	OriginVolume    decimal.Decimal     `json:"origin_volume"`
	RemainingVolume decimal.Decimal     `json:"remaining_volume"`
	ExecutedVolume  decimal.Decimal     `json:"executed_volume"`
	Locked          decimal.Decimal     `json:"locked"`
	RiskScore       int                 `json:"risk_score"`
	RequiresReview  bool                `json:"requires_review"`
	RejectionReason null.String         `json:"rejection_reason"`
	CancelReason    null.String         `json:"cancel_reason"`
	TradesCount     int                 `json:"trades_count"`
	ExpiresAt       null.Time           `json:"expires_at"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func OrderToEntity(order *models.Order) OrderEntity {
	return OrderEntity{
		ID:              order.ID,
		UUID:            order.UUID,
		ClientOrderID:   order.ClientOrderID,
		Market:          order.Key(),
		CreditType:      order.Instrument.CreditType,
		VintageYear:     order.Instrument.VintageYear,
		ProjectID:       order.Instrument.ProjectID,
		Side:            order.Side,
		OrdType:         order.Type,
		Price:           order.Price,
		StopPrice:       order.StopPrice,
		State:           order.Status,
		OriginVolume:    order.Quantity,
		RemainingVolume: order.RemainingQuantity(),
		ExecutedVolume:  order.FilledQuantity,
		Locked:          order.Locked,
		RiskScore:       order.RiskScore,
		RequiresReview:  order.RequiresReview,
		RejectionReason: order.RejectionReason,
		CancelReason:    order.CancelReason,
		ExpiresAt:       order.ExpiresAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}
