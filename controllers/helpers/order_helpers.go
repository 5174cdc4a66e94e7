package helpers

import (
	"github.com/gookit/validate"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null"

	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

type CreateOrderParams struct {
	ClientOrderID string              `json:"client_order_id" form:"client_order_id" validate:"required"`
	CreditType    string              `json:"credit_type" form:"credit_type" validate:"required"`
	VintageYear   int                 `json:"vintage_year" form:"vintage_year" validate:"required"`
	ProjectID     string              `json:"project_id" form:"project_id"`
	Side          types.OrderSide     `json:"side" form:"side" validate:"required|VaildateSide"`
	OrdType       types.OrderType     `json:"ord_type" form:"ord_type"`
	Price         decimal.NullDecimal `json:"price" form:"price" validate:"VaildatePrice"`
	StopPrice     decimal.NullDecimal `json:"stop_price" form:"stop_price" validate:"VaildateStopPrice"`
	Volume        decimal.Decimal     `json:"volume" form:"volume"`
	ExpiresAt     null.Time           `json:"expires_at" form:"expires_at"`
}

func (p CreateOrderParams) Messages() map[string]string {
	invalid_message := "market.order.invalid_{field}"

	return validate.MS{
		"required":          invalid_message,
		"VaildateSide":      invalid_message,
		"VaildatePrice":     "market.order.non_positive_price",
		"VaildateStopPrice": "market.order.non_positive_stop_price",
	}
}

func (p CreateOrderParams) VaildatePrice(Price decimal.NullDecimal) bool {
	if Price.Valid {
		return Price.Decimal.IsPositive()
	}

	return true
}

func (p CreateOrderParams) VaildateStopPrice(StopPrice decimal.NullDecimal) bool {
	if StopPrice.Valid {
		return StopPrice.Decimal.IsPositive()
	}

	return true
}

func (p CreateOrderParams) VaildateSide(val types.OrderSide) bool {
	return p.Side == types.SideBuy || p.Side == types.SideSell
}

// ToIntent builds the order intent. A missing ord_type is a limit order.
func (p CreateOrderParams) ToIntent() models.OrderIntent {
	if len(p.OrdType) == 0 {
		p.OrdType = types.TypeLimit
	}

	return models.OrderIntent{
		ClientOrderID: p.ClientOrderID,
		CreditType:    p.CreditType,
		VintageYear:   p.VintageYear,
		ProjectID:     p.ProjectID,
		Side:          p.Side,
		Type:          p.OrdType,
		Quantity:      p.Volume,
		Price:         p.Price,
		StopPrice:     p.StopPrice,
		ExpiresAt:     p.ExpiresAt,
	}
}

type UpdateOrderParams struct {
	Volume    decimal.NullDecimal `json:"volume" form:"volume"`
	Price     decimal.NullDecimal `json:"price" form:"price"`
	StopPrice decimal.NullDecimal `json:"stop_price" form:"stop_price"`
	ExpiresAt null.Time           `json:"expires_at" form:"expires_at"`
}

func (p UpdateOrderParams) ToModifyFields() models.ModifyFields {
	return models.ModifyFields{
		Quantity:  p.Volume,
		Price:     p.Price,
		StopPrice: p.StopPrice,
		ExpiresAt: p.ExpiresAt,
	}
}

type CancelOrderParams struct {
	Reason string `json:"reason" form:"reason"`
}
