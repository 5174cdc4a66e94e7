package models

import (
	"time"

	"github.com/gookit/validate"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null"

	"github.com/zsmartex/carbonex/models/concerns"
	"github.com/zsmartex/carbonex/types"
)

// OrderIntent is a member's request to place an order, before any gate ran.
type OrderIntent struct {
	ClientOrderID string              `json:"client_order_id" form:"client_order_id" validate:"required|maxLen:64"`
	CreditType    string              `json:"credit_type" form:"credit_type" validate:"required|maxLen:32"`
	VintageYear   int                 `json:"vintage_year" form:"vintage_year" validate:"required|ValidateVintage"`
	ProjectID     string              `json:"project_id" form:"project_id" validate:"maxLen:64"`
	Side          types.OrderSide     `json:"side" form:"side" validate:"required|ValidateSide"`
	Type          types.OrderType     `json:"type" form:"type" validate:"required|ValidateType"`
	Quantity      decimal.Decimal     `json:"quantity" form:"quantity"`
	Price         decimal.NullDecimal `json:"price" form:"price"`
	StopPrice     decimal.NullDecimal `json:"stop_price" form:"stop_price"`
	ExpiresAt     null.Time           `json:"expires_at" form:"expires_at"`
}

func (i OrderIntent) Messages() map[string]string {
	invalid_message := "market.order.invalid_{field}"

	return validate.MS{
		"required":        invalid_message,
		"maxLen":          invalid_message,
		"ValidateVintage": "market.order.invalid_vintage_year",
		"ValidateSide":    "market.order.invalid_side",
		"ValidateType":    "market.order.invalid_type",
	}
}

func (i OrderIntent) ValidateVintage(year int) bool {
	return year >= 1990 && year <= 2100
}

func (i OrderIntent) ValidateSide(side types.OrderSide) bool {
	return side == types.SideBuy || side == types.SideSell
}

func (i OrderIntent) ValidateType(orderType types.OrderType) bool {
	switch orderType {
	case types.TypeMarket, types.TypeLimit, types.TypeStop, types.TypeStopLimit:
		return true
	default:
		return false
	}
}

// Validate runs the struct rules and the numeric rules that depend on the
// order type. Every failed rule is reported as a violation code.
func (i OrderIntent) Validate(now time.Time) error {
	var codes []string

	v := validate.Struct(i)
	if !v.Validate() {
		for _, errs := range v.Errors.All() {
			for _, err := range errs {
				codes = append(codes, err)
			}
		}
	}

	precision := concerns.PrecisionValidator{}

	if !i.Quantity.IsPositive() {
		codes = append(codes, "market.order.non_positive_quantity")
	} else if !precision.LessThanOrEqTo(i.Quantity, concerns.QuantityPrecision) {
		codes = append(codes, "market.order.quantity_precision")
	}

	if i.Type.RequiresPrice() && !i.Price.Valid {
		codes = append(codes, "market.order.missing_price")
	} else if !i.Type.RequiresPrice() && i.Price.Valid {
		codes = append(codes, "market.order.unexpected_price")
	}

	if i.Price.Valid && !i.Price.Decimal.IsPositive() {
		codes = append(codes, "market.order.non_positive_price")
	} else if i.Price.Valid && !precision.LessThanOrEqTo(i.Price.Decimal, concerns.PricePrecision) {
		codes = append(codes, "market.order.price_precision")
	}

	if i.Type.RequiresStopPrice() && !i.StopPrice.Valid {
		codes = append(codes, "market.order.missing_stop_price")
	} else if !i.Type.RequiresStopPrice() && i.StopPrice.Valid {
		codes = append(codes, "market.order.unexpected_stop_price")
	}

	if i.StopPrice.Valid && !i.StopPrice.Decimal.IsPositive() {
		codes = append(codes, "market.order.non_positive_stop_price")
	} else if i.StopPrice.Valid && !precision.LessThanOrEqTo(i.StopPrice.Decimal, concerns.PricePrecision) {
		codes = append(codes, "market.order.stop_price_precision")
	}

	if i.ExpiresAt.Valid && !i.ExpiresAt.Time.After(now) {
		codes = append(codes, "market.order.expired")
	}

	if len(codes) > 0 {
		return types.NewError(types.KindValidation, "market.order.invalid_params", "order intent is invalid").WithViolations(codes...)
	}

	return nil
}

func (i OrderIntent) Instrument() Instrument {
	return NewInstrument(i.CreditType, i.VintageYear, i.ProjectID)
}

// PriceHint is the price the order itself names: the limit price, else the
// stop price.
func (i OrderIntent) PriceHint() (decimal.Decimal, bool) {
	if i.Price.Valid {
		return i.Price.Decimal, true
	}

	if i.StopPrice.Valid {
		return i.StopPrice.Decimal, true
	}

	return decimal.Zero, false
}

// ModifyFields lists the amendable attributes of a resting order. Unset
// fields are left unchanged.
type ModifyFields struct {
	Quantity  decimal.NullDecimal `json:"quantity" form:"quantity"`
	Price     decimal.NullDecimal `json:"price" form:"price"`
	StopPrice decimal.NullDecimal `json:"stop_price" form:"stop_price"`
	ExpiresAt null.Time           `json:"expires_at" form:"expires_at"`
}

func (f ModifyFields) Empty() bool {
	return !f.Quantity.Valid && !f.Price.Valid && !f.StopPrice.Valid && !f.ExpiresAt.Valid
}
