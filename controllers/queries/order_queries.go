package queries

import (
	"time"

	"github.com/zsmartex/carbonex/controllers/helpers"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

type OrderFilters struct {
	CreditType  string          `query:"credit_type"`
	VintageYear int             `query:"vintage_year" validate:"uint"`
	ProjectID   string          `query:"project_id"`
	State       string          `query:"state" validate:"ValidateState"`
	Limit       int             `query:"limit" validate:"uint"`
	Page        int             `query:"page" validate:"uint"`
	Side        types.OrderSide `query:"side" validate:"ValidateSide"`
	TimeFrom    int64           `query:"time_from" validate:"uint"`
	OrderBy     types.OrderBy   `query:"order_by" validate:"ValidateOrderBy"`
}

func (t OrderFilters) ValidateOrderBy(val types.OrderBy) bool {
	return helpers.ValidateOrderBy(val)
}

func (t OrderFilters) ValidateSide(val types.OrderSide) bool {
	return helpers.ValidateSide(val)
}

func (t OrderFilters) ValidateState(val string) bool {
	switch types.OrderStatus(val) {
	case "", types.StatusPending, types.StatusOpen, types.StatusPartiallyFilled, types.StatusFilled,
		types.StatusCancelled, types.StatusRejected, types.StatusExpired:
		return true
	default:
		return false
	}
}

func (t OrderFilters) Messages() map[string]string {
	return helpers.VaildateMessage("market.order")
}

func (t OrderFilters) ToFilter(memberID int64) ledger.OrderFilter {
	filter := ledger.OrderFilter{
		MemberID: memberID,
		Side:     t.Side,
		Limit:    t.Limit,
		Page:     t.Page,
		OrderBy:  t.OrderBy,
	}

	if len(t.CreditType) > 0 && t.VintageYear > 0 {
		instrument := models.NewInstrument(t.CreditType, t.VintageYear, t.ProjectID)
		filter.Instrument = &instrument
	}

	if len(t.State) > 0 {
		filter.Statuses = []types.OrderStatus{types.OrderStatus(t.State)}
	}

	if t.TimeFrom > 0 {
		filter.Since = time.Unix(t.TimeFrom, 0).UTC()
	}

	if filter.Limit == 0 {
		filter.Limit = 100
	}

	return filter
}
