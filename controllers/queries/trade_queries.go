package queries

import (
	"time"

	"github.com/zsmartex/carbonex/controllers/helpers"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

type TradeFilters struct {
	CreditType  string        `query:"credit_type"`
	VintageYear int           `query:"vintage_year" validate:"uint"`
	ProjectID   string        `query:"project_id"`
	Limit       int           `query:"limit" validate:"uint"`
	Page        int           `query:"page" validate:"uint"`
	TimeFrom    int64         `query:"time_from" validate:"uint"`
	TimeTo      int64         `query:"time_to" validate:"uint"`
	OrderBy     types.OrderBy `query:"order_by" validate:"ValidateOrderBy"`
}

func (t TradeFilters) ValidateOrderBy(val types.OrderBy) bool {
	return helpers.ValidateOrderBy(val)
}

func (t TradeFilters) Messages() map[string]string {
	return helpers.VaildateMessage("market.trade")
}

// ToFilter builds the ledger filter; memberID 0 lists every member's trades.
func (t TradeFilters) ToFilter(memberID int64) ledger.TradeFilter {
	filter := ledger.TradeFilter{
		MemberID: memberID,
		Limit:    t.Limit,
		Page:     t.Page,
		OrderBy:  t.OrderBy,
	}

	if len(t.CreditType) > 0 && t.VintageYear > 0 {
		instrument := models.NewInstrument(t.CreditType, t.VintageYear, t.ProjectID)
		filter.Instrument = &instrument
	}

	if t.TimeFrom > 0 {
		filter.From = time.Unix(t.TimeFrom, 0).UTC()
	}

	if t.TimeTo > 0 {
		filter.To = time.Unix(t.TimeTo, 0).UTC()
	}

	if filter.Limit == 0 {
		filter.Limit = 100
	}

	return filter
}
