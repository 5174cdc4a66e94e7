package queries

import (
	"github.com/zsmartex/carbonex/controllers/helpers"
	"github.com/zsmartex/carbonex/models"
)

type DepthQuery struct {
	CreditType  string `query:"credit_type" validate:"required"`
	VintageYear int    `query:"vintage_year" validate:"required|uint"`
	ProjectID   string `query:"project_id"`
	Limit       int    `query:"limit" validate:"uint"`
}

func (t DepthQuery) Messages() map[string]string {
	return helpers.VaildateMessage("public.order_book")
}

func (t DepthQuery) Instrument() models.Instrument {
	return models.NewInstrument(t.CreditType, t.VintageYear, t.ProjectID)
}
