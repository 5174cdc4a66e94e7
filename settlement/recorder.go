package settlement

import (
	"strconv"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/models"
)

// Recorder writes settled trades to a time series store.
type Recorder interface {
	RecordTrade(trade *models.Trade) error
}

type NopRecorder struct{}

func (NopRecorder) RecordTrade(*models.Trade) error {
	return nil
}

type InfluxRecorder struct {
	client *config.InfluxClient
}

func NewInfluxRecorder(client *config.InfluxClient) *InfluxRecorder {
	return &InfluxRecorder{client: client}
}

func (r *InfluxRecorder) RecordTrade(trade *models.Trade) error {
	return r.client.NewPoint("trades", TradeTags(trade), TradeFields(trade), trade.ExecutedAt)
}

func TradeTags(trade *models.Trade) map[string]string {
	return map[string]string{
		"instrument":   trade.Key(),
		"credit_type":  trade.Instrument.CreditType,
		"vintage_year": strconv.Itoa(trade.Instrument.VintageYear),
	}
}

func TradeFields(trade *models.Trade) map[string]interface{} {
	return map[string]interface{}{
		"id":           trade.ID,
		"price":        trade.Price.InexactFloat64(),
		"quantity":     trade.Quantity.InexactFloat64(),
		"total_value":  trade.TotalValue.InexactFloat64(),
		"platform_fee": trade.PlatformFee.InexactFloat64(),
	}
}
