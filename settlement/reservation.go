package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

// OpenTradesReservation is what order has to keep reserved for its trades
// still awaiting settlement: cost plus buyer fee of each trade for a buy, the
// traded quantity for a sell. The trade with id except is left out.
func OpenTradesReservation(ctx context.Context, reader ledger.Reader, fees *models.FeeSchedule, order *models.Order, except int64) (decimal.Decimal, error) {
	trades, err := reader.ListTrades(ctx, ledger.TradeFilter{
		OrderID:  order.ID,
		Statuses: []types.TradeStatus{types.TradeStatusPending, types.TradeStatusConfirmed},
	})
	if err != nil {
		return decimal.Zero, err
	}

	held := decimal.Zero
	for _, trade := range trades {
		if trade.ID == except {
			continue
		}

		if order.IsBuy() {
			held = held.Add(trade.TotalValue).Add(fees.Calculate(trade.TotalValue).Buyer)
		} else {
			held = held.Add(trade.Quantity)
		}
	}

	return held, nil
}
