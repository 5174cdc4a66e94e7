package pipeline

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/zsmartex/carbonex/config"
	"github.com/zsmartex/carbonex/ledger"
	"github.com/zsmartex/carbonex/matching"
	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

// GetOrderBookSnapshot returns up to limit aggregated levels per side. An
// instrument nobody traded yet has an empty book.
func (c *Coordinator) GetOrderBookSnapshot(instrument models.Instrument, limit int) *matching.Snapshot {
	engine, ok := c.engines.Lookup(instrument.Key())
	if !ok {
		return &matching.Snapshot{
			Symbol: instrument.Key(),
			Bids:   []matching.BookLevel{},
			Asks:   []matching.BookLevel{},
		}
	}

	return engine.Snapshot(limit)
}

func (c *Coordinator) GetTradeHistory(ctx context.Context, filter ledger.TradeFilter) ([]*models.Trade, error) {
	trades, err := c.store.ListTrades(ctx, filter)
	if err != nil {
		return nil, unavailable(err)
	}

	return trades, nil
}

func (c *Coordinator) GetOrder(ctx context.Context, memberID, orderID int64) (*models.Order, error) {
	return c.ownedOrder(ctx, memberID, orderID)
}

func (c *Coordinator) ListOrders(ctx context.Context, filter ledger.OrderFilter) ([]*models.Order, error) {
	orders, err := c.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, unavailable(err)
	}

	return orders, nil
}

// Recover loads every active order into its book in priority order, counting
// unsettled trades as filled, then retries due settlements. It runs once at
// startup before orders are accepted.
func (c *Coordinator) Recover(ctx context.Context) (int, error) {
	orders, err := c.store.ActiveOrders(ctx)
	if err != nil {
		return 0, unavailable(err)
	}

	open, err := c.store.ListTrades(ctx, ledger.TradeFilter{
		Statuses: []types.TradeStatus{types.TradeStatusPending, types.TradeStatusConfirmed},
	})
	if err != nil {
		return 0, unavailable(err)
	}

	inflight := make(map[int64]decimal.Decimal, len(open))
	for _, trade := range open {
		inflight[trade.BuyOrderID] = inflight[trade.BuyOrderID].Add(trade.Quantity)
		inflight[trade.SellOrderID] = inflight[trade.SellOrderID].Add(trade.Quantity)
	}

	restored := 0
	for _, order := range orders {
		attributes := order.ToMatchingAttributes()
		attributes.FilledQuantity = attributes.FilledQuantity.Add(inflight[order.ID])
		if attributes.Filled() {
			continue
		}

		c.engineFor(ctx, order.Instrument).Restore(attributes)
		restored++
	}

	config.Logger.Infof("[carbonex.pipeline] restored %d orders into %d books", restored, len(c.engines.Symbols()))

	if _, err := c.RetrySettlements(ctx); err != nil {
		return restored, err
	}

	return restored, nil
}
